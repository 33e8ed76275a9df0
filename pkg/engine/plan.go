package engine

import (
	"context"

	"github.com/fulmenhq/pkgsync/pkg/apply"
	"github.com/fulmenhq/pkgsync/pkg/versions"
)

// Plan describes what Download would do for a package.
type Plan struct {
	Name       string            `json:"name" yaml:"name"`
	ID         string            `json:"id" yaml:"id"`
	Channel    string            `json:"channel" yaml:"channel"`
	Platform   string            `json:"platform" yaml:"platform"`
	Path       string            `json:"path" yaml:"path"`
	RapidTag   string            `json:"rapid_tag,omitempty" yaml:"rapid_tag,omitempty"`
	Pinned     bool              `json:"pinned" yaml:"pinned"`
	Local      *versions.Version `json:"local,omitempty" yaml:"local,omitempty"`
	Target     versions.Version  `json:"target" yaml:"target"`
	UpToDate   bool              `json:"up_to_date" yaml:"up_to_date"`
	Chain      []versions.Step   `json:"chain" yaml:"chain"`
	Steps      []PlanStep        `json:"steps,omitempty" yaml:"steps,omitempty"`
	TotalBytes int64             `json:"total_bytes" yaml:"total_bytes"`
}

// PlanStep is one chain step with its artifact sizes.
type PlanStep struct {
	versions.Step `yaml:",inline"`
	Size          int64 `json:"size" yaml:"size"`
	SigSize       int64 `json:"sig_size" yaml:"sig_size"`
}

// Plan resolves fullName and computes the patch chain and its download size.
// Metadata and patch descriptors are fetched into the cache; patches are not.
func (e *Engine) Plan(ctx context.Context, fullName string) (*Plan, error) {
	r, err := e.resolveName(ctx, fullName)
	if err != nil {
		return nil, err
	}
	p := &Plan{
		Name:     fullName,
		ID:       r.name.ID(),
		Channel:  r.resolved.Channel,
		Platform: r.resolved.Platform,
		Path:     r.info.Path,
		RapidTag: r.info.Rapid,
		Pinned:   r.name.Pinned,
		Local:    r.local,
		Target:   r.target,
		UpToDate: versions.UpToDate(r.local, r.target),
		Chain:    []versions.Step{},
	}
	if p.UpToDate {
		return p, nil
	}
	p.Chain = versions.BuildChain(r.local, r.target)
	for _, step := range p.Chain {
		var d apply.Descriptor
		if err := e.cache.FetchIfAbsent(ctx, r.remote.PatchDescriptor(step.From, step.To), &d); err != nil {
			return nil, err
		}
		p.Steps = append(p.Steps, PlanStep{Step: step, Size: d.Size, SigSize: d.SigSize})
		p.TotalBytes += d.Size + d.SigSize
	}
	return p, nil
}
