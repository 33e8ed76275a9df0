// Package apply downloads the artifacts of a patch chain and applies the
// chain step by step, recording progress in the local version record.
package apply

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fulmenhq/pkgsync/pkg/events"
	"github.com/fulmenhq/pkgsync/pkg/fetch"
	"github.com/fulmenhq/pkgsync/pkg/layout"
	"github.com/fulmenhq/pkgsync/pkg/logger"
	"github.com/fulmenhq/pkgsync/pkg/metacache"
	"github.com/fulmenhq/pkgsync/pkg/patcher"
	"github.com/fulmenhq/pkgsync/pkg/versions"
)

// ErrPatchApplyFailed indicates a chain step could not be applied.
var ErrPatchApplyFailed = errors.New("patch apply failed")

// StepError identifies the failing step of a chain.
type StepError struct {
	Index int
	Step  versions.Step
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: step %d (%s): %v", ErrPatchApplyFailed, e.Index, e.Step, e.Err)
}

func (e *StepError) Unwrap() []error {
	return []error{ErrPatchApplyFailed, e.Err}
}

// Descriptor holds the artifact sizes of one patch.
type Descriptor struct {
	Size    int64 `json:"size"`
	SigSize int64 `json:"sig_size"`
}

// Request describes one chain application.
type Request struct {
	ID        string // "user/repo", keys the local version record
	Name      string // display name used for events
	Remote    layout.Remote
	Chain     []versions.Step
	Target    versions.Version
	TargetDir string
	Events    events.Sink
}

// Applier runs patch chains. It is not safe for concurrent use on the same
// package.
type Applier struct {
	local   layout.Local
	fetcher *fetch.Coordinator
	patcher patcher.Applier
	store   *versions.LocalStore

	// OnStep, if set, is called after each step has been applied and recorded.
	OnStep func(req Request, step versions.Step)
}

// New returns an Applier.
func New(local layout.Local, fetcher *fetch.Coordinator, p patcher.Applier, store *versions.LocalStore) *Applier {
	return &Applier{local: local, fetcher: fetcher, patcher: p, store: store}
}

// Run fetches every artifact of req.Chain and applies the steps in order.
// After each successful step the local version record is advanced to that
// step's target. A failure stops the chain; committed steps stay.
func (a *Applier) Run(ctx context.Context, req Request) error {
	if len(req.Chain) == 0 {
		return nil
	}
	em := events.For(req.Events, req.Name)

	descs, err := a.descriptors(ctx, req, em)
	if err != nil {
		return err
	}

	var total int64
	var blobs []fetch.Artifact
	for i, step := range req.Chain {
		d := descs[i]
		total += d.Size + d.SigSize
		blobs = append(blobs,
			fetch.Artifact{
				Remote: req.Remote.PatchBlob(step.From, step.To),
				Path:   a.local.CachePath(req.Remote.PatchBlob(step.From, step.To)),
				Size:   d.Size,
			},
			fetch.Artifact{
				Remote: req.Remote.PatchSignature(step.From, step.To),
				Path:   a.local.CachePath(req.Remote.PatchSignature(step.From, step.To)),
				Size:   d.SigSize,
			})
	}

	em.Started()
	missing := fetch.Missing(blobs)
	if err := a.fetcher.Fetch(ctx, missing, em.Progress); err != nil {
		return fmt.Errorf("download patches: %w", err)
	}

	return a.applyChain(ctx, req, descs, total, em)
}

// descriptors fetches missing patch descriptors and reads all of them.
func (a *Applier) descriptors(ctx context.Context, req Request, em events.Emitter) ([]Descriptor, error) {
	arts := make([]fetch.Artifact, len(req.Chain))
	for i, step := range req.Chain {
		remote := req.Remote.PatchDescriptor(step.From, step.To)
		arts[i] = fetch.Artifact{Remote: remote, Path: a.local.CachePath(remote)}
	}
	missing := fetch.Missing(arts)
	em.Log("info", fmt.Sprintf("%d patches to download", len(missing)))
	if err := a.fetcher.Fetch(ctx, missing, nil); err != nil {
		return nil, fmt.Errorf("download patch descriptors: %w", err)
	}

	descs := make([]Descriptor, len(arts))
	for i, art := range arts {
		if err := metacache.Decode(art.Path, art.Remote, &descs[i]); err != nil {
			if metacache.IsCorrupt(err) {
				_ = os.Remove(art.Path)
				return nil, &metacache.CorruptError{Remote: art.Remote, Path: art.Path, Err: err}
			}
			return nil, err
		}
	}
	return descs, nil
}

func (a *Applier) applyChain(ctx context.Context, req Request, descs []Descriptor, total int64, em events.Emitter) error {
	events.For(req.Events, req.Name+": applying").Started()

	var done int64
	for i, step := range req.Chain {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("before step %s: %w", step, patcher.ErrAborted)
		}
		if err := os.MkdirAll(req.TargetDir, 0o755); err != nil {
			return &StepError{Index: i, Step: step, Err: err}
		}

		em.Log("info", fmt.Sprintf("Starting patch %d -> %d", step.From, step.To))
		blob := a.local.CachePath(req.Remote.PatchBlob(step.From, step.To))
		l := patcher.ListenerFuncs{OnLog: func(level, msg string) { em.Log(level, "Patcher: "+msg) }}
		if err := a.patcher.Apply(ctx, blob, req.TargetDir, l); err != nil {
			if patcher.IsAborted(err) {
				return err
			}
			return &StepError{Index: i, Step: step, Err: err}
		}

		record := versions.Version{Version: step.To, Name: req.Target.Name}
		if err := a.store.Save(req.ID, record); err != nil {
			return &StepError{Index: i, Step: step, Err: err}
		}
		if a.OnStep != nil {
			a.OnStep(req, step)
		}
		logger.Debug("patch applied", logger.String("package", req.ID), logger.String("step", step.String()))
		em.Log("info", fmt.Sprintf("Finished patch %d -> %d", step.From, step.To))

		done += descs[i].Size + descs[i].SigSize
		em.Progress(done, total)
	}
	return nil
}
