// Package fetch downloads sets of artifacts concurrently and reports their
// combined progress.
package fetch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fulmenhq/pkgsync/pkg/logger"
	"github.com/fulmenhq/pkgsync/pkg/patcher"
	"github.com/fulmenhq/pkgsync/pkg/safeio"
)

// Artifact is one remote file to place at Path. Size is the expected byte
// count used to weight progress; zero or negative sizes weigh one unit.
type Artifact struct {
	Remote string
	Path   string
	Size   int64
}

func (a Artifact) weight() int64 {
	if a.Size > 0 {
		return a.Size
	}
	return 1
}

// Source downloads a remote-relative path. *origin.Mirrors satisfies it.
type Source interface {
	Download(ctx context.Context, remote, destPath string, l patcher.Listener) error
}

// ProgressFunc receives aggregated progress. current never decreases and
// never exceeds total.
type ProgressFunc func(current, total int64)

// Coordinator fans a download set out across goroutines.
type Coordinator struct {
	src Source
	// Limit caps concurrent downloads; zero means one goroutine per artifact.
	Limit int
	// OnDone, if set, is called after every artifact finishes.
	OnDone func(a Artifact, err error, elapsed time.Duration)
}

// New returns a Coordinator pulling from src.
func New(src Source) *Coordinator {
	return &Coordinator{src: src}
}

// Missing filters artifacts down to those not yet present on disk.
func Missing(artifacts []Artifact) []Artifact {
	var out []Artifact
	for _, a := range artifacts {
		if !safeio.Exists(a.Path) {
			out = append(out, a)
		}
	}
	return out
}

// Total sums the progress weight of artifacts.
func Total(artifacts []Artifact) int64 {
	var total int64
	for _, a := range artifacts {
		total += a.weight()
	}
	return total
}

// Fetch downloads every artifact. The first failure cancels the rest and is
// returned; artifacts completed before it remain on disk.
func (c *Coordinator) Fetch(ctx context.Context, artifacts []Artifact, progress ProgressFunc) error {
	if len(artifacts) == 0 {
		return nil
	}
	agg := newAggregator(artifacts, progress)

	g, gctx := errgroup.WithContext(ctx)
	if c.Limit > 0 {
		g.SetLimit(c.Limit)
	}
	for i, a := range artifacts {
		i, a := i, a
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return fmt.Errorf("%s: %w", a.Remote, patcher.ErrAborted)
			}
			start := time.Now()
			l := patcher.ListenerFuncs{
				OnProgress: func(cur, total int64) { agg.update(i, cur, total) },
			}
			err := c.src.Download(gctx, a.Remote, a.Path, l)
			if c.OnDone != nil {
				c.OnDone(a, err, time.Since(start))
			}
			if err != nil {
				return err
			}
			agg.complete(i)
			logger.Trace("artifact fetched", logger.String("remote", a.Remote))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	agg.finish()
	return nil
}

type aggregator struct {
	mu       sync.Mutex
	weights  []int64
	current  []int64
	sum      int64
	total    int64
	emitted  int64
	progress ProgressFunc
}

func newAggregator(artifacts []Artifact, progress ProgressFunc) *aggregator {
	a := &aggregator{
		weights:  make([]int64, len(artifacts)),
		current:  make([]int64, len(artifacts)),
		progress: progress,
		emitted:  -1,
	}
	for i, art := range artifacts {
		a.weights[i] = art.weight()
		a.total += a.weights[i]
	}
	return a
}

func (a *aggregator) update(i int, cur, total int64) {
	if total <= 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	w := a.weights[i]
	norm := int64(float64(cur) / float64(total) * float64(w))
	if norm > w {
		norm = w
	}
	a.set(i, norm)
}

func (a *aggregator) complete(i int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.set(i, a.weights[i])
}

// set must be called with mu held.
func (a *aggregator) set(i int, v int64) {
	if v <= a.current[i] {
		return
	}
	a.sum += v - a.current[i]
	a.current[i] = v
	a.emit()
}

func (a *aggregator) finish() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sum = a.total
	a.emit()
}

func (a *aggregator) emit() {
	if a.progress == nil || a.sum == a.emitted {
		return
	}
	a.emitted = a.sum
	a.progress(a.sum, a.total)
}
