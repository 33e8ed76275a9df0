/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/

// Package engine orchestrates package updates: name resolution, metadata
// caching, patch chain planning, artifact download, patch application and
// legacy registry maintenance.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fulmenhq/pkgsync/internal/metrics"
	"github.com/fulmenhq/pkgsync/pkg/apply"
	"github.com/fulmenhq/pkgsync/pkg/events"
	"github.com/fulmenhq/pkgsync/pkg/fetch"
	"github.com/fulmenhq/pkgsync/pkg/layout"
	"github.com/fulmenhq/pkgsync/pkg/legacy"
	"github.com/fulmenhq/pkgsync/pkg/logger"
	"github.com/fulmenhq/pkgsync/pkg/metacache"
	"github.com/fulmenhq/pkgsync/pkg/origin"
	"github.com/fulmenhq/pkgsync/pkg/patcher"
	"github.com/fulmenhq/pkgsync/pkg/pkgname"
	"github.com/fulmenhq/pkgsync/pkg/safeio"
	"github.com/fulmenhq/pkgsync/pkg/versions"
)

// Options configures an Engine. Zero durations and empty origins select the
// package defaults.
type Options struct {
	WritePath string
	Patcher   patcher.Patcher

	Primary  string
	Fallback string

	PackageInfoTTL time.Duration
	LatestTTL      time.Duration
	MaxParallel    int

	// Legacy enables rapid registry maintenance with the given writer options.
	Legacy        bool
	LegacyOptions []legacy.Option

	// Platform overrides the detected native platform.
	Platform string
	Events   events.Sink
}

// Engine runs update workflows. Callers must not run two workflows for the
// same package concurrently.
type Engine struct {
	opts    Options
	local   layout.Local
	native  string
	sink    events.Sink
	cache   *metacache.Cache
	store   *versions.LocalStore
	resolve *versions.Resolver
	applier *apply.Applier
	touched *legacy.Touched
	legacy  *legacy.Writer
}

// New validates the host, prepares the write path and resets the package
// directory if its layout version is outdated.
func New(opts Options) (*Engine, error) {
	if opts.Patcher == nil {
		return nil, errors.New("engine: patcher is required")
	}
	if opts.WritePath == "" {
		return nil, errors.New("engine: write path is required")
	}
	native := opts.Platform
	if native == "" {
		p, err := pkgname.HostPlatform()
		if err != nil {
			return nil, err
		}
		native = p
	}
	if opts.PackageInfoTTL == 0 {
		opts.PackageInfoTTL = metacache.PackageInfoTTL
	}
	if opts.LatestTTL == 0 {
		opts.LatestTTL = metacache.LatestTTL
	}
	sink := opts.Events
	if sink == nil {
		sink = events.Discard
	}

	local := layout.Local{WritePath: opts.WritePath}
	if _, err := ensureSystem(local); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(local.TmpDir(), 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", local.TmpDir(), err)
	}

	mirrors := origin.New(opts.Primary, opts.Fallback, opts.Patcher)
	mirrors.Observer.OnFallback = func(string, error) { metrics.OriginFallback() }

	cache := metacache.New(local.PackageDir(), mirrors)
	cache.Observer = metacache.Observer{
		OnHit:     func(string) { metrics.CacheLookup("hit") },
		OnMiss:    func(string) { metrics.CacheLookup("miss") },
		OnCorrupt: func(string) { metrics.CacheLookup("corrupt") },
	}

	coordinator := fetch.New(mirrors)
	coordinator.Limit = opts.MaxParallel
	coordinator.OnDone = func(a fetch.Artifact, err error, elapsed time.Duration) {
		metrics.ArtifactFetched(a.Size, outcome(err), elapsed)
	}

	store := versions.NewLocalStore(local)
	applier := apply.New(local, coordinator, opts.Patcher, store)
	applier.OnStep = func(apply.Request, versions.Step) { metrics.PatchApplied() }

	e := &Engine{
		opts:    opts,
		local:   local,
		native:  native,
		sink:    sink,
		cache:   cache,
		store:   store,
		resolve: versions.NewResolver(store, cache, opts.LatestTTL),
		applier: applier,
		touched: legacy.NewTouched(local.TouchedRegistry()),
	}
	if opts.Legacy {
		e.legacy = legacy.NewWriter(opts.WritePath, e.touched, opts.LegacyOptions...)
	}
	return e, nil
}

// Layout returns the local layout in use.
func (e *Engine) Layout() layout.Local {
	return e.local
}

// Touched returns the registry of legacy files written by pkgsync.
func (e *Engine) Touched() *legacy.Touched {
	return e.touched
}

// resolution is everything learned from metadata about one request.
type resolution struct {
	name     pkgname.Name
	resolved pkgname.Resolved
	info     pkgname.PackageInfo
	remote   layout.Remote
	local    *versions.Version
	target   versions.Version
}

func (e *Engine) resolveName(ctx context.Context, fullName string) (*resolution, error) {
	name, err := pkgname.Parse(fullName)
	if err != nil {
		return nil, err
	}
	r := &resolution{name: name}
	if err := e.cache.Fetch(ctx, layout.PackageInfo(name.ID()), e.opts.PackageInfoTTL, &r.info); err != nil {
		return nil, fmt.Errorf("package info for %s: %w", name.ID(), err)
	}
	r.resolved, err = pkgname.Negotiate(name, &r.info, e.native)
	if err != nil {
		return nil, err
	}
	r.remote = layout.RemoteFor(r.resolved)

	r.local, err = e.resolve.Local(name.ID())
	if err != nil {
		return nil, err
	}
	var pin *int
	if name.Pinned {
		v := name.Version
		pin = &v
	}
	r.target, err = e.resolve.Target(ctx, r.remote, pin)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// DownloadMetadata resolves fullName and refreshes its cached metadata
// without downloading any patch.
func (e *Engine) DownloadMetadata(ctx context.Context, fullName string) error {
	em := events.For(e.sink, fullName)
	events.For(e.sink, fullName+": metadata").Started()

	_, err := e.resolveName(ctx, fullName)
	e.finish(em, "metadata", err)
	return err
}

// Download brings the package named fullName to its target version.
func (e *Engine) Download(ctx context.Context, fullName string) error {
	em := events.For(e.sink, fullName)
	err := e.download(ctx, fullName, em)
	e.finish(em, "download", err)
	return err
}

func (e *Engine) download(ctx context.Context, fullName string, em events.Emitter) error {
	events.For(e.sink, fullName+": metadata").Started()
	r, err := e.resolveName(ctx, fullName)
	if err != nil {
		return err
	}

	if versions.UpToDate(r.local, r.target) {
		em.Log("info", "No download necessary for "+fullName)
		if e.wantsLegacy(r) {
			if p, err := e.legacy.Path(r.info.Rapid); err != nil || !safeio.Exists(p) {
				e.updateLegacy(r, em)
			}
		}
		return nil
	}

	targetDir, err := safeio.JoinContained(e.opts.WritePath, r.info.Path)
	if err != nil {
		return fmt.Errorf("package path %q: %w", r.info.Path, err)
	}
	chain := versions.BuildChain(r.local, r.target)
	logger.Info("updating package",
		logger.String("package", fullName),
		logger.Int("target", r.target.Version),
		logger.String("chain", versions.Describe(chain)))

	err = e.applier.Run(ctx, apply.Request{
		ID:        r.name.ID(),
		Name:      fullName,
		Remote:    r.remote,
		Chain:     chain,
		Target:    r.target,
		TargetDir: targetDir,
		Events:    e.sink,
	})
	if err != nil {
		return err
	}
	if err := e.store.Save(r.name.ID(), r.target); err != nil {
		return err
	}

	if e.wantsLegacy(r) {
		e.updateLegacy(r, em)
	}
	return nil
}

func (e *Engine) wantsLegacy(r *resolution) bool {
	return e.legacy != nil && r.info.Rapid != "" && !r.name.Pinned
}

// updateLegacy failures are logged, not returned: the package itself is
// already installed.
func (e *Engine) updateLegacy(r *resolution, em events.Emitter) {
	if _, err := e.legacy.Update(r.info.Rapid, r.target); err != nil {
		em.Log("warn", fmt.Sprintf("legacy registry update failed: %v", err))
		logger.Warn("legacy registry update failed", logger.String("tag", r.info.Rapid), logger.Err(err))
		return
	}
	em.Log("info", fmt.Sprintf("%s rapid tag now points to: %s",
		e.legacy.Tag(r.info.Rapid), e.legacy.Archive(r.target)))
}

func (e *Engine) finish(em events.Emitter, op string, err error) {
	switch {
	case err == nil:
		em.Finished()
		metrics.Operation(op, string(events.Finished))
	case patcher.IsAborted(err):
		em.Aborted()
		metrics.Operation(op, string(events.Aborted))
	default:
		em.Failed(err)
		em.Log("error", err.Error())
		metrics.Operation(op, string(events.Failed))
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case patcher.IsAborted(err):
		return "aborted"
	default:
		return "error"
	}
}
