package cmd

import (
	"context"
	"fmt"

	"github.com/fulmenhq/pkgsync/internal/metrics"
	"github.com/fulmenhq/pkgsync/pkg/config"
	"github.com/fulmenhq/pkgsync/pkg/engine"
	"github.com/fulmenhq/pkgsync/pkg/events"
	"github.com/fulmenhq/pkgsync/pkg/layout"
	"github.com/fulmenhq/pkgsync/pkg/legacy"
	"github.com/fulmenhq/pkgsync/pkg/logger"
	"github.com/fulmenhq/pkgsync/pkg/patcher"
	"github.com/fulmenhq/pkgsync/pkg/patcher/butler"
	"github.com/fulmenhq/pkgsync/pkg/transport"
	"github.com/spf13/cobra"
)

// eventBuffer bounds queued non-progress events between the engine and the
// terminal renderer.
const eventBuffer = 256

// session wires configuration, the engine and the progress renderer for one
// command invocation.
type session struct {
	cfg    *config.Config
	engine *engine.Engine
	bus    *events.Bus
	done   chan struct{}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path, cmd.Flags())
}

// openSession builds an Engine from configuration. Commands that never apply
// patches pass needApply=false so they keep working without butler as long
// as an HTTP download path is available.
func openSession(cmd *cobra.Command, needApply bool) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	local := layout.Local{WritePath: cfg.WritePath}
	p, err := newPatcher(cfg, local, needApply)
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg, bus: events.NewBus(eventBuffer), done: make(chan struct{})}
	renderer := newProgressRenderer(cmd.ErrOrStderr(), progressEnabled(cmd))
	go func() {
		defer close(s.done)
		s.bus.Drain(renderer)
	}()

	s.engine, err = engine.New(engine.Options{
		WritePath:      cfg.WritePath,
		Patcher:        p,
		Primary:        cfg.Remote.Primary,
		Fallback:       cfg.Remote.Fallback,
		PackageInfoTTL: cfg.Cache.PackageInfoTTL,
		LatestTTL:      cfg.Cache.LatestTTL,
		MaxParallel:    cfg.Fetch.MaxParallel,
		Legacy:         cfg.Legacy.Enabled,
		LegacyOptions: []legacy.Option{
			legacy.WithHost(cfg.Legacy.Host),
			legacy.WithTagSuffix(cfg.Legacy.TagSuffix),
			legacy.WithArchiveExt(cfg.Legacy.ArchiveExt),
		},
		Events: s.bus,
	})
	if err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

// close flushes pending events and writes the metrics textfile if one is
// configured.
func (s *session) close() {
	s.bus.Close()
	<-s.done
	if s.cfg.Metrics.Textfile == "" {
		return
	}
	if err := metrics.WriteTextfile(s.cfg.Metrics.Textfile); err != nil {
		logger.Warn("Failed to write metrics", logger.String("path", s.cfg.Metrics.Textfile), logger.Err(err))
	}
}

// newPatcher selects the download and apply implementations. Temporary files
// live in the write path's tmp directory so renames stay on one filesystem.
func newPatcher(cfg *config.Config, local layout.Local, needApply bool) (patcher.Patcher, error) {
	names := patcher.NewTempNames(local.TmpDir())
	binDir, _ := config.GetBinDir()

	var applier patcher.Applier
	path, err := butler.Locate(cfg.Patcher.ButlerPath, binDir)
	switch {
	case err == nil:
		logger.Debug("using butler", logger.String("path", path))
		b := butler.New(path, names)
		if cfg.Patcher.Downloader == config.DownloaderButler {
			return b, nil
		}
		applier = b
	case needApply:
		return nil, err
	default:
		applier = unavailableApplier{err: err}
	}

	if cfg.Patcher.Downloader == config.DownloaderButler {
		logger.Debug("butler unavailable, downloading metadata over HTTP", logger.Err(err))
	}
	fetcher := transport.NewRealHTTPFetcher(cfg.Patcher.HTTPTimeout)
	return patcher.WithDownloader(applier, transport.NewDownloader(fetcher, names)), nil
}

// unavailableApplier stands in for butler when only metadata is needed.
type unavailableApplier struct {
	err error
}

func (u unavailableApplier) Apply(context.Context, string, string, patcher.Listener) error {
	return fmt.Errorf("apply patch: %w", u.err)
}

// runEach runs op for every name in order, stopping at the first failure.
func runEach(ctx context.Context, names []string, op func(context.Context, string) error) error {
	for _, name := range names {
		if err := op(ctx, name); err != nil {
			return err
		}
	}
	return nil
}
