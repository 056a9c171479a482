package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/wolfeidau/assetpipe/internal/config"
	"github.com/wolfeidau/assetpipe/internal/logger"
	"github.com/wolfeidau/assetpipe/internal/pipeline"
	"github.com/wolfeidau/assetpipe/internal/sass"
	"github.com/wolfeidau/assetpipe/internal/scripts"
	"github.com/wolfeidau/assetpipe/internal/styles"
	"github.com/wolfeidau/assetpipe/internal/telemetry"
	"github.com/wolfeidau/assetpipe/internal/watch"
)

// Runner exposes the build and dev tasks over one configuration.
type Runner struct {
	config   config.Config
	compiler sass.Compiler
}

func New(cfg config.Config, compiler sass.Compiler) *Runner {
	return &Runner{config: cfg, compiler: compiler}
}

// Clean removes the script and style output directories.
func (r *Runner) Clean(ctx context.Context) error {
	for _, dir := range []string{r.config.ScriptOutputDir(), r.config.StyleOutputDir()} {
		zerolog.Ctx(ctx).Debug().Str("dir", dir).Msg("Removing output directory")
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("failed to clean %s: %w", dir, err)
		}
	}
	return nil
}

// Build runs the script and style pipelines once with the production profile.
// Both always run to completion; the error joins every failure.
func (r *Runner) Build(ctx context.Context) ([]pipeline.Result, error) {
	ctx, _ = logger.WithBuildID(ctx)

	sp, err := styles.New(r.config, config.Production, r.compiler)
	if err != nil {
		return nil, err
	}
	jp, err := scripts.New(r.config, config.Production, r.compiler)
	if err != nil {
		return nil, err
	}

	var scriptRes, styleRes pipeline.Result

	var g errgroup.Group
	g.Go(func() error {
		scriptRes = telemetry.Trace(ctx, scripts.Name, jp.Run)
		return nil
	})
	g.Go(func() error {
		styleRes = telemetry.Trace(ctx, styles.Name, sp.Run)
		return nil
	})
	_ = g.Wait()

	results := []pipeline.Result{scriptRes, styleRes}
	return results, pipeline.Join(results...)
}

// Dev builds styles once, rebuilds them on every change under the style
// source directory and keeps the script bundler in watch mode. It returns
// when ctx is cancelled.
func (r *Runner) Dev(ctx context.Context) error {
	ctx, _ = logger.WithBuildID(ctx)
	log := zerolog.Ctx(ctx)

	sp, err := styles.New(r.config, config.Development, r.compiler)
	if err != nil {
		return err
	}
	jp, err := scripts.New(r.config, config.Development, r.compiler)
	if err != nil {
		return err
	}

	// watch before the first build so edits made during it are not missed
	w, err := watch.New(r.config.StyleSourceDir(), r.config.Debounce, watch.MatchExt(r.config.Syntax.Ext()))
	if err != nil {
		return fmt.Errorf("failed to watch styles: %w", err)
	}

	telemetry.Trace(ctx, styles.Name, sp.Run)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.Run(gctx, func(ctx context.Context) {
			telemetry.GetMetrics().WatchRebuildTotal.Add(ctx, 1)
			telemetry.Trace(ctx, styles.Name, sp.Run)
		})
	})
	g.Go(func() error {
		err := jp.Watch(gctx)
		if errors.Is(err, scripts.ErrNoEntryPoints) {
			log.Warn().Err(err).Str("dir", r.config.ScriptSourceDir()).Msg("Script watch disabled")
			return nil
		}
		return err
	})

	return g.Wait()
}
