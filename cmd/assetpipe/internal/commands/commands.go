package commands

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/assetpipe/internal/config"
	"github.com/wolfeidau/assetpipe/internal/logger"
	"github.com/wolfeidau/assetpipe/internal/pipeline"
	"github.com/wolfeidau/assetpipe/internal/sass"
	"github.com/wolfeidau/assetpipe/internal/tasks"
	"github.com/wolfeidau/assetpipe/internal/telemetry"
)

type Globals struct {
	Config  string
	Debug   bool
	Tracing bool
	Version string
}

// SourceFlags override the directory layout and syntax from the config file.
type SourceFlags struct {
	Source string `help:"source directory" env:"ASSETPIPE_SOURCE"`
	Output string `help:"output directory" env:"ASSETPIPE_OUTPUT"`
	Syntax string `help:"stylesheet syntax" env:"ASSETPIPE_SYNTAX"`
}

func (f SourceFlags) overrides() config.Overrides {
	return config.Overrides{
		SourceDir: f.Source,
		OutputDir: f.Output,
		Syntax:    f.Syntax,
	}
}

// setup loads the config, attaches the logger to ctx and starts telemetry when
// enabled. The returned cleanup stops the sass compiler and flushes telemetry.
func setup(ctx context.Context, globals *Globals, flags SourceFlags) (context.Context, *tasks.Runner, func(), error) {
	log := logger.Setup(globals.Debug)
	ctx = log.WithContext(ctx)

	cfg, err := config.Load(globals.Config)
	if err != nil {
		return nil, nil, nil, err
	}
	cfg, err = cfg.WithOverrides(flags.overrides())
	if err != nil {
		return nil, nil, nil, err
	}

	log.Info().
		Str("version", globals.Version).
		Str("source", cfg.SourceDir).
		Str("output", cfg.OutputDir).
		Str("syntax", string(cfg.Syntax)).
		Msg("Loaded config")

	shutdown := func(context.Context) error { return nil }
	if globals.Tracing {
		log.Info().Msg("Tracing is enabled")
		shutdown, err = telemetry.Init(ctx, "assetpipe", globals.Version)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without tracing")
			shutdown = func(context.Context) error { return nil }
		}
	}

	compiler := sass.NewDart(cfg, log)

	cleanup := func() {
		if err := compiler.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to stop sass compiler")
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Failed to shutdown telemetry")
		}
	}

	return ctx, tasks.New(cfg, compiler), cleanup, nil
}

func logResults(log *zerolog.Logger, results []pipeline.Result) {
	for _, r := range results {
		if !r.OK() {
			log.Error().Err(r.Err).Str("pipeline", r.Name).Dur("duration", r.Duration).Msg("Pipeline failed")
			continue
		}
		log.Info().Str("pipeline", r.Name).Strs("outputs", r.Outputs).Dur("duration", r.Duration).Msg("Pipeline succeeded")
	}
}
