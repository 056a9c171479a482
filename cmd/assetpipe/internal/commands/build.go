package commands

import (
	"context"

	"github.com/rs/zerolog"
)

type BuildCmd struct {
	SourceFlags `embed:""`

	Clean bool `help:"remove the script and style output directories first" default:"false" env:"ASSETPIPE_CLEAN"`
}

func (c *BuildCmd) Run(ctx context.Context, globals *Globals) error {
	ctx, runner, cleanup, err := setup(ctx, globals, c.SourceFlags)
	if err != nil {
		return err
	}
	defer cleanup()

	log := zerolog.Ctx(ctx)

	if c.Clean {
		if err := runner.Clean(ctx); err != nil {
			return err
		}
	}

	log.Info().Msg("Starting production build")
	results, err := runner.Build(ctx)
	logResults(log, results)
	return err
}
