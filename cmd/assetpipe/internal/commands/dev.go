package commands

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

type DevCmd struct {
	SourceFlags `embed:""`
}

func (c *DevCmd) Run(ctx context.Context, globals *Globals) error {
	ctx, runner, cleanup, err := setup(ctx, globals, c.SourceFlags)
	if err != nil {
		return err
	}
	defer cleanup()

	log := zerolog.Ctx(ctx)
	log.Info().Msg("Watching for changes, press Ctrl+C to stop")

	err = runner.Dev(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	log.Info().Msg("Stopped watching")
	return nil
}
