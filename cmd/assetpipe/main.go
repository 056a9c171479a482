package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/wolfeidau/assetpipe/cmd/assetpipe/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Config  string            `help:"path to the pipeline config file" short:"c" default:"assetpipe.yaml" env:"ASSETPIPE_CONFIG"`
		Debug   bool              `help:"Enable debug mode."`
		Tracing bool              `help:"enable tracing" default:"false" env:"ASSETPIPE_TRACING"`
		Build   commands.BuildCmd `cmd:"" default:"withargs" help:"Build styles and scripts for production"`
		Dev     commands.DevCmd   `cmd:"" help:"Build for development and rebuild on change"`
		Version kong.VersionFlag
	}
)

func main() {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := kong.Parse(&cli,
		kong.Name("assetpipe"),
		kong.Description("Compile stylesheets and bundle scripts."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{
		Config:  cli.Config,
		Debug:   cli.Debug,
		Tracing: cli.Tracing,
		Version: version,
	})
	cmd.FatalIfErrorf(err)
}
