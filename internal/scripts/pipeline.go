package scripts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/assetpipe/internal/component"
	"github.com/wolfeidau/assetpipe/internal/config"
	"github.com/wolfeidau/assetpipe/internal/pipeline"
	"github.com/wolfeidau/assetpipe/internal/sass"
	"github.com/wolfeidau/assetpipe/internal/styles"
)

const Name = "scripts"

// Pipeline bundles every script entry point with esbuild.
type Pipeline struct {
	config  config.Config
	profile config.Profile
	engines []api.Engine
	// absolute source and output directories
	root   string
	outDir string

	styles     *styles.Processor
	components *component.Compiler

	mu       sync.RWMutex
	manifest Manifest
}

func New(cfg config.Config, profile config.Profile, compiler sass.Compiler) (*Pipeline, error) {
	engines, err := cfg.Engines()
	if err != nil {
		return nil, err
	}

	// styles imported from scripts are injected at runtime, they get no map of their own
	chain, err := styles.NewChain(cfg, profile, false)
	if err != nil {
		return nil, err
	}

	root, err := filepath.Abs(cfg.SourceDir)
	if err != nil {
		return nil, err
	}
	outDir, err := filepath.Abs(cfg.ScriptOutputDir())
	if err != nil {
		return nil, err
	}

	processor := styles.NewProcessor(compiler, chain)

	return &Pipeline{
		config:  cfg,
		profile: profile,
		engines: engines,
		root:    root,
		outDir:  outDir,
		styles:  processor,
		components: component.New(component.Options{
			Root:           root,
			MinifyTemplate: profile.Minify(),
			Styles: func(ctx context.Context, path, content string, syntax config.Syntax) (string, error) {
				sheet, err := processor.Process(ctx, path, content, syntax)
				if err != nil {
					return "", err
				}
				return sheet.CSS, nil
			},
		}),
	}, nil
}

// Options returns the esbuild options for the profile. ctx is handed to the
// loader rules.
func (p *Pipeline) Options(ctx context.Context, entries map[string]string) api.BuildOptions {
	return api.BuildOptions{
		EntryPointsAdvanced: esbuildEntryPoints(entries),
		Bundle:              true,
		Write:               true,
		Outdir:              p.outDir,
		PublicPath:          p.config.PublicPath,
		Format:              api.FormatIIFE,
		Platform:            api.PlatformBrowser,
		Engines:             p.engines,
		MinifyWhitespace:    p.profile.Minify(),
		MinifyIdentifiers:   p.profile.Minify(),
		MinifySyntax:        p.profile.Minify(),
		Sourcemap:           cond(p.profile.SourceMaps(), api.SourceMapLinked, api.SourceMapNone),
		ResolveExtensions:   []string{".js", ".vue", ".json"},
		Define: map[string]string{
			"process.env.NODE_ENV": fmt.Sprintf("%q", string(p.profile)),
		},
		Metafile: true,
		LogLevel: api.LogLevelSilent,
		Plugins: []api.Plugin{
			p.aliasPlugin(),
			p.rulesPlugin(ctx),
			p.reportPlugin(ctx),
		},
	}
}

// Run bundles all entry points once.
func (p *Pipeline) Run(ctx context.Context) pipeline.Result {
	started := time.Now()
	res := pipeline.Result{Name: Name}

	entries, err := p.entries(ctx)
	if err != nil {
		res.Err = err
		res.Duration = time.Since(started)
		return res
	}

	result := api.Build(p.Options(ctx, entries))
	res.Duration = time.Since(started)

	if len(result.Errors) > 0 {
		res.Err = pipeline.MessagesError(result.Errors)
		return res
	}

	res.Outputs, res.Err = p.outputs(entries)
	return res
}

// Watch bundles all entry points and rebuilds on change until ctx is done.
func (p *Pipeline) Watch(ctx context.Context) error {
	entries, err := p.entries(ctx)
	if err != nil {
		return err
	}

	bctx, cerr := api.Context(p.Options(ctx, entries))
	if cerr != nil {
		return pipeline.MessagesError(cerr.Errors)
	}
	defer bctx.Dispose()

	if err := bctx.Watch(api.WatchOptions{}); err != nil {
		return fmt.Errorf("failed to start script watch: %w", err)
	}

	<-ctx.Done()
	zerolog.Ctx(ctx).Info().Str("pipeline", Name).Msg("script watch stopped")
	return nil
}

// Manifest returns the manifest of the last successful build.
func (p *Pipeline) Manifest() Manifest {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.manifest
}

func (p *Pipeline) entries(ctx context.Context) (map[string]string, error) {
	entries, err := EntryPoints(p.config)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrNoEntryPoints
	}

	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	zerolog.Ctx(ctx).Info().Str("pipeline", Name).Strs("entrypoints", names).Msg("Building scripts")

	return entries, nil
}

// outputs lists the artifacts written for entries, failing if one is missing.
func (p *Pipeline) outputs(entries map[string]string) ([]string, error) {
	var files []string
	for _, ep := range esbuildEntryPoints(entries) {
		name := filepath.Join(p.outDir, ep.OutputPath+".js")
		files = append(files, name)
		if p.profile.SourceMaps() {
			files = append(files, name+".map")
		}
	}

	var errs []error
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			errs = append(errs, err)
		}
	}
	return files, errors.Join(errs...)
}

// reportPlugin logs the start and end of every build, including rebuilds in
// watch mode, and refreshes the manifest after a successful build.
func (p *Pipeline) reportPlugin(ctx context.Context) api.Plugin {
	logger := zerolog.Ctx(ctx).With().Str("pipeline", Name).Str("profile", string(p.profile)).Logger()

	return api.Plugin{
		Name: "report",
		Setup: func(build api.PluginBuild) {
			var started time.Time

			build.OnStart(func() (api.OnStartResult, error) {
				started = time.Now()
				logger.Info().Msg("script build started")
				return api.OnStartResult{}, nil
			})

			build.OnEnd(func(result *api.BuildResult) (api.OnEndResult, error) {
				if len(result.Errors) > 0 {
					for _, msg := range result.Errors {
						logger.Error().Str("error", pipeline.FormatMessage(msg)).Msg("Build error")
					}
					logger.Error().Int("errors", len(result.Errors)).Dur("duration", time.Since(started)).Msg("script build failed")
					return api.OnEndResult{}, nil
				}

				for _, msg := range result.Warnings {
					logger.Warn().Str("warning", pipeline.FormatMessage(msg)).Msg("Build warning")
				}

				if err := p.updateManifest(result.Metafile); err != nil {
					logger.Error().Err(err).Msg("Failed to write manifest")
					return api.OnEndResult{}, err
				}

				logger.Info().
					Strs("entries", p.Manifest().Names()).
					Dur("duration", time.Since(started)).
					Msg("script build finished")
				return api.OnEndResult{}, nil
			})
		},
	}
}

func (p *Pipeline) updateManifest(metafile string) error {
	manifest, err := NewManifest(metafile, p.config.PublicPath)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.manifest = manifest
	p.mu.Unlock()

	if p.config.Manifest == "" {
		return nil
	}
	return manifest.Write(filepath.Join(p.config.OutputDir, p.config.Manifest))
}

func cond[T any](condition bool, trueVal, falseVal T) T {
	if condition {
		return trueVal
	}
	return falseVal
}
