package styles

import (
	"context"
	"encoding/base64"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/assetpipe/internal/config"
	"github.com/wolfeidau/assetpipe/internal/pipeline"
)

// Sheet is a stylesheet moving through the chain.
type Sheet struct {
	// Path of the original source file.
	Path string
	CSS  string
	// Map is the JSON source map for CSS, empty when maps are off.
	Map string
}

// Stage is one post-processing step.
type Stage interface {
	Name() string
	Apply(ctx context.Context, sheet *Sheet) error
}

// Chain runs the post-processing stages in order: import inlining, vendor
// prefixing and, in production, minification.
type Chain struct {
	stages     []Stage
	sourceMaps bool
}

// NewChain builds the chain for a profile. sourceMaps controls whether each
// stage threads a source map through.
func NewChain(cfg config.Config, profile config.Profile, sourceMaps bool) (*Chain, error) {
	engines, err := cfg.Engines()
	if err != nil {
		return nil, err
	}

	stages := []Stage{
		&importInliner{sourceMaps: sourceMaps},
		&prefixer{engines: engines, sourceMaps: sourceMaps},
	}
	if profile.Minify() {
		stages = append(stages, &minifier{engines: engines, sourceMaps: sourceMaps})
	}

	return &Chain{stages: stages, sourceMaps: sourceMaps}, nil
}

func (c *Chain) SourceMaps() bool {
	return c.sourceMaps
}

// Stages returns the stage names in execution order.
func (c *Chain) Stages() []string {
	names := make([]string, len(c.stages))
	for i, s := range c.stages {
		names[i] = s.Name()
	}
	return names
}

func (c *Chain) Run(ctx context.Context, sheet *Sheet) error {
	for _, s := range c.stages {
		if err := ctx.Err(); err != nil {
			return err
		}
		zerolog.Ctx(ctx).Debug().Str("stage", s.Name()).Str("file", sheet.Path).Msg("Applying style stage")
		if err := s.Apply(ctx, sheet); err != nil {
			return fmt.Errorf("%s: %w", s.Name(), err)
		}
	}
	return nil
}

// keepURLs marks every url() token external so only @import rules are
// inlined. The web server resolves the rest.
var keepURLs = api.Plugin{
	Name: "keep-urls",
	Setup: func(build api.PluginBuild) {
		build.OnResolve(api.OnResolveOptions{Filter: `.*`},
			func(args api.OnResolveArgs) (api.OnResolveResult, error) {
				if args.Kind != api.ResolveCSSURLToken {
					return api.OnResolveResult{}, nil
				}
				return api.OnResolveResult{Path: args.Path, External: true}, nil
			})
	},
}

type importInliner struct {
	sourceMaps bool
}

func (s *importInliner) Name() string { return "import" }

func (s *importInliner) Apply(_ context.Context, sheet *Sheet) error {
	dir := filepath.Dir(sheet.Path)
	base := strings.TrimSuffix(filepath.Base(sheet.Path), filepath.Ext(sheet.Path))

	result := api.Build(api.BuildOptions{
		Stdin: &api.StdinOptions{
			Contents:   withInputMap(sheet),
			ResolveDir: dir,
			Sourcefile: sheet.Path,
			Loader:     api.LoaderCSS,
		},
		Bundle:    true,
		Write:     false,
		Outfile:   filepath.Join(dir, base+".css"),
		Plugins:   []api.Plugin{keepURLs},
		Sourcemap: cond(s.sourceMaps, api.SourceMapExternal, api.SourceMapNone),
		LogLevel:  api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		return pipeline.MessagesError(result.Errors)
	}

	for _, f := range result.OutputFiles {
		if strings.HasSuffix(f.Path, ".map") {
			sheet.Map = string(f.Contents)
			continue
		}
		sheet.CSS = string(f.Contents)
	}
	return nil
}

type prefixer struct {
	engines    []api.Engine
	sourceMaps bool
}

func (s *prefixer) Name() string { return "prefix" }

func (s *prefixer) Apply(_ context.Context, sheet *Sheet) error {
	return transform(sheet, api.TransformOptions{
		Engines:   s.engines,
		Sourcemap: cond(s.sourceMaps, api.SourceMapExternal, api.SourceMapNone),
	})
}

type minifier struct {
	engines    []api.Engine
	sourceMaps bool
}

func (s *minifier) Name() string { return "minify" }

func (s *minifier) Apply(_ context.Context, sheet *Sheet) error {
	return transform(sheet, api.TransformOptions{
		Engines:          s.engines,
		MinifyWhitespace: true,
		MinifySyntax:     true,
		Sourcemap:        cond(s.sourceMaps, api.SourceMapExternal, api.SourceMapNone),
	})
}

func transform(sheet *Sheet, opts api.TransformOptions) error {
	opts.Loader = api.LoaderCSS
	opts.Sourcefile = sheet.Path
	opts.LogLevel = api.LogLevelSilent

	result := api.Transform(withInputMap(sheet), opts)
	if len(result.Errors) > 0 {
		return pipeline.MessagesError(result.Errors)
	}

	sheet.CSS = string(result.Code)
	if opts.Sourcemap != api.SourceMapNone {
		sheet.Map = string(result.Map)
	}
	return nil
}

// withInputMap appends the current map as an inline comment so esbuild chains
// the new map back to the original sources.
func withInputMap(sheet *Sheet) string {
	if sheet.Map == "" {
		return sheet.CSS
	}
	return sheet.CSS + "\n/*# sourceMappingURL=data:application/json;base64," +
		base64.StdEncoding.EncodeToString([]byte(sheet.Map)) + " */\n"
}

func cond[T any](condition bool, trueVal, falseVal T) T {
	if condition {
		return trueVal
	}
	return falseVal
}
