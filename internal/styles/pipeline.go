package styles

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/assetpipe/internal/config"
	"github.com/wolfeidau/assetpipe/internal/pipeline"
	"github.com/wolfeidau/assetpipe/internal/sass"
)

const Name = "styles"

// Pipeline compiles the top-level stylesheets of the configured dialect into
// the CSS output directory.
type Pipeline struct {
	config    config.Config
	profile   config.Profile
	processor *Processor
}

func New(cfg config.Config, profile config.Profile, compiler sass.Compiler) (*Pipeline, error) {
	chain, err := NewChain(cfg, profile, profile.SourceMaps())
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		config:    cfg,
		profile:   profile,
		processor: NewProcessor(compiler, chain),
	}, nil
}

// Sources lists the top-level stylesheets, skipping partials.
func (p *Pipeline) Sources() ([]string, error) {
	dir := p.config.StyleSourceDir()
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("style source directory: %w", err)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*"+p.config.Syntax.Ext()))
	if err != nil {
		return nil, err
	}

	sources := matches[:0]
	for _, m := range matches {
		if strings.HasPrefix(filepath.Base(m), "_") {
			continue
		}
		sources = append(sources, m)
	}
	return sources, nil
}

// Run builds every top-level stylesheet. A failing file does not stop the
// others, its error is joined into the result.
func (p *Pipeline) Run(ctx context.Context) pipeline.Result {
	started := time.Now()
	logger := zerolog.Ctx(ctx).With().Str("pipeline", Name).Str("profile", string(p.profile)).Logger()
	res := pipeline.Result{Name: Name}

	logger.Info().Strs("stages", p.processor.chain.Stages()).Msg("style build started")

	sources, err := p.Sources()
	if err != nil {
		res.Err = err
		res.Duration = time.Since(started)
		logger.Error().Err(err).Msg("style build failed")
		return res
	}

	if err := os.MkdirAll(p.config.StyleOutputDir(), 0o755); err != nil {
		res.Err = err
		res.Duration = time.Since(started)
		logger.Error().Err(err).Msg("style build failed")
		return res
	}

	var errs []error
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		outputs, err := p.BuildFile(ctx, src)
		if err != nil {
			logger.Error().Err(err).Str("file", src).Msg("Build error")
			errs = append(errs, err)
			continue
		}
		for _, o := range outputs {
			logger.Debug().Str("file", o).Msg("Built file")
		}
		res.Outputs = append(res.Outputs, outputs...)
	}

	res.Err = errors.Join(errs...)
	res.Duration = time.Since(started)

	if res.Err != nil {
		logger.Error().Int("failed", len(errs)).Dur("duration", res.Duration).Msg("style build failed")
		return res
	}
	logger.Info().Int("files", len(res.Outputs)).Dur("duration", res.Duration).Msg("style build finished")
	return res
}

// BuildFile compiles one stylesheet and writes the CSS, plus its map in the
// production profile. Nothing is written when any step fails.
func (p *Pipeline) BuildFile(ctx context.Context, src string) ([]string, error) {
	data, err := os.ReadFile(src)
	if err != nil {
		return nil, err
	}

	sheet, err := p.processor.Process(ctx, src, string(data), p.config.Syntax)
	if err != nil {
		return nil, err
	}

	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src)) + ".css"
	cssPath := filepath.Join(p.config.StyleOutputDir(), base)
	mapPath := cssPath + ".map"

	if !p.profile.SourceMaps() {
		if err := os.Remove(mapPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		if err := os.WriteFile(cssPath, []byte(sheet.CSS), 0o644); err != nil { //nolint:gosec
			return nil, err
		}
		return []string{cssPath}, nil
	}

	css := strings.TrimRight(sheet.CSS, "\n") + "\n/*# sourceMappingURL=" + base + ".map */\n"
	if err := os.WriteFile(cssPath, []byte(css), 0o644); err != nil { //nolint:gosec
		return nil, err
	}
	if err := os.WriteFile(mapPath, []byte(sheet.Map), 0o644); err != nil { //nolint:gosec
		_ = os.Remove(cssPath)
		return nil, err
	}
	return []string{cssPath, mapPath}, nil
}
