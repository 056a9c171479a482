package sass

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/bep/godartsass/v2"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/assetpipe/internal/config"
)

// Request is a single stylesheet compilation.
type Request struct {
	// Path of the source file, relative imports resolve against it.
	Path   string
	Source string
	Syntax config.Syntax
	// SourceMap asks the compiler for a map with the sources embedded.
	SourceMap bool
}

type Output struct {
	CSS string
	// SourceMap is a JSON source map, empty unless requested.
	SourceMap string
}

// Compiler turns Sass or SCSS into CSS.
type Compiler interface {
	Compile(ctx context.Context, req Request) (Output, error)
}

// Dart compiles through the Dart Sass embedded protocol. The sass process is
// started on first use and shared by concurrent callers.
type Dart struct {
	binary       string
	includePaths []string
	logger       zerolog.Logger

	once       sync.Once
	transpiler *godartsass.Transpiler
	startErr   error
}

var _ Compiler = (*Dart)(nil)

func NewDart(cfg config.Config, logger zerolog.Logger) *Dart {
	return &Dart{
		binary:       cfg.SassBinary,
		includePaths: append([]string{cfg.StyleSourceDir()}, cfg.IncludePaths...),
		logger:       logger,
	}
}

func (d *Dart) start() (*godartsass.Transpiler, error) {
	d.once.Do(func() {
		d.transpiler, d.startErr = godartsass.Start(godartsass.Options{
			DartSassEmbeddedFilename: d.binary,
			LogEventHandler: func(e godartsass.LogEvent) {
				switch e.Type {
				case godartsass.LogEventTypeDebug:
					d.logger.Debug().Msg(e.Message)
				default:
					d.logger.Warn().Msg(e.Message)
				}
			},
		})
		if d.startErr != nil {
			d.startErr = fmt.Errorf("failed to start sass (%s): %w", d.binary, d.startErr)
		}
	})
	return d.transpiler, d.startErr
}

func (d *Dart) Compile(ctx context.Context, req Request) (Output, error) {
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}

	syntax, err := sourceSyntax(req.Syntax)
	if err != nil {
		return Output{}, err
	}

	t, err := d.start()
	if err != nil {
		return Output{}, err
	}

	abs, err := filepath.Abs(req.Path)
	if err != nil {
		return Output{}, err
	}

	res, err := t.Execute(godartsass.Args{
		Source:                  req.Source,
		URL:                     "file://" + filepath.ToSlash(abs),
		SourceSyntax:            syntax,
		OutputStyle:             godartsass.OutputStyleExpanded,
		IncludePaths:            d.includePaths,
		EnableSourceMap:         req.SourceMap,
		SourceMapIncludeSources: req.SourceMap,
	})
	if err != nil {
		return Output{}, fmt.Errorf("compile %s: %w", req.Path, err)
	}

	return Output{CSS: res.CSS, SourceMap: res.SourceMap}, nil
}

// Close stops the sass process if it was started.
func (d *Dart) Close() error {
	if d.transpiler == nil {
		return nil
	}
	return d.transpiler.Close()
}

func sourceSyntax(s config.Syntax) (godartsass.SourceSyntax, error) {
	switch s {
	case config.SyntaxSCSS:
		return godartsass.SourceSyntaxSCSS, nil
	case config.SyntaxSass:
		return godartsass.SourceSyntaxSASS, nil
	case config.SyntaxCSS:
		return godartsass.SourceSyntaxCSS, nil
	}
	return "", errors.Join(config.ErrInvalidSyntax, fmt.Errorf("no sass syntax for %q", s))
}
