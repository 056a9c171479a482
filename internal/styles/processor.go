package styles

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/wolfeidau/assetpipe/internal/config"
	"github.com/wolfeidau/assetpipe/internal/sass"
)

// Processor compiles a stylesheet and runs it through a Chain. It is shared by
// the style pipeline and the script pipeline's style loaders.
type Processor struct {
	compiler sass.Compiler
	chain    *Chain
}

func NewProcessor(compiler sass.Compiler, chain *Chain) *Processor {
	return &Processor{compiler: compiler, chain: chain}
}

// Process compiles source (unless it is plain CSS) and post-processes it.
func (p *Processor) Process(ctx context.Context, path, source string, syntax config.Syntax) (*Sheet, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	sheet := &Sheet{Path: abs, CSS: source}

	if syntax != config.SyntaxCSS {
		out, err := p.compiler.Compile(ctx, sass.Request{
			Path:      abs,
			Source:    source,
			Syntax:    syntax,
			SourceMap: p.chain.SourceMaps(),
		})
		if err != nil {
			return nil, err
		}
		sheet.CSS = out.CSS
		sheet.Map = out.SourceMap
	}

	if err := p.chain.Run(ctx, sheet); err != nil {
		return nil, fmt.Errorf("post-process %s: %w", path, err)
	}

	return sheet, nil
}
