package styles

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/assetpipe/internal/config"
	"github.com/wolfeidau/assetpipe/internal/sass"
)

// passthrough treats the source as already compiled CSS.
type passthrough struct {
	fail map[string]bool
}

func (p passthrough) Compile(_ context.Context, req sass.Request) (sass.Output, error) {
	if p.fail[filepath.Base(req.Path)] {
		return sass.Output{}, errors.New("Undefined variable.")
	}
	return sass.Output{CSS: req.Source}, nil
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.SourceDir = filepath.Join(dir, "src")
	cfg.OutputDir = filepath.Join(dir, "public")
	require.NoError(t, os.MkdirAll(cfg.StyleSourceDir(), 0o755))
	return cfg
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestChainStages(t *testing.T) {
	cfg := config.Default()

	prod, err := NewChain(cfg, config.Production, true)
	require.NoError(t, err)
	require.Equal(t, []string{"import", "prefix", "minify"}, prod.Stages())

	dev, err := NewChain(cfg, config.Development, false)
	require.NoError(t, err)
	require.Equal(t, []string{"import", "prefix"}, dev.Stages())

	cfg.Browsers = []string{"mosaic1"}
	_, err = NewChain(cfg, config.Production, true)
	require.Error(t, err)
}

func TestChainInlinesImports(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "base.css"), ".base { margin: 0; }\n")

	chain, err := NewChain(config.Default(), config.Development, false)
	require.NoError(t, err)

	sheet := &Sheet{
		Path: filepath.Join(dir, "main.css"),
		CSS:  "@import \"./base.css\";\n.a { background: url(logo.png); }\n",
	}
	require.NoError(t, chain.Run(context.Background(), sheet))
	require.NotContains(t, sheet.CSS, "@import")
	require.Contains(t, sheet.CSS, ".base")
	require.Contains(t, sheet.CSS, "logo.png")
	require.Empty(t, sheet.Map)
}

func TestChainLeavesURLsUntouched(t *testing.T) {
	chain, err := NewChain(config.Default(), config.Production, true)
	require.NoError(t, err)

	for _, url := range []string{
		"font.eot?#iefix",
		"font.woff2?v=4.7",
		"hand.cur",
		"../img/bg.bmp",
		"/img/bg.png",
	} {
		t.Run(url, func(t *testing.T) {
			sheet := &Sheet{
				Path: filepath.Join(t.TempDir(), "main.css"),
				CSS:  ".a { background: url(" + url + "); }\n",
			}
			require.NoError(t, chain.Run(context.Background(), sheet))
			require.Contains(t, sheet.CSS, url)
		})
	}
}

func TestChainPrefixesAndMinifies(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Browsers = []string{"safari11"}

	chain, err := NewChain(cfg, config.Production, true)
	require.NoError(t, err)

	sheet := &Sheet{
		Path: filepath.Join(dir, "main.css"),
		CSS:  ".a {\n  user-select: none;\n  color: red;\n}\n",
	}
	require.NoError(t, chain.Run(context.Background(), sheet))
	require.Contains(t, sheet.CSS, "-webkit-user-select:none")
	require.Contains(t, sheet.CSS, "color:red")
	require.NotContains(t, sheet.CSS, "\n  ")

	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(sheet.Map), &m))
	require.EqualValues(t, 3, m["version"])
}

func TestChainReportsErrors(t *testing.T) {
	chain, err := NewChain(config.Default(), config.Development, false)
	require.NoError(t, err)

	sheet := &Sheet{
		Path: filepath.Join(t.TempDir(), "main.css"),
		CSS:  "@import \"./missing.css\";\n",
	}
	err = chain.Run(context.Background(), sheet)
	require.Error(t, err)
	require.True(t, strings.HasPrefix(err.Error(), "import: "), err.Error())
}

func TestPipelineProduction(t *testing.T) {
	cfg := testConfig(t)
	writeFile(t, filepath.Join(cfg.StyleSourceDir(), "main.scss"), "body { color: #333; }\n")
	writeFile(t, filepath.Join(cfg.StyleSourceDir(), "_vars.scss"), "a { color: blue; }\n")
	writeFile(t, filepath.Join(cfg.StyleSourceDir(), "nested", "skip.scss"), "a { color: blue; }\n")

	p, err := New(cfg, config.Production, passthrough{})
	require.NoError(t, err)

	res := p.Run(context.Background())
	require.NoError(t, res.Err)
	require.True(t, res.OK())
	require.Equal(t, "styles", res.Name)

	out := cfg.StyleOutputDir()
	require.ElementsMatch(t, []string{"main.css", "main.css.map"}, listDir(t, out))
	require.Equal(t, []string{filepath.Join(out, "main.css"), filepath.Join(out, "main.css.map")}, res.Outputs)

	css, err := os.ReadFile(filepath.Join(out, "main.css"))
	require.NoError(t, err)
	require.Contains(t, string(css), "body{color:#333}")
	require.True(t, strings.HasSuffix(string(css), "/*# sourceMappingURL=main.css.map */\n"))
}

// mapped returns the source with a map pointing at a partial.
type mapped struct{}

func (mapped) Compile(_ context.Context, req sass.Request) (sass.Output, error) {
	return sass.Output{
		CSS:       req.Source,
		SourceMap: `{"version":3,"sources":["theme/_colors.scss"],"names":[],"mappings":"AAAA"}`,
	}, nil
}

func TestPipelineSourceMapPointsAtSass(t *testing.T) {
	cfg := testConfig(t)
	writeFile(t, filepath.Join(cfg.StyleSourceDir(), "main.scss"), "body { color: #333; }\n")

	p, err := New(cfg, config.Production, mapped{})
	require.NoError(t, err)
	require.NoError(t, p.Run(context.Background()).Err)

	data, err := os.ReadFile(filepath.Join(cfg.StyleOutputDir(), "main.css.map"))
	require.NoError(t, err)

	var m struct {
		Sources []string `json:"sources"`
	}
	require.NoError(t, json.Unmarshal(data, &m))
	require.NotEmpty(t, m.Sources)

	found := false
	for _, src := range m.Sources {
		if strings.HasSuffix(src, "theme/_colors.scss") {
			found = true
		}
	}
	require.True(t, found, "sources: %v", m.Sources)
}

func TestBuildFileLeavesNoCSSWhenMapFails(t *testing.T) {
	cfg := testConfig(t)
	src := filepath.Join(cfg.StyleSourceDir(), "main.scss")
	writeFile(t, src, "body { color: #333; }\n")
	// a directory in place of the map makes the map write fail
	require.NoError(t, os.MkdirAll(filepath.Join(cfg.StyleOutputDir(), "main.css.map"), 0o755))

	p, err := New(cfg, config.Production, passthrough{})
	require.NoError(t, err)

	_, err = p.BuildFile(context.Background(), src)
	require.Error(t, err)

	_, err = os.Stat(filepath.Join(cfg.StyleOutputDir(), "main.css"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestPipelineDevelopment(t *testing.T) {
	cfg := testConfig(t)
	writeFile(t, filepath.Join(cfg.StyleSourceDir(), "main.scss"), "body { color: #333; }\n")
	writeFile(t, filepath.Join(cfg.StyleOutputDir(), "main.css.map"), "{}")

	p, err := New(cfg, config.Development, passthrough{})
	require.NoError(t, err)

	res := p.Run(context.Background())
	require.NoError(t, res.Err)
	require.Equal(t, []string{"main.css"}, listDir(t, cfg.StyleOutputDir()))

	css, err := os.ReadFile(filepath.Join(cfg.StyleOutputDir(), "main.css"))
	require.NoError(t, err)
	require.Contains(t, string(css), "color: #333")
	require.NotContains(t, string(css), "sourceMappingURL")
}

func TestPipelineSassSyntax(t *testing.T) {
	cfg := testConfig(t)
	cfg.Syntax = config.SyntaxSass
	writeFile(t, filepath.Join(cfg.StyleSourceDir(), "app.sass"), "body { color: #333; }\n")
	writeFile(t, filepath.Join(cfg.StyleSourceDir(), "ignored.scss"), "body { color: #333; }\n")

	p, err := New(cfg, config.Development, passthrough{})
	require.NoError(t, err)

	res := p.Run(context.Background())
	require.NoError(t, res.Err)
	require.Equal(t, []string{"app.css"}, listDir(t, cfg.StyleOutputDir()))
}

func TestPipelineFailureIsPerFile(t *testing.T) {
	cfg := testConfig(t)
	writeFile(t, filepath.Join(cfg.StyleSourceDir(), "bad.scss"), "body { color: $nope; }\n")
	writeFile(t, filepath.Join(cfg.StyleSourceDir(), "good.scss"), "body { color: #333; }\n")

	p, err := New(cfg, config.Production, passthrough{fail: map[string]bool{"bad.scss": true}})
	require.NoError(t, err)

	res := p.Run(context.Background())
	require.Error(t, res.Err)
	require.Contains(t, res.Err.Error(), "Undefined variable.")
	require.ElementsMatch(t, []string{"good.css", "good.css.map"}, listDir(t, cfg.StyleOutputDir()))
}

func TestPipelineMissingSourceDir(t *testing.T) {
	cfg := config.Default()
	cfg.SourceDir = filepath.Join(t.TempDir(), "nope")

	p, err := New(cfg, config.Production, passthrough{})
	require.NoError(t, err)

	res := p.Run(context.Background())
	require.ErrorIs(t, res.Err, os.ErrNotExist)
}
