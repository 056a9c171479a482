package tasks

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/assetpipe/internal/config"
	"github.com/wolfeidau/assetpipe/internal/sass"
)

// countingCompiler passes sources through and counts compilations.
type countingCompiler struct {
	calls atomic.Int32
}

func (c *countingCompiler) Compile(_ context.Context, req sass.Request) (sass.Output, error) {
	c.calls.Add(1)
	return sass.Output{CSS: req.Source}, nil
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.SourceDir = filepath.Join(dir, "src")
	cfg.OutputDir = filepath.Join(dir, "public")
	cfg.Debounce = 50 * time.Millisecond
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

func writeTree(t *testing.T, cfg config.Config) {
	t.Helper()
	writeFile(t, filepath.Join(cfg.ScriptSourceDir(), "app.js"), "console.log(\"app\");\n")
	writeFile(t, filepath.Join(cfg.StyleSourceDir(), "main.scss"), "body { color: #333; }\n")
}

func TestBuildProducesExactlyTheArtifacts(t *testing.T) {
	cfg := testConfig(t)
	writeTree(t, cfg)

	results, err := New(cfg, &countingCompiler{}).Build(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		require.True(t, r.OK(), r.Name)
	}

	require.ElementsMatch(t, []string{"app.js", "app.js.map"}, listDir(t, filepath.Join(cfg.OutputDir, "js")))
	require.ElementsMatch(t, []string{"main.css", "main.css.map"}, listDir(t, filepath.Join(cfg.OutputDir, "css")))
}

func TestBuildFailureDoesNotBlockOtherPipeline(t *testing.T) {
	cfg := testConfig(t)
	writeFile(t, filepath.Join(cfg.ScriptSourceDir(), "app.js"), "import \"./nope\";\n")
	writeFile(t, filepath.Join(cfg.StyleSourceDir(), "main.scss"), "body { color: #333; }\n")

	results, err := New(cfg, &countingCompiler{}).Build(context.Background())
	require.Error(t, err)
	require.True(t, strings.HasPrefix(err.Error(), "scripts: "), err.Error())

	require.False(t, results[0].OK())
	require.True(t, results[1].OK())
	require.ElementsMatch(t, []string{"main.css", "main.css.map"}, listDir(t, cfg.StyleOutputDir()))
}

func TestClean(t *testing.T) {
	cfg := testConfig(t)
	writeFile(t, filepath.Join(cfg.ScriptOutputDir(), "old.js"), "")
	writeFile(t, filepath.Join(cfg.StyleOutputDir(), "old.css"), "")
	writeFile(t, filepath.Join(cfg.OutputDir, "index.html"), "")

	require.NoError(t, New(cfg, &countingCompiler{}).Clean(context.Background()))
	require.Equal(t, []string{"index.html"}, listDir(t, cfg.OutputDir))
}

func TestDevRebuildsStylesOnChange(t *testing.T) {
	cfg := testConfig(t)
	writeTree(t, cfg)

	compiler := &countingCompiler{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(cfg, compiler).Dev(ctx) }()

	cssPath := filepath.Join(cfg.StyleOutputDir(), "main.css")
	jsPath := filepath.Join(cfg.ScriptOutputDir(), "app.js")
	require.Eventually(t, func() bool {
		_, errCSS := os.Stat(cssPath)
		_, errJS := os.Stat(jsPath)
		return errCSS == nil && errJS == nil
	}, 10*time.Second, 20*time.Millisecond)
	require.Equal(t, int32(1), compiler.calls.Load())

	_, err := os.Stat(cssPath + ".map")
	require.ErrorIs(t, err, os.ErrNotExist)

	scriptBefore, err := os.Stat(jsPath)
	require.NoError(t, err)

	writeFile(t, filepath.Join(cfg.StyleSourceDir(), "main.scss"), "body { color: #444; }\n")
	require.Eventually(t, func() bool {
		data, err := os.ReadFile(cssPath)
		return err == nil && strings.Contains(string(data), "#444")
	}, 10*time.Second, 20*time.Millisecond)

	time.Sleep(300 * time.Millisecond)
	require.Equal(t, int32(2), compiler.calls.Load())

	// the script bundle is not rebuilt for a style change
	scriptAfter, err := os.Stat(jsPath)
	require.NoError(t, err)
	require.True(t, scriptBefore.ModTime().Equal(scriptAfter.ModTime()))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("dev task did not stop")
	}
}

func TestDevWithoutScripts(t *testing.T) {
	cfg := testConfig(t)
	writeFile(t, filepath.Join(cfg.StyleSourceDir(), "main.scss"), "body { color: #333; }\n")
	require.NoError(t, os.MkdirAll(cfg.ScriptSourceDir(), 0o755))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(cfg, &countingCompiler{}).Dev(ctx) }()

	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(cfg.StyleOutputDir(), "main.css"))
		return err == nil
	}, 10*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("dev task did not stop")
	}
}
