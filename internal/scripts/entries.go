package scripts

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/wolfeidau/assetpipe/internal/config"
)

var ErrNoEntryPoints = errors.New("no entry points found")

// EntryPoints maps each script directly under the script source directory to
// its base name. The scan is not recursive.
func EntryPoints(cfg config.Config) (map[string]string, error) {
	dir := cfg.ScriptSourceDir()
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("script source directory: %w", err)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*.js"))
	if err != nil {
		return nil, err
	}

	entries := make(map[string]string, len(matches))
	for _, m := range matches {
		abs, err := filepath.Abs(m)
		if err != nil {
			return nil, err
		}
		entries[strings.TrimSuffix(filepath.Base(m), ".js")] = abs
	}
	return entries, nil
}

// esbuildEntryPoints returns the entries sorted by name so builds are stable.
func esbuildEntryPoints(entries map[string]string) []api.EntryPoint {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]api.EntryPoint, 0, len(names))
	for _, name := range names {
		out = append(out, api.EntryPoint{InputPath: entries[name], OutputPath: name})
	}
	return out
}
