package scripts

import (
	"encoding/json"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// BuildMetadata is the subset of the esbuild metafile the manifest needs.
type BuildMetadata struct {
	Outputs map[string]OutputInfo `json:"outputs"`
}

type OutputInfo struct {
	EntryPoint string `json:"entryPoint"`
}

// ManifestEntry holds the public URL of an entry's bundle.
type ManifestEntry struct {
	File string `json:"file"`
}

// Manifest maps entry names to their bundles.
type Manifest map[string]ManifestEntry

// NewManifest builds the manifest from an esbuild metafile.
func NewManifest(metafile, publicPath string) (Manifest, error) {
	var metadata BuildMetadata
	if err := json.Unmarshal([]byte(metafile), &metadata); err != nil {
		return nil, err
	}

	m := Manifest{}
	for outputPath, info := range metadata.Outputs {
		if info.EntryPoint == "" || strings.HasSuffix(outputPath, ".map") {
			continue
		}
		name := strings.TrimSuffix(filepath.Base(info.EntryPoint), filepath.Ext(info.EntryPoint))
		m[name] = ManifestEntry{File: path.Join(publicPath, filepath.Base(outputPath))}
	}
	return m, nil
}

// Names returns the entry names in sorted order.
func (m Manifest) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Write stores the manifest as indented JSON.
func (m Manifest) Write(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644) //nolint:gosec
}
