package config

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidSyntax  = errors.New("invalid stylesheet syntax")
	ErrInvalidProfile = errors.New("invalid profile")
)

// Syntax selects the stylesheet dialect.
type Syntax string

const (
	SyntaxSCSS Syntax = "scss"
	SyntaxSass Syntax = "sass"
	// SyntaxCSS is plain CSS, it skips the Sass compiler.
	SyntaxCSS Syntax = "css"
)

// Ext returns the file extension for the dialect including the leading dot.
func (s Syntax) Ext() string {
	return "." + string(s)
}

// SyntaxFromExt maps a file extension to a stylesheet dialect.
func SyntaxFromExt(ext string) (Syntax, error) {
	switch ext {
	case ".scss":
		return SyntaxSCSS, nil
	case ".sass":
		return SyntaxSass, nil
	case ".css":
		return SyntaxCSS, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSyntax, ext)
}

// Profile is a named preset toggling optional pipeline stages.
type Profile string

const (
	Production  Profile = "production"
	Development Profile = "development"
)

func ParseProfile(s string) (Profile, error) {
	switch Profile(s) {
	case Production, Development:
		return Profile(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidProfile, s)
}

func (p Profile) Minify() bool     { return p == Production }
func (p Profile) SourceMaps() bool { return p == Production }
func (p Profile) Watch() bool      { return p == Development }

// Config is the build configuration. It is passed by value and never mutated
// after Load returns.
type Config struct {
	// Root of the source tree, must contain ScriptDir and a directory named after Syntax.
	SourceDir string `yaml:"source_dir"`
	// Root of the distribution tree.
	OutputDir string `yaml:"output_dir"`
	Syntax    Syntax `yaml:"syntax"`

	ScriptDir    string `yaml:"script_dir"`
	ScriptOutDir string `yaml:"script_out_dir"`
	StyleOutDir  string `yaml:"style_out_dir"`
	PublicPath   string `yaml:"public_path"`

	// esbuild target strings, e.g. "chrome58" or "safari11".
	Browsers []string `yaml:"browsers"`
	// Module aliases applied to the script bundle per profile.
	Aliases map[Profile]map[string]string `yaml:"aliases"`

	SassBinary   string   `yaml:"sass_binary"`
	IncludePaths []string `yaml:"include_paths"`

	Debounce time.Duration `yaml:"debounce"`
	// Manifest file name written into OutputDir, empty disables it.
	Manifest string `yaml:"manifest"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		SourceDir:    "src",
		OutputDir:    "public",
		Syntax:       SyntaxSCSS,
		ScriptDir:    "js",
		ScriptOutDir: "js",
		StyleOutDir:  "css",
		PublicPath:   "/js/",
		Browsers:     []string{"chrome58", "edge16", "firefox57", "ios11", "safari11"},
		Aliases: map[Profile]map[string]string{
			Production:  {"vue": "vue/dist/vue.min.js"},
			Development: {"vue": "vue/dist/vue.js"},
		},
		SassBinary: "sass",
		Debounce:   100 * time.Millisecond,
		Manifest:   "manifest.json",
	}
}

// Load reads the YAML file at path over the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, cfg.Validate()
	}
	if err != nil {
		return Config{}, fmt.Errorf("failed to open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	// an empty file keeps the defaults
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to decode config %s: %w", path, err)
	}

	return cfg, cfg.Validate()
}

// Overrides holds command line values, zero values leave the field untouched.
type Overrides struct {
	SourceDir string
	OutputDir string
	Syntax    string
}

// WithOverrides returns a copy of c with the non-empty overrides applied.
func (c Config) WithOverrides(o Overrides) (Config, error) {
	out := c.clone()
	if o.SourceDir != "" {
		out.SourceDir = o.SourceDir
	}
	if o.OutputDir != "" {
		out.OutputDir = o.OutputDir
	}
	if o.Syntax != "" {
		out.Syntax = Syntax(o.Syntax)
	}
	return out, out.Validate()
}

func (c Config) Validate() error {
	switch c.Syntax {
	case SyntaxSCSS, SyntaxSass:
	default:
		return fmt.Errorf("%w: %q (expected scss or sass)", ErrInvalidSyntax, c.Syntax)
	}
	if c.SourceDir == "" {
		return errors.New("source_dir is required")
	}
	if c.OutputDir == "" {
		return errors.New("output_dir is required")
	}
	if c.ScriptDir == "" || c.ScriptOutDir == "" || c.StyleOutDir == "" {
		return errors.New("script_dir, script_out_dir and style_out_dir are required")
	}
	if c.Debounce < 0 {
		return errors.New("debounce must not be negative")
	}
	for p := range c.Aliases {
		if _, err := ParseProfile(string(p)); err != nil {
			return fmt.Errorf("aliases: %w", err)
		}
	}
	return nil
}

// StyleSourceDir is the directory holding top-level stylesheets.
func (c Config) StyleSourceDir() string {
	return filepath.Join(c.SourceDir, string(c.Syntax))
}

func (c Config) ScriptSourceDir() string {
	return filepath.Join(c.SourceDir, c.ScriptDir)
}

func (c Config) StyleOutputDir() string {
	return filepath.Join(c.OutputDir, c.StyleOutDir)
}

func (c Config) ScriptOutputDir() string {
	return filepath.Join(c.OutputDir, c.ScriptOutDir)
}

// AliasesFor returns a copy of the module aliases for the profile.
func (c Config) AliasesFor(p Profile) map[string]string {
	return maps.Clone(c.Aliases[p])
}

func (c Config) clone() Config {
	out := c
	out.Browsers = append([]string(nil), c.Browsers...)
	out.IncludePaths = append([]string(nil), c.IncludePaths...)
	out.Aliases = make(map[Profile]map[string]string, len(c.Aliases))
	for p, a := range c.Aliases {
		out.Aliases[p] = maps.Clone(a)
	}
	return out
}
