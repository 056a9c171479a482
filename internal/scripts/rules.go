package scripts

import (
	"context"
	"os"
	"path/filepath"
	"regexp"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/wolfeidau/assetpipe/internal/component"
	"github.com/wolfeidau/assetpipe/internal/config"
)

// Rule routes files matching Filter through Load. Rules are registered in
// order and esbuild uses the first one that returns contents.
type Rule struct {
	Name string
	// Filter is an esbuild (Go syntax) regular expression on the file path.
	Filter string
	// Exclude skips matching paths, they fall through to esbuild's default loader.
	Exclude *regexp.Regexp
	Load    func(ctx context.Context, path string) (api.OnLoadResult, error)
}

var dependencyCache = regexp.MustCompile(`[\\/]node_modules[\\/]`)

// Rules returns the loader table for the pipeline.
func (p *Pipeline) Rules() []Rule {
	return []Rule{
		{Name: "style", Filter: `\.css$`, Load: p.loadStyle},
		{Name: "sass", Filter: `\.(scss|sass)$`, Load: p.loadStyle},
		{Name: "component", Filter: `\.vue$`, Load: p.loadComponent},
		{Name: "downlevel", Filter: `\.js$`, Exclude: dependencyCache, Load: p.loadScript},
	}
}

func (p *Pipeline) rulesPlugin(ctx context.Context) api.Plugin {
	return api.Plugin{
		Name: "rules",
		Setup: func(build api.PluginBuild) {
			for _, rule := range p.Rules() {
				build.OnLoad(api.OnLoadOptions{Filter: rule.Filter, Namespace: "file"},
					func(args api.OnLoadArgs) (api.OnLoadResult, error) {
						if rule.Exclude != nil && rule.Exclude.MatchString(args.Path) {
							return api.OnLoadResult{}, nil
						}
						res, err := rule.Load(ctx, args.Path)
						if err != nil {
							return api.OnLoadResult{}, err
						}
						res.PluginName = rule.Name
						res.WatchFiles = append(res.WatchFiles, args.Path)
						return res, nil
					})
			}
		},
	}
}

// aliasPlugin redirects imports that equal an alias key exactly. Subpaths
// such as vue/types resolve as usual.
func (p *Pipeline) aliasPlugin() api.Plugin {
	aliases := p.config.AliasesFor(p.profile)

	return api.Plugin{
		Name: "alias",
		Setup: func(build api.PluginBuild) {
			for from, to := range aliases {
				build.OnResolve(api.OnResolveOptions{Filter: "^" + regexp.QuoteMeta(from) + "$"},
					func(args api.OnResolveArgs) (api.OnResolveResult, error) {
						res := build.Resolve(to, api.ResolveOptions{
							Importer:   args.Importer,
							Namespace:  args.Namespace,
							ResolveDir: args.ResolveDir,
							Kind:       args.Kind,
						})
						if len(res.Errors) > 0 {
							return api.OnResolveResult{Errors: res.Errors}, nil
						}
						return api.OnResolveResult{
							Path:        res.Path,
							External:    res.External,
							Namespace:   res.Namespace,
							Suffix:      res.Suffix,
							SideEffects: cond(res.SideEffects, api.SideEffectsTrue, api.SideEffectsFalse),
						}, nil
					})
			}
		},
	}
}

// loadStyle compiles a stylesheet import and turns it into a module that
// injects the CSS at runtime.
func (p *Pipeline) loadStyle(ctx context.Context, path string) (api.OnLoadResult, error) {
	syntax, err := config.SyntaxFromExt(filepath.Ext(path))
	if err != nil {
		return api.OnLoadResult{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return api.OnLoadResult{}, err
	}

	sheet, err := p.styles.Process(ctx, path, string(data), syntax)
	if err != nil {
		return api.OnLoadResult{}, err
	}

	contents := component.InjectCSS(p.relPath(path), sheet.CSS)
	dir := filepath.Dir(path)
	return api.OnLoadResult{
		Contents:   &contents,
		ResolveDir: dir,
		Loader:     api.LoaderJS,
		// sass partials live next to the file
		WatchDirs: []string{dir},
	}, nil
}

func (p *Pipeline) loadComponent(ctx context.Context, path string) (api.OnLoadResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return api.OnLoadResult{}, err
	}

	contents, err := p.components.Compile(ctx, path, data)
	if err != nil {
		return api.OnLoadResult{}, err
	}

	dir := filepath.Dir(path)
	return api.OnLoadResult{
		Contents:   &contents,
		ResolveDir: dir,
		Loader:     api.LoaderJS,
	}, nil
}

// loadScript lowers syntax to the browser matrix. The inline map lets esbuild
// chain the bundle's source map back to the original file.
func (p *Pipeline) loadScript(_ context.Context, path string) (api.OnLoadResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return api.OnLoadResult{}, err
	}

	result := api.Transform(string(data), api.TransformOptions{
		Loader:     api.LoaderJS,
		Engines:    p.engines,
		Sourcefile: path,
		Sourcemap:  cond(p.profile.SourceMaps(), api.SourceMapInline, api.SourceMapNone),
		LogLevel:   api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		return api.OnLoadResult{Errors: result.Errors}, nil
	}

	contents := string(result.Code)
	dir := filepath.Dir(path)
	return api.OnLoadResult{
		Contents:   &contents,
		ResolveDir: dir,
		Loader:     api.LoaderJS,
		Warnings:   result.Warnings,
	}, nil
}

func (p *Pipeline) relPath(path string) string {
	rel, err := filepath.Rel(p.root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
