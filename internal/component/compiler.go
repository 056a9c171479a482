package component

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/html"
	"github.com/wolfeidau/assetpipe/internal/config"
)

// StyleFunc compiles the content of a style block to CSS.
type StyleFunc func(ctx context.Context, path, content string, syntax config.Syntax) (string, error)

type Options struct {
	// Root is stripped from file paths used as style ids in the bundle.
	Root string
	// MinifyTemplate collapses whitespace in the template markup.
	MinifyTemplate bool
	Styles         StyleFunc
}

// Compiler turns single-file components into ES modules. The template is
// attached as a string and compiled at runtime by the full framework build.
type Compiler struct {
	root     string
	minifier *minify.M
	styles   StyleFunc
}

func New(opts Options) *Compiler {
	c := &Compiler{root: opts.Root, styles: opts.Styles}
	if opts.MinifyTemplate {
		c.minifier = minify.New()
		c.minifier.Add("text/html", &html.Minifier{
			KeepDefaultAttrVals: true,
			KeepDocumentTags:    true,
			KeepEndTags:         true,
			KeepQuotes:          true,
			TemplateDelims:      [2]string{"{{", "}}"},
		})
	}
	return c
}

var exportDefault = regexp.MustCompile(`(?m)^\s*export\s+default\s+`)

const componentVar = "__component__"

// Compile returns the JavaScript module for the component at path.
func (c *Compiler) Compile(ctx context.Context, path string, src []byte) (string, error) {
	d, err := Parse(src)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", path, err)
	}

	var b strings.Builder

	scope := ""
	for _, style := range d.Styles {
		if style.Scoped() {
			scope = ScopeID(c.id(path))
		}
	}

	for i, style := range d.Styles {
		css, err := c.compileStyle(ctx, path, style, scope)
		if err != nil {
			return "", fmt.Errorf("style block %d in %s: %w", i, path, err)
		}
		b.WriteString(InjectCSS(fmt.Sprintf("%s#%d", c.id(path), i), css))
	}

	if d.Script != nil {
		if d.Script.Lang != "" && d.Script.Lang != "js" {
			return "", fmt.Errorf("%s: unsupported script lang %q", path, d.Script.Lang)
		}
		script := d.Script.Content
		loc := exportDefault.FindStringIndex(script)
		if loc == nil {
			return "", fmt.Errorf("%s: script block has no default export", path)
		}
		b.WriteString(script[:loc[0]])
		b.WriteString("\nconst " + componentVar + " = ")
		b.WriteString(script[loc[1]:])
		b.WriteString("\n")
	} else {
		b.WriteString("const " + componentVar + " = {};\n")
	}

	if d.Template != nil {
		if d.Template.Lang != "" && d.Template.Lang != "html" {
			return "", fmt.Errorf("%s: unsupported template lang %q", path, d.Template.Lang)
		}
		tmpl, err := c.template(d.Template.Content)
		if err != nil {
			return "", fmt.Errorf("template in %s: %w", path, err)
		}
		fmt.Fprintf(&b, "%s.template = %s;\n", componentVar, jsString(tmpl))
	}

	// the runtime adds the scope attribute to every element the component renders
	if scope != "" {
		fmt.Fprintf(&b, "%s._scopeId = %s;\n", componentVar, jsString(scope))
	}

	b.WriteString("export default " + componentVar + ";\n")
	return b.String(), nil
}

func (c *Compiler) id(path string) string {
	if c.root == "" {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(c.root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func (c *Compiler) template(content string) (string, error) {
	content, err := expandSelfClosing(strings.TrimSpace(content))
	if err != nil {
		return "", err
	}
	if c.minifier == nil {
		return content, nil
	}
	return c.minifier.String("text/html", content)
}

func (c *Compiler) compileStyle(ctx context.Context, path string, style Block, scope string) (string, error) {
	lang := style.Lang
	if lang == "" {
		lang = "css"
	}
	syntax, err := config.SyntaxFromExt("." + lang)
	if err != nil {
		return "", err
	}

	css := style.Content
	if c.styles != nil {
		if css, err = c.styles(ctx, path, style.Content, syntax); err != nil {
			return "", err
		}
	}

	if !style.Scoped() {
		return css, nil
	}
	return ScopeCSS(css, scope)
}
