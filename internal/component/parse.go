package component

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"golang.org/x/net/html"
)

var ErrDuplicateBlock = errors.New("duplicate block")

// Block is one top-level section of a single-file component.
type Block struct {
	Tag     string
	Lang    string
	Content string
	Attrs   map[string]string
}

// Scoped reports whether a style block carries the scoped attribute.
func (b Block) Scoped() bool {
	_, ok := b.Attrs["scoped"]
	return ok
}

// Descriptor is a parsed single-file component.
type Descriptor struct {
	Template *Block
	Script   *Block
	Styles   []Block
}

// Parse splits a component file into its template, script and style blocks.
// Only top-level blocks are recognised; anything else at the top level is ignored.
func Parse(src []byte) (*Descriptor, error) {
	d := &Descriptor{}
	z := html.NewTokenizer(bytes.NewReader(src))

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return d, nil
			}
			return nil, z.Err()
		case html.StartTagToken:
			name, hasAttr := z.TagName()
			tag := string(name)
			attrs := readAttrs(z, hasAttr)

			switch tag {
			case "template":
				if d.Template != nil {
					return nil, fmt.Errorf("%w: <template>", ErrDuplicateBlock)
				}
				content, err := readTemplate(z)
				if err != nil {
					return nil, err
				}
				d.Template = newBlock(tag, attrs, content)
			case "script":
				if d.Script != nil {
					return nil, fmt.Errorf("%w: <script>", ErrDuplicateBlock)
				}
				d.Script = newBlock(tag, attrs, readRawText(z))
			case "style":
				d.Styles = append(d.Styles, *newBlock(tag, attrs, readRawText(z)))
			default:
				// unknown custom blocks are skipped with their content
				if err := skipElement(z, tag); err != nil {
					return nil, err
				}
			}
		}
	}
}

func newBlock(tag string, attrs map[string]string, content string) *Block {
	return &Block{Tag: tag, Lang: attrs["lang"], Content: content, Attrs: attrs}
}

func readAttrs(z *html.Tokenizer, more bool) map[string]string {
	attrs := map[string]string{}
	for more {
		var k, v []byte
		k, v, more = z.TagAttr()
		attrs[string(k)] = string(v)
	}
	return attrs
}

// readRawText returns the body of a raw text element (script, style).
func readRawText(z *html.Tokenizer) string {
	var buf bytes.Buffer
	for {
		switch z.Next() {
		case html.TextToken:
			buf.Write(z.Raw())
		default:
			return buf.String()
		}
	}
}

// readTemplate returns the raw markup inside the outer template element,
// honouring nested template elements.
func readTemplate(z *html.Tokenizer) (string, error) {
	var buf bytes.Buffer
	depth := 0
	for {
		tt := z.Next()
		// TagName lower-cases the buffer in place, keep the original casing first.
		raw := bytes.Clone(z.Raw())
		switch tt {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return "", errors.New("unterminated <template> block")
			}
			return "", z.Err()
		case html.StartTagToken:
			if name, _ := z.TagName(); string(name) == "template" {
				depth++
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); string(name) == "template" {
				if depth == 0 {
					return buf.String(), nil
				}
				depth--
			}
		}
		buf.Write(raw)
	}
}

func skipElement(z *html.Tokenizer, tag string) error {
	depth := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return nil
			}
			return z.Err()
		case html.StartTagToken:
			if name, _ := z.TagName(); string(name) == tag {
				depth++
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); string(name) == tag {
				if depth == 0 {
					return nil
				}
				depth--
			}
		}
	}
}
