package component

import (
	"errors"
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true, "hr": true, "img": true,
	"input": true, "link": true, "meta": true, "param": true, "source": true, "track": true, "wbr": true,
}

var startTag = regexp.MustCompile(`^<([A-Za-z][^\s/>]*)`)

// expandSelfClosing rewrites <x ... /> to <x ...></x> for every non-void
// element. HTML has no self-closing syntax for them, so the minifier drops the
// slash and the runtime compiler would nest the following siblings.
func expandSelfClosing(content string) (string, error) {
	z := html.NewTokenizer(strings.NewReader(content))
	var b strings.Builder

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if errors.Is(z.Err(), io.EOF) {
				return b.String(), nil
			}
			return "", z.Err()
		}

		raw := string(z.Raw())
		m := startTag.FindStringSubmatch(raw)
		if tt != html.SelfClosingTagToken || m == nil || voidElements[strings.ToLower(m[1])] {
			b.WriteString(raw)
			continue
		}

		attrs := strings.TrimRight(strings.TrimSuffix(raw[len(m[0]):], "/>"), " \t\r\n")
		b.WriteString("<" + m[1] + attrs + "></" + m[1] + ">")
	}
}
