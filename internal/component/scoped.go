package component

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"strings"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
)

// ScopeID returns the data attribute that marks the elements rendered by the
// component with the given id.
func ScopeID(id string) string {
	sum := sha256.Sum256([]byte(id))
	return "data-v-" + hex.EncodeToString(sum[:4])
}

// ScopeCSS appends an attribute selector for attr to the last compound of
// every selector. Rules inside keyframes are left alone. A ::v-deep or >>>
// combinator moves the attribute to the compound before it.
func ScopeCSS(src, attr string) (string, error) {
	p := css.NewParser(parse.NewInputString(src), false)

	var (
		b        strings.Builder
		atRules  []string
		keyframe = func() bool {
			for _, name := range atRules {
				if strings.HasSuffix(name, "keyframes") {
					return true
				}
			}
			return false
		}
	)

	for {
		gt, _, data := p.Next()
		switch gt {
		case css.ErrorGrammar:
			if errors.Is(p.Err(), io.EOF) {
				return b.String(), nil
			}
			return "", p.Err()
		case css.AtRuleGrammar:
			b.Write(data)
			writeTokens(&b, p.Values())
			b.WriteByte(';')
		case css.BeginAtRuleGrammar:
			atRules = append(atRules, string(data))
			b.Write(data)
			writeTokens(&b, p.Values())
			b.WriteByte('{')
		case css.EndAtRuleGrammar:
			if len(atRules) > 0 {
				atRules = atRules[:len(atRules)-1]
			}
			b.WriteByte('}')
		case css.QualifiedRuleGrammar, css.BeginRulesetGrammar:
			if keyframe() {
				writeTokens(&b, p.Values())
			} else {
				scopeSelector(&b, p.Values(), attr)
			}
			b.WriteByte(cond(gt == css.QualifiedRuleGrammar, byte(','), byte('{')))
		case css.EndRulesetGrammar:
			b.WriteByte('}')
		case css.DeclarationGrammar, css.CustomPropertyGrammar:
			b.Write(data)
			b.WriteByte(':')
			writeTokens(&b, p.Values())
			b.WriteByte(';')
		case css.TokenGrammar:
			b.Write(data)
		}
	}
}

func scopeSelector(b *strings.Builder, tokens []css.Token, attr string) {
	target, rest, deep := splitDeep(tokens)
	target = trimWhitespace(target)

	pos := attrPosition(target)
	writeTokens(b, target[:pos])
	b.WriteString("[" + attr + "]")
	writeTokens(b, target[pos:])

	if deep {
		b.WriteByte(' ')
		writeTokens(b, trimWhitespace(rest))
	}
}

// splitDeep splits a selector around its first deep combinator.
func splitDeep(tokens []css.Token) (before, after []css.Token, ok bool) {
	level := 0
	for i, t := range tokens {
		level += nesting(t)
		if level != 0 || i+2 >= len(tokens) {
			continue
		}
		if isDelim(t, '>') && isDelim(tokens[i+1], '>') && isDelim(tokens[i+2], '>') {
			return tokens[:i], tokens[i+3:], true
		}
		if t.TokenType == css.ColonToken && tokens[i+1].TokenType == css.ColonToken &&
			tokens[i+2].TokenType == css.IdentToken && string(tokens[i+2].Data) == "v-deep" {
			return tokens[:i], tokens[i+3:], true
		}
	}
	return tokens, nil, false
}

// attrPosition is the index in the last compound selector where the attribute
// goes: before its first pseudo-class or pseudo-element, else at the end.
func attrPosition(tokens []css.Token) int {
	start, level := 0, 0
	for i, t := range tokens {
		level += nesting(t)
		if level == 0 && (t.TokenType == css.WhitespaceToken || isDelim(t, '>') || isDelim(t, '+') || isDelim(t, '~')) {
			start = i + 1
		}
	}

	level = 0
	for i := start; i < len(tokens); i++ {
		if level == 0 && tokens[i].TokenType == css.ColonToken {
			return i
		}
		level += nesting(tokens[i])
	}
	return len(tokens)
}

func nesting(t css.Token) int {
	switch t.TokenType {
	case css.FunctionToken, css.LeftParenthesisToken, css.LeftBracketToken:
		return 1
	case css.RightParenthesisToken, css.RightBracketToken:
		return -1
	}
	return 0
}

func isDelim(t css.Token, c byte) bool {
	return t.TokenType == css.DelimToken && len(t.Data) == 1 && t.Data[0] == c
}

func trimWhitespace(tokens []css.Token) []css.Token {
	for len(tokens) > 0 && tokens[0].TokenType == css.WhitespaceToken {
		tokens = tokens[1:]
	}
	for len(tokens) > 0 && tokens[len(tokens)-1].TokenType == css.WhitespaceToken {
		tokens = tokens[:len(tokens)-1]
	}
	return tokens
}

func writeTokens(b *strings.Builder, tokens []css.Token) {
	for _, t := range tokens {
		b.Write(t.Data)
	}
}

func cond[T any](condition bool, trueVal, falseVal T) T {
	if condition {
		return trueVal
	}
	return falseVal
}
