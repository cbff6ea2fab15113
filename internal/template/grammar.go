// Package template compiles bracket templates such as
//
//	<date> <time>: <systolic>/<diastolic> <pulse>
//
// into an extraction pattern (source side) and a replacement template
// (target side), extracts field spans from single lines, and re-emits the
// fields in target order.
//
// The package is synchronous and keeps no global state. A Parser pairs one
// source and one target compilation; callers compile the source first, then
// the target, since target placeholders are resolved against the current
// source variables.
package template

import (
	"fmt"
	"strings"

	rerrors "github.com/conneroisu/reshape/internal/errors"
)

// TokenKind distinguishes literal delimiter text from placeholders.
type TokenKind int

const (
	TokenLiteral TokenKind = iota
	TokenPlaceholder
)

// String returns the string representation of the TokenKind
func (k TokenKind) String() string {
	switch k {
	case TokenLiteral:
		return "literal"
	case TokenPlaceholder:
		return "placeholder"
	default:
		return "unknown"
	}
}

// Token is one lexical unit of a template. For placeholders Text holds the
// name without brackets; Offset is the byte offset of the token in the
// template.
type Token struct {
	Kind   TokenKind
	Text   string
	Offset int
}

// Tokenize splits tmpl into alternating literal and placeholder tokens.
//
// A placeholder is a '<' followed by the shortest run up to the next '>' that
// contains no other '<'. Anything else, including stray brackets, is literal.
// Zero-length names ("<>") are returned as placeholders; compilers reject
// them.
func Tokenize(tmpl string) []Token {
	var tokens []Token

	litStart := 0
	i := 0
	for i < len(tmpl) {
		if tmpl[i] != '<' {
			i++
			continue
		}

		end := strings.IndexAny(tmpl[i+1:], "<>")
		if end < 0 || tmpl[i+1+end] != '>' {
			// Unmatched '<' stays in the current literal run.
			i++
			continue
		}

		if litStart < i {
			tokens = append(tokens, Token{Kind: TokenLiteral, Text: tmpl[litStart:i], Offset: litStart})
		}
		tokens = append(tokens, Token{Kind: TokenPlaceholder, Text: tmpl[i+1 : i+1+end], Offset: i})

		i += end + 2
		litStart = i
	}

	if litStart < len(tmpl) {
		tokens = append(tokens, Token{Kind: TokenLiteral, Text: tmpl[litStart:], Offset: litStart})
	}

	return tokens
}

// CheckBrackets reports UnbalancedBrackets when the '<' and '>' counts
// differ, or when brackets nest or close before they open.
func CheckBrackets(tmpl string) error {
	open, closed := strings.Count(tmpl, "<"), strings.Count(tmpl, ">")
	if open != closed {
		return &rerrors.Error{
			Kind:    rerrors.KindUnbalancedBrackets,
			Message: fmt.Sprintf("unbalanced brackets: %d '<' vs %d '>'", open, closed),
		}
	}

	depth := 0
	for i := 0; i < len(tmpl); i++ {
		switch tmpl[i] {
		case '<':
			depth++
		case '>':
			depth--
		default:
			continue
		}
		if depth < 0 || depth > 1 {
			return &rerrors.Error{
				Kind:    rerrors.KindUnbalancedBrackets,
				Message: fmt.Sprintf("misplaced bracket at offset %d", i),
			}
		}
	}

	return nil
}

// validate runs the checks shared by source and target compilation and
// returns the template's tokens.
func validate(tmpl string) ([]Token, error) {
	if tmpl == "" {
		return nil, rerrors.New(rerrors.KindEmptyTemplate, "template is empty")
	}

	if err := CheckBrackets(tmpl); err != nil {
		return nil, err
	}

	tokens := Tokenize(tmpl)
	for _, tok := range tokens {
		if tok.Kind == TokenPlaceholder && tok.Text == "" {
			return nil, &rerrors.Error{
				Kind:    rerrors.KindEmptyVariableName,
				Message: fmt.Sprintf("empty placeholder name at offset %d", tok.Offset),
			}
		}
	}

	return tokens, nil
}
