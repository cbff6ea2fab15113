package template

import (
	"regexp"
	"strings"
	"unicode"

	rerrors "github.com/conneroisu/reshape/internal/errors"
)

// fieldPattern captures either a double-quoted run or the shortest bare run
// that lets the rest of the pattern match.
const fieldPattern = `("[^"]*"|.*?)`

// SourceOptions tunes source compilation.
type SourceOptions struct {
	// LooseWhitespace makes a literal made only of whitespace match one or
	// more whitespace characters instead of itself.
	LooseWhitespace bool
}

// Source is a compiled source template.
type Source struct {
	Template  string
	Variables Descriptor
	Pattern   *regexp.Regexp
}

// CompileSource compiles a source template into its variable list and an
// anchored extraction pattern with one capture group per placeholder.
func CompileSource(tmpl string, opts SourceOptions) (*Source, error) {
	tokens, err := validate(tmpl)
	if err != nil {
		return nil, withSide(err, rerrors.SideSource)
	}

	src := &Source{Template: tmpl}

	var b strings.Builder
	b.WriteString("^")
	for _, tok := range tokens {
		switch tok.Kind {
		case TokenPlaceholder:
			src.Variables.add(tok.Text, src.Variables.Len())
			b.WriteString(fieldPattern)
		case TokenLiteral:
			if opts.LooseWhitespace && isBlank(tok.Text) {
				b.WriteString(`\s+`)
			} else {
				b.WriteString(regexp.QuoteMeta(tok.Text))
			}
		}
	}
	b.WriteString("$")

	if src.Variables.Len() == 0 {
		return nil, &rerrors.Error{
			Kind:    rerrors.KindNoVariablesFound,
			Side:    rerrors.SideSource,
			Message: "no placeholders found",
		}
	}

	pattern, err := regexp.Compile(b.String())
	if err != nil {
		return nil, &rerrors.Error{
			Kind:    rerrors.KindPatternCompileFailed,
			Side:    rerrors.SideSource,
			Message: "extraction pattern does not compile",
			Cause:   err,
		}
	}
	src.Pattern = pattern

	return src, nil
}

func isBlank(s string) bool {
	return strings.TrimFunc(s, unicode.IsSpace) == ""
}

func withSide(err error, side rerrors.Side) error {
	if e, ok := err.(*rerrors.Error); ok {
		return e.WithSide(side)
	}
	return err
}
