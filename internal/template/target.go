package template

import (
	"strconv"
	"strings"

	rerrors "github.com/conneroisu/reshape/internal/errors"
)

// Target is a compiled target template.
//
// Replacement holds the template text with every placeholder rewritten to a
// marker "${n}", where n is the referenced source position plus one, and
// every literal '$' doubled. The braces delimit the whole marker, so "${1}"
// never matches inside "${11}" and a literal digit after a marker is not
// read as part of it.
type Target struct {
	Template    string
	Variables   Descriptor
	Replacement string
}

// CompileTarget compiles a target template against the source variables.
// A nil or empty source makes every placeholder lookup fail.
func CompileTarget(tmpl string, source *Descriptor) (*Target, error) {
	tokens, err := validate(tmpl)
	if err != nil {
		return nil, withSide(err, rerrors.SideTarget)
	}

	tgt := &Target{Template: tmpl}

	var b strings.Builder
	for _, tok := range tokens {
		switch tok.Kind {
		case TokenPlaceholder:
			pos, ok := source.Index(tok.Text)
			if !ok {
				return nil, &rerrors.Error{
					Kind:     rerrors.KindUnknownVariable,
					Side:     rerrors.SideTarget,
					Variable: tok.Text,
					Message:  "unknown variable",
				}
			}
			tgt.Variables.add(tok.Text, pos)
			b.WriteString(Marker(pos))
		case TokenLiteral:
			b.WriteString(strings.ReplaceAll(tok.Text, "$", "$$"))
		}
	}
	tgt.Replacement = b.String()

	return tgt, nil
}

// Marker returns the replacement marker for a source position.
func Marker(position int) string {
	return "${" + strconv.Itoa(position+1) + "}"
}
