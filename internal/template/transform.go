package template

import (
	"fmt"
	"strconv"
	"strings"

	rerrors "github.com/conneroisu/reshape/internal/errors"
)

// Transform expands a replacement template with field values.
//
// Each "${n}" marker whose position n-1 appears in positions is replaced by
// values[n-1], wrapped in double quotes when quote is set. "$$" becomes a
// single '$'. Markers are matched as whole tokens in a single left-to-right
// pass, so every occurrence is replaced exactly once and no substituted value
// is ever rescanned.
//
// Fields are checked per referenced position rather than by count, so a
// target that repeats one variable needs only that one field.
func Transform(replacement string, positions []int, values []string, quote bool) (string, error) {
	if replacement == "" || len(positions) == 0 {
		return "", rerrors.New(rerrors.KindEmptyReplacementOrNoTargets, "nothing to transform")
	}

	allowed := make(map[int]bool, len(positions))
	for _, p := range positions {
		if p < 0 || p >= len(values) {
			return "", &rerrors.Error{
				Kind:    rerrors.KindTooFewSourceFields,
				Message: fmt.Sprintf("target references field %d but only %d present", p+1, len(values)),
			}
		}
		allowed[p] = true
	}

	var b strings.Builder
	b.Grow(len(replacement))

	for i := 0; i < len(replacement); {
		c := replacement[i]
		if c != '$' || i+1 >= len(replacement) {
			b.WriteByte(c)
			i++
			continue
		}

		switch replacement[i+1] {
		case '$':
			b.WriteByte('$')
			i += 2
			continue
		case '{':
			end := strings.IndexByte(replacement[i+2:], '}')
			if end < 0 {
				break
			}
			n, err := strconv.Atoi(replacement[i+2 : i+2+end])
			if err != nil || !allowed[n-1] {
				break
			}
			writeValue(&b, values[n-1], quote)
			i += end + 3
			continue
		}

		b.WriteByte(c)
		i++
	}

	return b.String(), nil
}

func writeValue(b *strings.Builder, value string, quote bool) {
	if quote {
		b.WriteByte('"')
		b.WriteString(value)
		b.WriteByte('"')
		return
	}
	b.WriteString(value)
}
