package template

import (
	"regexp"

	rerrors "github.com/conneroisu/reshape/internal/errors"
)

// Span is a half-open byte range [Start, End) into a line. Start is -1 when
// the capture did not participate in the match.
type Span struct {
	Start int
	End   int
}

// Valid reports whether the span addresses text.
func (s Span) Valid() bool {
	return s.Start >= 0 && s.Start <= s.End
}

// Extract applies pattern to line and returns one span per capture group in
// source-variable order. A field wrapped in double quotes has exactly one
// pair stripped. A line that does not match yields an empty slice and no
// error.
func Extract(pattern *regexp.Regexp, line string) ([]Span, error) {
	if pattern == nil || pattern.NumSubexp() == 0 {
		return nil, rerrors.New(rerrors.KindNothingToExtract, "no source variables compiled")
	}
	if line == "" {
		return nil, rerrors.New(rerrors.KindNothingToExtract, "line is empty")
	}

	m := pattern.FindStringSubmatchIndex(line)
	if m == nil {
		return []Span{}, nil
	}

	spans := make([]Span, 0, pattern.NumSubexp())
	for i := 1; i <= pattern.NumSubexp(); i++ {
		start, end := m[2*i], m[2*i+1]
		if start >= 0 && end-start >= 2 && line[start] == '"' && line[end-1] == '"' {
			start++
			end--
		}
		spans = append(spans, Span{Start: start, End: end})
	}

	return spans, nil
}
