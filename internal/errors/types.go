package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind categorises every failure the template core and its shell can report.
type Kind string

const (
	KindEmptyTemplate               Kind = "empty_template"
	KindUnbalancedBrackets          Kind = "unbalanced_brackets"
	KindEmptyVariableName           Kind = "empty_variable_name"
	KindNoVariablesFound            Kind = "no_variables_found"
	KindUnknownVariable             Kind = "unknown_variable"
	KindPatternCompileFailed        Kind = "pattern_compile_failed"
	KindNothingToExtract            Kind = "nothing_to_extract"
	KindTooFewSourceFields          Kind = "too_few_source_fields"
	KindEmptyReplacementOrNoTargets Kind = "empty_replacement_or_no_targets"

	// Shell kinds, never produced by the core.
	KindIO     Kind = "io"
	KindConfig Kind = "config"
)

// Side names which template an error belongs to.
type Side string

const (
	SideSource Side = "source"
	SideTarget Side = "target"
)

// Error is a structured error with enough context for inline display next to
// the offending template or row.
type Error struct {
	Kind     Kind
	Side     Side
	Variable string
	Line     int
	Message  string
	Cause    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var parts []string

	if e.Side != "" {
		parts = append(parts, string(e.Side)+":")
	}

	if e.Line > 0 {
		parts = append(parts, fmt.Sprintf("line %d:", e.Line))
	}

	msg := e.Message
	if msg == "" {
		msg = strings.ReplaceAll(string(e.Kind), "_", " ")
	}
	parts = append(parts, msg)

	if e.Variable != "" {
		parts = append(parts, fmt.Sprintf("%q", e.Variable))
	}

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same Kind, so the sentinels
// below work with errors.Is regardless of context fields.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}

	return false
}

// WithSide records which template the error belongs to.
func (e *Error) WithSide(side Side) *Error {
	e.Side = side

	return e
}

// WithVariable records the variable name involved.
func (e *Error) WithVariable(name string) *Error {
	e.Variable = name

	return e
}

// WithLine records the 1-based input line number.
func (e *Error) WithLine(line int) *Error {
	e.Line = line

	return e
}

// Sentinels for errors.Is comparisons.
var (
	ErrEmptyTemplate               = &Error{Kind: KindEmptyTemplate}
	ErrUnbalancedBrackets          = &Error{Kind: KindUnbalancedBrackets}
	ErrEmptyVariableName           = &Error{Kind: KindEmptyVariableName}
	ErrNoVariablesFound            = &Error{Kind: KindNoVariablesFound}
	ErrUnknownVariable             = &Error{Kind: KindUnknownVariable}
	ErrPatternCompileFailed        = &Error{Kind: KindPatternCompileFailed}
	ErrNothingToExtract            = &Error{Kind: KindNothingToExtract}
	ErrTooFewSourceFields          = &Error{Kind: KindTooFewSourceFields}
	ErrEmptyReplacementOrNoTargets = &Error{Kind: KindEmptyReplacementOrNoTargets}
)

// New creates an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap wraps err with a kind and message. A nil err yields nil.
func Wrap(err error, kind Kind, message string) *Error {
	if err == nil {
		return nil
	}

	return &Error{Kind: kind, Message: message, Cause: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return ""
}

// IsCompileError reports whether err came from template compilation.
func IsCompileError(err error) bool {
	switch KindOf(err) {
	case KindEmptyTemplate, KindUnbalancedBrackets, KindEmptyVariableName,
		KindNoVariablesFound, KindUnknownVariable, KindPatternCompileFailed:
		return true
	default:
		return false
	}
}
