// Package sink receives transformed records. A conversion writes each
// record to exactly one Sink and closes it when the input is exhausted.
package sink

import (
	"context"
	"errors"
)

// Record is one transformed row.
type Record struct {
	// Line is the rendered target template.
	Line string
	// Values are the substituted field values in target order.
	Values []string
	// SourceLine is the 1-based input line number, or 0.
	SourceLine int
}

// Sink is a destination for records. Implementations need not be safe for
// concurrent use.
type Sink interface {
	Write(ctx context.Context, rec Record) error
	Close(ctx context.Context) error
}

// ErrClosed is returned by Write after Close.
var ErrClosed = errors.New("sink is closed")
