package errors

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

// Collector collects per-row errors so a batch can continue past bad lines.
type Collector struct {
	errors []error
	mutex  sync.RWMutex
}

// NewCollector creates a new error collector
func NewCollector() *Collector {
	return &Collector{
		errors: make([]error, 0),
	}
}

// Add adds an error to the collector. Nil errors are ignored.
func (c *Collector) Add(err error) {
	if err == nil {
		return
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.errors = append(c.errors, err)
}

// Errors returns a copy of all collected errors in insertion order.
func (c *Collector) Errors() []error {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	result := make([]error, len(c.errors))
	copy(result, c.errors)
	return result
}

// Len returns the number of collected errors.
func (c *Collector) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.errors)
}

// HasErrors returns true if there are any errors
func (c *Collector) HasErrors() bool {
	return c.Len() > 0
}

// Clear clears all errors
func (c *Collector) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.errors = c.errors[:0]
}

// ByLine returns the errors recorded for one input line.
func (c *Collector) ByLine(line int) []error {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	var lineErrors []error
	for _, err := range c.errors {
		var e *Error
		if errors.As(err, &e) && e.Line == line {
			lineErrors = append(lineErrors, err)
		}
	}
	return lineErrors
}

// ByKind returns the errors of one kind.
func (c *Collector) ByKind(kind Kind) []error {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	var kindErrors []error
	for _, err := range c.errors {
		if KindOf(err) == kind {
			kindErrors = append(kindErrors, err)
		}
	}
	return kindErrors
}

// Err joins all collected errors, or returns nil when there are none.
func (c *Collector) Err() error {
	return errors.Join(c.Errors()...)
}

var (
	overlayPolicyOnce sync.Once
	overlayPolicy     *bluemonday.Policy
)

func overlaySanitizer() *bluemonday.Policy {
	overlayPolicyOnce.Do(func() {
		overlayPolicy = bluemonday.StrictPolicy()
	})
	return overlayPolicy
}

// Overlay renders errs as an HTML fragment for the live preview. Messages
// embed user-typed template text, so everything is passed through a strict
// sanitizer before it reaches the page.
func Overlay(errs []error) string {
	if len(errs) == 0 {
		return ""
	}

	policy := overlaySanitizer()

	var b strings.Builder
	b.WriteString(`<div id="reshape-error-overlay" class="overlay">`)
	b.WriteString(`<h2>Template Errors</h2><ul>`)

	for _, err := range errs {
		kind := KindOf(err)
		if kind == "" {
			kind = "error"
		}
		fmt.Fprintf(&b, `<li class="%s"><strong>%s</strong> %s`,
			policy.Sanitize(string(kind)),
			policy.Sanitize(string(kind)),
			policy.Sanitize(err.Error()),
		)
		for _, s := range Suggest(err, nil) {
			fmt.Fprintf(&b, `<div class="suggestion">%s</div>`, policy.Sanitize(s.Title))
		}
		b.WriteString(`</li>`)
	}

	b.WriteString(`</ul></div>`)
	return b.String()
}
