package sink

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FileSink writes one line per record to a buffered writer.
type FileSink struct {
	w      *bufio.Writer
	closer io.Closer
	path   string
	count  int
	closed bool
}

// NewFileSink wraps w. Close flushes but does not close w.
func NewFileSink(w io.Writer) *FileSink {
	return &FileSink{w: bufio.NewWriter(w)}
}

// CreateFileSink creates (or truncates) path, making parent directories as
// needed. Close flushes and closes the file.
func CreateFileSink(path string) (*FileSink, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}

	return &FileSink{w: bufio.NewWriter(f), closer: f, path: path}, nil
}

// Write appends rec.Line and a newline.
func (s *FileSink) Write(_ context.Context, rec Record) error {
	if s.closed {
		return ErrClosed
	}
	if _, err := s.w.WriteString(rec.Line); err != nil {
		return err
	}
	if err := s.w.WriteByte('\n'); err != nil {
		return err
	}
	s.count++
	return nil
}

// Close flushes buffered output and closes an owned file.
func (s *FileSink) Close(_ context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true

	err := s.w.Flush()
	if s.closer != nil {
		if cerr := s.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Path returns the file path, or "" for a wrapped writer.
func (s *FileSink) Path() string {
	return s.path
}

// Count returns the number of records written.
func (s *FileSink) Count() int {
	return s.count
}
