// Package pipeline drives a conversion: it reads raw lines, extracts them
// into a table with the current source template, and writes each row
// through the target template to a sink.
//
// Row failures are collected and skipped; only I/O failures, a cancelled
// context or an uncompiled parser stop a run.
package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	rerrors "github.com/conneroisu/reshape/internal/errors"
	"github.com/conneroisu/reshape/internal/logging"
	"github.com/conneroisu/reshape/internal/sink"
	"github.com/conneroisu/reshape/internal/table"
	"github.com/conneroisu/reshape/internal/template"
)

// ContextCheckInterval is how often (in rows) to check for context cancellation.
var ContextCheckInterval = 100

// maxLineSize bounds a single input line. Longer lines become failed rows.
const maxLineSize = 1024 * 1024

// Options control how input lines are read.
type Options struct {
	// CommentPrefix marks lines to skip. Empty disables comment handling.
	CommentPrefix string
	// SkipEmpty drops empty lines before extraction.
	SkipEmpty bool
}

// DefaultOptions skips '#' comments and empty lines.
func DefaultOptions() Options {
	return Options{CommentPrefix: "#", SkipEmpty: true}
}

// Result summarises one Export.
type Result struct {
	RunID   string
	Rows    int
	Written int
	Failed  int
	Errors  []error
}

// Pipeline pairs a compiled Parser with input options. It is not safe for
// concurrent use.
type Pipeline struct {
	parser   *template.Parser
	opts     Options
	logger   logging.Logger
	loadErrs *rerrors.Collector
}

// New creates a Pipeline. A nil logger discards output.
func New(parser *template.Parser, opts Options, logger logging.Logger) *Pipeline {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Pipeline{
		parser:   parser,
		opts:     opts,
		logger:   logger.WithComponent("pipeline"),
		loadErrs: rerrors.NewCollector(),
	}
}

// Parser returns the parser the pipeline compiles with.
func (p *Pipeline) Parser() *template.Parser {
	return p.parser
}

// Load reads every line of r into a fresh table whose width is the number
// of source variables. Comment and (optionally) empty lines are skipped;
// a line that does not match still becomes a row with every field absent.
func (p *Pipeline) Load(r io.Reader) (*table.Table, error) {
	if p.parser == nil || p.parser.Source() == nil {
		return nil, rerrors.New(rerrors.KindNothingToExtract, "no source template compiled")
	}
	p.loadErrs.Clear()

	t := table.NewWithWidth(p.parser.Width())

	br := bufio.NewReaderSize(r, 64*1024)

	lineNum := 0
	for {
		line, tooLong, err := readLine(br)
		if err == io.EOF {
			break
		}
		if err != nil {
			return t, rerrors.Wrap(err, rerrors.KindIO, "failed to read input")
		}
		lineNum++

		if tooLong {
			p.loadErrs.Add(rerrors.New(rerrors.KindNothingToExtract,
				fmt.Sprintf("line exceeds %d bytes", maxLineSize)).WithLine(lineNum))
			row := t.Add("", nil)
			row.Line = lineNum
			continue
		}

		line = strings.TrimSuffix(line, "\r")
		if p.skip(line) {
			continue
		}

		spans, err := p.parser.Extract(line)
		if err != nil {
			p.loadErrs.Add(asRowError(err, lineNum))
		}

		row := t.Add(line, spans)
		row.Line = lineNum
	}

	p.logger.Debug(context.Background(), "loaded input",
		"lines", lineNum,
		"rows", t.RowCount(),
		"width", t.Width(),
	)

	return t, nil
}

// readLine returns the next line without its terminator. A line longer
// than maxLineSize is read to its end and discarded, with tooLong set.
func readLine(br *bufio.Reader) (string, bool, error) {
	var buf []byte
	tooLong := false
	for {
		chunk, isPrefix, err := br.ReadLine()
		if err != nil {
			return "", false, err
		}
		if !tooLong {
			if len(buf)+len(chunk) > maxLineSize {
				tooLong = true
				buf = nil
			} else {
				buf = append(buf, chunk...)
			}
		}
		if !isPrefix {
			return string(buf), tooLong, nil
		}
	}
}

// LoadErrors returns the extraction errors of the last Load.
func (p *Pipeline) LoadErrors() []error {
	return p.loadErrs.Errors()
}

func (p *Pipeline) skip(line string) bool {
	if line == "" {
		return p.opts.SkipEmpty
	}
	return p.opts.CommentPrefix != "" && strings.HasPrefix(line, p.opts.CommentPrefix)
}

// Export transforms every row of t and writes it to s. It does not close s.
func (p *Pipeline) Export(ctx context.Context, t *table.Table, s sink.Sink, quote bool) (Result, error) {
	result := Result{RunID: uuid.New().String()}

	if p.parser == nil || !p.parser.Ready() {
		return result, rerrors.New(rerrors.KindEmptyReplacementOrNoTargets, "templates are not compiled")
	}

	logger := p.logger.With("run_id", result.RunID)
	timer := logging.StartOperation(logger, "export")
	errs := rerrors.NewCollector()

	for i, row := range t.Rows() {
		if i%ContextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				result.Errors = errs.Errors()
				timer.End(ctx, err, "rows", result.Rows)
				return result, fmt.Errorf("export cancelled: %w", err)
			}
		}
		result.Rows++

		rec, err := p.Record(row, quote)
		if err != nil {
			errs.Add(err)
			result.Failed++
			logger.Warn(ctx, err, "skipping row", "line", row.Line)
			continue
		}

		if err := s.Write(ctx, rec); err != nil {
			result.Errors = errs.Errors()
			werr := rerrors.Wrap(err, rerrors.KindIO, "failed to write record").WithLine(row.Line)
			timer.End(ctx, werr, "rows", result.Rows)
			return result, werr
		}
		result.Written++
	}

	result.Errors = errs.Errors()
	timer.End(ctx, nil,
		"rows", result.Rows,
		"written", result.Written,
		"failed", result.Failed,
	)

	return result, nil
}

// Record transforms one row. A row whose referenced fields were not all
// extracted fails instead of emitting empty values.
func (p *Pipeline) Record(row *table.Row, quote bool) (sink.Record, error) {
	if !p.parser.Ready() {
		return sink.Record{}, rerrors.New(rerrors.KindEmptyReplacementOrNoTargets, "templates are not compiled")
	}

	if row.Len() > 0 && len(row.Missing()) == row.Len() {
		return sink.Record{}, rerrors.New(rerrors.KindNothingToExtract, "line does not match source template").
			WithLine(row.Line)
	}

	names := p.parser.TargetVariables()
	positions := p.parser.TargetPositions()
	values := make([]string, len(positions))
	for i, pos := range positions {
		v, ok := row.Field(pos)
		if !ok {
			return sink.Record{}, rerrors.New(rerrors.KindTooFewSourceFields, "field not extracted").
				WithVariable(names[i]).
				WithLine(row.Line)
		}
		values[i] = v
	}

	line, err := p.parser.Transform(row.Parts(), quote)
	if err != nil {
		return sink.Record{}, asRowError(err, row.Line)
	}

	return sink.Record{Line: line, Values: values, SourceLine: row.Line}, nil
}

// Convert loads r and exports it to s, then closes s.
func (p *Pipeline) Convert(ctx context.Context, r io.Reader, s sink.Sink, quote bool) (Result, error) {
	t, err := p.Load(r)
	if err != nil {
		_ = s.Close(ctx)
		return Result{}, err
	}

	result, err := p.Export(ctx, t, s, quote)
	result.Errors = append(p.LoadErrors(), result.Errors...)
	if cerr := s.Close(ctx); err == nil && cerr != nil {
		err = rerrors.Wrap(cerr, rerrors.KindIO, "failed to close output")
	}
	return result, err
}

// ConvertFile converts the file at in and writes the output file out.
func (p *Pipeline) ConvertFile(ctx context.Context, in, out string, quote bool) (Result, error) {
	f, err := os.Open(in)
	if err != nil {
		return Result{}, rerrors.Wrap(err, rerrors.KindIO, "failed to open input")
	}
	defer f.Close()

	s, err := sink.CreateFileSink(out)
	if err != nil {
		return Result{}, rerrors.Wrap(err, rerrors.KindIO, "failed to create output")
	}

	p.logger.Info(ctx, "converting file", "input", in, "output", out)
	return p.Convert(ctx, f, s, quote)
}

// OutputPath returns where the conversion of in is written: the same
// directory (or dir when set) with suffix appended to the base name.
func OutputPath(in, suffix, dir string) string {
	base := filepath.Base(in) + suffix
	if dir == "" {
		return filepath.Join(filepath.Dir(in), base)
	}
	return filepath.Join(dir, base)
}

// asRowError attaches a line number to core errors.
func asRowError(err error, line int) error {
	if e, ok := err.(*rerrors.Error); ok {
		cp := *e
		return cp.WithLine(line)
	}
	return fmt.Errorf("line %d: %w", line, err)
}
