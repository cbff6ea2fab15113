package server

import (
	"errors"
	"strings"

	rerrors "github.com/conneroisu/reshape/internal/errors"
	"github.com/conneroisu/reshape/internal/pipeline"
	"github.com/conneroisu/reshape/internal/template"
)

// maxLines bounds the sample a single request may transform.
const maxLines = 5000

// CompileRequest carries the two templates being edited.
type CompileRequest struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// ErrorInfo is one compile or row error prepared for inline display.
type ErrorInfo struct {
	Kind        string   `json:"kind"`
	Side        string   `json:"side,omitempty"`
	Variable    string   `json:"variable,omitempty"`
	Line        int      `json:"line,omitempty"`
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// CompileResponse is what the editor needs to render headers and errors.
type CompileResponse struct {
	SourceVariables []string    `json:"source_variables"`
	TargetVariables []string    `json:"target_variables"`
	TargetPositions []int       `json:"target_positions"`
	Duplicates      []string    `json:"duplicates,omitempty"`
	Errors          []ErrorInfo `json:"errors,omitempty"`
	Overlay         string      `json:"overlay,omitempty"`
}

// TransformRequest asks for the templates to be applied to sample lines.
type TransformRequest struct {
	CompileRequest
	Lines []string `json:"lines"`
	Quote bool     `json:"quote"`
}

// RowResult is one input line after extraction and transformation.
type RowResult struct {
	Line    int        `json:"line"`
	Text    string     `json:"text"`
	Fields  []string   `json:"fields"`
	Missing []int      `json:"missing,omitempty"`
	Output  string     `json:"output,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// TransformResponse extends the compile result with per-row output.
type TransformResponse struct {
	Type string `json:"type"`
	CompileResponse
	Rows    []RowResult `json:"rows"`
	Written int         `json:"written"`
	Failed  int         `json:"failed"`
}

// Evaluator compiles and applies templates for the playground. Every call
// builds its own Parser and Table, so one Evaluator serves concurrent
// requests.
type Evaluator struct {
	sourceOpts template.SourceOptions
	inputOpts  pipeline.Options
}

// NewEvaluator creates an Evaluator with the configured input handling.
func NewEvaluator(sourceOpts template.SourceOptions, inputOpts pipeline.Options) *Evaluator {
	return &Evaluator{sourceOpts: sourceOpts, inputOpts: inputOpts}
}

// Compile compiles both templates. A failed source still attempts the
// target so the editor can show both fields' state.
func (e *Evaluator) Compile(req CompileRequest) (CompileResponse, *template.Parser) {
	p := template.NewParser(e.sourceOpts)
	resp := CompileResponse{
		SourceVariables: []string{},
		TargetVariables: []string{},
		TargetPositions: []int{},
	}

	var errs []error
	if err := p.CompileSource(req.Source); err != nil {
		errs = append(errs, err)
	} else {
		resp.SourceVariables = p.SourceVariables()
		resp.Duplicates = p.Source().Variables.Duplicates()
	}

	if err := p.CompileTarget(req.Target); err != nil {
		errs = append(errs, err)
	} else {
		resp.TargetVariables = p.TargetVariables()
		resp.TargetPositions = p.TargetPositions()
	}

	sctx := &rerrors.SuggestionContext{SourceVariables: resp.SourceVariables}
	for _, err := range errs {
		resp.Errors = append(resp.Errors, errorInfo(err, sctx))
	}
	if len(errs) > 0 {
		resp.Overlay = rerrors.Overlay(errs)
	}

	return resp, p
}

// Transform compiles the templates and, when both compile, runs every
// line through them. Row failures are reported per row.
func (e *Evaluator) Transform(req TransformRequest) TransformResponse {
	compiled, p := e.Compile(req.CompileRequest)
	resp := TransformResponse{Type: "transform", CompileResponse: compiled, Rows: []RowResult{}}

	if p.Source() == nil {
		return resp
	}

	lines := req.Lines
	if len(lines) > maxLines {
		lines = lines[:maxLines]
	}

	pl := pipeline.New(p, e.inputOpts, nil)
	tbl, err := pl.Load(strings.NewReader(strings.Join(lines, "\n")))
	if err != nil {
		resp.Errors = append(resp.Errors, errorInfo(err, nil))
		return resp
	}

	sctx := &rerrors.SuggestionContext{SourceVariables: resp.SourceVariables}
	for _, row := range tbl.Rows() {
		rr := RowResult{
			Line:    row.Line,
			Text:    row.Text(),
			Fields:  row.Parts(),
			Missing: row.Missing(),
		}

		if p.Ready() {
			rec, err := pl.Record(row, req.Quote)
			if err != nil {
				info := errorInfo(err, sctx)
				rr.Error = &info
				resp.Failed++
			} else {
				rr.Output = rec.Line
				resp.Written++
			}
		}

		resp.Rows = append(resp.Rows, rr)
	}

	return resp
}

func errorInfo(err error, sctx *rerrors.SuggestionContext) ErrorInfo {
	info := ErrorInfo{Message: err.Error(), Kind: "error"}

	var e *rerrors.Error
	if errors.As(err, &e) {
		info.Kind = string(e.Kind)
		info.Side = string(e.Side)
		info.Variable = e.Variable
		info.Line = e.Line
	}

	for _, s := range rerrors.Suggest(err, sctx) {
		info.Suggestions = append(info.Suggestions, s.Title)
	}
	return info
}
