package template

import (
	rerrors "github.com/conneroisu/reshape/internal/errors"
)

// Parser holds the current source and target compilations.
//
// A Parser is not safe for concurrent use; it is owned by one caller that
// sequences CompileSource before CompileTarget.
type Parser struct {
	opts   SourceOptions
	source *Source
	target *Target
}

// NewParser creates a Parser with no compiled templates.
func NewParser(opts SourceOptions) *Parser {
	return &Parser{opts: opts}
}

// CompileSource replaces the source compilation and always discards the
// target compilation, which was resolved against the old variables. On
// failure the parser is left with no source.
func (p *Parser) CompileSource(tmpl string) error {
	p.source = nil
	p.target = nil

	src, err := CompileSource(tmpl, p.opts)
	if err != nil {
		return err
	}
	p.source = src
	return nil
}

// CompileTarget replaces the target compilation. It fails with
// UnknownVariable for any placeholder when no source is compiled.
func (p *Parser) CompileTarget(tmpl string) error {
	p.target = nil

	var vars *Descriptor
	if p.source != nil {
		vars = &p.source.Variables
	}

	tgt, err := CompileTarget(tmpl, vars)
	if err != nil {
		return err
	}
	p.target = tgt
	return nil
}

// Compile compiles source then target, stopping at the first failure.
func (p *Parser) Compile(source, target string) error {
	if err := p.CompileSource(source); err != nil {
		return err
	}
	return p.CompileTarget(target)
}

// Source returns the current source compilation, or nil.
func (p *Parser) Source() *Source {
	return p.source
}

// Target returns the current target compilation, or nil.
func (p *Parser) Target() *Target {
	return p.target
}

// Ready reports whether both templates are compiled.
func (p *Parser) Ready() bool {
	return p.source != nil && p.target != nil
}

// SourceVariables returns the source variable names.
func (p *Parser) SourceVariables() []string {
	if p.source == nil {
		return nil
	}
	return p.source.Variables.Names()
}

// TargetVariables returns the target variable names.
func (p *Parser) TargetVariables() []string {
	if p.target == nil {
		return nil
	}
	return p.target.Variables.Names()
}

// TargetPositions returns, for each target variable, its source position.
func (p *Parser) TargetPositions() []int {
	if p.target == nil {
		return nil
	}
	return p.target.Variables.Positions()
}

// Width returns the number of source variables.
func (p *Parser) Width() int {
	if p.source == nil {
		return 0
	}
	return p.source.Variables.Len()
}

// Extract returns the field spans of line under the current source.
func (p *Parser) Extract(line string) ([]Span, error) {
	if p.source == nil {
		return nil, rerrors.New(rerrors.KindNothingToExtract, "no source variables compiled")
	}
	return Extract(p.source.Pattern, line)
}

// Transform renders values, indexed by source position, through the current
// target.
func (p *Parser) Transform(values []string, quote bool) (string, error) {
	if p.target == nil {
		return "", rerrors.New(rerrors.KindEmptyReplacementOrNoTargets, "no target compiled")
	}
	return Transform(p.target.Replacement, p.target.Variables.positions, values, quote)
}
