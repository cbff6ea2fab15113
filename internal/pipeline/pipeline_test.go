package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rerrors "github.com/conneroisu/reshape/internal/errors"
	"github.com/conneroisu/reshape/internal/sink"
	"github.com/conneroisu/reshape/internal/template"
)

const (
	source = "<date> <time>: <systolic>/<diastolic> <pulse>"
	target = "<date>,<pulse>,<systolic>,<diastolic>"
)

const input = `# blood pressure log
2024-10-25 M: 131/79 63

2024-10-25 E: 125/80 70
not a reading
2024-10-26 M: "140"/"90" 72
`

func newPipeline(t *testing.T) *Pipeline {
	t.Helper()
	p := template.NewParser(template.SourceOptions{})
	require.NoError(t, p.Compile(source, target))
	return New(p, DefaultOptions(), nil)
}

func TestLoad(t *testing.T) {
	p := newPipeline(t)

	tbl, err := p.Load(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, 4, tbl.RowCount())
	assert.Equal(t, 5, tbl.Width())

	parts, ok := tbl.GetParts(0)
	require.True(t, ok)
	if diff := cmp.Diff([]string{"2024-10-25", "M", "131", "79", "63"}, parts); diff != "" {
		t.Errorf("row 0 mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 2, tbl.Row(0).Line)
	assert.Equal(t, 4, tbl.Row(1).Line)

	// Non-matching line keeps its place with absent fields.
	assert.Equal(t, 5, tbl.Row(2).Line)
	_, ok = tbl.Get(2, 0)
	assert.False(t, ok)

	v, ok := tbl.Get(3, 2)
	require.True(t, ok)
	assert.Equal(t, "140", v)

	assert.Empty(t, p.LoadErrors())
}

func TestLoad_CRLFAndEmptyLines(t *testing.T) {
	p := template.NewParser(template.SourceOptions{})
	require.NoError(t, p.Compile("<a>,<b>", "<b>,<a>"))

	pl := New(p, Options{SkipEmpty: false}, nil)
	tbl, err := pl.Load(strings.NewReader("x,y\r\n\r\n#c,d\n"))
	require.NoError(t, err)

	require.Equal(t, 3, tbl.RowCount())
	v, ok := tbl.Get(0, 1)
	require.True(t, ok)
	assert.Equal(t, "y", v)

	// Comments are data when no prefix is configured.
	v, ok = tbl.Get(2, 0)
	require.True(t, ok)
	assert.Equal(t, "#c", v)

	errs := pl.LoadErrors()
	require.Len(t, errs, 1)
	assert.True(t, errors.Is(errs[0], rerrors.ErrNothingToExtract))
}

func TestConvert_OverlongLineFailsOnlyItsRow(t *testing.T) {
	p := template.NewParser(template.SourceOptions{})
	require.NoError(t, p.Compile("<a>,<b>", "<b>,<a>"))
	pl := New(p, DefaultOptions(), nil)

	in := "1,2\n" + strings.Repeat("x", 2*maxLineSize) + ",y\n3,4\n"
	out := sink.NewMemorySink()

	result, err := pl.Convert(context.Background(), strings.NewReader(in), out, false)
	require.NoError(t, err)

	assert.Equal(t, []string{"2,1", "4,3"}, out.Lines())
	assert.Equal(t, 3, result.Rows)
	assert.Equal(t, 2, result.Written)
	assert.Equal(t, 1, result.Failed)

	records := out.Records()
	assert.Equal(t, 1, records[0].SourceLine)
	assert.Equal(t, 3, records[1].SourceLine)

	loadErrs := pl.LoadErrors()
	require.Len(t, loadErrs, 1)
	var e *rerrors.Error
	require.True(t, errors.As(loadErrs[0], &e))
	assert.Equal(t, rerrors.KindNothingToExtract, e.Kind)
	assert.Equal(t, 2, e.Line)
}

func TestLoad_LineAtLimit(t *testing.T) {
	p := template.NewParser(template.SourceOptions{})
	require.NoError(t, p.Compile("<a>,<b>", "<b>,<a>"))
	pl := New(p, DefaultOptions(), nil)

	long := strings.Repeat("x", maxLineSize-2) + ",y"
	tbl, err := pl.Load(strings.NewReader(long))
	require.NoError(t, err)

	v, ok := tbl.Get(0, 1)
	require.True(t, ok)
	assert.Equal(t, "y", v)
	assert.Empty(t, pl.LoadErrors())
}

func TestLoad_RequiresSource(t *testing.T) {
	pl := New(template.NewParser(template.SourceOptions{}), DefaultOptions(), nil)
	_, err := pl.Load(strings.NewReader("x"))
	assert.True(t, errors.Is(err, rerrors.ErrNothingToExtract))
}

func TestExport(t *testing.T) {
	p := newPipeline(t)
	tbl, err := p.Load(strings.NewReader(input))
	require.NoError(t, err)

	out := sink.NewMemorySink()
	result, err := p.Export(context.Background(), tbl, out, false)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"2024-10-25,63,131,79",
		"2024-10-25,70,125,80",
		"2024-10-26,72,140,90",
	}, out.Lines())
	assert.Equal(t, 4, result.Rows)
	assert.Equal(t, 3, result.Written)
	assert.Equal(t, 1, result.Failed)
	assert.NotEmpty(t, result.RunID)

	require.Len(t, result.Errors, 1)
	var e *rerrors.Error
	require.True(t, errors.As(result.Errors[0], &e))
	assert.Equal(t, 5, e.Line)
	assert.Equal(t, rerrors.KindNothingToExtract, e.Kind)

	rec := out.Records()[0]
	assert.Equal(t, []string{"2024-10-25", "63", "131", "79"}, rec.Values)
	assert.Equal(t, 2, rec.SourceLine)
}

func TestExport_Quoted(t *testing.T) {
	p := newPipeline(t)
	tbl, err := p.Load(strings.NewReader("2024-10-25 M: 131/79 63\n"))
	require.NoError(t, err)

	out := sink.NewMemorySink()
	_, err = p.Export(context.Background(), tbl, out, true)
	require.NoError(t, err)
	assert.Equal(t, []string{`"2024-10-25","63","131","79"`}, out.Lines())
}

func TestExport_Cancelled(t *testing.T) {
	p := newPipeline(t)
	tbl, err := p.Load(strings.NewReader(input))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := p.Export(ctx, tbl, sink.NewMemorySink(), false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Zero(t, result.Written)
}

func TestExport_RequiresTarget(t *testing.T) {
	parser := template.NewParser(template.SourceOptions{})
	require.NoError(t, parser.CompileSource(source))
	pl := New(parser, DefaultOptions(), nil)

	tbl, err := pl.Load(strings.NewReader("2024-10-25 M: 131/79 63\n"))
	require.NoError(t, err)

	_, err = pl.Export(context.Background(), tbl, sink.NewMemorySink(), false)
	assert.True(t, errors.Is(err, rerrors.ErrEmptyReplacementOrNoTargets))
}

type failingSink struct{}

func (failingSink) Write(context.Context, sink.Record) error { return errors.New("disk full") }
func (failingSink) Close(context.Context) error              { return nil }

func TestExport_SinkFailureStops(t *testing.T) {
	p := newPipeline(t)
	tbl, err := p.Load(strings.NewReader(input))
	require.NoError(t, err)

	_, err = p.Export(context.Background(), tbl, failingSink{}, false)
	require.Error(t, err)
	assert.Equal(t, rerrors.KindIO, rerrors.KindOf(err))
	assert.Contains(t, err.Error(), "disk full")
}

func TestRecord_MissingReferencedField(t *testing.T) {
	parser := template.NewParser(template.SourceOptions{})
	require.NoError(t, parser.Compile("<a>,<b>", "<b>"))
	pl := New(parser, DefaultOptions(), nil)

	tbl, err := pl.Load(strings.NewReader("x,y\n"))
	require.NoError(t, err)

	rec, err := pl.Record(tbl.Row(0), false)
	require.NoError(t, err)
	assert.Equal(t, "y", rec.Line)
}

func TestConvertFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "readings.txt")
	require.NoError(t, os.WriteFile(in, []byte(input), 0644))

	out := OutputPath(in, ".out", filepath.Join(dir, "converted"))
	assert.Equal(t, filepath.Join(dir, "converted", "readings.txt.out"), out)

	result, err := newPipeline(t).ConvertFile(context.Background(), in, out, false)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Written)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "2024-10-25,63,131,79\n2024-10-25,70,125,80\n2024-10-26,72,140,90\n", string(data))
}

func TestConvertFile_MissingInput(t *testing.T) {
	_, err := newPipeline(t).ConvertFile(context.Background(), "/does/not/exist", filepath.Join(t.TempDir(), "o"), false)
	require.Error(t, err)
	assert.Equal(t, rerrors.KindIO, rerrors.KindOf(err))
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, filepath.Join("logs", "a.txt.out"), OutputPath(filepath.Join("logs", "a.txt"), ".out", ""))
}
