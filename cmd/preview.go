package cmd

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/reshape/internal/pipeline"
	"github.com/conneroisu/reshape/internal/table"
	"github.com/conneroisu/reshape/internal/template"
)

var previewCmd = &cobra.Command{
	Use:     "preview [file|-]",
	Aliases: []string{"p"},
	Short:   "Show how input lines split into fields",
	Long: `Extract every line of a file (or stdin) with the source template and show
the resulting table next to the transformed output. Nothing is written.

Examples:
  reshape preview readings.txt               # Table of fields and output
  reshape preview readings.txt -n 5          # First five rows only
  reshape preview readings.txt -f json       # Rows as JSON
  reshape preview readings.txt -f csv        # Extracted fields as CSV`,
	Args:    cobra.MaximumNArgs(1),
	PreRunE: bindFlags,
	RunE:    runPreview,
}

var (
	previewFormat = newFormatValue("table", "table", "json", "yaml", "csv")
	previewLimit  int
)

func init() {
	rootCmd.AddCommand(previewCmd)

	addTemplateFlags(previewCmd)
	addInputFlags(previewCmd)
	previewCmd.Flags().BoolP("quote", "q", false, "Wrap every substituted value in double quotes")

	previewCmd.Flags().VarP(previewFormat, "format", "f", "Output format (table, json, yaml, csv)")
	previewCmd.Flags().IntVarP(&previewLimit, "limit", "n", 0, "Show at most this many rows (0 shows all)")
}

// PreviewRow is one row of preview output.
type PreviewRow struct {
	Line   int               `json:"line" yaml:"line"`
	Fields map[string]string `json:"fields" yaml:"fields"`
	Output string            `json:"output,omitempty" yaml:"output,omitempty"`
	Error  string            `json:"error,omitempty" yaml:"error,omitempty"`
}

func runPreview(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	parser, err := compileTemplates(cfg)
	if err != nil {
		return err
	}

	in := "-"
	if len(args) == 1 {
		in = args[0]
	}

	var r io.Reader = cmd.InOrStdin()
	if in != "-" {
		f, err := os.Open(in)
		if err != nil {
			return fmt.Errorf("failed to open input: %w", err)
		}
		defer f.Close()
		r = f
	}

	pl := pipeline.New(parser, inputOptions(cfg), nil)
	tbl, err := pl.Load(r)
	if err != nil {
		return err
	}

	rows := buildPreviewRows(pl, parser, tbl, cfg.Output.Quote, previewLimit)
	out := cmd.OutOrStdout()

	switch previewFormat.String() {
	case "json":
		return outputPreviewJSON(out, rows)
	case "yaml":
		return outputPreviewYAML(out, rows)
	case "csv":
		return outputPreviewCSV(out, parser.SourceVariables(), tbl, previewLimit)
	default:
		return outputPreviewTable(out, parser, rows)
	}
}

func buildPreviewRows(pl *pipeline.Pipeline, parser *template.Parser, tbl *table.Table, quote bool, limit int) []PreviewRow {
	names := parser.SourceVariables()
	var rows []PreviewRow

	for i, row := range tbl.Rows() {
		if limit > 0 && i >= limit {
			break
		}

		pr := PreviewRow{Line: row.Line, Fields: make(map[string]string, len(names))}
		for pos, name := range names {
			// Repeated names keep the first occurrence's value.
			if _, seen := pr.Fields[name]; seen {
				continue
			}
			if v, ok := row.Field(pos); ok {
				pr.Fields[name] = v
			}
		}

		rec, err := pl.Record(row, quote)
		if err != nil {
			pr.Error = err.Error()
		} else {
			pr.Output = rec.Line
		}
		rows = append(rows, pr)
	}

	return rows
}

func outputPreviewJSON(w io.Writer, rows []PreviewRow) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(rows)
}

func outputPreviewYAML(w io.Writer, rows []PreviewRow) error {
	encoder := yaml.NewEncoder(w)
	defer encoder.Close()
	return encoder.Encode(rows)
}

// outputPreviewCSV writes the raw extracted table, one column per source
// variable, with absent fields left empty.
func outputPreviewCSV(w io.Writer, names []string, tbl *table.Table, limit int) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(append([]string{"line"}, names...)); err != nil {
		return err
	}
	for i, row := range tbl.Rows() {
		if limit > 0 && i >= limit {
			break
		}
		record := append([]string{fmt.Sprint(row.Line)}, row.Parts()...)
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func outputPreviewTable(w io.Writer, parser *template.Parser, rows []PreviewRow) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	names := parser.SourceVariables()
	upper := cases.Upper(language.English)

	header := []string{"LINE"}
	for _, n := range names {
		header = append(header, upper.String(n))
	}
	header = append(header, "OUTPUT")
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	for _, r := range rows {
		cols := []string{fmt.Sprint(r.Line)}
		for _, n := range names {
			v, ok := r.Fields[n]
			if !ok {
				v = "-"
			}
			cols = append(cols, v)
		}
		if r.Error != "" {
			cols = append(cols, "! "+r.Error)
		} else {
			cols = append(cols, r.Output)
		}
		fmt.Fprintln(tw, strings.Join(cols, "\t"))
	}

	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n%d row(s)\n", len(rows))
	return nil
}
