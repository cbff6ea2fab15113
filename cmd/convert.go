package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/conneroisu/reshape/internal/config"
	rerrors "github.com/conneroisu/reshape/internal/errors"
	"github.com/conneroisu/reshape/internal/logging"
	"github.com/conneroisu/reshape/internal/pipeline"
	"github.com/conneroisu/reshape/internal/sink"
	"github.com/conneroisu/reshape/internal/template"
)

var (
	convertOut    string
	convertStrict bool
)

var convertCmd = &cobra.Command{
	Use:     "convert [file|-]...",
	Aliases: []string{"c"},
	Short:   "Apply the templates to files or stdin",
	Long: `Extract fields from every line with the source template and write them
through the target template.

Each input file is written to <file><suffix> (".out" by default), or into
--out-dir. With no arguments, or "-", lines are read from stdin and written
to stdout. Lines that do not match are reported and skipped.

Examples:
  reshape convert readings.txt -s '<d> <t>: <sys>/<dia> <p>' -t '<d>,<sys>,<dia>'
  cat readings.txt | reshape convert > readings.csv
  reshape convert a.txt b.txt --out-dir converted
  reshape convert readings.txt --database-url postgres://localhost/health --table bp`,
	PreRunE: bindFlags,
	RunE:    runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)

	addTemplateFlags(convertCmd)
	addInputFlags(convertCmd)
	addOutputFlags(convertCmd)
	addDatabaseFlags(convertCmd)

	convertCmd.Flags().StringVarP(&convertOut, "out", "o", "", "Write to this file instead (- for stdout); single input only")
	convertCmd.Flags().BoolVar(&convertStrict, "strict", false, "Exit with an error when any line fails to convert")
}

func runConvert(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	parser, err := compileTemplates(cfg)
	if err != nil {
		return err
	}

	if len(args) == 0 {
		args = []string{"-"}
	}
	if convertOut != "" && len(args) > 1 {
		return fmt.Errorf("--out accepts exactly one input, got %d", len(args))
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	pl := pipeline.New(parser, inputOptions(cfg), logger)

	failed := 0
	for _, in := range args {
		res, err := convertOne(ctx, cmd, cfg, pl, in, logger)
		if err != nil {
			return err
		}
		failed += res.Failed
	}

	if convertStrict && failed > 0 {
		return fmt.Errorf("%d line(s) failed to convert", failed)
	}
	return nil
}

func convertOne(ctx context.Context, cmd *cobra.Command, cfg *config.Config, pl *pipeline.Pipeline, in string, logger logging.Logger) (pipeline.Result, error) {
	var r io.Reader
	if in == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(in)
		if err != nil {
			return pipeline.Result{}, fmt.Errorf("failed to open input: %w", err)
		}
		defer f.Close()
		r = f
	}

	s, dest, err := openSink(ctx, cmd, cfg, pl.Parser(), in)
	if err != nil {
		return pipeline.Result{}, err
	}

	res, err := pl.Convert(ctx, r, s, cfg.Output.Quote)
	reportResult(cmd.ErrOrStderr(), in, dest, res)
	if err != nil {
		return res, fmt.Errorf("%s: %w", in, err)
	}

	logger.Info(ctx, "converted",
		"input", in,
		"output", dest,
		"run_id", res.RunID,
		"written", res.Written,
		"failed", res.Failed,
	)
	return res, nil
}

// openSink picks the destination for one input: Postgres when a database
// URL is configured, stdout for stdin, otherwise a file derived from in.
func openSink(ctx context.Context, cmd *cobra.Command, cfg *config.Config, parser *template.Parser, in string) (sink.Sink, string, error) {
	if cfg.Output.DatabaseURL != "" {
		s, err := sink.OpenPostgres(ctx, cfg.Output.DatabaseURL, cfg.Output.Table, parser.TargetVariables())
		if err != nil {
			return nil, "", fmt.Errorf("%s: %w", logging.RedactURL(cfg.Output.DatabaseURL), err)
		}
		return s, logging.RedactURL(cfg.Output.DatabaseURL) + " table " + cfg.Output.Table, nil
	}

	if convertOut == "-" || (convertOut == "" && in == "-") {
		return sink.NewFileSink(cmd.OutOrStdout()), "stdout", nil
	}

	path := convertOut
	if path == "" {
		path = pipeline.OutputPath(in, cfg.Output.Suffix, cfg.Output.Dir)
	}
	if sameFile(in, path) {
		return nil, "", fmt.Errorf("%s: output would overwrite the input", path)
	}
	s, err := sink.CreateFileSink(path)
	if err != nil {
		return nil, "", err
	}
	return s, path, nil
}

// sameFile reports whether in and out name the same file, either by
// absolute path or, when both exist, by identity.
func sameFile(in, out string) bool {
	if in == "-" {
		return false
	}
	absIn, errIn := filepath.Abs(in)
	absOut, errOut := filepath.Abs(out)
	if errIn == nil && errOut == nil && absIn == absOut {
		return true
	}

	inInfo, errIn := os.Stat(in)
	outInfo, errOut := os.Stat(out)
	return errIn == nil && errOut == nil && os.SameFile(inInfo, outInfo)
}

func reportResult(w io.Writer, in, dest string, res pipeline.Result) {
	for _, err := range res.Errors {
		fmt.Fprintf(w, "%s: %v\n", in, err)
	}
	if dest != "stdout" {
		fmt.Fprintf(w, "%s -> %s: %d written, %d failed\n", in, dest, res.Written, res.Failed)
	}
}

// compileTemplates compiles the configured templates, attaching fix hints
// to compile errors.
func compileTemplates(cfg *config.Config) (*template.Parser, error) {
	parser := template.NewParser(template.SourceOptions{LooseWhitespace: cfg.Input.LooseWhitespace})

	if err := parser.CompileSource(cfg.Templates.Source); err != nil {
		return nil, rerrors.NewEnhancedError(fmt.Sprintf("Invalid source template: %v", err), err, rerrors.Suggest(err, nil))
	}
	if err := parser.CompileTarget(cfg.Templates.Target); err != nil {
		sctx := &rerrors.SuggestionContext{SourceVariables: parser.SourceVariables()}
		return nil, rerrors.NewEnhancedError(fmt.Sprintf("Invalid target template: %v", err), err, rerrors.Suggest(err, sctx))
	}
	return parser, nil
}

func inputOptions(cfg *config.Config) pipeline.Options {
	return pipeline.Options{
		CommentPrefix: cfg.Input.CommentPrefix,
		SkipEmpty:     cfg.Input.SkipEmpty,
	}
}
