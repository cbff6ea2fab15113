package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/conneroisu/reshape/internal/config"
	"github.com/conneroisu/reshape/internal/logging"
	"github.com/conneroisu/reshape/internal/pipeline"
	"github.com/conneroisu/reshape/internal/template"
	"github.com/conneroisu/reshape/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:     "watch [dir...]",
	Aliases: []string{"w"},
	Short:   "Convert files whenever they change",
	Long: `Watch directories and convert every created or modified file whose
extension matches input.extensions. Output goes to <file><suffix>, or into
--out-dir; output files themselves are never converted again.

Examples:
  reshape watch                            # Watch the configured paths
  reshape watch ./logs ./exports           # Watch specific directories
  reshape watch --ext .txt --debounce 1s   # Only .txt files, slower debounce`,
	PreRunE: bindFlags,
	RunE:    runWatch,
}

var watchVerbose bool

func init() {
	rootCmd.AddCommand(watchCmd)

	addTemplateFlags(watchCmd)
	addInputFlags(watchCmd)
	addOutputFlags(watchCmd)
	addWatchFlags(watchCmd)

	watchCmd.Flags().BoolVarP(&watchVerbose, "verbose", "v", false, "Print every converted file")
}

// conversionNotifier receives the outcome of each watched conversion.
type conversionNotifier func(in, out string, res pipeline.Result, err error)

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(args) > 0 {
		cfg.Watch.Paths = args
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

	ctx, stop := signalContext(cmd)
	defer stop()

	out := cmd.OutOrStdout()
	fw, err := newConversionWatcher(cfg, parser, logger, func(in, dest string, res pipeline.Result, err error) {
		printConversion(out, in, dest, res, err)
	})
	if err != nil {
		return err
	}
	defer fw.Stop()

	if err := fw.Start(ctx); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	fmt.Fprintf(out, "👀 Watching %v for %v files (Ctrl+C to stop)\n", cfg.Watch.Paths, cfg.Input.Extensions)
	<-ctx.Done()
	fmt.Fprintln(out, "Stopped watching")
	return nil
}

// newConversionWatcher creates a watcher over cfg.Watch.Paths that converts
// every changed input file and reports each outcome to notify.
func newConversionWatcher(cfg *config.Config, parser *template.Parser, logger logging.Logger, notify conversionNotifier) (*watcher.FileWatcher, error) {
	fw, err := watcher.NewFileWatcher(cfg.Watch.Debounce, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	fw.AddFilter(watcher.NoGitFilter)
	fw.AddFilter(watcher.NoHiddenFilter)
	fw.AddFilter(watcher.ExtensionFilter(cfg.Input.Extensions))
	fw.AddFilter(watcher.NoOutputFilter(cfg.Output.Suffix))

	fw.AddHandler(conversionHandler(cfg, pipeline.New(parser, inputOptions(cfg), logger), notify))

	for _, path := range cfg.Watch.Paths {
		if err := fw.AddRecursive(path); err != nil {
			_ = fw.Stop()
			return nil, fmt.Errorf("failed to watch %s: %w", path, err)
		}
	}

	return fw, nil
}

// conversionHandler converts each file that still exists after a batch of
// changes. A failing file does not stop the rest of the batch.
func conversionHandler(cfg *config.Config, pl *pipeline.Pipeline, notify conversionNotifier) watcher.ChangeHandler {
	return func(ctx context.Context, events []watcher.ChangeEvent) error {
		for _, ev := range watcher.Existing(events) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			dest := pipeline.OutputPath(ev.Path, cfg.Output.Suffix, cfg.Output.Dir)
			res, err := pl.ConvertFile(ctx, ev.Path, dest, cfg.Output.Quote)
			notify(ev.Path, dest, res, err)
		}
		return nil
	}
}

func printConversion(w io.Writer, in, dest string, res pipeline.Result, err error) {
	if err != nil {
		fmt.Fprintf(w, "❌ %s: %v\n", in, err)
		return
	}
	if watchVerbose || res.Failed > 0 {
		for _, rowErr := range res.Errors {
			fmt.Fprintf(w, "   %s: %v\n", in, rowErr)
		}
	}
	fmt.Fprintf(w, "✅ %s -> %s (%d written, %d failed)\n", in, dest, res.Written, res.Failed)
}
