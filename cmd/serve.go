package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conneroisu/reshape/internal/pipeline"
	"github.com/conneroisu/reshape/internal/server"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Run the live template playground",
	Long: `Start a local web page for editing the source and target templates.
Every keystroke recompiles both templates and re-runs the sample lines, with
errors and fix hints shown inline.

With --watch, the configured paths are converted as they change and every
conversion is announced on the page.

Examples:
  reshape serve                     # http://localhost:8080
  reshape serve -p 3000             # Different port
  reshape serve --watch ./logs      # Also convert files in ./logs`,
	PreRunE: bindFlags,
	RunE:    runServe,
}

var serveWatch []string

func init() {
	rootCmd.AddCommand(serveCmd)

	addServerFlags(serveCmd)
	addTemplateFlags(serveCmd)
	addInputFlags(serveCmd)
	addOutputFlags(serveCmd)
	addWatchFlags(serveCmd)

	serveCmd.Flags().StringSliceVar(&serveWatch, "watch", nil, "Also convert files under these paths as they change")
	serveCmd.Flags().StringSlice("allowed-origin", nil, "Extra origins allowed to connect (e.g. http://editor.local:3000)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if extra, _ := cmd.Flags().GetStringSlice("allowed-origin"); len(extra) > 0 {
		cfg.Server.AllowedOrigins = append(cfg.Server.AllowedOrigins, extra...)
	}

	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signalContext(cmd)
	defer stop()

	srv := server.New(cfg, logger)

	if len(serveWatch) > 0 {
		// The playground may start with templates still being written, but
		// converting files needs both to compile.
		parser, err := compileTemplates(cfg)
		if err != nil {
			return fmt.Errorf("--watch needs valid templates: %w", err)
		}

		cfg.Watch.Paths = serveWatch
		out := cmd.OutOrStdout()
		fw, err := newConversionWatcher(cfg, parser, logger, func(in, dest string, res pipeline.Result, err error) {
			printConversion(out, in, dest, res, err)
			srv.NotifyConversion(in, dest, res, err)
		})
		if err != nil {
			return err
		}
		defer fw.Stop()

		if err := fw.Start(ctx); err != nil {
			return fmt.Errorf("failed to start watcher: %w", err)
		}
		fmt.Fprintf(out, "👀 Watching %s\n", strings.Join(serveWatch, ", "))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Starting reshape playground at http://%s\n", cfg.Server.Address())

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
