package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flagBindings maps flag names to the config keys they override.
var flagBindings = map[string]string{
	"source":           "templates.source",
	"target":           "templates.target",
	"comment-prefix":   "input.comment_prefix",
	"loose-whitespace": "input.loose_whitespace",
	"ext":              "input.extensions",
	"quote":            "output.quote",
	"suffix":           "output.suffix",
	"out-dir":          "output.dir",
	"database-url":     "output.database_url",
	"table":            "output.table",
	"debounce":         "watch.debounce",
	"port":             "server.port",
	"host":             "server.host",
}

// bindFlags binds the flags of the running command to their config keys.
// Several commands define the same flag, so binding happens when a command
// runs rather than in init, where the last command registered would win.
func bindFlags(cmd *cobra.Command, _ []string) error {
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		key, ok := flagBindings[f.Name]
		if !ok || bindErr != nil {
			return
		}
		if err := viper.BindPFlag(key, f); err != nil {
			bindErr = fmt.Errorf("failed to bind --%s: %w", f.Name, err)
		}
	})
	return bindErr
}

func addTemplateFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("source", "s", "", "Source template, e.g. '<date> <time>: <sys>/<dia>'")
	cmd.Flags().StringP("target", "t", "", "Target template, e.g. '<date>,<sys>,<dia>'")
}

func addInputFlags(cmd *cobra.Command) {
	cmd.Flags().String("comment-prefix", "#", "Skip input lines starting with this prefix (empty disables)")
	cmd.Flags().Bool("loose-whitespace", false, "Let whitespace in the source template match any run of whitespace")
}

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().BoolP("quote", "q", false, "Wrap every substituted value in double quotes")
	cmd.Flags().String("suffix", ".out", "Suffix appended to input file names for output files")
	cmd.Flags().String("out-dir", "", "Directory for output files (default is next to the input)")
}

func addDatabaseFlags(cmd *cobra.Command) {
	cmd.Flags().String("database-url", "", "Load rows into Postgres instead of writing files")
	cmd.Flags().String("table", "reshaped", "Destination table for --database-url")
}

func addServerFlags(cmd *cobra.Command) {
	cmd.Flags().IntP("port", "p", 8080, "Port to serve on")
	cmd.Flags().String("host", "localhost", "Host to bind to")
}

func addWatchFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("ext", []string{".txt", ".log", ".csv"}, "File extensions to convert")
	cmd.Flags().Duration("debounce", 0, "Delay before converting a changed file (default from config)")
}

// formatValue is a pflag.Value restricted to a fixed set of output formats.
type formatValue struct {
	value   string
	allowed []string
}

func newFormatValue(def string, allowed ...string) *formatValue {
	return &formatValue{value: def, allowed: allowed}
}

func (f *formatValue) String() string {
	return f.value
}

func (f *formatValue) Set(s string) error {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, a := range f.allowed {
		if s == a {
			f.value = s
			return nil
		}
	}
	return fmt.Errorf("must be one of: %s", strings.Join(f.allowed, ", "))
}

func (f *formatValue) Type() string {
	return "format"
}
