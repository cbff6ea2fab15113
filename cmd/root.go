package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/reshape/internal/config"
	rerrors "github.com/conneroisu/reshape/internal/errors"
	"github.com/conneroisu/reshape/internal/logging"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "reshape",
	Short: "Rewrite text lines from one template into another",
	Long: `reshape extracts fields from each input line with a source template and
writes them back out through a target template.

Templates are literal text with <name> placeholders:

  source: <date> <time>: <systolic>/<diastolic> <pulse>
  target: <date>,<systolic>,<diastolic>

Quick Start:
  reshape convert readings.txt -s '<a> <b>' -t '<b>,<a>'
  reshape preview readings.txt       Show how lines split into fields
  reshape serve                      Edit templates in the browser
  reshape watch ./logs               Convert files as they change`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .reshape.yml, can also use RESHAPE_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().String("log-dir", "", "also write logs to a dated file in this directory")

	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("logging.file_dir", rootCmd.PersistentFlags().Lookup("log-dir"))
}

// initConfig wires every configuration source into viper.
//
// Config file priority (highest to lowest):
//  1. --config flag
//  2. RESHAPE_CONFIG_FILE environment variable
//  3. .reshape.yml in the working directory
//
// A .env file in the working directory is loaded first, so its variables
// behave exactly like exported RESHAPE_ ones.
func initConfig() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "Warning: failed to load .env:", err)
	}

	config.SetDefaults()
	config.BindEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv(config.EnvPrefix + "_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".reshape")
	}

	// A missing file is fine; defaults, env and flags still apply.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig loads the merged configuration and attaches fix hints when
// it is invalid.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		path := viper.ConfigFileUsed()
		if path == "" {
			path = config.DefaultFileName
		}
		cause := rerrors.Wrap(err, rerrors.KindConfig, "invalid configuration")
		return nil, rerrors.NewEnhancedError(
			fmt.Sprintf("Failed to load configuration: %v", err),
			cause,
			rerrors.Suggest(cause, &rerrors.SuggestionContext{ConfigPath: path}),
		)
	}
	return cfg, nil
}

// newLogger builds the command logger. The returned close function flushes
// the log file when one is configured.
func newLogger(cfg *config.Config) (logging.Logger, func(), error) {
	console := logging.NewLogger(cfg.Logging.LoggerConfig())
	if cfg.Logging.FileDir == "" {
		return console, func() {}, nil
	}

	fileLogger, err := logging.NewFileLogger(cfg.Logging.LoggerConfig(), cfg.Logging.FileDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	closeFn := func() {
		if err := fileLogger.Close(); err != nil {
			console.Warn(context.Background(), err, "failed to close log file", "path", fileLogger.Path())
		}
	}
	return logging.NewMultiLogger(console, fileLogger), closeFn, nil
}

// signalContext returns the command context, cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}
