// Package config loads reshape settings with Viper from a YAML file,
// RESHAPE_ environment variables and command-line flags.
//
// Settings cover the two templates, how input lines are read, where
// transformed records go, which directories are watched, and the playground
// server.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/conneroisu/reshape/internal/logging"
)

// EnvPrefix is prepended to every environment override, so output.quote is
// read from RESHAPE_OUTPUT_QUOTE.
const EnvPrefix = "RESHAPE"

// DefaultFileName is the config file looked up in the working directory.
const DefaultFileName = ".reshape.yml"

var envKeyReplacer = strings.NewReplacer(".", "_", "-", "_")

type Config struct {
	Templates TemplatesConfig `mapstructure:"templates" yaml:"templates"`
	Input     InputConfig     `mapstructure:"input" yaml:"input"`
	Output    OutputConfig    `mapstructure:"output" yaml:"output"`
	Watch     WatchConfig     `mapstructure:"watch" yaml:"watch"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

type TemplatesConfig struct {
	Source string `mapstructure:"source" yaml:"source"`
	Target string `mapstructure:"target" yaml:"target"`
}

type InputConfig struct {
	CommentPrefix   string   `mapstructure:"comment_prefix" yaml:"comment_prefix"`
	SkipEmpty       bool     `mapstructure:"skip_empty" yaml:"skip_empty"`
	LooseWhitespace bool     `mapstructure:"loose_whitespace" yaml:"loose_whitespace"`
	Extensions      []string `mapstructure:"extensions" yaml:"extensions"`
}

type OutputConfig struct {
	Quote       bool   `mapstructure:"quote" yaml:"quote"`
	Suffix      string `mapstructure:"suffix" yaml:"suffix"`
	Dir         string `mapstructure:"dir" yaml:"dir"`
	DatabaseURL string `mapstructure:"database_url" yaml:"database_url"`
	Table       string `mapstructure:"table" yaml:"table"`
}

type WatchConfig struct {
	Paths    []string      `mapstructure:"paths" yaml:"paths"`
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

type ServerConfig struct {
	Host           string   `mapstructure:"host" yaml:"host"`
	Port           int      `mapstructure:"port" yaml:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

type LoggingConfig struct {
	Level   string `mapstructure:"level" yaml:"level"`
	Format  string `mapstructure:"format" yaml:"format"`
	FileDir string `mapstructure:"file_dir" yaml:"file_dir"`
}

// SetDefaults registers every default on the global viper instance. It must
// run before Load and before flags are bound.
func SetDefaults() {
	viper.SetDefault("input.comment_prefix", "#")
	viper.SetDefault("input.skip_empty", true)
	viper.SetDefault("input.loose_whitespace", false)
	viper.SetDefault("input.extensions", []string{".txt", ".log", ".csv"})

	viper.SetDefault("output.quote", false)
	viper.SetDefault("output.suffix", ".out")
	viper.SetDefault("output.table", "reshaped")

	viper.SetDefault("watch.paths", []string{"."})
	viper.SetDefault("watch.debounce", 300*time.Millisecond)

	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 8080)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
}

// BindEnv enables RESHAPE_ environment overrides on the global viper
// instance.
func BindEnv() {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()
}

// Load unmarshals the global viper state into a validated Config.
func Load() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Viper leaves slices set through env vars or flags as a single string.
	if viper.IsSet("input.extensions") && len(config.Input.Extensions) <= 1 {
		config.Input.Extensions = viper.GetStringSlice("input.extensions")
	}
	if viper.IsSet("watch.paths") && len(config.Watch.Paths) <= 1 {
		config.Watch.Paths = viper.GetStringSlice("watch.paths")
	}

	applyDefaults(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// applyDefaults fills zero values for callers that never ran SetDefaults.
func applyDefaults(config *Config) {
	if len(config.Input.Extensions) == 0 {
		config.Input.Extensions = []string{".txt", ".log", ".csv"}
	}
	for i, ext := range config.Input.Extensions {
		ext = strings.TrimSpace(ext)
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		config.Input.Extensions[i] = ext
	}
	if config.Output.Suffix == "" {
		config.Output.Suffix = ".out"
	}
	if config.Output.Table == "" {
		config.Output.Table = "reshaped"
	}
	if len(config.Watch.Paths) == 0 {
		config.Watch.Paths = []string{"."}
	}
	if config.Watch.Debounce == 0 {
		config.Watch.Debounce = 300 * time.Millisecond
	}
	if config.Server.Host == "" {
		config.Server.Host = "localhost"
	}
	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	if config.Logging.Format == "" {
		config.Logging.Format = "text"
	}
}

// validateConfig rejects values no command can run with.
func validateConfig(config *Config) error {
	if config.Server.Port < 0 || config.Server.Port > 65535 {
		return fmt.Errorf("server config: port %d is not in valid range 0-65535", config.Server.Port)
	}
	if err := validateHost(config.Server.Host); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	for _, ext := range config.Input.Extensions {
		if ext == "" {
			return fmt.Errorf("input config: empty extension")
		}
	}

	if config.Watch.Debounce < 0 {
		return fmt.Errorf("watch config: negative debounce %s", config.Watch.Debounce)
	}
	for _, path := range config.Watch.Paths {
		if err := validatePath(path); err != nil {
			return fmt.Errorf("watch config: invalid path '%s': %w", path, err)
		}
	}

	if config.Output.Dir != "" {
		if err := validatePath(config.Output.Dir); err != nil {
			return fmt.Errorf("output config: invalid dir '%s': %w", config.Output.Dir, err)
		}
	}

	if _, err := logging.ParseLevel(config.Logging.Level); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	if config.Logging.Format != "text" && config.Logging.Format != "json" {
		return fmt.Errorf("logging config: format must be text or json, got %q", config.Logging.Format)
	}

	return nil
}

func validateHost(host string) error {
	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\"}
	for _, char := range dangerousChars {
		if strings.Contains(host, char) {
			return fmt.Errorf("host contains dangerous character: %s", char)
		}
	}
	return nil
}

// validatePath rejects empty paths and parent-directory traversal.
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}

	cleanPath := filepath.Clean(path)
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path contains traversal: %s", path)
	}

	return nil
}

// Address returns host:port for the playground server.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoggerConfig converts the logging section for logging.NewLogger.
func (c *LoggingConfig) LoggerConfig() *logging.LoggerConfig {
	cfg := logging.DefaultConfig()
	if level, err := logging.ParseLevel(c.Level); err == nil {
		cfg.Level = level
	}
	if c.Format != "" {
		cfg.Format = c.Format
	}
	return cfg
}
