package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		setup       func()
		expectError bool
		check       func(t *testing.T, c *Config)
	}{
		{
			name: "defaults",
			setup: func() {
				viper.Reset()
				SetDefaults()
			},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, "#", c.Input.CommentPrefix)
				assert.True(t, c.Input.SkipEmpty)
				assert.Equal(t, []string{".txt", ".log", ".csv"}, c.Input.Extensions)
				assert.Equal(t, ".out", c.Output.Suffix)
				assert.Equal(t, []string{"."}, c.Watch.Paths)
				assert.Equal(t, 300*time.Millisecond, c.Watch.Debounce)
				assert.Equal(t, "localhost:8080", c.Server.Address())
				assert.Equal(t, "info", c.Logging.Level)
			},
		},
		{
			name: "templates and overrides",
			setup: func() {
				viper.Reset()
				SetDefaults()
				viper.Set("templates.source", "<a> <b>")
				viper.Set("templates.target", "<b>,<a>")
				viper.Set("output.quote", true)
				viper.Set("input.extensions", []string{"md", ".txt"})
				viper.Set("watch.debounce", "1s")
			},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, "<a> <b>", c.Templates.Source)
				assert.Equal(t, "<b>,<a>", c.Templates.Target)
				assert.True(t, c.Output.Quote)
				assert.Equal(t, []string{".md", ".txt"}, c.Input.Extensions)
				assert.Equal(t, time.Second, c.Watch.Debounce)
			},
		},
		{
			name: "invalid port",
			setup: func() {
				viper.Reset()
				viper.Set("server.port", 70000)
			},
			expectError: true,
		},
		{
			name: "unknown log level",
			setup: func() {
				viper.Reset()
				viper.Set("logging.level", "loud")
			},
			expectError: true,
		},
		{
			name: "unknown log format",
			setup: func() {
				viper.Reset()
				viper.Set("logging.format", "xml")
			},
			expectError: true,
		},
		{
			name: "watch path traversal",
			setup: func() {
				viper.Reset()
				viper.Set("watch.paths", []string{"../outside"})
			},
			expectError: true,
		},
		{
			name: "dangerous host",
			setup: func() {
				viper.Reset()
				viper.Set("server.host", "localhost;rm")
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			defer viper.Reset()

			c, err := Load()
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, c)
				return
			}
			require.NoError(t, err)
			tt.check(t, c)
		})
	}
}

func TestLoad_FromFile(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	SetDefaults()

	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFileName)
	content := `templates:
  source: "<date> <pulse>"
  target: "<pulse>;<date>"
output:
  suffix: ".csv"
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	viper.SetConfigFile(path)
	require.NoError(t, viper.ReadInConfig())

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "<date> <pulse>", c.Templates.Source)
	assert.Equal(t, ".csv", c.Output.Suffix)
	assert.Equal(t, 9090, c.Server.Port)
}

func TestLoad_Env(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	SetDefaults()

	t.Setenv("RESHAPE_OUTPUT_SUFFIX", ".tsv")
	BindEnv()

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ".tsv", c.Output.Suffix)
}

func TestValidateConfigWithDetails(t *testing.T) {
	tests := []struct {
		name         string
		config       Config
		wantValid    bool
		wantField    string
		wantWarnings bool
	}{
		{
			name: "valid",
			config: Config{Templates: TemplatesConfig{
				Source: "<a> <b>",
				Target: "<b>,<a>",
			}},
			wantValid: true,
		},
		{
			name:      "missing source",
			config:    Config{},
			wantField: "templates.source",
		},
		{
			name:      "bad source",
			config:    Config{Templates: TemplatesConfig{Source: "<a", Target: "<a>"}},
			wantField: "templates.source",
		},
		{
			name:      "unknown target variable",
			config:    Config{Templates: TemplatesConfig{Source: "<a>", Target: "<b>"}},
			wantField: "templates.target",
		},
		{
			name:         "duplicate source names warn",
			config:       Config{Templates: TemplatesConfig{Source: "<a> <a>", Target: "<a>"}},
			wantValid:    true,
			wantWarnings: true,
		},
		{
			name: "non postgres database url",
			config: Config{
				Templates: TemplatesConfig{Source: "<a>", Target: "<a>"},
				Output:    OutputConfig{DatabaseURL: "mysql://x"},
			},
			wantField: "output.database_url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateConfigWithDetails(&tt.config)
			assert.Equal(t, tt.wantValid, result.Valid)
			assert.Equal(t, tt.wantWarnings, result.HasWarnings())
			if tt.wantField != "" {
				require.True(t, result.HasErrors())
				assert.Equal(t, tt.wantField, result.Errors[0].Field)
				assert.Contains(t, result.String(), tt.wantField)
			}
		})
	}
}
