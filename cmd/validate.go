package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/reshape/internal/config"
)

// errInvalidConfig is returned after the report is printed so the exit
// status reflects the result.
var errInvalidConfig = errors.New("configuration is invalid")

var validateFormat = newFormatValue("text", "text", "json", "yaml")

// validateCmd represents the validate command.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check that the configured templates compile together",
	Long: `Validate the merged configuration (file, environment and flags):

- Both templates are set and have balanced brackets
- Every target placeholder names a source placeholder
- Duplicate source names, which resolve to their first occurrence
- Output directory and database URL settings

Examples:
  reshape validate                               # Check .reshape.yml
  reshape validate -s '<a>,<b>' -t '<b> <a>'     # Check templates directly
  reshape validate --format json                 # Machine-readable report`,
	PreRunE: bindFlags,
	RunE:    runValidateCommand,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	addTemplateFlags(validateCmd)
	validateCmd.Flags().Bool("loose-whitespace", false, "Let whitespace in the source template match any run of whitespace")
	validateCmd.Flags().VarP(validateFormat, "format", "f", "Output format (text, json, yaml)")
}

// ValidationIssue is one reported problem.
type ValidationIssue struct {
	Field       string   `json:"field" yaml:"field"`
	Message     string   `json:"message" yaml:"message"`
	Suggestions []string `json:"suggestions,omitempty" yaml:"suggestions,omitempty"`
}

// ValidationReport is the validate command's output.
type ValidationReport struct {
	Valid           bool              `json:"valid" yaml:"valid"`
	SourceVariables []string          `json:"source_variables,omitempty" yaml:"source_variables,omitempty"`
	TargetVariables []string          `json:"target_variables,omitempty" yaml:"target_variables,omitempty"`
	Errors          []ValidationIssue `json:"errors" yaml:"errors"`
	Warnings        []ValidationIssue `json:"warnings" yaml:"warnings"`
}

func runValidateCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	report, result := buildValidationReport(cfg)
	out := cmd.OutOrStdout()

	switch validateFormat.String() {
	case "json":
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(report); err != nil {
			return err
		}
	case "yaml":
		encoder := yaml.NewEncoder(out)
		if err := encoder.Encode(report); err != nil {
			return err
		}
		if err := encoder.Close(); err != nil {
			return err
		}
	default:
		outputValidationText(out, report, result)
	}

	if !report.Valid {
		return errInvalidConfig
	}
	return nil
}

func buildValidationReport(cfg *config.Config) (ValidationReport, *config.ValidationResult) {
	result := config.ValidateConfigWithDetails(cfg)

	report := ValidationReport{
		Valid:    result.Valid,
		Errors:   convertIssues(result.Errors),
		Warnings: convertIssues(result.Warnings),
	}

	if result.Valid {
		if parser, err := compileTemplates(cfg); err == nil {
			report.SourceVariables = parser.SourceVariables()
			report.TargetVariables = parser.TargetVariables()
		}
	}
	return report, result
}

func convertIssues(in []config.ValidationError) []ValidationIssue {
	out := make([]ValidationIssue, 0, len(in))
	for _, e := range in {
		out = append(out, ValidationIssue{Field: e.Field, Message: e.Message, Suggestions: e.Suggestions})
	}
	return out
}

func outputValidationText(w io.Writer, report ValidationReport, result *config.ValidationResult) {
	if result.HasErrors() || result.HasWarnings() {
		fmt.Fprint(w, result.String())
	}

	if report.Valid {
		fmt.Fprintln(w, "✅ Templates compile")
		fmt.Fprintf(w, "  source: %s\n", strings.Join(report.SourceVariables, ", "))
		fmt.Fprintf(w, "  target: %s\n", strings.Join(report.TargetVariables, ", "))
	}
}
