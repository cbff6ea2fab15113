package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/reshape/internal/config"
	"github.com/conneroisu/reshape/internal/pipeline"
	"github.com/conneroisu/reshape/internal/template"
)

// errAborted is returned when the user interrupts a prompt.
var errAborted = errors.New("aborted")

const (
	actionSave  = "Save to " + config.DefaultFileName
	actionPrint = "Print the convert command"
	actionQuit  = "Quit"
)

// interactiveCmd builds the templates step by step.
var interactiveCmd = &cobra.Command{
	Use:     "interactive",
	Aliases: []string{"menu", "m"},
	Short:   "Build the templates through prompts",
	Long: `Enter the source and target templates with live validation, try them on
sample lines, then save them to .reshape.yml or print the matching convert
command.`,
	RunE: runInteractive,
}

func init() {
	rootCmd.AddCommand(interactiveCmd)
}

// prompter asks one question at a time.
type prompter interface {
	Input(message, help, def string, validate survey.Validator) (string, error)
	Confirm(message string, def bool) (bool, error)
	Select(message string, options []string) (string, error)
}

type surveyPrompter struct{}

func (surveyPrompter) Input(message, help, def string, validate survey.Validator) (string, error) {
	var out string
	prompt := &survey.Input{Message: message, Help: help, Default: def}
	var opts []survey.AskOpt
	if validate != nil {
		opts = append(opts, survey.WithValidator(validate))
	}
	if err := survey.AskOne(prompt, &out, opts...); err != nil {
		return "", translateSurveyErr(err)
	}
	return out, nil
}

func (surveyPrompter) Confirm(message string, def bool) (bool, error) {
	var out bool
	if err := survey.AskOne(&survey.Confirm{Message: message, Default: def}, &out); err != nil {
		return false, translateSurveyErr(err)
	}
	return out, nil
}

func (surveyPrompter) Select(message string, options []string) (string, error) {
	var out string
	if err := survey.AskOne(&survey.Select{Message: message, Options: options}, &out); err != nil {
		return "", translateSurveyErr(err)
	}
	return out, nil
}

func translateSurveyErr(err error) error {
	if errors.Is(err, terminal.InterruptErr) {
		return errAborted
	}
	return err
}

func runInteractive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	err = interactiveSession(surveyPrompter{}, cmd.OutOrStdout(), cfg, config.DefaultFileName)
	if errors.Is(err, errAborted) {
		fmt.Fprintln(cmd.OutOrStdout(), "Goodbye!")
		return nil
	}
	return err
}

// interactiveSession asks for the templates, lets the user try them, and
// finishes with the chosen action. cfg is updated in place.
func interactiveSession(p prompter, out io.Writer, cfg *config.Config, savePath string) error {
	opts := template.SourceOptions{LooseWhitespace: cfg.Input.LooseWhitespace}

	source, err := p.Input("Source template:",
		"Literal text with <name> placeholders, e.g. <date> <time>: <sys>/<dia>",
		cfg.Templates.Source,
		sourceValidator(opts))
	if err != nil {
		return err
	}

	parser := template.NewParser(opts)
	if err := parser.CompileSource(source); err != nil {
		return err
	}

	target, err := p.Input("Target template:",
		"Available variables: "+strings.Join(parser.SourceVariables(), ", "),
		cfg.Templates.Target,
		targetValidator(parser))
	if err != nil {
		return err
	}
	if err := parser.CompileTarget(target); err != nil {
		return err
	}

	quote, err := p.Confirm("Quote substituted values?", cfg.Output.Quote)
	if err != nil {
		return err
	}

	cfg.Templates.Source = source
	cfg.Templates.Target = target
	cfg.Output.Quote = quote

	pl := pipeline.New(parser, inputOptions(cfg), nil)
	for {
		line, err := p.Input("Sample line (empty to finish):", "", "", nil)
		if err != nil {
			return err
		}
		if line == "" {
			break
		}
		fmt.Fprintln(out, sampleResult(pl, line, quote))
	}

	action, err := p.Select("What next?", []string{actionSave, actionPrint, actionQuit})
	if err != nil {
		return err
	}

	switch action {
	case actionSave:
		if err := saveConfig(cfg, savePath); err != nil {
			return err
		}
		fmt.Fprintf(out, "✅ Saved %s\n", savePath)
	case actionPrint:
		fmt.Fprintln(out, convertCommand(cfg))
	}
	return nil
}

func sourceValidator(opts template.SourceOptions) survey.Validator {
	return func(ans interface{}) error {
		s, _ := ans.(string)
		_, err := template.CompileSource(s, opts)
		return err
	}
}

func targetValidator(parser *template.Parser) survey.Validator {
	return func(ans interface{}) error {
		s, _ := ans.(string)
		_, err := template.CompileTarget(s, &parser.Source().Variables)
		return err
	}
}

func sampleResult(pl *pipeline.Pipeline, line string, quote bool) string {
	tbl, err := pl.Load(strings.NewReader(line))
	if err != nil {
		return "  ! " + err.Error()
	}
	rows := tbl.Rows()
	if len(rows) == 0 {
		return "  (skipped)"
	}

	rec, err := pl.Record(rows[0], quote)
	if err != nil {
		return "  ! " + err.Error()
	}
	return "  → " + rec.Line
}

// saveConfig writes cfg as YAML. The database URL is left out so that
// credentials are not written to the working directory.
func saveConfig(cfg *config.Config, path string) error {
	saved := *cfg
	saved.Output.DatabaseURL = ""

	data, err := yaml.Marshal(&saved)
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func convertCommand(cfg *config.Config) string {
	args := []string{
		"reshape convert",
		"--source " + shellQuote(cfg.Templates.Source),
		"--target " + shellQuote(cfg.Templates.Target),
	}
	if cfg.Output.Quote {
		args = append(args, "--quote")
	}
	return strings.Join(args, " ")
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
