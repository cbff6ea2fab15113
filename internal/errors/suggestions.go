package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Suggestion represents a suggestion for fixing an error
type Suggestion struct {
	Title       string
	Description string
	Example     string
}

// SuggestionContext provides context for generating suggestions
type SuggestionContext struct {
	SourceVariables []string
	ConfigPath      string
}

// Suggest returns fix hints for err. ctx may be nil.
func Suggest(err error, ctx *SuggestionContext) []Suggestion {
	var e *Error
	if !errors.As(err, &e) {
		return nil
	}

	switch e.Kind {
	case KindEmptyTemplate:
		return []Suggestion{{
			Title:       "Enter a template",
			Description: "Templates mix literal text with <name> placeholders",
			Example:     "<date> <time>: <systolic>/<diastolic> <pulse>",
		}}
	case KindUnbalancedBrackets:
		return []Suggestion{{
			Title:       "Balance the angle brackets",
			Description: "Every '<' needs a matching '>' and brackets cannot be nested",
		}}
	case KindEmptyVariableName:
		return []Suggestion{{
			Title:       "Name the placeholder",
			Description: "'<>' is not a placeholder; write a name between the brackets",
			Example:     "<value>",
		}}
	case KindNoVariablesFound:
		return []Suggestion{{
			Title:       "Add at least one placeholder",
			Description: "A source template without placeholders extracts nothing",
		}}
	case KindUnknownVariable:
		return unknownVariableSuggestions(e.Variable, ctx)
	case KindTooFewSourceFields, KindNothingToExtract:
		return []Suggestion{{
			Title:       "Check the line against the source template",
			Description: "The line did not provide every field the target template uses",
		}}
	case KindConfig:
		path := ".reshape.yml"
		if ctx != nil && ctx.ConfigPath != "" {
			path = ctx.ConfigPath
		}
		return []Suggestion{{
			Title:       "Check configuration file",
			Description: "Verify " + path + " is valid YAML",
			Example:     "templates:\n  source: \"<a>,<b>\"\n  target: \"<b>;<a>\"",
		}}
	}

	return nil
}

func unknownVariableSuggestions(name string, ctx *SuggestionContext) []Suggestion {
	suggestions := []Suggestion{{
		Title:       "Use a variable declared in the source template",
		Description: "Target placeholders can only reference source placeholders",
	}}

	if ctx == nil || len(ctx.SourceVariables) == 0 {
		return suggestions
	}

	suggestions = append(suggestions, Suggestion{
		Title:       "Available variables",
		Description: strings.Join(ctx.SourceVariables, ", "),
	})

	if best, ok := closest(name, ctx.SourceVariables); ok {
		suggestions = append(suggestions, Suggestion{
			Title:   fmt.Sprintf("Did you mean '%s'?", best),
			Example: "<" + best + ">",
		})
	}

	return suggestions
}

// closest returns the candidate with the smallest edit distance to name,
// provided it is close enough to be a plausible typo.
func closest(name string, candidates []string) (string, bool) {
	best := ""
	bestDist := -1
	for _, c := range candidates {
		d := levenshtein(strings.ToLower(name), strings.ToLower(c))
		if bestDist < 0 || d < bestDist {
			best, bestDist = c, d
		}
	}

	limit := len([]rune(name))/2 + 1
	if bestDist < 0 || bestDist > limit {
		return "", false
	}
	return best, true
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// FormatSuggestions formats suggestions into a user-friendly string
func FormatSuggestions(title string, suggestions []Suggestion) string {
	if len(suggestions) == 0 {
		return title
	}

	var output strings.Builder
	output.WriteString(title + "\n\n")
	output.WriteString("Suggestions:\n")

	for i, suggestion := range suggestions {
		output.WriteString(fmt.Sprintf("  %d. %s\n", i+1, suggestion.Title))
		if suggestion.Description != "" {
			output.WriteString(fmt.Sprintf("     %s\n", suggestion.Description))
		}
		if suggestion.Example != "" {
			output.WriteString(fmt.Sprintf("     Example: %s\n", suggestion.Example))
		}
		output.WriteString("\n")
	}

	return output.String()
}

// EnhancedError wraps an error with suggestions
type EnhancedError struct {
	OriginalError error
	Title         string
	Suggestions   []Suggestion
}

// Error implements the error interface
func (e *EnhancedError) Error() string {
	return FormatSuggestions(e.Title, e.Suggestions)
}

// Unwrap returns the original error
func (e *EnhancedError) Unwrap() error {
	return e.OriginalError
}

// NewEnhancedError creates a new enhanced error with suggestions
func NewEnhancedError(title string, originalError error, suggestions []Suggestion) *EnhancedError {
	return &EnhancedError{
		OriginalError: originalError,
		Title:         title,
		Suggestions:   suggestions,
	}
}
