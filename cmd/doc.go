// Package cmd provides the command-line interface for reshape.
//
// Every command is a Cobra command registered from its file's init function.
//
// # Available Commands
//
//   - convert: Apply the templates to a file or stdin
//   - preview: Show the extracted table and transformed lines
//   - validate: Check that the configured templates compile together
//   - watch: Convert matching files whenever they change
//   - serve: Run the live template playground
//   - interactive: Build the templates through prompts
//   - version: Print build information
//
// # Command Examples
//
//	// Reorder blood pressure readings into CSV
//	reshape convert readings.txt \
//	    --source '<date> <time>: <sys>/<dia> <pulse>' \
//	    --target '<date>,<sys>,<dia>,<pulse>'
//
//	// Inspect how lines split into fields
//	reshape preview readings.txt --format json
//
//	// Load the transformed rows into Postgres
//	reshape convert readings.txt --database-url postgres://localhost/health
//
//	// Keep .out files next to every changed .txt file
//	reshape watch ./logs
//
// # Configuration Integration
//
// Commands read settings in order of precedence:
//
//  1. Command-line flags (highest priority)
//  2. Environment variables (RESHAPE_*), including those loaded from .env
//  3. Configuration file (.reshape.yml or RESHAPE_CONFIG_FILE)
//  4. Default values (lowest priority)
package cmd
