package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/atoms-tech/gridsync/internal/schema"
)

// SchemaIssue is one problem found while compiling a table schema.
type SchemaIssue struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool          `json:"valid"`
	Tables []string      `json:"tables,omitempty"`
	Issues []SchemaIssue `json:"issues,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <schema-dir>",
		Short: "Validate CUE table schemas",
		Long: `Validate CUE table schemas without touching a store.

Compiles every table declaration, checking property kinds, select
options and name uniqueness. All problems are reported in one pass.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, schemaDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	result, loadErrors := schema.LoadDir(schemaDir, schema.LoadModeCollectAll)

	// Load-level failures (missing dir, no CUE files) are command errors.
	if result == nil {
		message := "schema load failed"
		if len(loadErrors) > 0 {
			message = loadErrors[0].Error()
		}
		_ = formatter.Error("E_SCHEMA_LOAD", message, nil)
		return NewExitError(ExitCommandError, message)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", result.FileCount, schemaDir)

	issues := make([]SchemaIssue, 0, len(loadErrors))
	for _, err := range loadErrors {
		issues = append(issues, toSchemaIssue(err))
	}

	names := make([]string, 0, len(result.Tables))
	for _, table := range result.Tables {
		formatter.VerboseLog("Compiled table %s with %d properties", table.ID, len(table.Properties))
		names = append(names, string(table.ID))
	}

	if len(issues) > 0 {
		return outputValidationIssues(formatter, names, issues)
	}
	return outputValidateSuccess(formatter, names)
}

// toSchemaIssue extracts structured fields from a compile error when
// position information is available.
func toSchemaIssue(err error) SchemaIssue {
	var compileErr *schema.CompileError
	if errors.As(err, &compileErr) {
		issue := SchemaIssue{
			Field:   compileErr.Field,
			Message: compileErr.Message,
		}
		if compileErr.Pos.IsValid() {
			issue.File = compileErr.Pos.Filename()
			issue.Line = compileErr.Pos.Line()
		}
		return issue
	}
	return SchemaIssue{Message: err.Error()}
}

func outputValidateSuccess(formatter *OutputFormatter, tables []string) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Tables: tables})
	}

	fmt.Fprintf(formatter.Writer, "✓ %d table(s) valid\n", len(tables))
	for _, name := range tables {
		fmt.Fprintf(formatter.Writer, "  %s\n", name)
	}
	return nil
}

func outputValidationIssues(formatter *OutputFormatter, tables []string, issues []SchemaIssue) error {
	if formatter.Format == "json" {
		_ = formatter.Error("E_SCHEMA_INVALID",
			fmt.Sprintf("%d schema issue(s)", len(issues)),
			ValidationResult{Valid: false, Tables: tables, Issues: issues})
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d issue(s)", len(issues)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, issue := range issues {
		if issue.File != "" {
			fmt.Fprintf(formatter.Writer, "%s:%d\n", issue.File, issue.Line)
		}
		if issue.Field != "" {
			fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", issue.Field, issue.Message)
		} else {
			fmt.Fprintf(formatter.Writer, "  %s\n\n", issue.Message)
		}
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d issue(s)", len(issues)))
}
