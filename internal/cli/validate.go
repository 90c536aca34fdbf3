package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/tripwire/internal/app"
)

// CLI error codes.
const (
	ErrCodeAppNotFound = "E_APP_NOT_FOUND"
	ErrCodeAppParse    = "E_APP_PARSE"
	ErrCodeAppInvalid  = "E_APP_INVALID"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                  `json:"valid"`
	App      string                `json:"app,omitempty"`
	Streams  int                   `json:"streams"`
	Triggers int                   `json:"triggers"`
	Emitters int                   `json:"emitters"`
	Errors   []app.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <app.yaml>",
		Short: "Validate an app file",
		Long: `Parse an app file and check it without running it.

Checks stream and trigger declarations, emitter targets, and compiles
every filter and condition expression.

Exit codes:
  0 - App is valid
  1 - App has validation errors
  2 - Command error (file not found, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	if _, err := os.Stat(path); err != nil {
		_ = formatter.Error(ErrCodeAppNotFound, fmt.Sprintf("app file not found: %s", path), nil)
		return WrapExitError(ExitCommandError, "app file not found", err)
	}

	formatter.VerboseLog("validating %s", path)

	def, err := app.Load(path)
	if err != nil {
		var le *app.LoadError
		if errors.As(err, &le) {
			return outputValidationErrors(formatter, path, le.Errors)
		}
		_ = formatter.Error(ErrCodeAppParse, err.Error(), nil)
		return WrapExitError(ExitFailure, "app file could not be parsed", err)
	}

	result := ValidationResult{
		Valid:    true,
		App:      def.Name,
		Streams:  len(def.Streams),
		Triggers: len(def.Triggers),
		Emitters: len(def.Emitters),
	}

	if opts.Format == "json" {
		return formatter.JSON(CLIResponse{Status: "ok", Data: result})
	}

	formatter.Pass("%s is valid", def.Name)
	formatter.Detail("%d stream(s), %d trigger(s), %d emitter(s)", result.Streams, result.Triggers, result.Emitters)
	return nil
}

func outputValidationErrors(formatter *OutputFormatter, path string, errs []app.ValidationError) error {
	message := fmt.Sprintf("%s: %d validation error(s)", path, len(errs))

	if formatter.Format == "json" {
		if err := formatter.JSON(CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
			Error:  &CLIError{Code: ErrCodeAppInvalid, Message: message},
		}); err != nil {
			return err
		}
	} else {
		formatter.Fail("%s", message)
		for _, ve := range errs {
			formatter.Detail("%s", ve.Error())
		}
	}

	return NewExitError(ExitFailure, message)
}
