package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JBoggsy/ues-sub000/internal/harness"
	"github.com/JBoggsy/ues-sub000/internal/modality"
)

// ValidationResult holds validation results for one scenario file.
type ValidationResult struct {
	Path   string   `json:"path"`
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scenario.yaml>...",
		Short: "Validate scenario files without running them",
		Long: `Validate scenario YAML files without executing them.

Checks YAML structure, required fields, step shapes, assertion shapes,
and that every event references a registered modality. Faster than run
for development feedback.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	results := make([]ValidationResult, 0, len(paths))
	invalid := 0
	for _, path := range paths {
		result := validateScenarioFile(path, formatter)
		if !result.Valid {
			invalid++
		}
		results = append(results, result)
	}

	if err := outputValidationResults(formatter, results); err != nil {
		return err
	}
	if invalid > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d file(s) invalid", invalid, len(results)))
	}
	return nil
}

func validateScenarioFile(path string, formatter *OutputFormatter) ValidationResult {
	result := ValidationResult{Path: path}

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result
	}
	formatter.VerboseLog("Parsed %s: scenario %s", path, scenario.Name)

	// Structural validation passed; check modality references too.
	registered := make(map[string]bool)
	for _, name := range modality.Names() {
		registered[name] = true
	}
	for i, name := range scenario.Modalities {
		if !registered[name] {
			result.Errors = append(result.Errors,
				fmt.Sprintf("modalities[%d]: unknown modality %q", i, name))
		}
	}
	for i, event := range scenario.Events {
		if !registered[event.Modality] {
			result.Errors = append(result.Errors,
				fmt.Sprintf("events[%d]: unknown modality %q", i, event.Modality))
			continue
		}
		input, err := modality.ParseInput(event.Modality, event.Payload)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("events[%d]: %v", i, err))
			continue
		}
		if err := input.Validate(); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("events[%d]: %v", i, err))
		}
	}

	result.Valid = len(result.Errors) == 0
	return result
}

func outputValidationResults(f *OutputFormatter, results []ValidationResult) error {
	if f.Format == "json" {
		return f.Success(results)
	}

	for _, r := range results {
		if r.Valid {
			fmt.Fprintf(f.Writer, "OK    %s\n", r.Path)
			continue
		}
		fmt.Fprintf(f.Writer, "ERROR %s\n", r.Path)
		for _, msg := range r.Errors {
			fmt.Fprintf(f.Writer, "      %s\n", msg)
		}
	}
	return nil
}
