package cli

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/JBoggsy/ues-sub000/internal/harness"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
}

// RunReport is the JSON payload for a scenario run.
type RunReport struct {
	Scenario  string   `json:"scenario"`
	Passed    bool     `json:"passed"`
	FinalTime string   `json:"final_time"`
	Steps     int      `json:"steps"`
	Errors    []string `json:"errors,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>...",
		Short: "Run scenario files against a fresh simulation",
		Long: `Run one or more scenario YAML files.

Each scenario gets a fresh deterministic simulation: its events are
scheduled, its time-control steps executed in order, and its assertions
checked. The command fails if any scenario's assertions fail.

Example:
  ues run ./scenarios/morning.yaml
  ues run ./scenarios/*.yaml --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args, cmd)
		},
	}

	return cmd
}

func runScenarios(opts *RunOptions, paths []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	logLevel := slog.LevelWarn
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	reports := make([]RunReport, 0, len(paths))
	failed := 0
	for _, path := range paths {
		scenario, err := harness.LoadScenario(path)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to load %s", path), err)
		}

		formatter.VerboseLog("Running scenario %s (%d events, %d steps)",
			scenario.Name, len(scenario.Events), len(scenario.Steps))

		result, err := harness.Run(scenario)
		if err != nil {
			return WrapExitError(ExitFailure, fmt.Sprintf("scenario %s failed to run", scenario.Name), err)
		}

		if !result.Passed() {
			failed++
		}
		reports = append(reports, RunReport{
			Scenario:  scenario.Name,
			Passed:    result.Passed(),
			FinalTime: result.FinalTime.Format(time.RFC3339),
			Steps:     len(result.Trace),
			Errors:    result.Errors,
		})
	}

	if err := outputRunReports(formatter, reports); err != nil {
		return err
	}
	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenario(s) failed", failed, len(reports)))
	}
	return nil
}

func outputRunReports(f *OutputFormatter, reports []RunReport) error {
	if f.Format == "json" {
		return f.Success(reports)
	}

	for _, r := range reports {
		status := "PASS"
		if !r.Passed {
			status = "FAIL"
		}
		fmt.Fprintf(f.Writer, "%s  %s (final time %s, %d steps)\n",
			status, r.Scenario, r.FinalTime, r.Steps)
		for _, msg := range r.Errors {
			fmt.Fprintf(f.Writer, "      %s\n", msg)
		}
	}
	return nil
}
