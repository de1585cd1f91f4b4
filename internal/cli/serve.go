package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JBoggsy/ues-sub000/internal/api"
	"github.com/JBoggsy/ues-sub000/internal/config"
	"github.com/JBoggsy/ues-sub000/internal/modality"
	"github.com/JBoggsy/ues-sub000/internal/sim"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	ConfigPath string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the simulation HTTP server",
		Long: `Start the simulator and expose its control API over HTTP.

The server loads its configuration from a YAML file plus UES_-prefixed
environment variables, creates the configured modality states, and
serves the simulation control endpoints until interrupted.

Example:
  ues serve --config ./ues.yaml
  ues serve --config ./ues.yaml --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "path to config file (optional)")

	return cmd
}

func serve(opts *ServeOptions, cmd *cobra.Command) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	configureLogging(cfg.Logging.Level, opts.Verbose)

	engine, err := buildEngine(cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build simulation", err)
	}

	// Setup signal handling for graceful shutdown. Use the command's
	// context if available (for testing), otherwise create one.
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	srv := api.New(cfg.Server.Addr(), engine, cfg.Server.Mode)

	slog.Info("server starting", "addr", cfg.Server.Addr(), "modalities", cfg.Simulation.Modalities)
	fmt.Fprintf(cmd.OutOrStdout(), "Simulation server listening on %s\n", cfg.Server.Addr())
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")

	if err := srv.Run(ctx); err != nil {
		return WrapExitError(ExitFailure, "server error", err)
	}

	if engine.Running() {
		summary := engine.Stop()
		slog.Info("simulation stopped", "final_time", summary.FinalTime, "events", summary.EventCounts)
	}
	slog.Info("server stopped gracefully")
	return nil
}

// buildEngine assembles a simulation engine from configuration and
// starts it when auto-advance is configured.
func buildEngine(cfg *config.Config) (*sim.Engine, error) {
	start, err := cfg.Simulation.ParsedStartTime()
	if err != nil {
		return nil, err
	}
	tick, err := cfg.Simulation.ParsedTickInterval()
	if err != nil {
		return nil, err
	}

	states, err := modality.NewStates(cfg.Simulation.Modalities)
	if err != nil {
		return nil, err
	}

	clock := sim.NewClock(start)
	env, err := sim.NewEnvironment(clock, states)
	if err != nil {
		return nil, err
	}

	engine := sim.NewEngine(clock, env, sim.NewEventQueue(), sim.WithTickInterval(tick))
	if err := engine.Start(cfg.Simulation.AutoAdvance, cfg.Simulation.TimeScale); err != nil {
		return nil, err
	}
	return engine, nil
}

// configureLogging installs the default slog handler. The verbose flag
// wins over the configured level.
func configureLogging(level string, verbose bool) {
	logLevel := slog.LevelInfo
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	if verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}
