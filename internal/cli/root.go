// Package cli implements the cobra-based CLI commands for bank-deploy.
//
// The root command runs the full deployment when invoked without a
// subcommand. The down and status subcommands are defined in their own
// files. This file defines the root command, the global flags, and the
// translation of errors into process exit codes.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/shinji-kodama/bank-deploy/internal/config"
	"github.com/shinji-kodama/bank-deploy/internal/logging"
	"github.com/shinji-kodama/bank-deploy/internal/model"
	"github.com/shinji-kodama/bank-deploy/internal/orchestrator"
)

// Global flag variables shared across all subcommands.
// These are bound to cobra persistent flags on the root command,
// which makes them available to every subcommand automatically.
var (
	// configPath is an optional configuration file (YAML or JSON/JSONC).
	configPath string

	// projectDir overrides the configured project directory.
	projectDir string

	// jsonOutput controls whether command output is formatted as JSON.
	// When true, all output uses structured JSON format for machine consumption.
	// When false (default), output uses human-readable text format.
	jsonOutput bool

	// verbose forces debug-level logging.
	verbose bool

	// noColor disables colored log output.
	noColor bool
)

// version, commit, and date are set at build time via ldflags.
// They are injected from the main package to display version information.
var (
	// Version is the semantic version of the binary (e.g., "1.0.0").
	Version = "dev"

	// Commit is the Git commit hash the binary was built from.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// NewRootCommand creates and configures the root cobra command.
// This is the entry point for the entire CLI application.
//
// Invoked without a subcommand, the root command runs the deployment,
// so `bank-deploy` alone behaves like `bank-deploy deploy`.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		// Use is the one-line usage pattern shown in help output.
		Use:   "bank-deploy",
		Short: "Build, start and health-check the banking demo deployment",
		Long: `bank-deploy deploys the banking demo application with docker compose.

It validates the host, tears down the previous deployment, builds and
starts all services, waits until the backend and frontend answer over
HTTP, inspects the nginx base image and prints a summary.

Running bank-deploy without a subcommand performs the deployment.`,

		Args: cobra.NoArgs,

		// SilenceUsage prevents cobra from printing usage on every error.
		// We handle error output ourselves for cleaner UX.
		SilenceUsage: true,

		// SilenceErrors prevents cobra from printing errors automatically.
		// We format errors ourselves (text or JSON based on --json flag).
		SilenceErrors: true,

		// Version is displayed when --version flag is used.
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),

		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeploy(cmd.Context())
		},
	}

	// PersistentFlags are inherited by all subcommands. This is the cobra
	// mechanism for global flags: any flag defined here is automatically
	// available in every subcommand without re-declaration.
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a config file (YAML, JSON or JSONC)")
	rootCmd.PersistentFlags().StringVar(&projectDir, "project-dir", "", "Project directory (default: current directory)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	// Register subcommands. Each subcommand is defined in its own file
	// (deploy.go, down.go, status.go) and returns a *cobra.Command.
	rootCmd.AddCommand(NewDeployCommand())
	rootCmd.AddCommand(NewDownCommand())
	rootCmd.AddCommand(NewStatusCommand())

	return rootCmd
}

// Execute runs the root command and handles exit codes.
// This is the main entry point called from main.go.
//
// SIGINT and SIGTERM cancel the command's context, which interrupts
// settle waits and health polling. Errors are translated into OS exit
// codes by toCLIError.
func Execute(rootCmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		cliErr := toCLIError(err)
		printError(cliErr.Message, cliErr.Err)
		os.Exit(int(cliErr.Code))
	}
}

// toCLIError maps any command error to a CLIError. A failed deployment
// step carries the exit code of that step; other errors default to
// exit code 1.
func toCLIError(err error) *model.CLIError {
	var stepErr *orchestrator.StepError
	if errors.As(err, &stepErr) {
		return model.WrapCLIError(stepErr.Code, stepErr.Step+" failed", stepErr.Err)
	}

	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		return cliErr
	}
	return model.NewCLIError(model.ExitGeneralError, err.Error())
}

// printError outputs an error message in the appropriate format
// (JSON or text) based on the --json global flag.
func printError(message string, underlying error) {
	if jsonOutput {
		errObj := map[string]interface{}{
			"error": map[string]interface{}{
				"message": message,
			},
		}
		if underlying != nil {
			if errMap, ok := errObj["error"].(map[string]interface{}); ok {
				errMap["detail"] = underlying.Error()
			}
		}
		// We write to stderr for errors, even in JSON mode, because stdout
		// is reserved for successful command output.
		data, _ := json.MarshalIndent(errObj, "", "  ")
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		// Text format: "Error: <message>" on stderr.
		if underlying != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", message, underlying)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %s\n", message)
		}
	}
}

// loadConfig loads the configuration and applies the global flags on top.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitGeneralError, "invalid configuration", err)
	}
	if projectDir != "" {
		cfg.ProjectDir = projectDir
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	if noColor {
		cfg.Log.NoColor = true
	}
	return cfg, nil
}

// newLogger creates the operator-facing logger. Logs go to stderr so that
// stdout carries only the command's result.
func newLogger(cfg *config.Config) zerolog.Logger {
	return logging.New(os.Stderr, logging.Options{
		Level:   cfg.Log.Level,
		NoColor: cfg.Log.NoColor,
	})
}

// IsJSONOutput returns whether the --json flag is set.
// Subcommands use this to decide their output format.
func IsJSONOutput() bool {
	return jsonOutput
}

// healthTargets returns the configured endpoints in probing order:
// backend first, then frontend.
func healthTargets(cfg *config.Config) []model.HealthTarget {
	return []model.HealthTarget{
		{Name: "backend", URL: cfg.Health.BackendURL},
		{Name: "frontend", URL: cfg.Health.FrontendURL},
	}
}
