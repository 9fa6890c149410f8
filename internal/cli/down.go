// Package cli: down.go implements the "bank-deploy down" command.
//
// The down command stops and removes the deployment's containers and
// networks through `docker compose down`. Volumes are kept unless
// --volumes is given.
package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/bank-deploy/internal/docker"
	"github.com/shinji-kodama/bank-deploy/internal/model"
)

// downFlags holds the flag values for the down command.
type downFlags struct {
	// volumes also removes named and anonymous volumes.
	volumes bool
}

// NewDownCommand creates the "down" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewDownCommand() *cobra.Command {
	flags := &downFlags{}

	cmd := &cobra.Command{
		Use:   "down",
		Short: "Stop and remove the deployment",
		Long: `Stop and remove all containers and networks of the deployment.

Volumes are preserved unless --volumes is given.

Examples:
  bank-deploy down
  bank-deploy down --volumes`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runDown(cmd.Context(), flags)
		},
	}

	cmd.Flags().BoolVar(&flags.volumes, "volumes", false, "Also remove volumes")

	return cmd
}

// runDown is the main logic function for the down command.
func runDown(ctx context.Context, flags *downFlags) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	composer := docker.NewCompose(cfg.ProjectDir, cfg.ProjectName(), cfg.ComposeFilePath())
	logger.Debug().
		Str("project", cfg.ProjectName()).
		Bool("volumes", flags.volumes).
		Msg("stopping deployment")

	if err := composer.Down(ctx, flags.volumes); err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to stop the deployment", err)
	}

	printDownResult(cfg.ProjectName(), flags.volumes)
	return nil
}

// printDownResult outputs the result in text or JSON format.
func printDownResult(project string, volumes bool) {
	if IsJSONOutput() {
		result := map[string]interface{}{
			"project":        project,
			"status":         "removed",
			"volumesRemoved": volumes,
		}
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
		return
	}

	if volumes {
		fmt.Printf("Deployment %q removed, including volumes.\n", project)
		return
	}
	fmt.Printf("Deployment %q removed.\n", project)
}
