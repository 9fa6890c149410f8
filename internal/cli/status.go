// Package cli: status.go implements the "bank-deploy status" command.
//
// The status command lists the containers of the compose project grouped
// by service and probes each health endpoint once, without retries.
// Unhealthy endpoints are reported but do not change the exit code.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/bank-deploy/internal/docker"
	"github.com/shinji-kodama/bank-deploy/internal/health"
	"github.com/shinji-kodama/bank-deploy/internal/model"
)

// NewStatusCommand creates the "status" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the deployment's containers and endpoint health",
		Long: `Show the containers of the deployment grouped by compose service,
and probe the backend and frontend endpoints once.

Examples:
  bank-deploy status
  bank-deploy status --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context())
		},
	}
}

// runStatus is the main logic function for the status command.
func runStatus(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	// Connect to Docker and verify the daemon is available.
	cli, err := docker.NewClient(cfg.Docker.Host)
	if err != nil {
		return model.WrapCLIError(model.ExitDockerNotRunning, "cannot connect to Docker", err)
	}
	// defer ensures the Docker client is closed when this function returns,
	// releasing the underlying HTTP connection and resources.
	defer func() { _ = cli.Close() }()

	if err := cli.Ping(ctx); err != nil {
		return model.WrapCLIError(model.ExitDockerNotRunning, "cannot connect to Docker", err)
	}
	logger.Debug().Msg("connected to Docker daemon")

	containers, err := cli.ListProjectContainers(ctx, cfg.ProjectName())
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to list containers", err)
	}
	logger.Debug().Int("count", len(containers)).Msg("found project containers")

	poller := health.NewPoller(health.NewHTTPProber(cfg.Health.Timeout), 1, 0, logger)
	results := make([]model.HealthResult, 0, 2)
	for _, target := range healthTargets(cfg) {
		res, err := poller.CheckOnce(ctx, target)
		if err != nil {
			logger.Debug().Err(err).Str("target", target.Name).Msg("probe failed")
		}
		results = append(results, res)
	}

	groups := docker.GroupContainersByService(containers)
	if IsJSONOutput() {
		data, _ := json.MarshalIndent(newStatusJSON(cfg.ProjectName(), groups, results), "", "  ")
		fmt.Println(string(data))
		return nil
	}
	return printStatusText(os.Stdout, cfg.ProjectName(), groups, results)
}

// statusJSON is the JSON output structure of the status command.
type statusJSON struct {
	Project  string              `json:"project"`
	Services []statusServiceJSON `json:"services"`
	Health   []statusHealthJSON  `json:"health"`
}

type statusServiceJSON struct {
	Name       string                `json:"name"`
	Containers []model.ContainerInfo `json:"containers"`
}

type statusHealthJSON struct {
	Name    string `json:"name"`
	URL     string `json:"url"`
	Healthy bool   `json:"healthy"`
}

func newStatusJSON(project string, groups map[string][]model.ContainerInfo, results []model.HealthResult) statusJSON {
	out := statusJSON{
		Project: project,
		// Use empty slices instead of nil so JSON shows [] instead of null.
		Services: make([]statusServiceJSON, 0, len(groups)),
		Health:   make([]statusHealthJSON, 0, len(results)),
	}
	for _, name := range docker.ServiceNames(groups) {
		out.Services = append(out.Services, statusServiceJSON{Name: name, Containers: groups[name]})
	}
	for _, r := range results {
		out.Health = append(out.Health, statusHealthJSON{
			Name:    r.Target.Name,
			URL:     r.Target.URL,
			Healthy: r.Healthy,
		})
	}
	return out
}

// printStatusText writes the status as aligned tables:
//
//	SERVICE           CONTAINER      NAME                         STATE     PORTS
//	banking-backend   4f2a9c1e7b3d   bank-app-banking-backend-1   running   8080
//
//	ENDPOINT   URL                                    HEALTHY
//	backend    http://localhost:8080/api/auth/login   yes
func printStatusText(w io.Writer, project string, groups map[string][]model.ContainerInfo, results []model.HealthResult) error {
	if len(groups) == 0 {
		fmt.Fprintf(w, "No containers found for project %q.\n", project)
	} else {
		tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
		fmt.Fprintln(tw, "SERVICE\tCONTAINER\tNAME\tSTATE\tPORTS")
		for _, service := range docker.ServiceNames(groups) {
			name := service
			if name == "" {
				name = "-"
			}
			for _, c := range groups[service] {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					name, c.ShortID(), c.ContainerName, c.State, model.FormatPorts(c.Ports))
			}
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "ENDPOINT\tURL\tHEALTHY")
	for _, r := range results {
		healthy := "no"
		if r.Healthy {
			healthy = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Target.Name, r.Target.URL, healthy)
	}
	return tw.Flush()
}
