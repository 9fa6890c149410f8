// Package cli: deploy.go implements the deployment, run by both
// "bank-deploy" and "bank-deploy deploy".
//
// The command wires the Docker client, the compose tool, the port
// scanner and the health poller into an orchestrator.Deployer and runs
// its nine steps. The summary is printed as text by the last step, or
// as one JSON document after the run when --json is set.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/bank-deploy/internal/config"
	"github.com/shinji-kodama/bank-deploy/internal/docker"
	"github.com/shinji-kodama/bank-deploy/internal/health"
	"github.com/shinji-kodama/bank-deploy/internal/model"
	"github.com/shinji-kodama/bank-deploy/internal/orchestrator"
	"github.com/shinji-kodama/bank-deploy/internal/port"
)

// NewDeployCommand creates the "deploy" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewDeployCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "deploy",
		Short: "Build, start and health-check all services",
		Long: `Deploy the banking demo application.

Steps, in order:
  1. environment validation  docker, docker compose, daemon reachable
  2. port availability       stop a previous deployment holding 80/3000/8080
  3. file validation         docker-compose.yml, nginx.conf, service dirs
  4. cleanup                 docker compose down -v (errors ignored)
  5. build and start         docker compose up --build -d
  6. post-deploy validation  the banking-backend container is running
  7. health checks           backend, then frontend, answer over HTTP
  8. image inspection        nginx:alpine metadata written to image_inspect.json
  9. summary

Examples:
  bank-deploy
  bank-deploy deploy --project-dir ./bank-app
  bank-deploy deploy --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeploy(cmd.Context())
		},
	}
}

// runDeploy is the main logic function for the deploy command.
func runDeploy(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	deployer := orchestrator.NewDeployer(deployOptions(cfg), orchestrator.Deps{
		Connect: func(ctx context.Context) (orchestrator.Daemon, error) {
			c, err := docker.NewClient(cfg.Docker.Host)
			if err != nil {
				return nil, err
			}
			return c, nil
		},
		Composer: docker.NewCompose(cfg.ProjectDir, cfg.ProjectName(), cfg.ComposeFilePath()),
		Ports:    port.NewScanner(),
		Health: health.NewPoller(
			health.NewHTTPProber(cfg.Health.Timeout),
			cfg.Health.MaxAttempts,
			cfg.Health.Delay,
			logger.With().Str("step", orchestrator.StepHealth).Logger(),
		),
		Print: func(report *model.Report) error {
			// In JSON mode the whole report is printed once the run ends.
			if IsJSONOutput() {
				return nil
			}
			return printDeploySummaryText(os.Stdout, report)
		},
	}, logger)

	report, runErr := deployer.Run(ctx)

	if IsJSONOutput() {
		data, err := json.MarshalIndent(newDeployResultJSON(report, runErr), "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		fmt.Println(string(data))
	}

	if !IsJSONOutput() {
		for _, w := range report.Warnings() {
			logger.Warn().Str("step", w.Name).Msg(w.Message())
		}
	}

	if runErr != nil {
		if orchestrator.IsHealthFailure(runErr) {
			logger.Warn().Msgf("containers were left running for inspection: docker compose -f %s logs", cfg.ComposeFilePath())
		}
		return runErr
	}
	return nil
}

// deployOptions translates the configuration into orchestrator options.
func deployOptions(cfg *config.Config) orchestrator.Options {
	return orchestrator.Options{
		ProjectDir:     cfg.ProjectDir,
		ComposeFile:    cfg.ComposeFilePath(),
		ProjectName:    cfg.ProjectName(),
		RequiredFiles:  cfg.Files.Required,
		RequiredDirs:   cfg.Files.RequiredDir,
		Ports:          cfg.Ports.Required,
		PortSettle:     cfg.Ports.Settle,
		DeploySettle:   cfg.Deploy.Settle,
		ContainerName:  cfg.Containers.RequiredName,
		ImageReference: cfg.Containers.ImageReference,
		Targets:        healthTargets(cfg),
		BaseImage:      cfg.Image.Name,
		ImageOutput:    cfg.ImageOutputPath(),
	}
}

// deployResultJSON is the JSON output structure of the deploy command.
type deployResultJSON struct {
	Success   bool                    `json:"success"`
	Project   string                  `json:"project"`
	Steps     []deployStepJSON        `json:"steps"`
	Container string                  `json:"containerId,omitempty"`
	Health    []model.HealthResult    `json:"health"`
	Image     *model.ImageMetadata    `json:"image,omitempty"`
	Services  []model.ServiceEndpoint `json:"services"`
	NextSteps []string                `json:"nextSteps,omitempty"`

	// Warnings are "step: error" lines of steps that failed without
	// halting the run.
	Warnings []string `json:"warnings"`
}

// deployStepJSON is one step of the run. Unlike model.StepResult it
// carries the error text, which does not marshal on its own.
type deployStepJSON struct {
	Name       string `json:"name"`
	Outcome    string `json:"outcome"`
	DurationMS int64  `json:"durationMs"`
	Error      string `json:"error,omitempty"`
}

func newDeployResultJSON(report *model.Report, runErr error) deployResultJSON {
	result := deployResultJSON{
		Success:   runErr == nil && !report.Failed(),
		Project:   report.Project,
		Steps:     make([]deployStepJSON, 0, len(report.Steps)),
		Container: report.ContainerID,
		// Use empty slices instead of nil so JSON shows [] instead of null.
		Health:    make([]model.HealthResult, 0, len(report.Health)),
		Image:     report.Image,
		Services:  make([]model.ServiceEndpoint, 0, len(report.Services)),
		NextSteps: report.NextSteps,
		Warnings:  make([]string, 0),
	}
	for _, w := range report.Warnings() {
		result.Warnings = append(result.Warnings, w.Name+": "+w.Message())
	}
	for _, s := range report.Steps {
		result.Steps = append(result.Steps, deployStepJSON{
			Name:       s.Name,
			Outcome:    s.Outcome.String(),
			DurationMS: s.Duration.Milliseconds(),
			Error:      s.Message(),
		})
	}
	result.Health = append(result.Health, report.Health...)
	result.Services = append(result.Services, report.Services...)
	return result
}

// printDeploySummaryText writes the human-readable summary:
//
//	Deployment of bank-app complete.
//
//	SERVICE           SOURCE         URLS
//	banking-backend   build          http://localhost:8080
//	nginx             nginx:alpine   http://localhost
//
//	HEALTH
//	backend    http://localhost:8080/api/auth/login   healthy after 3/30 attempts
//	...
func printDeploySummaryText(w io.Writer, report *model.Report) error {
	fmt.Fprintf(w, "\nDeployment of %s complete.\n\n", report.Project)

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "SERVICE\tSOURCE\tURLS")
	for _, s := range report.Services {
		source := s.Image
		if s.Build {
			source = "build"
		}
		urls := strings.Join(s.URLs, " ")
		if urls == "" {
			urls = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Name, source, urls)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(report.Health) > 0 {
		fmt.Fprintln(w, "\nHEALTH")
		tw = tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
		for _, h := range report.Health {
			state := "unhealthy"
			if h.Healthy {
				state = "healthy"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s after %d/%d attempts\n",
				h.Target.Name, h.Target.URL, state, h.Attempts, h.MaxAttempts)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if report.ContainerID != "" {
		fmt.Fprintf(w, "\nBackend container: %s\n", model.ShortID(report.ContainerID))
	}

	if img := report.Image; img != nil {
		fmt.Fprintf(w, "\nBase image %s\n", img.Reference)
		fmt.Fprintf(w, "  tags:           %s\n", strings.Join(img.Tags, ", "))
		fmt.Fprintf(w, "  created:        %s\n", img.Created.Format(time.RFC3339))
		fmt.Fprintf(w, "  os/arch:        %s/%s\n", img.OS, img.Architecture)
		fmt.Fprintf(w, "  exposed ports:  %s\n", strings.Join(img.ExposedPorts, ", "))
	}

	if len(report.NextSteps) > 0 {
		fmt.Fprintln(w, "\nNext steps:")
		for i, step := range report.NextSteps {
			fmt.Fprintf(w, "  %d. %s\n", i+1, step)
		}
	}
	return nil
}
