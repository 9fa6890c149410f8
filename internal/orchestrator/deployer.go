package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/shinji-kodama/bank-deploy/internal/compose"
	"github.com/shinji-kodama/bank-deploy/internal/docker"
	"github.com/shinji-kodama/bank-deploy/internal/model"
	"github.com/shinji-kodama/bank-deploy/internal/preflight"
)

// Step names, in execution order.
const (
	StepEnvironment = "environment validation"
	StepPorts       = "port availability"
	StepFiles       = "file validation"
	StepCleanup     = "cleanup"
	StepBuild       = "build and start"
	StepValidate    = "post-deploy validation"
	StepHealth      = "health checks"
	StepImage       = "image inspection"
	StepSummary     = "summary"
)

// Options is the fixed description of one deployment.
type Options struct {
	// ProjectDir is the root that required paths are resolved against.
	ProjectDir string

	// ComposeFile is the path of the compose file.
	ComposeFile string

	// ProjectName is the compose project name.
	ProjectName string

	RequiredFiles []string
	RequiredDirs  []string

	// Ports are the host ports the deployment claims.
	Ports []int

	// PortSettle is the wait after stopping a previous deployment that
	// held required ports.
	PortSettle time.Duration

	// DeploySettle is the wait after `compose up` before validation.
	DeploySettle time.Duration

	// ContainerName is the name filter of the container that must be
	// running after deployment.
	ContainerName string

	// ImageReference filters the images listed after deployment.
	ImageReference string

	// Targets are health-checked in order; the first one is fully
	// resolved before the next starts.
	Targets []model.HealthTarget

	// BaseImage is inspected after deployment and written to ImageOutput.
	BaseImage   string
	ImageOutput string
}

// Deployer runs the deployment steps.
type Deployer struct {
	opts   Options
	deps   Deps
	logger zerolog.Logger
}

// NewDeployer creates a Deployer. Connect, Composer, Ports and Health
// must be set; the other dependencies have defaults.
func NewDeployer(opts Options, deps Deps, logger zerolog.Logger) *Deployer {
	if deps.LookPath == nil {
		deps.LookPath = exec.LookPath
	}
	if deps.Sleep == nil {
		deps.Sleep = SleepContext
	}
	d := &Deployer{opts: opts, deps: deps, logger: logger}
	if d.deps.Print == nil {
		d.deps.Print = d.logSummary
	}
	return d
}

// deployment holds the state of a single Run.
type deployment struct {
	*Deployer

	daemon  Daemon
	project *compose.Project
	report  *model.Report
}

// Run executes the deployment. The report is returned even on failure
// and records every step's outcome; the error is a *StepError naming the
// step that halted the run.
func (d *Deployer) Run(ctx context.Context) (*model.Report, error) {
	dep := &deployment{
		Deployer: d,
		report:   &model.Report{Project: d.opts.ProjectName},
	}
	defer dep.close()

	runner := NewRunner(d.logger, dep.steps()...)
	steps, err := runner.Run(ctx)
	dep.report.Steps = steps
	return dep.report, err
}

func (dep *deployment) steps() []Step {
	return []Step{
		{Name: StepEnvironment, Policy: Abort, ExitCode: model.ExitEnvironmentInvalid, Run: dep.validateEnvironment},
		{Name: StepPorts, Policy: Warn, Run: dep.checkPorts},
		{Name: StepFiles, Policy: Abort, ExitCode: model.ExitMissingFiles, Run: dep.validateFiles},
		{Name: StepCleanup, Policy: Ignore, Run: dep.cleanup},
		{Name: StepBuild, Policy: Abort, ExitCode: model.ExitBuildFailed, Run: dep.buildAndStart},
		{Name: StepValidate, Policy: Abort, ExitCode: model.ExitContainerNotFound, Run: dep.validateDeployment},
		{Name: StepHealth, Policy: Abort, ExitCode: model.ExitHealthCheckFailed, Run: dep.checkHealth},
		{Name: StepImage, Policy: Warn, Run: dep.inspectImage},
		{Name: StepSummary, Policy: Warn, Run: dep.summarize},
	}
}

func (dep *deployment) close() {
	if dep.daemon != nil {
		_ = dep.daemon.Close()
	}
}

// validateEnvironment checks that the docker CLI and its compose plugin
// are installed and that the daemon answers.
func (dep *deployment) validateEnvironment(ctx context.Context) error {
	if err := preflight.RequireBinaries(dep.deps.LookPath, "docker"); err != nil {
		return withCode(model.ExitEnvironmentInvalid, err)
	}

	version, err := dep.deps.Composer.Version(ctx)
	if err != nil {
		return withCode(model.ExitEnvironmentInvalid, err)
	}
	dep.logger.Debug().Str("compose_version", version).Msg("docker compose found")

	daemon, err := dep.deps.Connect(ctx)
	if err != nil {
		return withCode(model.ExitDockerNotRunning, err)
	}
	dep.daemon = daemon

	if err := daemon.Ping(ctx); err != nil {
		return withCode(model.ExitDockerNotRunning, err)
	}
	return nil
}

// checkPorts stops a previous deployment when a required port is taken.
// When every port is free nothing else happens.
func (dep *deployment) checkPorts(ctx context.Context) error {
	occupied := dep.deps.Ports.OccupiedPorts(dep.opts.Ports)
	if len(occupied) == 0 {
		dep.logger.Debug().Str("ports", model.FormatPorts(dep.opts.Ports)).Msg("required ports are free")
		return nil
	}

	dep.logger.Warn().
		Str("ports", model.FormatPorts(occupied)).
		Msg("required ports in use, stopping previous deployment")

	if err := dep.deps.Composer.Down(ctx, false); err != nil {
		dep.logger.Debug().Err(err).Msg("stopping previous deployment failed")
	}
	if err := dep.deps.Sleep(ctx, dep.opts.PortSettle); err != nil {
		return err
	}

	if still := dep.deps.Ports.OccupiedPorts(occupied); len(still) > 0 {
		return &model.PortConflictError{Ports: still}
	}
	return nil
}

// validateFiles checks the required paths and parses the compose file.
func (dep *deployment) validateFiles(ctx context.Context) error {
	if err := preflight.CheckPaths(dep.opts.ProjectDir, dep.opts.RequiredFiles, dep.opts.RequiredDirs); err != nil {
		return err
	}

	project, err := compose.Load(ctx, dep.opts.ComposeFile, dep.opts.ProjectName)
	if err != nil {
		return err
	}
	dep.project = project

	names := make([]string, 0, len(project.Services))
	for _, s := range project.Services {
		names = append(names, s.Name)
	}
	dep.logger.Debug().Strs("services", names).Msg("compose file parsed")

	if _, ok := project.Service(dep.opts.ContainerName); !ok {
		dep.logger.Warn().
			Str("service", dep.opts.ContainerName).
			Msg("compose file declares no service of that name, post-deploy validation relies on the container name alone")
	}

	// Ports the compose file publishes beyond the required set were not
	// covered by the port check.
	if extra := missingPorts(project.PublishedPorts(), dep.opts.Ports); len(extra) > 0 {
		if busy := dep.deps.Ports.OccupiedPorts(extra); len(busy) > 0 {
			dep.logger.Warn().
				Str("ports", model.FormatPorts(busy)).
				Msg("ports published by the compose file are in use, starting the services may fail")
		}
	}
	return nil
}

// missingPorts returns the ports of published that are not in checked.
func missingPorts(published, checked []int) []int {
	known := make(map[int]bool, len(checked))
	for _, p := range checked {
		known[p] = true
	}
	var out []int
	for _, p := range published {
		if !known[p] {
			out = append(out, p)
		}
	}
	return out
}

// cleanup removes any previous deployment including its volumes. There
// being nothing to remove is not an error; the step policy ignores
// failures altogether.
func (dep *deployment) cleanup(ctx context.Context) error {
	return dep.deps.Composer.Down(ctx, true)
}

func (dep *deployment) buildAndStart(ctx context.Context) error {
	if err := dep.deps.Composer.Up(ctx); err != nil {
		return err
	}
	dep.logger.Info().
		Dur("settle", dep.opts.DeploySettle).
		Msg("services started, waiting for them to initialize")
	return dep.deps.Sleep(ctx, dep.opts.DeploySettle)
}

// validateDeployment lists what was deployed and resolves the required
// container. Listing failures are only logged; a missing container is fatal.
func (dep *deployment) validateDeployment(ctx context.Context) error {
	images, err := dep.daemon.ListImages(ctx, dep.opts.ImageReference)
	if err != nil {
		dep.logger.Warn().Err(err).Msg("could not list images")
	}
	dep.report.Images = images
	for _, img := range images {
		dep.logger.Info().
			Str("id", model.ShortID(img.ID)).
			Strs("tags", img.Tags).
			Msg("image")
	}

	containers, err := dep.daemon.ListProjectContainers(ctx, dep.opts.ProjectName)
	if err != nil {
		dep.logger.Warn().Err(err).Msg("could not list containers")
	}
	dep.report.Containers = containers
	for _, c := range containers {
		dep.logger.Info().
			Str("id", c.ShortID()).
			Str("name", c.ContainerName).
			Str("state", c.State).
			Str("ports", model.FormatPorts(c.Ports)).
			Msg("container")
	}

	id, err := dep.daemon.FindContainerID(ctx, dep.opts.ContainerName)
	if err != nil {
		return err
	}
	dep.report.ContainerID = id
	dep.logger.Info().Str("id", model.ShortID(id)).Msgf("%s container is running", dep.opts.ContainerName)
	return nil
}

// checkHealth polls each target in order. The first target that never
// answers aborts the run; later targets are not polled.
func (dep *deployment) checkHealth(ctx context.Context) error {
	for _, target := range dep.opts.Targets {
		result, err := dep.deps.Health.WaitHealthy(ctx, target)
		dep.report.Health = append(dep.report.Health, result)
		if err != nil {
			return err
		}
		dep.logger.Info().
			Str("target", target.Name).
			Str("url", target.URL).
			Int("attempts", result.Attempts).
			Msg("healthy")
	}
	return nil
}

// inspectImage writes the base image's inspection document to disk and
// extracts the fields shown to the operator.
func (dep *deployment) inspectImage(ctx context.Context) error {
	raw, err := dep.daemon.InspectImage(ctx, dep.opts.BaseImage)
	if err != nil {
		return err
	}

	var indented bytes.Buffer
	if err := json.Indent(&indented, raw, "", "  "); err != nil {
		return fmt.Errorf("invalid inspection metadata for %s: %w", dep.opts.BaseImage, err)
	}
	indented.WriteByte('\n')
	if err := os.WriteFile(dep.opts.ImageOutput, indented.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", dep.opts.ImageOutput, err)
	}

	meta, err := docker.ParseImageMetadata(dep.opts.BaseImage, raw)
	if err != nil {
		return err
	}
	dep.report.Image = meta

	dep.logger.Info().
		Str("image", meta.Reference).
		Strs("tags", meta.Tags).
		Time("created", meta.Created).
		Str("os", meta.OS+"/"+meta.Architecture).
		Strs("exposed_ports", meta.ExposedPorts).
		Str("file", filepath.Base(dep.opts.ImageOutput)).
		Msg("base image inspected")
	return nil
}

// summarize fills the report's services and next steps and prints them.
func (dep *deployment) summarize(context.Context) error {
	dep.report.Services = dep.serviceEndpoints()
	dep.report.NextSteps = dep.nextSteps()
	return dep.deps.Print(dep.report)
}

// serviceEndpoints describes the declared services. Without a parsed
// compose file it falls back to the health targets.
func (dep *deployment) serviceEndpoints() []model.ServiceEndpoint {
	if dep.project == nil {
		out := make([]model.ServiceEndpoint, 0, len(dep.opts.Targets))
		for _, t := range dep.opts.Targets {
			out = append(out, model.ServiceEndpoint{Name: t.Name, URLs: []string{t.URL}})
		}
		return out
	}

	out := make([]model.ServiceEndpoint, 0, len(dep.project.Services))
	for _, s := range dep.project.Services {
		ep := model.ServiceEndpoint{Name: s.Name, Image: s.Image, Build: s.Build}
		for _, p := range s.Ports {
			if p.Published != 0 {
				ep.URLs = append(ep.URLs, localURL(p.Published))
			}
		}
		out = append(out, ep)
	}
	return out
}

func localURL(port int) string {
	if port == 80 {
		return "http://localhost"
	}
	return "http://localhost:" + strconv.Itoa(port)
}

func (dep *deployment) nextSteps() []string {
	steps := make([]string, 0, len(dep.opts.Targets)+2)
	for _, t := range dep.opts.Targets {
		steps = append(steps, fmt.Sprintf("Open the %s: %s", t.Name, t.URL))
	}
	files := ""
	if dep.opts.ComposeFile != "" {
		files = " -f " + dep.opts.ComposeFile
	}
	return append(steps,
		fmt.Sprintf("Follow the logs: docker compose%s logs -f", files),
		"Tear the deployment down: bank-deploy down --volumes",
	)
}

// logSummary is the default Print: the summary as log lines.
func (d *Deployer) logSummary(report *model.Report) error {
	for _, s := range report.Services {
		d.logger.Info().
			Str("service", s.Name).
			Str("urls", strings.Join(s.URLs, " ")).
			Msg("deployed")
	}
	for _, step := range report.NextSteps {
		d.logger.Info().Msg(step)
	}
	return nil
}

// IsHealthFailure reports whether err came from the health checks.
func IsHealthFailure(err error) bool {
	var stepErr *StepError
	return errors.As(err, &stepErr) && stepErr.Step == StepHealth
}
