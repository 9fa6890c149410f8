package orchestrator

import (
	"context"
	"time"

	"github.com/shinji-kodama/bank-deploy/internal/model"
	"github.com/shinji-kodama/bank-deploy/internal/preflight"
)

// Daemon is the subset of the container runtime API the deployment uses.
// *docker.Client implements it.
type Daemon interface {
	Ping(ctx context.Context) error
	ListImages(ctx context.Context, reference string) ([]model.ImageInfo, error)
	ListProjectContainers(ctx context.Context, project string) ([]model.ContainerInfo, error)
	FindContainerID(ctx context.Context, name string) (string, error)
	InspectImage(ctx context.Context, ref string) ([]byte, error)
	Close() error
}

// Composer drives the compose tool. *docker.Compose implements it.
type Composer interface {
	Version(ctx context.Context) (string, error)
	Up(ctx context.Context) error
	Down(ctx context.Context, removeVolumes bool) error
}

// PortChecker reports which of the given host ports are in use.
// *port.Scanner implements it.
type PortChecker interface {
	OccupiedPorts(ports []int) []int
}

// HealthChecker polls one target until it answers or the budget runs
// out. *health.Poller implements it.
type HealthChecker interface {
	WaitHealthy(ctx context.Context, target model.HealthTarget) (model.HealthResult, error)
}

// Deps are the collaborators of a Deployer.
type Deps struct {
	// Connect opens the daemon connection. It is called once per run,
	// during environment validation.
	Connect func(ctx context.Context) (Daemon, error)

	Composer Composer
	Ports    PortChecker
	Health   HealthChecker

	// LookPath defaults to exec.LookPath.
	LookPath preflight.LookPathFunc

	// Sleep waits for d or until ctx is done. Defaults to SleepContext.
	Sleep func(ctx context.Context, d time.Duration) error

	// Print renders the summary. Defaults to logging it.
	Print func(report *model.Report) error
}

// SleepContext waits for d, returning early with the context error if
// ctx is cancelled first.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
