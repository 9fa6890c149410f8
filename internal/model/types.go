package model

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// StepOutcome is the recorded result of one orchestration step.
type StepOutcome string

const (
	// OutcomePassed means the step completed, or failed under an Ignore policy.
	OutcomePassed StepOutcome = "passed"

	// OutcomeWarned means the step failed but its policy allowed the run
	// to continue (e.g., a port that is still occupied after cleanup).
	OutcomeWarned StepOutcome = "warned"

	// OutcomeFailed means the step failed and halted the run.
	OutcomeFailed StepOutcome = "failed"

	// OutcomeSkipped means the step never ran because an earlier step halted the run.
	OutcomeSkipped StepOutcome = "skipped"
)

// String returns the string representation of StepOutcome.
func (o StepOutcome) String() string {
	return string(o)
}

// IsValid checks whether the StepOutcome is one of the predefined values.
func (o StepOutcome) IsValid() bool {
	switch o {
	case OutcomePassed, OutcomeWarned, OutcomeFailed, OutcomeSkipped:
		return true
	default:
		return false
	}
}

// StepResult records what happened to a single named step.
type StepResult struct {
	// Name is the human-readable step name (e.g., "health checks").
	Name string `json:"name"`

	// Outcome is the recorded result.
	Outcome StepOutcome `json:"outcome"`

	// Err is the error returned by the step, if any. It is kept for
	// warned and ignored failures as well, so the summary can show it.
	Err error `json:"-"`

	// Duration is the wall-clock time spent in the step.
	Duration time.Duration `json:"duration"`
}

// Message returns the error text of the step, or an empty string.
func (r StepResult) Message() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// HealthTarget is one HTTP endpoint that must answer after deployment.
type HealthTarget struct {
	// Name identifies the target in log output (e.g., "backend").
	Name string `json:"name"`

	// URL is the full address that is probed.
	URL string `json:"url"`
}

// HealthResult is the outcome of polling one HealthTarget.
type HealthResult struct {
	Target HealthTarget `json:"target"`

	// Healthy is true when a probe succeeded within the attempt budget.
	Healthy bool `json:"healthy"`

	// Attempts is the number of probes sent. On success it is the
	// attempt at which the endpoint first answered.
	Attempts int `json:"attempts"`

	// MaxAttempts is the configured attempt budget.
	MaxAttempts int `json:"maxAttempts"`
}

// ContainerInfo holds runtime information about a Docker container.
// This data is fetched from the Docker API, never persisted.
type ContainerInfo struct {
	// ContainerID is the full Docker container identifier.
	ContainerID string `json:"containerId"`

	// ContainerName is the Docker container name without the leading "/".
	ContainerName string `json:"containerName"`

	// ServiceName is the compose service the container belongs to.
	// Empty for containers not created by compose.
	ServiceName string `json:"serviceName,omitempty"`

	// Image is the image reference the container was created from.
	Image string `json:"image"`

	// State is the short Docker state ("running", "exited", "created").
	State string `json:"state"`

	// Status is the long Docker status ("Up 3 minutes").
	Status string `json:"status"`

	// Ports lists the published host ports.
	Ports []int `json:"ports,omitempty"`

	// Labels is the full set of Docker labels on the container.
	Labels map[string]string `json:"labels,omitempty"`
}

// ShortID returns the first 12 characters of the container ID,
// matching what `docker ps` shows.
func (c ContainerInfo) ShortID() string {
	return ShortID(c.ContainerID)
}

// ShortID truncates a Docker object ID (optionally "sha256:"-prefixed)
// to 12 characters.
func ShortID(id string) string {
	id = strings.TrimPrefix(id, "sha256:")
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// ImageInfo describes a locally available image for operator display.
type ImageInfo struct {
	ID      string    `json:"id"`
	Tags    []string  `json:"tags"`
	Created time.Time `json:"created"`
	Size    int64     `json:"size"`
}

// ImageMetadata is the subset of an image's inspection metadata shown
// to the operator after deployment.
type ImageMetadata struct {
	// Reference is the image reference that was inspected (e.g., "nginx:alpine").
	Reference string `json:"reference"`

	ID           string    `json:"id"`
	Tags         []string  `json:"tags"`
	Created      time.Time `json:"created"`
	OS           string    `json:"os"`
	Architecture string    `json:"architecture"`

	// ExposedPorts lists "port/protocol" entries sorted by port number.
	ExposedPorts []string `json:"exposedPorts"`
}

// ServiceEndpoint is a deployed service as presented in the summary.
type ServiceEndpoint struct {
	Name string `json:"name"`

	// Image is the declared image; empty for services built locally.
	Image string `json:"image,omitempty"`
	Build bool   `json:"build"`

	// URLs are the local addresses of the service's published ports.
	URLs []string `json:"urls,omitempty"`
}

// Report describes one orchestration run from start to end.
type Report struct {
	// Project is the compose project name.
	Project string `json:"project"`

	Steps []StepResult `json:"steps"`

	// ContainerID is the resolved ID of the required container,
	// empty if post-deploy validation did not complete.
	ContainerID string `json:"containerId,omitempty"`

	Containers []ContainerInfo `json:"containers,omitempty"`
	Images     []ImageInfo     `json:"images,omitempty"`
	Health     []HealthResult  `json:"health,omitempty"`
	Image      *ImageMetadata  `json:"image,omitempty"`

	// Services and NextSteps are filled by the summary step.
	Services  []ServiceEndpoint `json:"services,omitempty"`
	NextSteps []string          `json:"nextSteps,omitempty"`
}

// Failed reports whether any step halted the run.
func (r *Report) Failed() bool {
	for _, s := range r.Steps {
		if s.Outcome == OutcomeFailed {
			return true
		}
	}
	return false
}

// Warnings returns the steps that completed with a warning.
func (r *Report) Warnings() []StepResult {
	var out []StepResult
	for _, s := range r.Steps {
		if s.Outcome == OutcomeWarned {
			out = append(out, s)
		}
	}
	return out
}

// PortConflictError reports required ports that stayed occupied after a
// cleanup attempt.
type PortConflictError struct {
	Ports []int
}

// Error implements the error interface.
func (e *PortConflictError) Error() string {
	return fmt.Sprintf("ports still in use: %s", FormatPorts(e.Ports))
}

// MissingPathsError reports required files or directories that are absent.
type MissingPathsError struct {
	// Paths are relative to the project directory.
	Paths []string
}

// Error implements the error interface.
func (e *MissingPathsError) Error() string {
	return fmt.Sprintf("required paths not found: %s", strings.Join(e.Paths, ", "))
}

// FormatPorts renders ports as a sorted, comma-separated list.
// Returns "-" for an empty slice.
func FormatPorts(ports []int) string {
	if len(ports) == 0 {
		return "-"
	}
	sorted := make([]int, len(ports))
	copy(sorted, ports)
	sort.Ints(sorted)

	parts := make([]string, 0, len(sorted))
	for _, p := range sorted {
		parts = append(parts, strconv.Itoa(p))
	}
	return strings.Join(parts, ",")
}

// ExitCode defines the process exit codes of the CLI.
// Scripts can use them to tell which phase failed.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitEnvironmentInvalid indicates a required tool is not installed.
	ExitEnvironmentInvalid ExitCode = 2

	// ExitDockerNotRunning indicates the Docker daemon is not accessible.
	ExitDockerNotRunning ExitCode = 3

	// ExitMissingFiles indicates required files or directories are absent.
	ExitMissingFiles ExitCode = 4

	// ExitBuildFailed indicates the compose build/start operation failed.
	ExitBuildFailed ExitCode = 5

	// ExitContainerNotFound indicates the required container is not running
	// after deployment.
	ExitContainerNotFound ExitCode = 6

	// ExitHealthCheckFailed indicates a health check exhausted its attempts.
	ExitHealthCheckFailed ExitCode = 7
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
