// compose.go drives the `docker compose` plugin as a child process.
//
// The compose CLI is invoked rather than reimplemented: building images,
// creating networks and ordering service startup are exactly what the
// tool exists for, and the compose file is written for it.
package docker

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// CommandRunner executes an external command and returns its combined
// stdout and stderr. It is an interface so tests can record invocations
// instead of spawning processes.
type CommandRunner interface {
	Run(ctx context.Context, dir string, env []string, name string, args ...string) ([]byte, error)
}

// execRunner runs commands with os/exec.
type execRunner struct{}

// Run implements CommandRunner.
func (execRunner) Run(ctx context.Context, dir string, env []string, name string, args ...string) ([]byte, error) {
	// Create the command with context so it can be cancelled if needed.
	cmd := exec.CommandContext(ctx, name, args...)

	// docker compose resolves relative paths in YAML files relative to
	// this directory, so it must be the project root.
	cmd.Dir = dir

	// Inherit the current process environment and add any extra variables.
	// os.Environ() returns a copy, so modifications don't affect this process.
	cmd.Env = append(os.Environ(), env...)

	return cmd.CombinedOutput()
}

// Compose runs `docker compose` against one project.
type Compose struct {
	// ProjectDir is the working directory for every invocation.
	ProjectDir string

	// ProjectName is passed with -p so that containers are labeled
	// consistently with what ListProjectContainers filters on.
	ProjectName string

	// Files are passed with -f in order; later files override earlier ones.
	Files []string

	runner CommandRunner
}

// NewCompose creates a Compose bound to the given project.
func NewCompose(projectDir, projectName string, files ...string) *Compose {
	return &Compose{
		ProjectDir:  projectDir,
		ProjectName: projectName,
		Files:       files,
		runner:      execRunner{},
	}
}

// WithRunner replaces the command runner. Intended for tests.
func (c *Compose) WithRunner(r CommandRunner) *Compose {
	c.runner = r
	return c
}

// Version returns the compose plugin version (`docker compose version --short`).
// An error means the plugin is not installed or the docker binary is missing.
func (c *Compose) Version(ctx context.Context) (string, error) {
	out, err := c.runner.Run(ctx, c.ProjectDir, nil, "docker", "compose", "version", "--short")
	if err != nil {
		return "", fmt.Errorf("docker compose is not available: %s: %w", strings.TrimSpace(string(out)), err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Up builds images and starts all declared services in the background:
// "docker compose -f file -p project up --build -d".
func (c *Compose) Up(ctx context.Context) error {
	return c.run(ctx, "up", "--build", "-d")
}

// Down stops and removes the project's containers and networks. When
// removeVolumes is true, named and anonymous volumes go too (-v).
// Orphaned containers from services no longer in the file are removed
// as well.
func (c *Compose) Down(ctx context.Context, removeVolumes bool) error {
	args := []string{"down", "--remove-orphans"}
	if removeVolumes {
		args = append(args, "-v")
	}
	return c.run(ctx, args...)
}

// buildArgs constructs the full argument list for a compose subcommand.
func (c *Compose) buildArgs(sub ...string) []string {
	args := make([]string, 0, len(c.Files)*2+len(sub)+3)
	// "compose" is the plugin-style invocation ("docker compose"), not
	// the legacy standalone "docker-compose" binary.
	args = append(args, "compose")
	for _, f := range c.Files {
		args = append(args, "-f", f)
	}
	if c.ProjectName != "" {
		args = append(args, "-p", c.ProjectName)
	}
	return append(args, sub...)
}

// run executes a compose subcommand. The combined output is included in
// the error so the operator sees the build failure from compose itself.
func (c *Compose) run(ctx context.Context, sub ...string) error {
	args := c.buildArgs(sub...)
	output, err := c.runner.Run(ctx, c.ProjectDir, nil, "docker", args...)
	if err != nil {
		return fmt.Errorf("docker %s failed: %s: %w",
			strings.Join(args, " "), strings.TrimSpace(string(output)), err)
	}
	return nil
}
