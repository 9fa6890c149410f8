package docker

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/docker/docker/client"
)

// defaultPingTimeout is the maximum duration to wait for a Docker daemon
// response during a Ping operation. 5 seconds is generous enough for most
// environments, including Docker Desktop on macOS which can be slower
// than native Linux Docker.
const defaultPingTimeout = 5 * time.Second

// windowsDockerHost is the named pipe Docker Desktop listens on.
const windowsDockerHost = "npipe:////./pipe/docker_engine"

// Client wraps the Docker Engine SDK client to provide the daemon
// operations the deployment needs. It handles automatic Docker socket detection
// across platforms (Linux, macOS, Windows) and provides methods for
// verifying Docker daemon connectivity.
//
// Usage:
//
//	c, err := docker.NewClient("")
//	if err != nil { /* handle */ }
//	defer c.Close()  // Always close to release resources
//	if err := c.Ping(ctx); err != nil { /* Docker not running */ }
type Client struct {
	// inner is the underlying Docker SDK client. We wrap it rather than
	// embedding it to control the exposed API surface.
	inner *client.Client
}

// NewClient creates a new Docker client.
//
// The host is chosen in this priority order:
//  1. the host argument (from configuration), when non-empty
//  2. DOCKER_HOST environment variable (if set, used as-is)
//  3. Platform-specific default socket paths:
//     - Linux: /var/run/docker.sock
//     - macOS: /var/run/docker.sock, then ~/.docker/run/docker.sock
//     - Windows: npipe:////./pipe/docker_engine (Docker Named Pipe)
//
// Returns an error if no Docker socket is found or the client cannot
// be created.
func NewClient(host string) (*Client, error) {
	if host != "" {
		return newClientWithHost(host)
	}

	// When DOCKER_HOST is set, we respect it unconditionally and let
	// the Docker SDK handle the connection string parsing.
	if dockerHost := os.Getenv("DOCKER_HOST"); dockerHost != "" {
		return newClientWithHost(dockerHost)
	}

	detected, err := detectDockerHost(runtime.GOOS)
	if err != nil {
		return nil, fmt.Errorf("Docker socket not found: %w", err)
	}

	return newClientWithHost(detected)
}

// newClientWithHost creates a Docker client connected to the specified host.
// The host parameter should be a valid Docker connection string (e.g.,
// "unix:///var/run/docker.sock" or "npipe:////./pipe/docker_engine").
func newClientWithHost(host string) (*Client, error) {
	// client.NewClientWithOpts creates a Docker SDK client.
	// - client.WithHost sets the Docker daemon address.
	// - client.WithAPIVersionNegotiation enables automatic API version
	//   negotiation, which ensures compatibility across different Docker
	//   daemon versions without hardcoding a specific API version.
	c, err := client.NewClientWithOpts(
		client.WithHost(host),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client for host %q: %w", host, err)
	}

	return &Client{inner: c}, nil
}

// detectDockerHost determines the Docker socket path for the platform goos.
// It probes known socket paths and returns the first one that exists.
//
// Design note: We check for socket file existence rather than attempting
// a connection, because existence checks are fast and don't require
// a running daemon. The Ping() method handles connectivity verification.
func detectDockerHost(goos string) (string, error) {
	switch goos {
	case "linux":
		// Linux uses the standard Docker socket path.
		return detectUnixSocket([]string{
			"/var/run/docker.sock",
		})

	case "darwin":
		// macOS has two possible socket locations:
		// 1. /var/run/docker.sock - Standard path (Docker Desktop creates a symlink here)
		// 2. ~/.docker/run/docker.sock - Alternative path used by newer Docker Desktop
		//    versions or when the symlink at /var/run/docker.sock is not created.
		homeDir, err := os.UserHomeDir()
		if err != nil {
			// Fall back to just the standard path if home directory is unavailable.
			return detectUnixSocket([]string{
				"/var/run/docker.sock",
			})
		}
		return detectUnixSocket([]string{
			"/var/run/docker.sock",
			homeDir + "/.docker/run/docker.sock",
		})

	case "windows":
		// Named pipes cannot be probed with os.Stat. The pipe is fixed by
		// Docker Desktop; Ping reports a daemon that is not listening on it.
		return windowsDockerHost, nil

	default:
		return "", fmt.Errorf("unsupported platform: %s", goos)
	}
}

// detectUnixSocket probes a list of Unix socket paths and returns the
// Docker host URI for the first socket that exists on the filesystem.
//
// The paths are checked in order, so callers should list them from
// most-preferred to least-preferred.
func detectUnixSocket(paths []string) (string, error) {
	for _, path := range paths {
		// os.Stat checks filesystem metadata. For Unix sockets, a successful
		// Stat confirms the socket file exists, though it does not guarantee
		// the Docker daemon is listening on it.
		if _, err := os.Stat(path); err == nil {
			return "unix://" + path, nil
		}
	}
	return "", fmt.Errorf(
		"Docker socket not found at any of: %v, is Docker running?",
		paths,
	)
}

// Ping verifies that the Docker daemon is reachable and responsive.
// It sends a lightweight ping request to the Docker API and waits
// up to defaultPingTimeout for a response.
//
// Returns an error if the daemon does not respond.
func (c *Client) Ping(ctx context.Context) error {
	// Create a child context with timeout to prevent hanging indefinitely
	// if the Docker daemon is unresponsive (e.g., Docker Desktop is paused).
	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	if _, err := c.inner.Ping(pingCtx); err != nil {
		return fmt.Errorf("Docker daemon is not responding, is Docker running?: %w", err)
	}
	return nil
}

// Close releases all resources held by the Docker client.
// This should be called when the client is no longer needed,
// typically via defer immediately after NewClient().
//
// Close is safe to call multiple times.
func (c *Client) Close() error {
	if c.inner != nil {
		return c.inner.Close()
	}
	return nil
}
