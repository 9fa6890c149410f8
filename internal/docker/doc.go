// Package docker provides Docker Engine API wrappers and compose
// invocation for the bank-deploy CLI.
//
// This package handles:
//   - Docker client initialization with automatic socket detection
//     (Linux, macOS, Windows)
//   - Daemon reachability (Ping)
//   - Listing the compose project's containers and built images
//   - Resolving a running container by name filter
//   - Image inspection (pulling the image first when it is absent)
//   - `docker compose` build/up, down and version via os/exec
//
// The package uses github.com/docker/docker/client as the underlying
// Docker SDK, with version negotiation enabled for broad compatibility.
package docker
