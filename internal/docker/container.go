// container.go implements the container queries used after deployment:
// listing the compose project's containers for the operator and resolving
// the ID of the one container the deployment cannot do without.
package docker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	// container package provides ListOptions and the Summary type
	// returned by ContainerList.
	"github.com/docker/docker/api/types/container"

	// filters package provides Args type for building Docker API query filters.
	"github.com/docker/docker/api/types/filters"

	"github.com/shinji-kodama/bank-deploy/internal/model"
)

// ErrContainerNotFound is returned when no running container matches a
// name filter.
var ErrContainerNotFound = errors.New("container not found")

// ListProjectContainers queries the Docker daemon for all containers that
// carry the compose project label, including stopped ones. One-off
// `compose run` containers are left out.
//
// Filtering happens server-side via the label filter, which is cheaper
// than listing everything and filtering in Go.
func (c *Client) ListProjectContainers(ctx context.Context, project string) ([]model.ContainerInfo, error) {
	filterArgs := filters.NewArgs(
		filters.Arg("label", LabelComposeProject+"="+project),
	)

	// The All flag ensures we also get stopped/exited containers,
	// so a crashed service still shows up in the listing.
	containers, err := c.inner.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filterArgs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers of project %q: %w", project, err)
	}

	result := make([]model.ContainerInfo, 0, len(containers))
	for _, ctr := range containers {
		info := containerToInfo(ctr)
		if IsOneOff(info) {
			continue
		}
		result = append(result, info)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ContainerName < result[j].ContainerName
	})
	return result, nil
}

// FindContainerID returns the ID of the first running container whose
// name matches the filter. Docker's name filter is a substring match,
// so "banking-backend" also matches "bank-app-banking-backend-1".
//
// Returns an error wrapping ErrContainerNotFound when nothing matches.
func (c *Client) FindContainerID(ctx context.Context, name string) (string, error) {
	containers, err := c.inner.ContainerList(ctx, container.ListOptions{
		Filters: filters.NewArgs(filters.Arg("name", name)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to list containers matching %q: %w", name, err)
	}
	if len(containers) == 0 {
		return "", fmt.Errorf("no running container matches %q: %w", name, ErrContainerNotFound)
	}
	return containers[0].ID, nil
}

// containerToInfo converts a Docker API container summary to our domain
// model ContainerInfo. This is a pure mapping function with no side effects.
//
// The Docker API returns container names with a leading "/" prefix
// (e.g., "/my-container"), which we strip for cleaner display in CLI output.
func containerToInfo(c container.Summary) model.ContainerInfo {
	name := ""
	if len(c.Names) > 0 {
		name = strings.TrimPrefix(c.Names[0], "/")
	}

	// A port published on both IPv4 and IPv6 appears twice; keep one.
	var ports []int
	seen := make(map[int]bool)
	for _, p := range c.Ports {
		hostPort := int(p.PublicPort)
		if hostPort == 0 || seen[hostPort] {
			continue
		}
		seen[hostPort] = true
		ports = append(ports, hostPort)
	}
	sort.Ints(ports)

	return model.ContainerInfo{
		ContainerID:   c.ID,
		ContainerName: name,
		ServiceName:   c.Labels[LabelComposeService],
		Image:         c.Image,
		State:         string(c.State),
		Status:        c.Status,
		Ports:         ports,
		Labels:        c.Labels,
	}
}
