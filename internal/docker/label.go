package docker

import (
	"sort"

	"github.com/shinji-kodama/bank-deploy/internal/model"
)

// Label keys set by `docker compose` on every container and image it
// creates. They are the only link between a running container and the
// compose file that declared it, so the deployment is discovered through
// them rather than through any state file.
const (
	// LabelComposeProject holds the compose project name.
	LabelComposeProject = "com.docker.compose.project"

	// LabelComposeService holds the service name from the compose file.
	LabelComposeService = "com.docker.compose.service"

	// LabelComposeOneoff is "True" for `compose run` containers, which are
	// not part of the declared deployment.
	LabelComposeOneoff = "com.docker.compose.oneoff"
)

// GroupContainersByService groups containers by their compose service
// label. Containers without a service label are grouped under "".
//
// Returns a map where keys are service names and values are slices of
// ContainerInfo belonging to that service, in input order.
func GroupContainersByService(containers []model.ContainerInfo) map[string][]model.ContainerInfo {
	groups := make(map[string][]model.ContainerInfo)
	for _, c := range containers {
		groups[c.ServiceName] = append(groups[c.ServiceName], c)
	}
	return groups
}

// ServiceNames returns the keys of a service grouping, sorted so output
// is stable between runs.
func ServiceNames(groups map[string][]model.ContainerInfo) []string {
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsOneOff reports whether the container was started by `compose run`.
func IsOneOff(c model.ContainerInfo) bool {
	return c.Labels[LabelComposeOneoff] == "True"
}
