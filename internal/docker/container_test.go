package docker

import (
	"testing"

	"github.com/docker/docker/api/types/container"
	"github.com/stretchr/testify/assert"
)

// TestContainerToInfo verifies the mapping from the Docker API summary
// to ContainerInfo: the leading "/" is stripped from the name, the
// service label is lifted out, and ports published on both IPv4 and
// IPv6 are reported once.
func TestContainerToInfo(t *testing.T) {
	summary := container.Summary{
		ID:     "4f2a9c1e7b3d8a6f5e0c2b1a9d8e7f6a5b4c3d2e1f0a9b8c7d6e5f4a3b2c1d0e",
		Names:  []string{"/bank-app-banking-backend-1"},
		Image:  "bank-app-banking-backend",
		State:  "running",
		Status: "Up 2 minutes",
		Ports: []container.Port{
			{IP: "0.0.0.0", PrivatePort: 8080, PublicPort: 8080, Type: "tcp"},
			{IP: "::", PrivatePort: 8080, PublicPort: 8080, Type: "tcp"},
			// Exposed but not published: no host port.
			{PrivatePort: 9090, Type: "tcp"},
		},
		Labels: map[string]string{
			LabelComposeProject: "bank-app",
			LabelComposeService: "banking-backend",
		},
	}

	info := containerToInfo(summary)

	assert.Equal(t, summary.ID, info.ContainerID)
	assert.Equal(t, "bank-app-banking-backend-1", info.ContainerName)
	assert.Equal(t, "banking-backend", info.ServiceName)
	assert.Equal(t, "bank-app-banking-backend", info.Image)
	assert.Equal(t, "running", info.State)
	assert.Equal(t, "Up 2 minutes", info.Status)
	assert.Equal(t, []int{8080}, info.Ports)
	assert.Equal(t, "4f2a9c1e7b3d", info.ShortID())
}

// TestContainerToInfo_NoNames verifies that a summary without names
// maps to an empty container name instead of panicking.
func TestContainerToInfo_NoNames(t *testing.T) {
	info := containerToInfo(container.Summary{ID: "abc"})
	assert.Empty(t, info.ContainerName)
	assert.Empty(t, info.ServiceName)
	assert.Nil(t, info.Ports)
}

// TestContainerToInfo_PortsSorted verifies that published ports are
// sorted ascending regardless of API order.
func TestContainerToInfo_PortsSorted(t *testing.T) {
	info := containerToInfo(container.Summary{
		Names: []string{"/bank-app-nginx-1"},
		Ports: []container.Port{
			{PrivatePort: 443, PublicPort: 443, Type: "tcp"},
			{PrivatePort: 80, PublicPort: 80, Type: "tcp"},
		},
	})
	assert.Equal(t, []int{80, 443}, info.Ports)
}
