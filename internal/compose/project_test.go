package compose

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bankingCompose mirrors the layout the deployer expects: two built
// services behind an nginx reverse proxy.
const bankingCompose = `
services:
  banking-backend:
    build: ./banking-backend
    ports:
      - "8080:8080"
  banking-frontend:
    build:
      context: ./banking-frontend
    ports:
      - "3000:3000"
    depends_on:
      - banking-backend
  nginx:
    image: nginx:alpine
    ports:
      - "80:80"
      - "8443-8444:443"
    volumes:
      - ./nginx.conf:/etc/nginx/nginx.conf:ro
    depends_on:
      - banking-frontend
      - banking-backend
`

func TestParse_BankingProject(t *testing.T) {
	project, err := Parse(context.Background(), "/srv/bank/docker-compose.yml", "bank-app", []byte(bankingCompose))
	require.NoError(t, err)

	assert.Equal(t, "bank-app", project.Name)
	require.Len(t, project.Services, 3)

	// Services are sorted by name.
	assert.Equal(t, "banking-backend", project.Services[0].Name)
	assert.Equal(t, "banking-frontend", project.Services[1].Name)
	assert.Equal(t, "nginx", project.Services[2].Name)

	backend, ok := project.Service("banking-backend")
	require.True(t, ok)
	assert.True(t, backend.Build)
	assert.Equal(t, "./banking-backend", backend.BuildContext)
	assert.Equal(t, []PortMapping{{Target: 8080, Published: 8080, Protocol: "tcp"}}, backend.Ports)

	nginx, ok := project.Service("nginx")
	require.True(t, ok)
	assert.False(t, nginx.Build)
	assert.Equal(t, "nginx:alpine", nginx.Image)
	assert.Equal(t, []string{"banking-backend", "banking-frontend"}, nginx.DependsOn)

	// The 8443-8444 range is not a single published port.
	assert.Equal(t, []int{80, 3000, 8080}, project.PublishedPorts())
}

func TestParse_DefaultProjectName(t *testing.T) {
	project, err := Parse(context.Background(), "/srv/Bank_App/docker-compose.yml", "",
		[]byte("services:\n  web:\n    image: nginx:alpine\n"))
	require.NoError(t, err)
	assert.Equal(t, "bank_app", project.Name)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{"empty", "  \n", ErrEmptyFile},
		{"not yaml", "services: [unclosed", ErrInvalidFile},
		{"scalar document", "just a string", ErrInvalidFile},
		{"no image or build", "services:\n  web:\n    ports: [\"80:80\"]\n", ErrInvalidFile},
		// Depending on the loader this is rejected as invalid or as empty;
		// either way it must not parse.
		{"no services", "name: bank\nvolumes:\n  data: {}\n", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(context.Background(), "docker-compose.yml", "bank-app", []byte(tt.content))
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestLoad_FromDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docker-compose.yml")
	require.NoError(t, os.WriteFile(path, []byte(bankingCompose), 0o644))

	project, err := Load(context.Background(), path, "bank-app")
	require.NoError(t, err)
	assert.Len(t, project.Services, 3)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "docker-compose.yml"), "bank-app")
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestProject_ServiceNotFound(t *testing.T) {
	p := &Project{}
	_, ok := p.Service("banking-backend")
	assert.False(t, ok)
	assert.Nil(t, p.PublishedPorts())
}
