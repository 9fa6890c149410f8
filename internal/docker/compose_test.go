package docker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingRunner captures every invocation and returns canned output.
type recordingRunner struct {
	calls  [][]string
	dirs   []string
	output []byte
	err    error
}

func (r *recordingRunner) Run(_ context.Context, dir string, _ []string, name string, args ...string) ([]byte, error) {
	r.calls = append(r.calls, append([]string{name}, args...))
	r.dirs = append(r.dirs, dir)
	return r.output, r.err
}

func newTestCompose(r *recordingRunner) *Compose {
	return NewCompose("/srv/bank", "bank-app", "/srv/bank/docker-compose.yml").WithRunner(r)
}

func TestCompose_Up(t *testing.T) {
	r := &recordingRunner{}
	require.NoError(t, newTestCompose(r).Up(context.Background()))

	require.Len(t, r.calls, 1)
	assert.Equal(t, []string{
		"docker", "compose",
		"-f", "/srv/bank/docker-compose.yml",
		"-p", "bank-app",
		"up", "--build", "-d",
	}, r.calls[0])
	assert.Equal(t, "/srv/bank", r.dirs[0])
}

// TestCompose_Down verifies the volume flag: cleanup before a deployment
// removes volumes, the port-conflict path does not.
func TestCompose_Down(t *testing.T) {
	tests := []struct {
		name          string
		removeVolumes bool
		wantTail      []string
	}{
		{"with volumes", true, []string{"down", "--remove-orphans", "-v"}},
		{"keep volumes", false, []string{"down", "--remove-orphans"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &recordingRunner{}
			require.NoError(t, newTestCompose(r).Down(context.Background(), tt.removeVolumes))

			require.Len(t, r.calls, 1)
			call := r.calls[0]
			assert.Equal(t, tt.wantTail, call[len(call)-len(tt.wantTail):])
		})
	}
}

// TestCompose_ErrorIncludesOutput verifies that compose's own output is
// part of the returned error so the operator can see why a build failed.
func TestCompose_ErrorIncludesOutput(t *testing.T) {
	exitErr := errors.New("exit status 1")
	r := &recordingRunner{
		output: []byte("failed to solve: banking-backend/Dockerfile not found\n"),
		err:    exitErr,
	}

	err := newTestCompose(r).Up(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, exitErr)
	assert.Contains(t, err.Error(), "Dockerfile not found")
	assert.Contains(t, err.Error(), "up --build -d")
}

func TestCompose_NoProjectName(t *testing.T) {
	r := &recordingRunner{}
	c := NewCompose("/srv/bank", "", "docker-compose.yml").WithRunner(r)
	require.NoError(t, c.Up(context.Background()))

	assert.NotContains(t, r.calls[0], "-p")
}

func TestCompose_Version(t *testing.T) {
	r := &recordingRunner{output: []byte("2.29.1\n")}
	v, err := newTestCompose(r).Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2.29.1", v)
	assert.Equal(t, []string{"docker", "compose", "version", "--short"}, r.calls[0])

	r = &recordingRunner{
		output: []byte("docker: 'compose' is not a docker command.\n"),
		err:    errors.New("exit status 1"),
	}
	_, err = newTestCompose(r).Version(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not available")
}
