package preflight

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/bank-deploy/internal/model"
)

// fakeLookPath resolves only the names in installed.
func fakeLookPath(installed ...string) LookPathFunc {
	return func(file string) (string, error) {
		for _, name := range installed {
			if name == file {
				return "/usr/bin/" + file, nil
			}
		}
		return "", errors.New("executable file not found in $PATH")
	}
}

func TestRequireBinaries(t *testing.T) {
	assert.NoError(t, RequireBinaries(fakeLookPath("docker"), "docker"))

	err := RequireBinaries(fakeLookPath("git"), "docker", "git", "curl")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrToolMissing)
	assert.Contains(t, err.Error(), "docker, curl")
}

// makeProject creates a project directory with the given files and
// directories.
func makeProject(t *testing.T, files, dirs []string) string {
	t.Helper()
	root := t.TempDir()
	for _, d := range dirs {
		require.NoError(t, os.MkdirAll(filepath.Join(root, d), 0o755))
	}
	for _, f := range files {
		require.NoError(t, os.WriteFile(filepath.Join(root, f), []byte("x"), 0o644))
	}
	return root
}

var (
	requiredFiles = []string{"docker-compose.yml", "nginx.conf"}
	requiredDirs  = []string{"banking-backend", "banking-frontend"}
)

func TestCheckPaths_AllPresent(t *testing.T) {
	root := makeProject(t, requiredFiles, requiredDirs)
	assert.NoError(t, CheckPaths(root, requiredFiles, requiredDirs))
}

// TestCheckPaths_ReportsAllMissing verifies that every missing path is
// listed, not just the first one.
func TestCheckPaths_ReportsAllMissing(t *testing.T) {
	root := makeProject(t, []string{"docker-compose.yml"}, []string{"banking-frontend"})

	err := CheckPaths(root, requiredFiles, requiredDirs)
	require.Error(t, err)

	var missingErr *model.MissingPathsError
	require.ErrorAs(t, err, &missingErr)
	assert.Equal(t, []string{"nginx.conf", "banking-backend/"}, missingErr.Paths)
}

// TestCheckPaths_WrongKind verifies that a file where a directory is
// expected (and the reverse) is reported as missing.
func TestCheckPaths_WrongKind(t *testing.T) {
	root := makeProject(t,
		[]string{"docker-compose.yml", "banking-backend"},
		[]string{"nginx.conf", "banking-frontend"})

	err := CheckPaths(root, requiredFiles, requiredDirs)
	var missingErr *model.MissingPathsError
	require.ErrorAs(t, err, &missingErr)
	assert.Equal(t, []string{"nginx.conf", "banking-backend/"}, missingErr.Paths)
}

func TestCheckPaths_Empty(t *testing.T) {
	assert.NoError(t, CheckPaths(t.TempDir(), nil, nil))
}
