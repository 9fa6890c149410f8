package preflight

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shinji-kodama/bank-deploy/internal/model"
)

// ErrToolMissing is wrapped by RequireBinaries when a binary is not found.
var ErrToolMissing = errors.New("required tool not installed")

// LookPathFunc resolves an executable name to a path; exec.LookPath in
// production.
type LookPathFunc func(file string) (string, error)

// RequireBinaries checks that every named executable is on PATH.
func RequireBinaries(lookPath LookPathFunc, names ...string) error {
	var missing []string
	for _, name := range names {
		if _, err := lookPath(name); err != nil {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrToolMissing, strings.Join(missing, ", "))
	}
	return nil
}

// CheckPaths verifies that each file in files is a regular file and each
// entry in dirs is a directory, relative to root. Missing directories are
// reported with a trailing "/".
//
// A path of the wrong kind (a directory where a file is required, or the
// reverse) counts as missing. Returns *model.MissingPathsError listing
// all of them, or nil.
func CheckPaths(root string, files, dirs []string) error {
	var missing []string

	for _, f := range files {
		info, err := os.Stat(filepath.Join(root, f))
		if err != nil || info.IsDir() {
			missing = append(missing, f)
		}
	}
	for _, d := range dirs {
		info, err := os.Stat(filepath.Join(root, d))
		if err != nil || !info.IsDir() {
			missing = append(missing, strings.TrimSuffix(d, "/")+"/")
		}
	}

	if len(missing) > 0 {
		return &model.MissingPathsError{Paths: missing}
	}
	return nil
}
