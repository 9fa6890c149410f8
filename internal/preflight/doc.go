// Package preflight holds the host checks that run before the deployment
// touches any container: required binaries on PATH and required project
// files and directories on disk.
//
// Checks report every problem they find at once, so the operator can fix
// the environment in one pass instead of re-running after each error.
package preflight
