// Package compose reads the deployment's compose file.
//
// The orchestrator never interprets the file to run containers; that is
// left to the `docker compose` plugin. It parses the file so that a
// malformed file is rejected before anything is torn down, and so that
// the summary can name the declared services and their published ports.
package compose
