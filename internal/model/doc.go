// Package model defines the domain types and value objects for the
// bank-deploy CLI.
//
// This package contains pure data structures with no external dependencies.
// Step results, health results, container and image descriptions are
// transient values built during one orchestration run.
//
// The package also defines exit codes (ExitCode) and a custom error type
// (CLIError) that carries exit codes for proper OS process exit handling.
package model
