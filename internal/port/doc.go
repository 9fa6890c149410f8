// Package port checks whether the host ports a deployment needs are free.
//
// The Scanner asks the operating system directly: a port counts as free
// when net.Listen on it succeeds. No external tools (lsof, ss, netstat)
// are required.
package port
