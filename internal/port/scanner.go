package port

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"
)

// dialTimeout bounds the loopback connect used when a port cannot be
// judged by binding.
const dialTimeout = 500 * time.Millisecond

// Scanner checks whether specific ports are available on the host machine.
//
// It uses the operating system's network stack (net.Listen / net.ListenPacket)
// to determine if a port is free. This is the most reliable method because it
// asks the OS directly, rather than parsing /proc/net/* or relying on external
// commands like `lsof` or `ss` which may require elevated permissions.
//
// Binding a privileged port (below 1024 on Linux) fails with a permission
// error for non-root users even when nothing listens there. Such ports are
// judged by connecting to the loopback address instead: a port is in use
// only if something accepts the connection.
type Scanner struct {
	listen       func(network, address string) (net.Listener, error)
	listenPacket func(network, address string) (net.PacketConn, error)
	dial         func(network, address string, timeout time.Duration) (net.Conn, error)
}

// NewScanner creates a new Scanner instance.
func NewScanner() *Scanner {
	return &Scanner{
		listen:       net.Listen,
		listenPacket: net.ListenPacket,
		dial:         net.DialTimeout,
	}
}

// IsPortAvailable checks whether a single port is free on the host machine.
//
// For TCP, it attempts net.Listen("tcp", ":port"). For UDP, it attempts
// net.ListenPacket("udp", ":port"). If the listen/bind succeeds, the port
// is available and the listener is immediately closed via defer.
//
// We bind to all interfaces (":port" rather than "127.0.0.1:port") because
// Docker publishes ports on 0.0.0.0, so we need to check the same
// address space to avoid false positives.
//
// A TCP bind refused for lack of privilege falls back to hasListener.
// A UDP bind refused the same way reports the port as free, since UDP
// has no connection to attempt.
//
// Returns true if the port is free, false if it is already in use or invalid.
func (s *Scanner) IsPortAvailable(port int, protocol string) bool {
	addr := fmt.Sprintf(":%d", port)

	switch protocol {
	case "tcp":
		listener, err := s.listen("tcp", addr)
		if err != nil {
			if errors.Is(err, os.ErrPermission) {
				return !s.hasListener(port)
			}
			return false
		}
		defer func() { _ = listener.Close() }()
		return true

	case "udp":
		conn, err := s.listenPacket("udp", addr)
		if err != nil {
			return errors.Is(err, os.ErrPermission)
		}
		defer func() { _ = conn.Close() }()
		return true

	default:
		// Unknown protocol: treat as unavailable to fail safe.
		return false
	}
}

// hasListener reports whether something accepts TCP connections on the
// loopback address at port.
func (s *Scanner) hasListener(port int) bool {
	conn, err := s.dial("tcp", fmt.Sprintf("127.0.0.1:%d", port), dialTimeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// OccupiedPorts returns the subset of ports that are in use over TCP,
// in the order they were given. A nil result means every port is free.
func (s *Scanner) OccupiedPorts(ports []int) []int {
	var used []int
	for _, p := range ports {
		if !s.IsPortAvailable(p, "tcp") {
			used = append(used, p)
		}
	}
	return used
}
