package port

import (
	"errors"
	"net"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// listenTCP starts a TCP listener on an OS-assigned port and returns the
// port. The listener is closed when the test ends.
func listenTCP(t *testing.T) int {
	t.Helper()
	listener, err := net.Listen("tcp", ":0")
	require.NoError(t, err, "failed to start test listener")
	t.Cleanup(func() { _ = listener.Close() })

	tcpAddr, ok := listener.Addr().(*net.TCPAddr)
	require.True(t, ok)
	return tcpAddr.Port
}

// freeTCPPort returns a port that was free a moment ago: the OS assigns
// it, and the listener is closed before returning.
func freeTCPPort(t *testing.T) int {
	t.Helper()
	listener, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	require.NoError(t, listener.Close())
	return port
}

// TestIsPortAvailable_FreePort verifies that IsPortAvailable returns true
// for a port that no process is currently using.
func TestIsPortAvailable_FreePort(t *testing.T) {
	scanner := NewScanner()
	port := freeTCPPort(t)

	assert.True(t, scanner.IsPortAvailable(port, "tcp"), "port %d should be available", port)
}

// TestIsPortAvailable_UsedPort verifies that IsPortAvailable returns false
// when a port is already bound by another listener.
//
// This simulates a previous deployment's reverse proxy still holding
// its port.
func TestIsPortAvailable_UsedPort(t *testing.T) {
	port := listenTCP(t)

	scanner := NewScanner()
	assert.False(t, scanner.IsPortAvailable(port, "tcp"), "port %d should be in use (we have a listener on it)", port)
}

// TestIsPortAvailable_UDP verifies UDP port scanning works correctly.
// We start a UDP listener and confirm IsPortAvailable reports it as used.
func TestIsPortAvailable_UDP(t *testing.T) {
	conn, err := net.ListenPacket("udp", ":0")
	require.NoError(t, err, "failed to start test UDP listener")
	defer func() { _ = conn.Close() }()

	udpAddr, ok := conn.LocalAddr().(*net.UDPAddr)
	require.True(t, ok)

	scanner := NewScanner()
	assert.False(t, scanner.IsPortAvailable(udpAddr.Port, "udp"), "UDP port %d should be in use", udpAddr.Port)
}

// TestIsPortAvailable_UnknownProtocol verifies that an unrecognized protocol
// string causes IsPortAvailable to return false (fail-safe behavior).
func TestIsPortAvailable_UnknownProtocol(t *testing.T) {
	scanner := NewScanner()
	assert.False(t, scanner.IsPortAvailable(50000, "sctp"), "unknown protocol should return false (fail-safe)")
}

// TestOccupiedPorts verifies that only ports with an active listener are
// reported, in input order.
func TestOccupiedPorts(t *testing.T) {
	scanner := NewScanner()
	busyA := listenTCP(t)
	busyB := listenTCP(t)
	free := freeTCPPort(t)

	used := scanner.OccupiedPorts([]int{busyA, free, busyB})
	assert.Equal(t, []int{busyA, busyB}, used)
}

// TestOccupiedPorts_AllFree verifies the nil result the orchestrator uses
// to skip cleanup entirely.
func TestOccupiedPorts_AllFree(t *testing.T) {
	scanner := NewScanner()
	assert.Nil(t, scanner.OccupiedPorts([]int{freeTCPPort(t)}))
	assert.Nil(t, scanner.OccupiedPorts(nil))
}

// deniedBind is the error net.Listen returns when an unprivileged user
// binds a port below 1024.
var deniedBind = &net.OpError{Op: "listen", Net: "tcp", Err: os.NewSyscallError("bind", syscall.EACCES)}

// privilegedScanner returns a Scanner whose binds are always refused for
// lack of privilege. Dials go to dial and their addresses are recorded.
func privilegedScanner(dial func() (net.Conn, error), dialed *[]string) *Scanner {
	return &Scanner{
		listen: func(string, string) (net.Listener, error) { return nil, deniedBind },
		listenPacket: func(string, string) (net.PacketConn, error) {
			return nil, &net.OpError{Op: "listen", Net: "udp", Err: os.NewSyscallError("bind", syscall.EACCES)}
		},
		dial: func(_, address string, _ time.Duration) (net.Conn, error) {
			*dialed = append(*dialed, address)
			return dial()
		},
	}
}

// TestIsPortAvailable_PermissionDeniedNoListener verifies that a free
// privileged port is not reported as occupied just because a non-root
// user may not bind it.
func TestIsPortAvailable_PermissionDeniedNoListener(t *testing.T) {
	var dialed []string
	scanner := privilegedScanner(func() (net.Conn, error) {
		return nil, &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}
	}, &dialed)

	assert.True(t, scanner.IsPortAvailable(80, "tcp"))
	assert.Equal(t, []string{"127.0.0.1:80"}, dialed)
	assert.Nil(t, scanner.OccupiedPorts([]int{80}))
}

// TestIsPortAvailable_PermissionDeniedWithListener verifies that a
// privileged port with something accepting connections is occupied.
func TestIsPortAvailable_PermissionDeniedWithListener(t *testing.T) {
	var dialed []string
	scanner := privilegedScanner(func() (net.Conn, error) {
		client, server := net.Pipe()
		_ = server.Close()
		return client, nil
	}, &dialed)

	assert.False(t, scanner.IsPortAvailable(80, "tcp"))
	assert.Equal(t, []int{80}, scanner.OccupiedPorts([]int{80}))
}

func TestIsPortAvailable_PermissionDeniedUDP(t *testing.T) {
	var dialed []string
	scanner := privilegedScanner(func() (net.Conn, error) { return nil, errors.New("unused") }, &dialed)

	assert.True(t, scanner.IsPortAvailable(53, "udp"))
	assert.Empty(t, dialed)
}

// TestIsPortAvailable_OtherBindErrors verifies that bind failures other
// than a permission error still count as occupied without dialing.
func TestIsPortAvailable_OtherBindErrors(t *testing.T) {
	var dialed []string
	scanner := privilegedScanner(func() (net.Conn, error) { return nil, errors.New("unused") }, &dialed)
	scanner.listen = func(string, string) (net.Listener, error) {
		return nil, &net.OpError{Op: "listen", Net: "tcp", Err: os.NewSyscallError("bind", syscall.EADDRINUSE)}
	}

	assert.False(t, scanner.IsPortAvailable(8080, "tcp"))
	assert.Empty(t, dialed)
}
