//go:build !windows

package testutil

import (
	"net"
	"path/filepath"
	"testing"
)

// UnixSocket listens on a socket file and answers every connection with a
// line of garbage. Drivers pointed at it fail with a protocol error instead
// of "connection refused", which shows that the socket path was dialed.
type UnixSocket struct {
	Dir  string // directory holding the socket, usable as a PostgreSQL host
	Path string
}

// ListenUnixSocket creates socketName in a fresh temporary directory. The
// listener is closed when the test finishes.
func ListenUnixSocket(t *testing.T, socketName string) *UnixSocket {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, socketName)
	listener, err := net.Listen("unix", path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { listener.Close() })

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			conn.Write([]byte("not a database\n"))
			conn.Close()
		}
	}()

	return &UnixSocket{Dir: dir, Path: path}
}
