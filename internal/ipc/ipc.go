// Package ipc locates and opens the local Unix socket the daemon serves the
// history service on. CLI subcommands and the popup probe it first and fall
// back to TCP when it is absent.
//
// The socket carries plain gRPC with no auth; access is restricted by the
// socket file's permissions.
package ipc

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"
)

const socketName = "clipstash.sock"

// SocketPath returns the socket location:
//
//   - $CLIPSTASH_SOCKET when set
//   - $XDG_RUNTIME_DIR/clipstash.sock on Linux desktops
//   - $TMPDIR/clipstash.sock otherwise
func SocketPath() string {
	if s := os.Getenv("CLIPSTASH_SOCKET"); s != "" {
		return s
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, socketName)
	}
	return filepath.Join(os.TempDir(), socketName)
}

// Target returns the gRPC dial target for path.
func Target(path string) string { return "unix://" + path }

// IsRunning reports whether something is listening on path. It does a cheap
// dial-and-close; no data is exchanged.
func IsRunning(path string) bool {
	c, err := net.DialTimeout("unix", path, 500*time.Millisecond)
	if err != nil {
		return false
	}
	_ = c.Close()
	return true
}

// Listen creates a listener on path, removing a stale socket left by a
// crashed run. It refuses to steal a socket that is still being served.
func Listen(path string) (net.Listener, error) {
	if IsRunning(path) {
		return nil, fmt.Errorf("ipc: %s already in use", path)
	}
	_ = os.Remove(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("ipc: %w", err)
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("ipc: listen %s: %w", path, err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		ln.Close()
		return nil, fmt.Errorf("ipc: chmod %s: %w", path, err)
	}
	return ln, nil
}
