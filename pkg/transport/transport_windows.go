//go:build windows

package transport

import (
	"fmt"
	"net"

	"github.com/Microsoft/go-winio"
)

// Listen creates a named pipe endpoint of the form \\.\pipe\broker-<id>.
// Windows has no stale-endpoint concept: a name left by a crashed process
// is simply unbound and available for reuse, so there is no probe/reclaim
// step here.
func Listen(pipeIDOverride string) (*Endpoint, error) {
	id, err := pipeID(pipeIDOverride)
	if err != nil {
		return nil, err
	}
	path := `\\.\pipe\broker-` + id

	ln, err := winio.ListenPipe(path, &winio.PipeConfig{
		// Default ACL of the creating user; see the residual risk noted
		// for multi-user Windows hosts.
		MessageMode: false,
	})
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", path, err)
	}

	return &Endpoint{Path: path, listener: net.Listener(ln)}, nil
}

// Close stops listening. Closing the pipe listener is sufficient; there is
// no filesystem entry to unlink.
func (e *Endpoint) Close() error {
	if e.listener != nil {
		return e.listener.Close()
	}
	return nil
}
