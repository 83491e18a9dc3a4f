//go:build windows

package client

import (
	"context"
	"net"

	winio "github.com/Microsoft/go-winio"
)

func dialEndpoint(path string) (net.Conn, error) {
	return winio.DialPipeContext(context.Background(), path)
}
