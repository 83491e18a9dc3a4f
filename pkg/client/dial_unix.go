//go:build !windows

package client

import "net"

func dialEndpoint(path string) (net.Conn, error) {
	return net.Dial("unix", path)
}
