//go:build !windows

package lifecycle

import "syscall"

// daemonSysProcAttr detaches the spawned child into its own session so it
// survives the parent exiting and does not receive the parent's signals.
func daemonSysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}
