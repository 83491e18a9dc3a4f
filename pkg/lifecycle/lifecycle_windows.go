//go:build windows

package lifecycle

import "syscall"

// daemonSysProcAttr detaches the spawned child into its own process group
// so console signals (Ctrl+C) delivered to the parent's console do not
// reach it.
func daemonSysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}
