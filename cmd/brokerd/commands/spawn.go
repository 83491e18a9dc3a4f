package commands

import (
	"context"
	"os"
	"os/exec"

	"github.com/marmos91/statebroker/internal/logger"
	"github.com/marmos91/statebroker/pkg/lifecycle"
)

// spawnSupervisedChild launches argv[0] with argv[1:] as its arguments,
// exporting the broker's endpoint (and secret, if set) into its
// environment so it can dial straight back in. It watches the child in
// the background and cancels ctx when the child exits, which unblocks
// the lifecycle controller's Run loop into drain-then-stop. The child's
// exit code is written to *exitCode before done is closed, so the caller
// can read it once it observes done closed. Returns the child's PID, or
// 0 if the process failed to start (logged, not fatal: the broker still
// runs standalone; *exitCode is left at its zero value in that case).
func spawnSupervisedChild(argv []string, endpoint, secret string, cancel context.CancelFunc, done chan<- struct{}, exitCode *int) int {
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = append(os.Environ(), lifecycle.EnvEndpoint+"="+endpoint)
	if secret != "" {
		cmd.Env = append(cmd.Env, lifecycle.EnvSecret+"="+secret)
	}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin

	if err := cmd.Start(); err != nil {
		logger.Error("failed to spawn supervised child", logger.Err(err))
		close(done)
		return 0
	}

	pid := cmd.Process.Pid
	logger.Info("spawned supervised child", logger.ChildPID(pid))

	go func() {
		err := cmd.Wait()
		if err != nil {
			logger.Warn("supervised child exited with error", logger.Err(err))
		} else {
			logger.Info("supervised child exited", logger.ChildPID(pid))
		}
		if cmd.ProcessState != nil {
			*exitCode = cmd.ProcessState.ExitCode()
		}
		cancel()
		close(done)
	}()

	return pid
}
