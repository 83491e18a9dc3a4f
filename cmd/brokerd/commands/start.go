package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marmos91/statebroker/internal/logger"
	"github.com/marmos91/statebroker/pkg/auth"
	"github.com/marmos91/statebroker/pkg/config"
	"github.com/marmos91/statebroker/pkg/debughttp"
	"github.com/marmos91/statebroker/pkg/lease"
	"github.com/marmos91/statebroker/pkg/lifecycle"
	"github.com/marmos91/statebroker/pkg/metrics"
	"github.com/marmos91/statebroker/pkg/protocol"
	"github.com/marmos91/statebroker/pkg/store"
	"github.com/marmos91/statebroker/pkg/sweeper"
	"github.com/marmos91/statebroker/pkg/transport"
)

var (
	foreground bool
	pidFile    string
	logFile    string
)

var startCmd = &cobra.Command{
	Use:   "start [-- command args...]",
	Short: "Start the broker",
	Long: `Start the broker: bind its socket/pipe endpoint, run the value store,
lease allocator, TTL sweeper, and observability surface, and block until a
signal or the optional supervised child process tells it to stop.

By default the broker runs as a background daemon. Use --foreground to run
in the current process, e.g. when managed by a process supervisor.

When a command follows "--", the broker spawns it with the endpoint path
and secret exported as environment variables, and drains-then-stops when
that command exits.

Examples:
  brokerd start
  brokerd start --foreground
  brokerd start -- ./my-test-harness
`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "run in the foreground instead of daemonizing")
	startCmd.Flags().StringVar(&pidFile, "pid-file", "", "path to PID file (foreground daemon re-exec only)")
	startCmd.Flags().StringVar(&logFile, "log-file", "", "path to log file for daemon mode")
}

func runStart(cmd *cobra.Command, args []string) error {
	if !foreground {
		return startDaemon(cmd, args)
	}

	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.LogLevel,
		Format: formatFor(cfg.StructuredLogging),
		Output: "stdout",
	}); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	reg := metrics.New()
	st := store.New(store.Config{
		DefaultTTLMs:  cfg.DefaultTTL.Milliseconds(),
		RequireTTL:    cfg.RequireTTL,
		MaxItems:      cfg.MaxItems,
		MaxValueBytes: int(cfg.MaxValueSize),
	}, reg)
	lt := lease.New(lease.Config{DefaultTTLMs: cfg.DefaultTTL.Milliseconds()}, reg.ForLease())
	a := auth.New(cfg.Secret)

	ep, err := transport.Listen(cfg.PipeID)
	if err != nil {
		return fmt.Errorf("bind endpoint: %w", err)
	}
	defer ep.Close()

	os.Setenv(lifecycle.EnvEndpoint, ep.Path)
	if cfg.Secret != "" {
		os.Setenv(lifecycle.EnvSecret, cfg.Secret)
	}

	state := &protocol.State{}
	pipeline := protocol.New(protocol.Config{
		MaxRequestBytes: int(cfg.MaxRequestSize),
		MaxItems:        cfg.MaxItems,
	}, st, lt, a, reg, state)

	sw := sweeper.New(sweeper.Config{Interval: cfg.SweeperInterval}, st, lt)
	sw.Start()
	defer sw.Stop()

	ctrl := lifecycle.New(lifecycle.Config{
		IdleTimeout:       cfg.IdleTimeout,
		HeartbeatInterval: cfg.HeartbeatInterval,
	}, state)
	if err := ctrl.Listening(); err != nil {
		return err
	}

	acceptErr := make(chan error, 1)
	go func() { acceptErr <- pipeline.Accept(ep.Listener()) }()

	var debugSrv *http.Server
	if cfg.Debug.Enabled {
		srv, err := debughttp.Serve(cfg.Debug.Addr, reg, pipeline.Health)
		if err != nil {
			logger.Warn("debug http server failed to start", logger.Err(err))
		} else {
			debugSrv = srv
			defer debugSrv.Close()
		}
	}

	logger.Info("broker listening", logger.Endpoint(ep.Path))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	childPID := 0
	childExitCode := 0
	childDone := make(chan struct{})
	if len(args) > 0 {
		childPID = spawnSupervisedChild(args, ep.Path, cfg.Secret, cancel, childDone, &childExitCode)
	} else {
		close(childDone)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	ctrl.Run(ctx, childPID)
	<-childDone

	logger.Info("broker stopped")

	if childPID != 0 && childExitCode != 0 {
		return childExitError{code: childExitCode}
	}
	return nil
}

// childExitError carries a supervised child's non-zero exit code out of
// runStart so main can exit brokerd itself with the same status, per the
// "drain-then-stop with the child's exit code" contract.
type childExitError struct{ code int }

func (e childExitError) Error() string {
	return fmt.Sprintf("supervised child exited with status %d", e.code)
}

func formatFor(structured bool) string {
	if structured {
		return "json"
	}
	return "text"
}

// startDaemon re-execs the current binary with "start --foreground" (and
// any command given after "--") in the background, detached from the
// controlling terminal.
func startDaemon(cmd *cobra.Command, args []string) error {
	stateDir := os.Getenv("XDG_STATE_HOME")
	if stateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolve home directory: %w", err)
		}
		stateDir = filepath.Join(home, ".local", "state")
	}
	brokerStateDir := filepath.Join(stateDir, "statebroker")
	if err := os.MkdirAll(brokerStateDir, 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	logPath := logFile
	if logPath == "" {
		logPath = filepath.Join(brokerStateDir, "brokerd.log")
	}

	daemonArgs := []string{"start", "--foreground"}
	if GetConfigFile() != "" {
		daemonArgs = append(daemonArgs, "--config", GetConfigFile())
	}
	if len(args) > 0 {
		daemonArgs = append(daemonArgs, "--")
		daemonArgs = append(daemonArgs, args...)
	}

	pid, err := lifecycle.Spawn(daemonArgs, "", "", logPath)
	if err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	if pidFile != "" {
		if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d", pid)), 0o644); err != nil {
			return fmt.Errorf("write pid file: %w", err)
		}
	}

	cmd.Printf("brokerd started in background (PID %d)\n", pid)
	cmd.Printf("  log file: %s\n", logPath)
	return nil
}
