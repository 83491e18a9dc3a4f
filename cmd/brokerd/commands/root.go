// Package commands implements the brokerd CLI's subcommands.
package commands

import (
	"errors"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "brokerd",
	Short: "statebroker - an ephemeral key/value and lease broker",
	Long: `brokerd runs the state broker: an ephemeral, single-host key/value store
and lease allocator served over a Unix domain socket (or Windows named pipe),
intended for coordination between short-lived processes on one machine.

Use "brokerd [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and runs it. Called
// once from main.main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file (default: built-in defaults + environment)")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// GetConfigFile returns the --config flag value.
func GetConfigFile() string {
	return cfgFile
}

// Exit prints an error to stderr and exits with status 1.
func Exit(format string, args ...any) {
	rootCmd.PrintErrf(format+"\n", args...)
	os.Exit(1)
}

// ExitCodeFor returns the process exit status Execute's error implies: a
// supervised child's own exit code if err wraps one (see childExitError in
// start.go), 0 for a nil error, or 1 for any other error.
func ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	var childErr childExitError
	if errors.As(err, &childErr) {
		return childErr.code
	}
	return 1
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("brokerd %s (commit: %s, built: %s)\n", Version, Commit, Date)
	},
}
