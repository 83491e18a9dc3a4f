// Package commands implements brokerctl's one-shot client subcommands.
package commands

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/statebroker/pkg/client"
	"github.com/marmos91/statebroker/pkg/lifecycle"
)

var errNoEndpoint = errors.New("no broker endpoint: pass --endpoint or set " + lifecycle.EnvEndpoint)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	endpointFlag string
	secretFlag   string
	timeoutFlag  time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "brokerctl",
	Short: "One-shot client for the state broker",
	Long: `brokerctl issues a single request against a running broker and prints
its response, for use from shell scripts or interactive debugging.

The broker's endpoint path is read from --endpoint, or from the
STATEBROKER_ENDPOINT environment variable a spawned child inherits from
"brokerd start -- ...". A secret follows the same precedence with --secret
and STATEBROKER_SECRET.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called once from main.main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&endpointFlag, "endpoint", os.Getenv(lifecycle.EnvEndpoint), "broker socket/pipe path")
	rootCmd.PersistentFlags().StringVar(&secretFlag, "secret", os.Getenv(lifecycle.EnvSecret), "HMAC secret, if the broker requires auth")
	rootCmd.PersistentFlags().DurationVar(&timeoutFlag, "timeout", 5*time.Second, "connect timeout")

	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(delCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(leaseCmd)
	rootCmd.AddCommand(releaseCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("brokerctl %s (commit: %s, built: %s)\n", Version, Commit, Date)
	},
}

func dial(cmd *cobra.Command) (*client.Client, error) {
	if endpointFlag == "" {
		return nil, errNoEndpoint
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeoutFlag)
	defer cancel()
	return client.Dial(ctx, client.Config{
		Endpoint:       endpointFlag,
		Secret:         secretFlag,
		ConnectTimeout: timeoutFlag,
	})
}
