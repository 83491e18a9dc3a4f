package commands

import (
	"time"

	"github.com/spf13/cobra"
)

var leaseTTL time.Duration

var leaseCmd = &cobra.Command{
	Use:   "lease <pool-key> <worker-id>",
	Short: "Acquire or renew a lease, printing the assigned integer",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		var ttl *time.Duration
		if cmd.Flags().Changed("ttl") {
			ttl = &leaseTTL
		}

		assigned, err := c.Lease(args[0], args[1], ttl)
		if err != nil {
			return err
		}
		cmd.Println(assigned)
		return nil
	},
}

func init() {
	leaseCmd.Flags().DurationVar(&leaseTTL, "ttl", 0, "lease TTL; omit to use the broker's default_ttl")
}
