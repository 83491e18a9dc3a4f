package commands

import (
	"github.com/spf13/cobra"
)

var releaseCmd = &cobra.Command{
	Use:   "release <worker-id>",
	Short: "Release a worker's lease, if any",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		released, err := c.Release(args[0])
		if err != nil {
			return err
		}
		cmd.Println(released)
		return nil
	},
}
