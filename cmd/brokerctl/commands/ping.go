package commands

import (
	"github.com/spf13/cobra"
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the broker is alive",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		pong, err := c.Ping()
		if err != nil {
			return err
		}
		cmd.Printf("pong %d\n", pong)
		return nil
	},
}
