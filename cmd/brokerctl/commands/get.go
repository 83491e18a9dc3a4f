package commands

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/statebroker/pkg/client"
)

var getCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Fetch a key's value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		value, compressed, err := c.Get(args[0])
		if err != nil {
			return err
		}
		if compressed {
			raw, err := client.Decompress(args[0], value)
			if err != nil {
				return err
			}
			cmd.Println(string(raw))
			return nil
		}
		cmd.Println(string(value))
		return nil
	},
}
