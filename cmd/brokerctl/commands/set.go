package commands

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/statebroker/pkg/client"
)

var setTTL time.Duration

var setCmd = &cobra.Command{
	Use:   "set <key> <json-value>",
	Short: "Store a value under key",
	Long: `Store a value under key. The value argument is parsed as JSON; pass a
quoted string for a plain string value.

Examples:
  brokerctl set session/42 '"active"'
  brokerctl set counters/hits 17 --ttl 1m`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		var value any
		if err := json.Unmarshal([]byte(args[1]), &value); err != nil {
			return err
		}

		opts := client.SetOptions{}
		if cmd.Flags().Changed("ttl") {
			opts.TTL = &setTTL
		}
		return c.Set(args[0], value, opts)
	},
}

func init() {
	setCmd.Flags().DurationVar(&setTTL, "ttl", 0, "entry TTL; omit to use the broker's default_ttl")
}
