// Command brokerctl is a one-shot client for the state broker.
package main

import (
	"fmt"
	"os"

	"github.com/marmos91/statebroker/cmd/brokerctl/commands"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.Version = version
	commands.Commit = commit
	commands.Date = date

	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
