// Command brokerd runs the state broker daemon.
package main

import (
	"fmt"
	"os"

	"github.com/marmos91/statebroker/cmd/brokerd/commands"
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

	err := commands.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	if code := commands.ExitCodeFor(err); code != 0 {
		os.Exit(code)
	}
}
