// Command cosmo is the entry point for the Cosmic Works retail assistant.
// It provides a CLI interface (via Cobra) and an HTTP server that fronts
// the conversational agent for web clients.
package main

import (
	"fmt"
	"os"

	"github.com/cosmicworks/cosmo/cmd/cosmo/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
