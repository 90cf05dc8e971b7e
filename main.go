// prism is the terminal client for the OnyxPrism BI platform.
//
// Entry point: builds the Cobra command tree and launches the Bubble Tea
// dashboard by default (no subcommand required).
package main

import (
	"os"

	"github.com/onyxprism/prism/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
