// Command gatewayd runs the run engine's HTTP server.
package main

import (
	"os"

	"github.com/workflowai/gateway/cmd/gatewayd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
