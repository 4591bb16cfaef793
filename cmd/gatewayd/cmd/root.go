package cmd

import (
	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "gatewayd",
	Short: "gatewayd runs the LLM run engine's HTTP gateway",
	Long:  "gatewayd serves the OpenAI-compatible chat completions surface and the native run/agent API, backed by Postgres run persistence and an optional Redis run cache.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to a .env-style config file (accepted but not read; configuration comes from environment variables)")
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
}

// Execute runs the root cobra command.
func Execute() error {
	return rootCmd.Execute()
}
