package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/workflowai/gateway/core"
	"github.com/workflowai/gateway/store"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending run-persistence schema migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			dsn := os.Getenv("GATEWAY_DATABASE_URL")
			if dsn == "" {
				return fmt.Errorf("GATEWAY_DATABASE_URL is required")
			}
			logger := &core.NoOpLogger{}
			st, err := store.Open(context.Background(), dsn, logger)
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			defer st.Close()
			fmt.Println("migrations applied")
			return nil
		},
	}
}
