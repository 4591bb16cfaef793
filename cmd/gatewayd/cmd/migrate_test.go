package cmd

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateCmd_RequiresDatabaseURL(t *testing.T) {
	old, hadOld := os.LookupEnv("GATEWAY_DATABASE_URL")
	require.NoError(t, os.Unsetenv("GATEWAY_DATABASE_URL"))
	defer func() {
		if hadOld {
			os.Setenv("GATEWAY_DATABASE_URL", old)
		}
	}()

	cmd := migrateCmd()
	err := cmd.RunE(cmd, nil)
	assert.ErrorContains(t, err, "GATEWAY_DATABASE_URL")
}
