package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlexeySalamakhin/storefront/cmd/storefront/config"
	"github.com/AlexeySalamakhin/storefront/cmd/storefront/db"
)

func TestMigrateCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.db")
	t.Setenv("DATABASE_URI", path)

	cmd := rootCmd(config.New())
	cmd.SetArgs([]string{"migrate", "--log-level", "warn"})
	require.NoError(t, cmd.Execute())

	conn, err := db.Init(path)
	require.NoError(t, err)
	defer conn.Close()

	var tables int
	err = conn.QueryRowContext(context.Background(), `SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN ('loyalty_balances', 'loyalty_history', 'orders')`).Scan(&tables)
	require.NoError(t, err)
	assert.Equal(t, 3, tables)
}

func TestRootCommand_FlagsBindConfig(t *testing.T) {
	cfg := config.New()
	cmd := rootCmd(cfg)
	serve, _, err := cmd.Find([]string{"serve"})
	require.NoError(t, err)
	require.NoError(t, serve.Flags().Parse([]string{"-a", ":9999", "--history-limit", "25"}))
	assert.Equal(t, ":9999", cfg.RunAddress)
	assert.Equal(t, 25, cfg.HistoryLimit)
}
