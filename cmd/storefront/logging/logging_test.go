package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlexeySalamakhin/storefront/cmd/storefront/config"
)

func TestNew_WritesRotatingFile(t *testing.T) {
	cfg := config.New()
	cfg.LogFile = filepath.Join(t.TempDir(), "storefront.log")

	logger, err := New(cfg)
	require.NoError(t, err)
	logger.Info("ledger ready")
	_ = logger.Sync()

	data, err := os.ReadFile(cfg.LogFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ledger ready")
}

func TestNew_RejectsBadSettings(t *testing.T) {
	cfg := config.New()
	cfg.LogLevel = "loud"
	_, err := New(cfg)
	assert.Error(t, err)

	cfg = config.New()
	cfg.LogFormat = "xml"
	_, err = New(cfg)
	assert.Error(t, err)
}
