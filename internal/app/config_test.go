package app

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("SESSION_SECRET", "session")
	t.Setenv("CSRF_SECRET", "csrf")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, "skip", cfg.ConversionStockPolicy)
	require.False(t, cfg.RejectStockShortfall())
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigRejectsUnknownStockPolicy(t *testing.T) {
	t.Setenv("SESSION_SECRET", "session")
	t.Setenv("CSRF_SECRET", "csrf")
	t.Setenv("CONVERSION_STOCK_POLICY", "maybe")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfigRejectPolicy(t *testing.T) {
	t.Setenv("SESSION_SECRET", "session")
	t.Setenv("CSRF_SECRET", "csrf")
	t.Setenv("CONVERSION_STOCK_POLICY", "reject")
	t.Setenv("APP_ENV", "production")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.True(t, cfg.RejectStockShortfall())
	require.True(t, cfg.IsProduction())
}
