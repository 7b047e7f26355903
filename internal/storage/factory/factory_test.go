package factory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipworks/clipfarm/pkg/config"
	"github.com/clipworks/clipfarm/pkg/logger"
)

// With no hosted backend configured the factory must land on sqlite and
// seed the auto-posting switches off.
func TestSelectsSqliteWhenNothingElseConfigured(t *testing.T) {
	cfg := &config.Config{}
	cfg.Sqlite.Path = filepath.Join(t.TempDir(), "clipfarm.db")

	gateway, err := New(context.Background(), cfg, logger.New(logger.Opts{}))
	require.NoError(t, err)
	defer gateway.Close(context.Background())

	assert.Equal(t, "sqlite", gateway.Name())

	for _, key := range []string{"auto_posting_enabled", "auto_posting_tiktok"} {
		value, err := gateway.GetSetting(context.Background(), key)
		require.NoError(t, err)
		assert.Equal(t, "0", value)
	}
}

// Seeding must not clobber a switch the operator already flipped.
func TestSeedingPreservesExistingSettings(t *testing.T) {
	cfg := &config.Config{}
	cfg.Sqlite.Path = filepath.Join(t.TempDir(), "clipfarm.db")
	ctx := context.Background()

	gateway, err := New(ctx, cfg, logger.New(logger.Opts{}))
	require.NoError(t, err)
	require.NoError(t, gateway.SetSetting(ctx, "auto_posting_enabled", "1"))
	require.NoError(t, gateway.Close(ctx))

	gateway, err = New(ctx, cfg, logger.New(logger.Opts{}))
	require.NoError(t, err)
	defer gateway.Close(ctx)

	value, err := gateway.GetSetting(ctx, "auto_posting_enabled")
	require.NoError(t, err)
	assert.Equal(t, "1", value)
}
