package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/commissions")
	t.Setenv("RECALC_INTERVAL", "10s")
	t.Setenv("MASTER_USER_IDS", "1, 7")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.RecalcInterval)
	assert.Equal(t, []uint{1, 7}, cfg.MasterUserIDs)
	assert.Equal(t, "0 7 * * *", cfg.AgingCron)
}

func TestLoadRequiresDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsBadMasterIDs(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/commissions")
	t.Setenv("MASTER_USER_IDS", "1,abc")

	_, err := Load()
	assert.Error(t, err)
}
