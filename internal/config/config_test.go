package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labdesk/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")

	cfg, err := config.Load()

	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, int64(5), cfg.Receipt.MaxSizeMB)
	assert.Equal(t, int64(5*1024*1024), cfg.Receipt.MaxBytes())
	assert.Equal(t, "0.01", cfg.Reconcile.DriftTolerance.String())
	assert.Equal(t, "noop", cfg.Alert.Provider)
	assert.Empty(t, cfg.Alert.Recipients)
	assert.Equal(t, "INR", cfg.Billing.Currency)
	assert.Equal(t, 30*time.Second, cfg.LabAPI.Timeout)
	assert.Equal(t, []string{"http://localhost:3000", "http://127.0.0.1:3000"}, cfg.CORS.AllowedOrigins)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("LABDESK_LABAPI_BASE_URL", "https://lab.example.com/api/")
	t.Setenv("LABDESK_STORE_DRIVER", "Memory")
	t.Setenv("LABDESK_ALERT_RECIPIENTS", "ops@example.com, , billing@example.com")
	t.Setenv("LABDESK_RECONCILE_DRIFT_TOLERANCE", "0.5")
	t.Setenv("LABDESK_BILLING_CURRENCY", "usd")

	cfg, err := config.Load()

	require.NoError(t, err)
	assert.Equal(t, "https://lab.example.com/api", cfg.LabAPI.BaseURL)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, []string{"ops@example.com", "billing@example.com"}, cfg.Alert.Recipients)
	assert.Equal(t, "0.5", cfg.Reconcile.DriftTolerance.String())
	assert.Equal(t, "USD", cfg.Billing.Currency)
}

func TestLoad_PlatformPort(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LABDESK_SERVER_PORT", "")

	cfg, err := config.Load()

	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Port)
}

func TestLoad_InvalidTolerance(t *testing.T) {
	t.Setenv("LABDESK_RECONCILE_DRIFT_TOLERANCE", "-1")

	_, err := config.Load()

	assert.Error(t, err)
}

func TestLoad_NonPositivePollInterval(t *testing.T) {
	for _, v := range []string{"0", "-5"} {
		t.Setenv("LABDESK_RECONCILE_POLL_INTERVAL_SECS", v)

		_, err := config.Load()

		assert.Error(t, err, v)
	}
}

func TestDBConfig_DSN(t *testing.T) {
	db := config.DBConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "n", SSLMode: "disable"}

	assert.Equal(t, "postgres://u:p@db:5432/n?sslmode=disable", db.DSN())
}
