package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"labdesk/internal/config"
)

func TestOpenLedgerStore_Memory(t *testing.T) {
	cfg := &config.Config{Store: config.StoreConfig{Driver: "memory"}}

	store, db, err := OpenLedgerStore(cfg)

	require.NoError(t, err)
	assert.Nil(t, db)
	require.NoError(t, store.Set(context.Background(), "k", []byte(`[]`)))
}

func TestOpenLedgerStore_UnknownDriver(t *testing.T) {
	_, _, err := OpenLedgerStore(&config.Config{Store: config.StoreConfig{Driver: "redis"}})

	assert.ErrorContains(t, err, "unknown store driver")
}

func TestNewAlertSender(t *testing.T) {
	noopCfg := &config.Config{Alert: config.AlertConfig{Provider: "noop"}}
	s, err := NewAlertSender(noopCfg, zap.NewNop())
	require.NoError(t, err)
	assert.NotNil(t, s)

	noopCfg.Reconcile.AlertWindowMins = 30
	s, err = NewAlertSender(noopCfg, zap.NewNop())
	require.NoError(t, err)
	assert.NotNil(t, s)

	_, err = NewAlertSender(&config.Config{Alert: config.AlertConfig{Provider: "pager"}}, zap.NewNop())
	assert.ErrorContains(t, err, "unknown alert provider")

	_, err = NewAlertSender(&config.Config{Alert: config.AlertConfig{Provider: "ses", Region: "ap-south-1"}}, zap.NewNop())
	assert.Error(t, err)
}
