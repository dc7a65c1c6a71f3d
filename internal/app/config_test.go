package app

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_DefaultsWithoutFile(t *testing.T) {
	t.Setenv("CATALOG_CONFIG_PATH", "")
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.Link.VerifyWrites)
	assert.False(t, cfg.Link.ConditionalUpdates)
	assert.Equal(t, 5*time.Second, cfg.Link.StoreTimeout.Std())
	assert.Equal(t, "report", cfg.Reconcile.Mode)
	assert.True(t, cfg.Reconcile.Dedupe)
	assert.True(t, cfg.Reconcile.ReplayPending)
	assert.Equal(t, "sqlite", cfg.Mirror.Driver)
	assert.Equal(t, string(LedgerBackendDB), cfg.Ledger.Backend)
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9000"
  cors_origins: ["http://a.test"]
store:
  base_url: "http://restheart:8080"
  database: shop
  timeout: 3s
link:
  verify_writes: false
  conditional_updates: true
  store_timeout: 750ms
reconcile:
  mode: repair
  interval: 1m
`)
	t.Setenv("CATALOG_CONFIG_PATH", path)
	t.Setenv("PORT", "")
	t.Setenv("CATALOG_HTTP_ADDR", "")
	t.Setenv("CATALOG_STORE_DATABASE", "override")
	t.Setenv("CATALOG_CORS_ORIGINS", "http://b.test, http://c.test")
	t.Setenv("CATALOG_RECONCILE_DEDUPE", "false")
	t.Setenv("CATALOG_RECONCILE_REPLAY_PENDING", "false")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, []string{"http://b.test", "http://c.test"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "http://restheart:8080", cfg.Store.BaseURL)
	assert.Equal(t, "override", cfg.Store.Database)
	assert.Equal(t, 3*time.Second, cfg.Store.Timeout.Std())
	assert.Equal(t, "item", cfg.Store.ItemCollection)
	assert.False(t, cfg.Link.VerifyWrites)
	assert.True(t, cfg.Link.ConditionalUpdates)
	assert.Equal(t, 750*time.Millisecond, cfg.Link.StoreTimeout.Std())
	assert.Equal(t, time.Minute, cfg.Reconcile.Interval.Std())
	assert.False(t, cfg.Reconcile.Dedupe)
	assert.False(t, cfg.Reconcile.ReplayPending)
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Run("explicit path missing", func(t *testing.T) {
		t.Setenv("CATALOG_CONFIG_PATH", filepath.Join(t.TempDir(), "nope.yaml"))
		_, err := LoadConfig()
		assert.Error(t, err)
	})
	t.Run("bad duration", func(t *testing.T) {
		t.Setenv("CATALOG_CONFIG_PATH", writeConfig(t, "link:\n  store_timeout: soon\n"))
		_, err := LoadConfig()
		assert.Error(t, err)
	})
	t.Run("bad mode", func(t *testing.T) {
		t.Setenv("CATALOG_CONFIG_PATH", writeConfig(t, "reconcile:\n  mode: fix\n"))
		_, err := LoadConfig()
		assert.ErrorContains(t, err, "reconcile.mode")
	})
}

func TestResolveLedgerBackend(t *testing.T) {
	cases := []struct {
		name string
		cfg  LedgerConfig
		want LedgerBackend
		code LedgerConfigErrorCode
	}{
		{"empty is db", LedgerConfig{}, LedgerBackendDB, ""},
		{"none", LedgerConfig{Backend: " None "}, LedgerBackendNone, ""},
		{"redis", LedgerConfig{Backend: "redis", Redis: RedisLedgerConfig{Addr: "localhost:6379"}}, LedgerBackendRedis, ""},
		{"redis without addr", LedgerConfig{Backend: "redis"}, "", LedgerConfigErrorMissingAddr},
		{"redis negative db", LedgerConfig{Backend: "redis", Redis: RedisLedgerConfig{Addr: "x:1", DB: -1}}, "", LedgerConfigErrorInvalidDB},
		{"unknown", LedgerConfig{Backend: "kafka"}, "", LedgerConfigErrorUnknownBackend},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := resolveLedgerBackend(tc.cfg)
			if tc.code == "" {
				require.NoError(t, err)
				assert.Equal(t, tc.want, got)
				return
			}
			var cerr *LedgerConfigError
			require.True(t, errors.As(err, &cerr))
			assert.Equal(t, tc.code, cerr.Code)
		})
	}
}

func TestReconcilePolicyFromConfig(t *testing.T) {
	p, err := reconcilePolicy(ReconcileConfig{Mode: "repair", Dedupe: true})
	require.NoError(t, err)
	assert.Equal(t, "repair", string(p.Mode))
	assert.True(t, p.Dedupe)

	_, err = reconcilePolicy(ReconcileConfig{Mode: "bogus"})
	assert.Error(t, err)
}
