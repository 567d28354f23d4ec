package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SERVER_PORT", "")
	t.Setenv("MARKET_DEFAULTS_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, uint64(1_000_000), cfg.Defaults.CurrencyScale)
	assert.Equal(t, "constant_product", cfg.Defaults.Curve)
	assert.True(t, cfg.RequireSignatures)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, 5*time.Minute, cfg.SignatureMaxAge)
	assert.Equal(t, uint8(6), cfg.Defaults.ClaimDecimals)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("MIN_TRADE", "5")
	t.Setenv("MAX_TRADE", "500")
	t.Setenv("REQUIRE_SIGNATURES", "false")
	t.Setenv("LIFECYCLE_INTERVAL", "2s")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("RATE_LIMIT_RPS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.ServerPort)
	assert.Equal(t, uint64(5), cfg.MinTrade)
	assert.Equal(t, uint64(500), cfg.MaxTrade)
	assert.False(t, cfg.RequireSignatures)
	assert.Equal(t, 2*time.Second, cfg.LifecycleInterval)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	// Unparseable values fall back to the default.
	assert.Equal(t, 20.0, cfg.RateLimitRPS)
}

func TestLoadMarketDefaultsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "markets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
curve: lmsr
fee_bps: 150
lmsr_b: 250
duration: 72h
`), 0o600))
	t.Setenv("MARKET_DEFAULTS_FILE", path)
	t.Setenv("CURRENCY_SCALE", "1000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "lmsr", cfg.Defaults.Curve)
	assert.Equal(t, uint32(150), cfg.Defaults.FeeBps)
	assert.Equal(t, uint64(250), cfg.Defaults.LMSRB)
	assert.Equal(t, 72*time.Hour, cfg.Defaults.Duration)
	// Fields absent from the file keep their environment values.
	assert.Equal(t, uint64(1000), cfg.Defaults.CurrencyScale)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"CURRENCY_SCALE", "0"},
		{"CLAIM_DECIMALS", "19"},
		{"DEFAULT_FEE_BPS", "10001"},
		{"CLAIM_DECIMALS", "260"},
		{"DEFAULT_FEE_BPS", "4294967297"},
		{"DEFAULT_FEE_BPS", "-1"},
		{"SIGNATURE_MAX_AGE", "0s"},
		{"LOG_LEVEL", "chatty"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			t.Setenv("MARKET_DEFAULTS_FILE", "")
			_, err := Load()
			require.Error(t, err)
		})
	}

	t.Run("min above max", func(t *testing.T) {
		t.Setenv("MIN_TRADE", "10")
		t.Setenv("MAX_TRADE", "5")
		_, err := Load()
		require.Error(t, err)
	})

	t.Run("missing defaults file", func(t *testing.T) {
		t.Setenv("MARKET_DEFAULTS_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
		_, err := Load()
		require.Error(t, err)
	})
}
