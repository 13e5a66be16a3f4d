package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("KEY_ENCRYPTION_SECRET", testSecret)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultEnv, cfg.Env)
	assert.Equal(t, DefaultFacilitatorURL, cfg.FacilitatorURL)
	assert.Equal(t, DefaultRateLimit, cfg.RateLimitRPS)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("KEY_ENCRYPTION_SECRET", testSecret)
	t.Setenv("PORT", "9000")
	t.Setenv("FACILITATOR_URL", "https://facilitator.internal")
	t.Setenv("RATE_LIMIT_RPS", "25")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "https://facilitator.internal", cfg.FacilitatorURL)
	assert.Equal(t, 25, cfg.RateLimitRPS)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Env:                 "development",
			FacilitatorURL:      DefaultFacilitatorURL,
			KeyEncryptionSecret: testSecret,
		}
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, base().Validate())
	})

	t.Run("0x prefix accepted", func(t *testing.T) {
		cfg := base()
		cfg.KeyEncryptionSecret = "0x" + testSecret
		assert.NoError(t, cfg.Validate())
	})

	t.Run("missing encryption secret", func(t *testing.T) {
		cfg := base()
		cfg.KeyEncryptionSecret = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("short encryption secret", func(t *testing.T) {
		cfg := base()
		cfg.KeyEncryptionSecret = "abcd"
		assert.Error(t, cfg.Validate())
	})

	t.Run("production requires discord and service tokens", func(t *testing.T) {
		cfg := base()
		cfg.Env = "production"
		assert.Error(t, cfg.Validate())

		cfg.DiscordToken = "bot-token"
		assert.Error(t, cfg.Validate())

		cfg.ServiceToken = "svc-token"
		assert.NoError(t, cfg.Validate())
	})
}
