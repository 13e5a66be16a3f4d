// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Payment settings
	FacilitatorURL string // x402 facilitator base URL
	BaseRPCURL     string // JSON-RPC endpoint for balance reads on Base
	SepoliaRPCURL  string // JSON-RPC endpoint for Base Sepolia

	// Discord
	DiscordToken string // Bot token; role grants fail without it

	// Security
	KeyEncryptionSecret string // 32-byte hex secret sealing custodial private keys
	ServiceToken        string // Shared token for the bot/dashboard backends
	RateLimitRPS        int
}

const (
	DefaultFacilitatorURL = "https://x402.org/facilitator"
	DefaultBaseRPCURL     = "https://mainnet.base.org"
	DefaultSepoliaRPCURL  = "https://sepolia.base.org"
	DefaultPort           = "8080"
	DefaultEnv            = "development"
	DefaultLogLevel       = "info"
	DefaultRateLimit      = 100
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                getEnv("PORT", DefaultPort),
		Env:                 getEnv("ENV", DefaultEnv),
		LogLevel:            getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:         os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		FacilitatorURL:      getEnv("FACILITATOR_URL", DefaultFacilitatorURL),
		BaseRPCURL:          getEnv("BASE_RPC_URL", DefaultBaseRPCURL),
		SepoliaRPCURL:       getEnv("SEPOLIA_RPC_URL", DefaultSepoliaRPCURL),
		DiscordToken:        os.Getenv("DISCORD_TOKEN"),
		KeyEncryptionSecret: os.Getenv("KEY_ENCRYPTION_SECRET"),
		ServiceToken:        os.Getenv("SERVICE_TOKEN"),
		RateLimitRPS:        int(getEnvInt64("RATE_LIMIT_RPS", int64(DefaultRateLimit))),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present
func (c *Config) Validate() error {
	if c.KeyEncryptionSecret == "" {
		return fmt.Errorf("KEY_ENCRYPTION_SECRET is required")
	}
	// Allow both with and without 0x prefix
	secret := c.KeyEncryptionSecret
	if len(secret) == 66 && secret[:2] == "0x" {
		secret = secret[2:]
	}
	if len(secret) != 64 {
		return fmt.Errorf("KEY_ENCRYPTION_SECRET must be 64 hex characters (32 bytes)")
	}

	if c.FacilitatorURL == "" {
		return fmt.Errorf("FACILITATOR_URL is required")
	}

	if c.IsProduction() {
		if c.DiscordToken == "" {
			return fmt.Errorf("DISCORD_TOKEN is required in production")
		}
		if c.ServiceToken == "" {
			return fmt.Errorf("SERVICE_TOKEN is required in production")
		}
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}
