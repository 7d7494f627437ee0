package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// RPC endpoint of the Ethereum-compatible node
	RPCURL string

	// Address of the lock factory contract
	UnlockAddress string

	// Expected block period, used as the base poll interval
	BlockTime time.Duration

	// Blocks mined on top of a transaction before it counts as confirmed
	RequiredConfirmations uint64

	// Polls without the transaction landing in a block before giving up
	MaxPollAttempts int

	// Cap on the poll backoff
	MaxPollDelay time.Duration

	// Optional PostgreSQL mirror of the materialized view ( empty disables it )
	DatabaseURL string

	// HTTP API port
	APIPort int

	// Log level: debug, info, warn, error
	LogLevel string
}

// Load reads the configuration from environment variables
func Load() *Config {
	return &Config{
		RPCURL:                os.Getenv("RPC_URL"),
		UnlockAddress:         os.Getenv("UNLOCK_ADDRESS"),
		BlockTime:             time.Duration(getEnvAsInt("BLOCK_TIME_MS", 12000)) * time.Millisecond,
		RequiredConfirmations: uint64(getEnvAsInt("REQUIRED_CONFIRMATIONS", 12)),
		MaxPollAttempts:       getEnvAsInt("MAX_POLL_ATTEMPTS", 30),
		MaxPollDelay:          time.Duration(getEnvAsInt("MAX_POLL_DELAY_MS", 60000)) * time.Millisecond,
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		APIPort:               getEnvAsInt("API_PORT", 8080),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("RPC_URL is required")
	}
	if c.BlockTime <= 0 {
		return fmt.Errorf("BLOCK_TIME_MS must be positive")
	}
	if c.MaxPollAttempts <= 0 {
		return fmt.Errorf("MAX_POLL_ATTEMPTS must be positive")
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("API_PORT out of range: %d", c.APIPort)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}
