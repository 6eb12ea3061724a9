// internal/config/config.go
package config

import (
	"errors"
	"os"
	"strconv"
)

// Config is assembled from environment variables (a .env file is
// loaded by the entrypoints before this runs).
type Config struct {
	ListenAddr  string
	StoreDir    string
	StoreSecret string

	GatewayURL string

	// Optional integrations; empty disables them.
	DatabaseURL  string // postgres activity log
	AMQPURL      string // event mirror
	AMQPExchange string

	SendRatePerMinute int // 0 = unlimited
	LogLevel          string
}

func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:        getEnv("LISTEN_ADDR", ":8080"),
		StoreDir:          getEnv("STORE_DIR", "./data"),
		StoreSecret:       os.Getenv("STORE_SECRET"),
		GatewayURL:        getEnv("GATEWAY_URL", "http://localhost:3000"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		AMQPURL:           os.Getenv("AMQP_URL"),
		AMQPExchange:      getEnv("AMQP_EXCHANGE", "campaign_events"),
		SendRatePerMinute: getEnvInt("SEND_RATE_PER_MINUTE", 0),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
	}

	if cfg.StoreSecret == "" {
		return nil, errors.New("config: STORE_SECRET is required")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
