package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port            int
	GeminiAPIKey    string
	Model           string
	Temperature     float64
	SearchGrounding bool
	StorageDriver   string
	SQLitePath      string
	DatabaseURL     string
	NatsURL         string
	NatsToken       string
	LogLevel        string
}

func Load() Config {
	return Config{
		Port:            envInt("NEXTSTEP_PORT", 8780),
		GeminiAPIKey:    envStr("GEMINI_API_KEY", ""),
		Model:           envStr("NEXTSTEP_MODEL", "gemini-2.5-flash"),
		Temperature:     envFloat("NEXTSTEP_TEMPERATURE", 0.7),
		SearchGrounding: envBool("NEXTSTEP_SEARCH", true),
		StorageDriver:   envStr("STORAGE_DRIVER", "sqlite"),
		SQLitePath:      envStr("SQLITE_PATH", "data/nextstep.db"),
		DatabaseURL:     envStr("DATABASE_URL", ""),
		NatsURL:         envStr("NATS_URL", ""),
		NatsToken:       envStr("NATS_TOKEN", ""),
		LogLevel:        envStr("LOG_LEVEL", "info"),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
