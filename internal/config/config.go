package config

import (
	"errors"
	"os"
	"strings"
)

// Config holds the service configuration, loaded from environment variables.
type Config struct {
	Port           string
	RedisAddr      string
	JWTSecret      string
	AllowedOrigins []string
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnvOrDefault("PORT", "8080"),
		RedisAddr:      getEnvOrDefault("REDIS_ADDR", "redis:6379"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		AllowedOrigins: splitList(getEnvOrDefault("ALLOWED_ORIGINS", "*")),
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Port == "" {
		return errors.New("PORT must not be empty")
	}
	if cfg.RedisAddr == "" {
		return errors.New("REDIS_ADDR must not be empty")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
