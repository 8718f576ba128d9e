package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	ServerPort      string
	FrontendURL     string
	AppDatabaseURL  string
	AuthDatabaseURL string
	AuthDatabase    string
	RedisURL        string
	RabbitMQURL     string
	RateLimit       string
	RequestTimeout  int
	EnableHSTS      bool
	ServerDebugMode bool
	OTELEnabled     bool
	OTELEndpoint    string

	// The four signing keys, provisioned as base64-encoded PKCS1/PEM
	// values (see cmd/keygen). All four are required; the server refuses
	// to start without them.
	AccessTokenPublicKey   string
	AccessTokenPrivateKey  string
	RefreshTokenPublicKey  string
	RefreshTokenPrivateKey string
}

// Load loads configuration from the environment, reading a .env file first
// when one is present.
func Load() (*Config, error) {
	// A missing .env file is fine; real deployments provision the
	// environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		FrontendURL:     getEnv("FRONTEND_URL", "http://localhost:3000"),
		AppDatabaseURL:  getEnv("APP_DATABASE_URL", ""),
		AuthDatabaseURL: getEnv("AUTH_DATABASE_URL", ""),
		AuthDatabase:    getEnv("AUTH_DATABASE", "todo-auth"),
		RedisURL:        getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RabbitMQURL:     getEnv("RABBITMQ_URL", ""),
		RateLimit:       getEnv("RATE_LIMIT", "5-S"),
		RequestTimeout:  getEnvInt("REQUEST_TIMEOUT_SECONDS", 30),
		EnableHSTS:      getEnvBool("ENABLE_HSTS", false),
		ServerDebugMode: getEnvBool("SERVER_DEBUG_MODE", false),
		OTELEnabled:     getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		AccessTokenPublicKey:   getEnv("ACCESS_TOKEN_PUBLIC_KEY", ""),
		AccessTokenPrivateKey:  getEnv("ACCESS_TOKEN_PRIVATE_KEY", ""),
		RefreshTokenPublicKey:  getEnv("REFRESH_TOKEN_PUBLIC_KEY", ""),
		RefreshTokenPrivateKey: getEnv("REFRESH_TOKEN_PRIVATE_KEY", ""),
	}

	if cfg.AppDatabaseURL == "" {
		return nil, fmt.Errorf("APP_DATABASE_URL is required")
	}
	if cfg.AuthDatabaseURL == "" {
		return nil, fmt.Errorf("AUTH_DATABASE_URL is required")
	}
	for _, key := range []struct {
		name  string
		value string
	}{
		{"ACCESS_TOKEN_PUBLIC_KEY", cfg.AccessTokenPublicKey},
		{"ACCESS_TOKEN_PRIVATE_KEY", cfg.AccessTokenPrivateKey},
		{"REFRESH_TOKEN_PUBLIC_KEY", cfg.RefreshTokenPublicKey},
		{"REFRESH_TOKEN_PRIVATE_KEY", cfg.RefreshTokenPrivateKey},
	} {
		if key.value == "" {
			return nil, fmt.Errorf("%s is required (generate key material with cmd/keygen)", key.name)
		}
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
