package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Auth        AuthConfig
	Payments    PaymentsConfig
	Email       EmailConfig
	Storage     StorageConfig
	RateLimit   RateLimitConfig
	Logging     LoggingConfig
	Environment string
}

type ServerConfig struct {
	Host      string
	Port      int
	BaseURL   string
	FrontendURL string
}

type DatabaseConfig struct {
	URL            string
	MaxConnections int
	MaxIdle        int
}

type AuthConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessExpiry  time.Duration
	Issuer        string
}

type PaymentsConfig struct {
	ProviderKeyID     string
	ProviderKeySecret string
	WebhookSecret     string
	Currency          string
	CallTimeout       time.Duration
}

type EmailConfig struct {
	Enabled      bool
	From         string
	ResendAPIKey string

	// OperatorAddr receives payment reconciliation notices. Empty
	// disables them.
	OperatorAddr string
}

type StorageConfig struct {
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	URLExpiry time.Duration
}

type RateLimitConfig struct {
	PublicPerMinute int
	LoginPerMinute  int
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host:        getEnv("SERVER_HOST", "0.0.0.0"),
			Port:        getEnvInt("SERVER_PORT", 8080),
			BaseURL:     getEnv("SERVER_BASE_URL", "http://localhost:8080"),
			FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConnections: getEnvInt("DATABASE_MAX_CONNECTIONS", 25),
			MaxIdle:        getEnvInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
		},
		Auth: AuthConfig{
			AccessSecret:  getEnv("JWT_SECRET", ""),
			RefreshSecret: getEnv("JWT_REFRESH_TOKEN_SECRET", ""),
			AccessExpiry:  time.Duration(getEnvInt("JWT_ACCESS_EXPIRY_MINUTES", 10)) * time.Minute,
			Issuer:        getEnv("JWT_ISSUER", "get-me-through"),
		},
		Payments: PaymentsConfig{
			ProviderKeyID:     getEnv("RZRPAY_ID", ""),
			ProviderKeySecret: getEnv("RZRPAY_SECRET", ""),
			WebhookSecret:     getEnv("RZRPAY_WEBHOOK_SECRET", ""),
			Currency:          getEnv("PAYMENT_CURRENCY", "INR"),
			CallTimeout:       time.Duration(getEnvInt("PAYMENT_CALL_TIMEOUT_SECONDS", 10)) * time.Second,
		},
		Email: EmailConfig{
			Enabled:      getEnvBool("EMAIL_ENABLED", false),
			From:         getEnv("EMAIL_FROM", ""),
			ResendAPIKey: getEnv("RESEND_API_KEY", ""),
			OperatorAddr: getEnv("OPERATOR_EMAIL", ""),
		},
		Storage: StorageConfig{
			Bucket:    getEnv("S3_BUCKET", ""),
			Region:    getEnv("S3_REGION", "ap-south-1"),
			AccessKey: getEnv("S3_ACCESS_KEY_ID", ""),
			SecretKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
			URLExpiry: time.Duration(getEnvInt("S3_URL_EXPIRY_MINUTES", 15)) * time.Minute,
		},
		RateLimit: RateLimitConfig{
			PublicPerMinute: getEnvInt("RATE_LIMIT_PUBLIC", 120),
			LoginPerMinute:  getEnvInt("RATE_LIMIT_LOGIN", 10),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Environment: getEnv("ENVIRONMENT", "development"),
	}

	if cfg.Database.URL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.Auth.AccessSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.Auth.RefreshSecret == "" {
		return Config{}, fmt.Errorf("JWT_REFRESH_TOKEN_SECRET is required")
	}
	if cfg.Email.Enabled && cfg.Email.ResendAPIKey == "" {
		return Config{}, fmt.Errorf("RESEND_API_KEY is required when EMAIL_ENABLED=true")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
