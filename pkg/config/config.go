package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Auth          AuthConfig
	Extraction    ExtractionConfig
	Storage       StorageConfig
	Mail          MailConfig
	Push          PushConfig
	Cron          CronConfig
	Observability ObservabilityConfig
	Profiling     ProfilingConfig
}

type ServerConfig struct {
	Host               string
	Port               int
	BaseURL            string
	RateLimitPerSecond int
	RateLimitBurst     int
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

type AuthConfig struct {
	JWTSecret     string
	AdminEmail    string
	TokenTTLHours int
}

// ExtractionConfig carries the statement extraction tunables. MaxAmount is
// whole pounds; the extractor turns it into a decimal ceiling.
type ExtractionConfig struct {
	MaxPages       int
	MaxAmount      int
	MaxFutureYears int
}

type StorageConfig struct {
	Dir         string
	MaxUploadMB int
}

// MailConfig configures the monthly treasurer report. An empty APIKey
// disables outbound mail without disabling report generation.
type MailConfig struct {
	ResendAPIKey string
	FromEmail    string
	ReportEmail  string
}

// PushConfig points report notifications at a committee webhook.
type PushConfig struct {
	WebhookURL string
}

type CronConfig struct {
	Enabled bool
}

type ObservabilityConfig struct {
	MetricsEnabled bool
	MetricsPort    int
}

type ProfilingConfig struct {
	Enabled bool
	Port    int
}

// Load reads configuration from the environment, after loading a .env file
// when one is present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:               getEnv("SERVER_HOST", "localhost"),
			Port:               getEnvAsInt("SERVER_PORT", 8080),
			BaseURL:            getEnv("BASE_URL", "http://localhost:8080"),
			RateLimitPerSecond: getEnvAsInt("SERVER_RATE_LIMIT_PER_SECOND", 100),
			RateLimitBurst:     getEnvAsInt("SERVER_RATE_LIMIT_BURST", 200),
		},
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvAsInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", "postgres"),
			Database: getEnv("POSTGRES_DB", "umhc-finance-dev"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},
		Auth: AuthConfig{
			JWTSecret:     getEnv("JWT_SECRET", "changeme"),
			AdminEmail:    getEnv("ADMIN_EMAIL", ""),
			TokenTTLHours: getEnvAsInt("JWT_TTL_HOURS", 72),
		},
		Extraction: ExtractionConfig{
			MaxPages:       getEnvAsInt("EXTRACTION_MAX_PAGES", 50),
			MaxAmount:      getEnvAsInt("EXTRACTION_MAX_AMOUNT", 50000),
			MaxFutureYears: getEnvAsInt("EXTRACTION_MAX_FUTURE_YEARS", 2),
		},
		Storage: StorageConfig{
			Dir:         getEnv("STORAGE_DIR", "./data/uploads"),
			MaxUploadMB: getEnvAsInt("STORAGE_MAX_UPLOAD_MB", 25),
		},
		Mail: MailConfig{
			ResendAPIKey: getEnv("RESEND_API_KEY", ""),
			FromEmail:    getEnv("REPORT_FROM_EMAIL", "treasurer@umhc.uk"),
			ReportEmail:  getEnv("REPORT_TO_EMAIL", ""),
		},
		Push: PushConfig{
			WebhookURL: getEnv("PUSH_WEBHOOK_URL", ""),
		},
		Cron: CronConfig{
			Enabled: getEnvAsBool("CRON_ENABLED", true),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
			MetricsPort:    getEnvAsInt("METRICS_PORT", 9090),
		},
		Profiling: ProfilingConfig{
			Enabled: getEnvAsBool("PPROF_ENABLED", false),
			Port:    getEnvAsInt("PPROF_PORT", 6060),
		},
	}

	if cfg.Extraction.MaxPages <= 0 {
		return nil, errors.New("EXTRACTION_MAX_PAGES must be positive")
	}

	if cfg.Extraction.MaxAmount <= 0 {
		return nil, errors.New("EXTRACTION_MAX_AMOUNT must be positive")
	}

	return cfg, nil
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
