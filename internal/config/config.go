// Package config provides configuration management for the application.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration values for the application.
type Config struct {
	// AWS
	AWSRegion    string `validate:"required"`
	BatchBucket  string
	ResultPrefix string `validate:"required"`

	// Database
	DatabaseURLOverride string
	DBHost              string `validate:"required"`
	DBPort              int    `validate:"min=1,max=65535"`
	DBName              string `validate:"required"`
	DBUser              string
	DBPassword          string
	DBMaxConns          int `validate:"min=1,max=100"`
	DBMinConns          int `validate:"min=0,ltefield=DBMaxConns"`

	// Scoring
	PolicyVersion       string `validate:"required,max=64"`
	IndividualStrategy  string `validate:"oneof=rule model"`
	CompanyStrategy     string `validate:"oneof=rule model"`
	ModelArtifactPath   string
	ModelArtifactBucket string `validate:"required_with=ModelArtifactKey"`
	ModelArtifactKey    string `validate:"required_with=ModelArtifactBucket"`

	// Prediction log
	PredictionLogEnabled       bool
	PredictionLogRetentionDays int `validate:"min=1"`

	// Review alerts
	ReviewAlertThreshold float64 `validate:"min=0,max=1000"`
	ReviewAlertRecipient string  `validate:"omitempty,email"`
	SESSenderEmail       string  `validate:"omitempty,email"`

	// Batch
	BatchWorkers int `validate:"min=1,max=64"`

	// HTTP
	Port               string `validate:"required,numeric"`
	CORSAllowedOrigins []string

	// Application
	Stage          string
	ServiceVersion string
	LogLevel       string `validate:"oneof=debug info warn warning error"`
	LogFormat      string `validate:"omitempty,oneof=json console"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	_ = godotenv.Load()

	cfg := &Config{
		// AWS
		AWSRegion:    getEnv("AWS_REGION", "us-east-1"),
		BatchBucket:  getEnv("BATCH_BUCKET", ""),
		ResultPrefix: getEnv("BATCH_RESULT_PREFIX", "results/"),

		// Database
		DatabaseURLOverride: getEnv("DATABASE_URL", ""),
		DBHost:              getEnv("DB_HOST", "localhost"),
		DBPort:              getEnvInt("DB_PORT", 5432),
		DBName:              getEnv("DB_NAME", "credit_risk"),
		DBUser:              getEnv("DB_USER", "postgres"),
		DBPassword:          getEnv("DB_PASSWORD", ""),
		DBMaxConns:          getEnvInt("DB_MAX_CONNS", defaultMaxConns()),
		DBMinConns:          getEnvInt("DB_MIN_CONNS", 0),

		// Scoring
		PolicyVersion:       getEnv("SCORING_POLICY_VERSION", "policy/v1"),
		IndividualStrategy:  strings.ToLower(getEnv("SCORING_INDIVIDUAL_STRATEGY", "model")),
		CompanyStrategy:     strings.ToLower(getEnv("SCORING_COMPANY_STRATEGY", "model")),
		ModelArtifactPath:   getEnv("MODEL_ARTIFACT_PATH", ""),
		ModelArtifactBucket: getEnv("MODEL_ARTIFACT_BUCKET", ""),
		ModelArtifactKey:    getEnv("MODEL_ARTIFACT_KEY", ""),

		// Prediction log
		PredictionLogEnabled:       getEnvBool("PREDICTION_LOG_ENABLED", false),
		PredictionLogRetentionDays: getEnvInt("PREDICTION_LOG_RETENTION_DAYS", 90),

		// Review alerts
		ReviewAlertThreshold: getEnvFloat("REVIEW_ALERT_THRESHOLD", 300),
		ReviewAlertRecipient: getEnv("REVIEW_ALERT_RECIPIENT", ""),
		SESSenderEmail:       getEnv("SES_SENDER_EMAIL", ""),

		// Batch
		BatchWorkers: getEnvInt("BATCH_WORKERS", 4),

		// HTTP
		Port:               getEnv("PORT", "8080"),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),

		// Application
		Stage:          getEnv("STAGE", "dev"),
		ServiceVersion: getEnv("SERVICE_VERSION", "1.0.0"),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:      strings.ToLower(getEnv("LOG_FORMAT", "")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks the configuration for inconsistent or out of range values.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection string.
func (c *Config) DatabaseURL() string {
	if c.DatabaseURLOverride != "" {
		return c.DatabaseURLOverride
	}
	sslMode := "require" // Use SSL for RDS
	if c.DBHost == "localhost" || c.DBHost == "127.0.0.1" {
		sslMode = "disable" // Disable SSL for local development
	}
	return "postgres://" + c.DBUser + ":" + c.DBPassword + "@" + c.DBHost + ":" + strconv.Itoa(c.DBPort) + "/" + c.DBName + "?sslmode=" + sslMode
}

// ModelFromS3 reports whether the model artifact is stored in S3.
func (c *Config) ModelFromS3() bool {
	return c.ModelArtifactBucket != "" && c.ModelArtifactKey != ""
}

// ReviewAlertsEnabled reports whether low scores should trigger an email.
func (c *Config) ReviewAlertsEnabled() bool {
	return c.ReviewAlertRecipient != "" && c.SESSenderEmail != ""
}

// defaultMaxConns sizes the pool for the runtime. A Lambda serves one event
// at a time; the HTTP server writes audit logs from many goroutines.
func defaultMaxConns() int {
	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		return 2
	}
	return 10
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an environment variable as int or returns a default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat retrieves an environment variable as float64 or returns a default value.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvBool retrieves an environment variable as bool or returns a default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated environment variable.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
