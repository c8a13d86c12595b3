package common

import (
	"os"
	"strconv"
	"time"

	"github.com/receiptwise/pipeline/constants"
)

// Config holds all application configuration
type Config struct {
	Provider     string
	Database     DatabaseConfig
	Orchestrator OrchestratorConfig
	Vision       VisionConfig
	Storage      StorageConfig
	Catalog      CatalogConfig
}

// DatabaseConfig holds persistence configuration. Driver is "sqlite" or "postgres".
type DatabaseConfig struct {
	Driver      string
	DSN         string
	MaxConns    int32
	MinConns    int32
	DialTimeout time.Duration
}

// OrchestratorConfig holds worker pool and retry configuration
type OrchestratorConfig struct {
	Concurrency int
	QueueSize   int
	MaxAttempts int
	JobTimeout  time.Duration
	RetryBase   time.Duration
	Tolerance   float64
}

// VisionConfig holds vision-model provider configuration
type VisionConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
	Timeout     time.Duration
	MaxImageMB  int
}

// StorageConfig holds image storage configuration
type StorageConfig struct {
	RootDir string
}

// CatalogConfig holds store catalog configuration
type CatalogConfig struct {
	Path string // optional JSON seed; built-in catalog when empty
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Provider: getEnv("EXTRACTION_PROVIDER", constants.ProviderHeuristic),
		Database: DatabaseConfig{
			Driver:      getEnv("DB_DRIVER", "sqlite"),
			DSN:         getEnv("DB_URL", "receipts.db"),
			MaxConns:    getEnvAsInt32("DB_MAX_CONNS", 10),
			MinConns:    getEnvAsInt32("DB_MIN_CONNS", 2),
			DialTimeout: getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
		},
		Orchestrator: OrchestratorConfig{
			Concurrency: getEnvAsInt("WORKER_CONCURRENCY", 5),
			QueueSize:   getEnvAsInt("QUEUE_SIZE", 256),
			MaxAttempts: getEnvAsInt("JOB_MAX_ATTEMPTS", 3),
			JobTimeout:  getEnvAsDuration("JOB_TIMEOUT", 45*time.Second),
			RetryBase:   getEnvAsDuration("RETRY_BASE", time.Second),
			Tolerance:   getEnvAsFloat64("RECONCILE_TOLERANCE", 0.05),
		},
		Vision: VisionConfig{
			BaseURL:     getEnv("VISION_BASE_URL", "https://api.openai.com/v1"),
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			Model:       getEnv("VISION_MODEL", "gpt-4o-mini"),
			Temperature: getEnvAsFloat32("VISION_TEMPERATURE", 0.0),
			Timeout:     getEnvAsDuration("VISION_TIMEOUT", 30*time.Second),
			MaxImageMB:  getEnvAsInt("VISION_MAX_IMAGE_MB", 20),
		},
		Storage: StorageConfig{
			RootDir: getEnv("IMAGE_DIR", "./images"),
		},
		Catalog: CatalogConfig{
			Path: getEnv("STORE_CATALOG_PATH", ""),
		},
	}
}

// Validate validates the loaded configuration. Provider credential checks
// happen at provider construction, not here.
func (c *Config) Validate() error {
	switch c.Provider {
	case constants.ProviderHeuristic, constants.ProviderVision:
	default:
		return NewAppError("CONFIG_ERROR", "unknown EXTRACTION_PROVIDER: "+c.Provider, ErrInvalidInput)
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return NewAppError("CONFIG_ERROR", "unknown DB_DRIVER: "+c.Database.Driver, ErrInvalidInput)
	}
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Orchestrator.Concurrency <= 0 {
		return NewAppError("CONFIG_ERROR", "WORKER_CONCURRENCY must be positive", ErrInvalidInput)
	}
	if c.Orchestrator.MaxAttempts <= 0 {
		return NewAppError("CONFIG_ERROR", "JOB_MAX_ATTEMPTS must be positive", ErrInvalidInput)
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
