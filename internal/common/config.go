package common

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/photo-pipeline/constants"
)

// Config holds all application configuration
type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Replicate ReplicateConfig
	Storage   StorageConfig
	Pipeline  PipelineConfig
	Queue     QueueConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string // "postgres" or "sqlite"
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr       string
	GRPCHealthAddr string
	MaxUploadBytes int64
}

// ReplicateConfig holds prediction API configuration
type ReplicateConfig struct {
	APIToken string
	BaseURL  string
	Timeout  time.Duration
}

// StorageConfig holds object storage configuration
type StorageConfig struct {
	Endpoint        string
	Region          string
	AccessKey       string
	SecretKey       string
	Bucket          string
	UseSSL          bool
	PublicBaseURL   string
	DownloadTimeout time.Duration
}

// CanUseS3 reports whether enough settings are present to talk to S3.
func (c StorageConfig) CanUseS3() bool {
	return c.Endpoint != "" && c.AccessKey != "" && c.SecretKey != "" && c.Bucket != ""
}

// PipelineConfig holds polling and per-phase model configuration
type PipelineConfig struct {
	PollInterval    time.Duration
	PollMaxAttempts int
	Phase1Model     string
	Phase2Model     string
	Phase3Model     string
}

// QueueConfig holds async run queue configuration
type QueueConfig struct {
	Workers int
	Size    int
}

// LoadConfig loads configuration from environment variables, reading a
// local .env file first when present.
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		Database: DatabaseConfig{
			Driver:           strings.ToLower(getEnv("DB_DRIVER", "postgres")),
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
			GRPCHealthAddr: getEnv("GRPC_HEALTH_ADDR", ":8081"),
			MaxUploadBytes: int64(getEnvAsInt("MAX_UPLOAD_BYTES", 20<<20)),
		},
		Replicate: ReplicateConfig{
			APIToken: firstNonEmpty(getEnv("REPLICATE_API_TOKEN", ""), getEnv("REPLICATE_API_KEY", "")),
			BaseURL:  getEnv("REPLICATE_BASE_URL", "https://api.replicate.com/v1"),
			Timeout:  getEnvAsDuration("REPLICATE_TIMEOUT", 30*time.Second),
		},
		Storage: StorageConfig{
			Endpoint:        getEnv("ARTIFACT_S3_ENDPOINT", ""),
			Region:          getEnv("ARTIFACT_S3_REGION", "us-east-1"),
			AccessKey:       getEnv("ARTIFACT_S3_ACCESS_KEY", ""),
			SecretKey:       getEnv("ARTIFACT_S3_SECRET_KEY", ""),
			Bucket:          getEnv("ARTIFACT_S3_BUCKET", "photos"),
			UseSSL:          getEnvAsBool("ARTIFACT_S3_USE_SSL", true),
			PublicBaseURL:   getEnv("ARTIFACT_PUBLIC_BASE_URL", ""),
			DownloadTimeout: getEnvAsDuration("ARTIFACT_DOWNLOAD_TIMEOUT", 2*time.Minute),
		},
		Pipeline: PipelineConfig{
			PollInterval:    getEnvAsDuration("POLL_INTERVAL", 5*time.Second),
			PollMaxAttempts: getEnvAsInt("POLL_MAX_ATTEMPTS", 60),
			Phase1Model:     getEnv("PHASE1_MODEL", constants.Phase1Model),
			Phase2Model:     getEnv("PHASE2_MODEL", constants.Phase2Model),
			Phase3Model:     getEnv("PHASE3_MODEL", constants.Phase3Model),
		},
		Queue: QueueConfig{
			Workers: getEnvAsInt("QUEUE_WORKERS", 4),
			Size:    getEnvAsInt("QUEUE_SIZE", 256),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
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

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError(CodeConfig, "DB_URL is required", ErrInvalidInput)
	}
	if c.Database.Driver != "postgres" && c.Database.Driver != "sqlite" {
		return NewAppError(CodeConfig, "DB_DRIVER must be postgres or sqlite", ErrInvalidInput)
	}
	if c.Replicate.APIToken == "" {
		return NewAppError(CodeConfig, "REPLICATE_API_TOKEN is required", ErrInvalidInput)
	}
	if c.Server.HTTPAddr == "" {
		return NewAppError(CodeConfig, "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Pipeline.PollMaxAttempts <= 0 {
		return NewAppError(CodeConfig, "POLL_MAX_ATTEMPTS must be positive", ErrInvalidInput)
	}
	if c.Pipeline.PollInterval < 0 {
		return NewAppError(CodeConfig, "POLL_INTERVAL must not be negative", ErrInvalidInput)
	}
	return nil
}
