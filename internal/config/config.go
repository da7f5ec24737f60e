package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage backends accepted by STORAGE_BACKEND.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Config holds the application configuration.
type Config struct {
	// Server settings
	ServerPort string `yaml:"server_port"`
	LogLevel   string `yaml:"log_level"`

	// OpenTelemetry settings
	OTelEnabled  bool   `yaml:"otel_enabled"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	ServiceName  string `yaml:"service_name"`
	Environment  string `yaml:"environment"`

	// Storage settings
	StorageBackend string `yaml:"storage_backend"`
	DataDir        string `yaml:"data_dir"`
	SQLitePath     string `yaml:"sqlite_path"`

	DefaultPageSize int `yaml:"default_page_size"`
}

// Load returns configuration from environment variables with sensible defaults.
// A .env file in the working directory is read first when present, and a YAML
// file named by TASKBOARD_CONFIG overrides whatever the environment set.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		OTelEnabled:     getEnvBool("OTEL_ENABLED", false),
		OTLPEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		ServiceName:     getEnv("OTEL_SERVICE_NAME", "taskboard"),
		Environment:     getEnv("ENVIRONMENT", "development"),
		StorageBackend:  getEnv("STORAGE_BACKEND", BackendJSON),
		DataDir:         getEnv("DATA_DIR", "data"),
		SQLitePath:      getEnv("SQLITE_PATH", "data/taskboard.db"),
		DefaultPageSize: getEnvInt("DEFAULT_PAGE_SIZE", 20),
	}

	if path := os.Getenv("TASKBOARD_CONFIG"); path != "" {
		if err := cfg.overlay(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// overlay decodes the YAML file at path on top of cfg. Keys absent from the
// file keep their current values.
func (c *Config) overlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	c.StorageBackend = strings.ToLower(strings.TrimSpace(c.StorageBackend))
	switch c.StorageBackend {
	case BackendJSON, BackendSQLite:
	default:
		return fmt.Errorf("unknown storage backend %q (want %s or %s)", c.StorageBackend, BackendJSON, BackendSQLite)
	}
	if c.DefaultPageSize < 1 {
		return fmt.Errorf("default page size must be positive, got %d", c.DefaultPageSize)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}
