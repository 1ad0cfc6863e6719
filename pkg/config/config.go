package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds the configuration for the git-lfs-walrus CLI
type Config struct {
	Walrus   WalrusConfig   `yaml:"walrus"`
	Mapping  MappingConfig  `yaml:"mapping"`
	Transfer TransferConfig `yaml:"transfer"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// WalrusConfig holds settings for the walrus CLI subprocess
type WalrusConfig struct {
	BinaryPath    string        `yaml:"binary_path"`
	ConfigPath    string        `yaml:"config_path"`
	DefaultEpochs uint64        `yaml:"default_epochs"`
	Timeout       time.Duration `yaml:"timeout"`
}

// MappingConfig holds blob mapping store configuration
type MappingConfig struct {
	Type      string `yaml:"type"` // jsonfile, sqlite, redis
	Path      string `yaml:"path"` // jsonfile / sqlite location override
	RedisHost string `yaml:"redis_host"`
	RedisPort int    `yaml:"redis_port"`
	RedisPass string `yaml:"redis_password"`
	RedisDB   int    `yaml:"redis_db"`
}

// TransferConfig holds settings for the custom transfer agent
type TransferConfig struct {
	DownloadDir string `yaml:"download_dir"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json, text
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	return &Config{
		Walrus: WalrusConfig{
			BinaryPath:    getEnv("WALRUS_CLI_PATH", "walrus"),
			ConfigPath:    getEnv("WALRUS_CONFIG_PATH", ""),
			DefaultEpochs: uint64(getEnvInt("WALRUS_DEFAULT_EPOCHS", 50)),
			Timeout:       getEnvDuration("WALRUS_TIMEOUT", 5*time.Minute),
		},
		Mapping: MappingConfig{
			Type:      getEnv("LFS_WALRUS_MAPPING_TYPE", "jsonfile"),
			Path:      getEnv("LFS_WALRUS_MAPPING_PATH", ""),
			RedisHost: getEnv("LFS_WALRUS_REDIS_HOST", "localhost"),
			RedisPort: getEnvInt("LFS_WALRUS_REDIS_PORT", 6379),
			RedisPass: getEnv("LFS_WALRUS_REDIS_PASSWORD", ""),
			RedisDB:   getEnvInt("LFS_WALRUS_REDIS_DB", 0),
		},
		Transfer: TransferConfig{
			DownloadDir: getEnv("LFS_WALRUS_DOWNLOAD_DIR", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}
}

// RedisAddr returns the Redis address for the mapping store
func (m *MappingConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", m.RedisHost, m.RedisPort)
}

// SetupLogging configures the global zerolog logger. Output always goes to
// stderr: stdout carries protocol responses and filter output.
func (l *LoggingConfig) SetupLogging() {
	level, err := zerolog.ParseLevel(l.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if l.Format == "json" {
		log.Logger = log.Output(os.Stderr)
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
