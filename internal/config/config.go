// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir         string // Base directory for databases and backups (always absolute)
	FundMappingPath string // JSON file seeding the fund code mapping table (optional)
	LogLevel        string
	Port            int
	DevMode         bool

	// Valuation defaults. Explicit here so tests can override them instead
	// of reaching for module-level constants.
	BaseCurrency      string  // aggregation currency for all totals
	DefaultUSDJPYRate float64 // static floor when every rate provider fails

	RefreshSchedule string // cron expression for the periodic refresh job

	Backup BackupConfig
}

// BackupConfig holds object-storage backup settings
type BackupConfig struct {
	Enabled         bool
	Endpoint        string // S3-compatible endpoint URL
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Schedule        string // cron expression, defaults to nightly
}

// Load reads configuration from .env (if present) and environment variables
func Load() (*Config, error) {
	// .env is optional; environment variables win either way
	_ = godotenv.Load()

	dataDir := getEnv("SHISAN_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data dir: %w", err)
	}

	port, err := strconv.Atoi(getEnv("SHISAN_PORT", "8780"))
	if err != nil {
		return nil, fmt.Errorf("invalid SHISAN_PORT: %w", err)
	}

	defaultRate, err := strconv.ParseFloat(getEnv("SHISAN_DEFAULT_USDJPY", "150.0"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid SHISAN_DEFAULT_USDJPY: %w", err)
	}
	if defaultRate <= 0 {
		return nil, fmt.Errorf("SHISAN_DEFAULT_USDJPY must be positive, got %v", defaultRate)
	}

	cfg := &Config{
		DataDir:           absDataDir,
		FundMappingPath:   getEnv("SHISAN_FUND_MAPPING_FILE", ""),
		LogLevel:          getEnv("SHISAN_LOG_LEVEL", "info"),
		Port:              port,
		DevMode:           getEnv("SHISAN_DEV_MODE", "") == "true",
		BaseCurrency:      getEnv("SHISAN_BASE_CURRENCY", "JPY"),
		DefaultUSDJPYRate: defaultRate,
		RefreshSchedule:   getEnv("SHISAN_REFRESH_SCHEDULE", "0 15 * * *"),
		Backup: BackupConfig{
			Enabled:         getEnv("SHISAN_BACKUP_ENABLED", "") == "true",
			Endpoint:        getEnv("SHISAN_BACKUP_ENDPOINT", ""),
			Bucket:          getEnv("SHISAN_BACKUP_BUCKET", ""),
			AccessKeyID:     getEnv("SHISAN_BACKUP_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("SHISAN_BACKUP_SECRET_ACCESS_KEY", ""),
			Schedule:        getEnv("SHISAN_BACKUP_SCHEDULE", "0 4 * * *"),
		},
	}

	if cfg.Backup.Enabled {
		if cfg.Backup.Bucket == "" || cfg.Backup.AccessKeyID == "" || cfg.Backup.SecretAccessKey == "" {
			return nil, fmt.Errorf("backup enabled but bucket or credentials are missing")
		}
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
