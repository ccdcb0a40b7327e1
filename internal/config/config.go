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
	DataDir      string // Base directory for checkpoints, dumps and the run history database
	RulesPath    string // Clearing rules YAML document
	CustomerPath string // Customer master workbook, optional
	ReportDir    string // Report workbook output directory
	LogLevel     string
	LogPretty    bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("ARCLEAR_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	// Always resolve to absolute path and ensure the directory exists
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:      absDataDir,
		RulesPath:    getEnv("ARCLEAR_RULES", "clearing_rules.yaml"),
		CustomerPath: getEnv("ARCLEAR_CUSTOMER_MASTER", ""),
		ReportDir:    getEnv("ARCLEAR_REPORT_DIR", filepath.Join(absDataDir, "reports")),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogPretty:    getEnvAsBool("LOG_PRETTY", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.RulesPath == "" {
		return fmt.Errorf("clearing rules path is required")
	}
	if _, err := os.Stat(c.RulesPath); err != nil {
		return fmt.Errorf("clearing rules not readable at %s: %w", c.RulesPath, err)
	}
	if c.CustomerPath != "" {
		if _, err := os.Stat(c.CustomerPath); err != nil {
			return fmt.Errorf("customer master not readable at %s: %w", c.CustomerPath, err)
		}
	}
	if err := os.MkdirAll(c.ReportDir, 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	return nil
}

// CheckpointPath is the location of the checkpoint document.
func (c *Config) CheckpointPath() string {
	return filepath.Join(c.DataDir, "checkpoint.json")
}

// DumpDir is the location of the stage dumps.
func (c *Config) DumpDir() string {
	return filepath.Join(c.DataDir, "dumps")
}

// HistoryDBPath is the location of the run history database.
func (c *Config) HistoryDBPath() string {
	return filepath.Join(c.DataDir, "history.db")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
