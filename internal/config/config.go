package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/jchantrell/lspak/internal/cache"
)

type Config struct {
	Database     string `mapstructure:"database"`
	Output       string `mapstructure:"output"`
	Pattern      string `mapstructure:"pattern"`
	Workers      int    `mapstructure:"workers"`
	MaxEntrySize uint64 `mapstructure:"max_entry_size"`
	LogLevel     string `mapstructure:"log_level"`
	LogFormat    string `mapstructure:"log_format"`
}

var (
	validLogLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validLogFormats = map[string]bool{"text": true, "json": true}
)

// Load initializes and loads configuration from file and LSPAK_* environment variables
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("database", cache.CacheManager().GetDatabasePath())
	v.SetDefault("output", "extracted")
	v.SetDefault("pattern", "")
	v.SetDefault("workers", 4)
	v.SetDefault("max_entry_size", 1<<30)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	v.SetEnvPrefix("lspak")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	// Config file handling
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigName("lspak")
		v.SetConfigType("yaml")
	}

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks value ranges that viper cannot express
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("unsupported log level '%s': expected debug, info, warn or error", c.LogLevel)
	}
	if !validLogFormats[c.LogFormat] {
		return fmt.Errorf("unsupported log format '%s': expected text or json", c.LogFormat)
	}
	if c.Database == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	return nil
}
