// Package config resolves settings from environment variables (highest
// precedence) and an optional JSON config file written by `pixelcrate
// setup`. Cloud mode without credentials is not an error here: the server
// starts anyway and answers storage requests with an explicit
// "not configured" response.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var ErrConfigNotFound = errors.New("config not found")

// Config holds every runtime setting.
type Config struct {
	ListenAddr string `mapstructure:"listen_addr" json:"listen_addr"`
	DataDir    string `mapstructure:"data_dir" json:"data_dir"`

	// CloudMode selects the blob-store backend over the local filesystem.
	CloudMode bool `mapstructure:"cloud_mode" json:"cloud_mode"`

	S3Endpoint  string `mapstructure:"s3_endpoint" json:"s3_endpoint"`
	S3Region    string `mapstructure:"s3_region" json:"s3_region"`
	S3Bucket    string `mapstructure:"s3_bucket" json:"s3_bucket"`
	S3AccessKey string `mapstructure:"s3_access_key" json:"s3_access_key"`
	S3SecretKey string `mapstructure:"s3_secret_key" json:"s3_secret_key"`

	// ExtraDomains extends the scraper's allow-list beyond the built-in
	// retailers.
	ExtraDomains []string `mapstructure:"extra_domains" json:"extra_domains,omitempty"`
}

// CloudConfigured reports whether cloud mode has usable credentials.
func (c *Config) CloudConfigured() bool {
	return c.S3Bucket != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

// Dir returns the directory holding the config file.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config directory: %w", err)
	}
	return filepath.Join(base, "pixelcrate"), nil
}

// File returns the config file path.
func File() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Exists reports whether a config file has been written.
func Exists() bool {
	path, err := File()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return !os.IsNotExist(err)
}

// Load merges defaults, the config file (if present) and PIXELCRATE_*
// environment variables, env winning.
func Load() (*Config, error) {
	v := viper.New()
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("cloud_mode", false)
	v.SetDefault("s3_region", "us-east-1")
	// Keys must be registered for AutomaticEnv to surface them during
	// Unmarshal, even when they have no meaningful default.
	v.SetDefault("s3_endpoint", "")
	v.SetDefault("s3_bucket", "")
	v.SetDefault("s3_access_key", "")
	v.SetDefault("s3_secret_key", "")
	v.SetDefault("extra_domains", []string{})

	v.SetEnvPrefix("PIXELCRATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if dir, err := Dir(); err == nil {
		v.SetConfigName("config")
		v.SetConfigType("json")
		v.AddConfigPath(dir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// A config file can carry explicit empty strings; fall back rather
	// than boot with an unusable value.
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		cfg.ListenAddr = ":8080"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = defaultDataDir()
	}
	return &cfg, nil
}

// Save writes cfg as the JSON config file, creating the directory.
func Save(cfg *Config) error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigType("json")
	v.Set("listen_addr", cfg.ListenAddr)
	v.Set("data_dir", cfg.DataDir)
	v.Set("cloud_mode", cfg.CloudMode)
	v.Set("s3_endpoint", cfg.S3Endpoint)
	v.Set("s3_region", cfg.S3Region)
	v.Set("s3_bucket", cfg.S3Bucket)
	v.Set("s3_access_key", cfg.S3AccessKey)
	v.Set("s3_secret_key", cfg.S3SecretKey)
	v.Set("extra_domains", cfg.ExtraDomains)

	path := filepath.Join(dir, "config.json")
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./pixelcrate-data"
	}
	return filepath.Join(home, ".pixelcrate", "images")
}
