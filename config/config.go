// Package config loads the tablet store configuration from YAML and
// applies defaults and validation.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/INLOpen/tabletstore/compressors"
)

// Config holds the tunables of a tablet store instance.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Logging LoggingConfig `yaml:"logging"`
}

// StorageConfig holds block store and rowset writer configurations.
type StorageConfig struct {
	// DataDir is the directory holding the block files of a tablet.
	DataDir string `yaml:"data_dir"`
	// Compression names the codec applied to rowset data blocks:
	// "none", "snappy", "lz4" or "zstd".
	Compression string `yaml:"compression"`
	// BloomFilterFPRate is the target false positive rate for rowset
	// bloom filters.
	BloomFilterFPRate float64 `yaml:"bloom_filter_fp_rate"`
	// FlushThresholdBytes is the memrowset size at which a flush to a
	// new rowset is triggered.
	FlushThresholdBytes int64 `yaml:"flush_threshold_bytes"`
}

// LoggingConfig holds logger configurations.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	// Output is "stdout", "stderr" or a file path.
	Output string `yaml:"output"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			DataDir:             "./data",
			Compression:         "snappy",
			BloomFilterFPRate:   0.01,
			FlushThresholdBytes: 64 * 1024 * 1024,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stdout",
		},
	}
}

// Load reads YAML over the defaults. Fields absent from the input keep
// their default values.
func Load(r io.Reader) (*Config, error) {
	cfg := Default()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig loads and validates a YAML config file.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer f.Close()
	cfg, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for values the storage layer would
// reject later.
func (c *Config) Validate() error {
	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage.data_dir must not be empty")
	}
	if _, err := compressors.ForName(c.Storage.Compression); err != nil {
		return fmt.Errorf("storage.compression: %w", err)
	}
	if c.Storage.BloomFilterFPRate <= 0 || c.Storage.BloomFilterFPRate >= 1 {
		return fmt.Errorf("storage.bloom_filter_fp_rate must be in (0, 1), got %g", c.Storage.BloomFilterFPRate)
	}
	if c.Storage.FlushThresholdBytes <= 0 {
		return fmt.Errorf("storage.flush_threshold_bytes must be positive, got %d", c.Storage.FlushThresholdBytes)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	return nil
}

// NewLogger builds a slog.Logger from the logging section.
func (c *Config) NewLogger() (*slog.Logger, error) {
	var level slog.Level
	switch c.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var out io.Writer
	switch c.Logging.Output {
	case "", "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	default:
		f, err := os.OpenFile(c.Logging.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", c.Logging.Output, err)
		}
		out = f
	}
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})), nil
}
