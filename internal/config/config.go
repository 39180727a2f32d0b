// Package config loads and validates the application configuration from
// environment variables (NBS_ prefix) layered over an optional YAML
// file. Paths are resolved and created at load time so the processing
// pipeline never has to guess where its inputs and artifacts live.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config is the complete application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server" envconfig:"SERVER"`
	Logging    LoggingConfig    `yaml:"logging" envconfig:"LOGGING"`
	Paths      PathsConfig      `yaml:"paths" envconfig:"PATHS"`
	Processing ProcessingConfig `yaml:"processing" envconfig:"PROCESSING"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"30s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"120s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	RateLimitRPS    float64       `yaml:"rate_limit_rps" envconfig:"RATE_LIMIT_RPS" default:"50"`
	RateLimitBurst  int           `yaml:"rate_limit_burst" envconfig:"RATE_LIMIT_BURST" default:"25"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" envconfig:"FORMAT" default:"json" validate:"oneof=json text"`
	Output string `yaml:"output" envconfig:"OUTPUT" default:"stdout"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	DataDir      string `yaml:"data_dir" envconfig:"DATA_DIR" default:"data" validate:"required"`
	OutputDir    string `yaml:"output_dir" envconfig:"OUTPUT_DIR" default:"data/reports" validate:"required"`
	TemplateFile string `yaml:"template_file" envconfig:"TEMPLATE_FILE" default:"data/nbs_template.xlsx" validate:"required"`
	// ReferenceTable optionally overrides the embedded reference data
	ReferenceTable string `yaml:"reference_table" envconfig:"REFERENCE_TABLE"`
}

// ProcessingConfig contains pipeline limits and fixed counts
type ProcessingConfig struct {
	// ControlCount is the number of leading quality-control samples in
	// every instrument batch, split evenly over control tiers I and II.
	ControlCount      int   `yaml:"control_count" envconfig:"CONTROL_COUNT" default:"4" validate:"min=2"`
	MaxRawFileSizeMB  int64 `yaml:"max_raw_file_size_mb" envconfig:"MAX_RAW_FILE_SIZE_MB" default:"50" validate:"min=1"`
	MaxDocumentSizeMB int64 `yaml:"max_document_size_mb" envconfig:"MAX_DOCUMENT_SIZE_MB" default:"50" validate:"min=1"`
	MaxArchiveSizeMB  int64 `yaml:"max_archive_size_mb" envconfig:"MAX_ARCHIVE_SIZE_MB" default:"200" validate:"min=1"`
	MaxBatchEntries   int   `yaml:"max_batch_entries" envconfig:"MAX_BATCH_ENTRIES" default:"100" validate:"min=1"`
}

// Load builds the configuration in precedence order: environment
// variables beat the YAML file, the YAML file beats the tag defaults.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("NBS", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	configFile := configFilePath()
	if _, err := os.Stat(configFile); err == nil {
		fileCfg, err := loadFromFile(configFile)
		if err != nil {
			return nil, err
		}
		mergeFileConfig(&cfg, fileCfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	if err := cfg.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("path setup failed: %w", err)
	}
	return &cfg, nil
}

// loadFromFile reads the YAML config file into a bare struct
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &cfg, nil
}

// mergeFileConfig copies YAML-provided values over the tag defaults.
// A field only moves when the file actually set it and no environment
// variable claimed it first.
func mergeFileConfig(cfg, file *Config) {
	if file.Server.Port != 0 && !envSet("NBS_SERVER_PORT") {
		cfg.Server.Port = file.Server.Port
	}
	if file.Server.ReadTimeout != 0 && !envSet("NBS_SERVER_READ_TIMEOUT") {
		cfg.Server.ReadTimeout = file.Server.ReadTimeout
	}
	if file.Server.WriteTimeout != 0 && !envSet("NBS_SERVER_WRITE_TIMEOUT") {
		cfg.Server.WriteTimeout = file.Server.WriteTimeout
	}
	if file.Server.IdleTimeout != 0 && !envSet("NBS_SERVER_IDLE_TIMEOUT") {
		cfg.Server.IdleTimeout = file.Server.IdleTimeout
	}
	if file.Server.ShutdownTimeout != 0 && !envSet("NBS_SERVER_SHUTDOWN_TIMEOUT") {
		cfg.Server.ShutdownTimeout = file.Server.ShutdownTimeout
	}
	if file.Server.RateLimitRPS != 0 && !envSet("NBS_SERVER_RATE_LIMIT_RPS") {
		cfg.Server.RateLimitRPS = file.Server.RateLimitRPS
	}
	if file.Server.RateLimitBurst != 0 && !envSet("NBS_SERVER_RATE_LIMIT_BURST") {
		cfg.Server.RateLimitBurst = file.Server.RateLimitBurst
	}
	if file.Logging.Level != "" && !envSet("NBS_LOGGING_LEVEL") {
		cfg.Logging.Level = file.Logging.Level
	}
	if file.Logging.Format != "" && !envSet("NBS_LOGGING_FORMAT") {
		cfg.Logging.Format = file.Logging.Format
	}
	if file.Logging.Output != "" && !envSet("NBS_LOGGING_OUTPUT") {
		cfg.Logging.Output = file.Logging.Output
	}
	if file.Paths.DataDir != "" && !envSet("NBS_PATHS_DATA_DIR") {
		cfg.Paths.DataDir = file.Paths.DataDir
	}
	if file.Paths.OutputDir != "" && !envSet("NBS_PATHS_OUTPUT_DIR") {
		cfg.Paths.OutputDir = file.Paths.OutputDir
	}
	if file.Paths.TemplateFile != "" && !envSet("NBS_PATHS_TEMPLATE_FILE") {
		cfg.Paths.TemplateFile = file.Paths.TemplateFile
	}
	if file.Paths.ReferenceTable != "" && !envSet("NBS_PATHS_REFERENCE_TABLE") {
		cfg.Paths.ReferenceTable = file.Paths.ReferenceTable
	}
	if file.Processing.ControlCount != 0 && !envSet("NBS_PROCESSING_CONTROL_COUNT") {
		cfg.Processing.ControlCount = file.Processing.ControlCount
	}
	if file.Processing.MaxRawFileSizeMB != 0 && !envSet("NBS_PROCESSING_MAX_RAW_FILE_SIZE_MB") {
		cfg.Processing.MaxRawFileSizeMB = file.Processing.MaxRawFileSizeMB
	}
	if file.Processing.MaxDocumentSizeMB != 0 && !envSet("NBS_PROCESSING_MAX_DOCUMENT_SIZE_MB") {
		cfg.Processing.MaxDocumentSizeMB = file.Processing.MaxDocumentSizeMB
	}
	if file.Processing.MaxArchiveSizeMB != 0 && !envSet("NBS_PROCESSING_MAX_ARCHIVE_SIZE_MB") {
		cfg.Processing.MaxArchiveSizeMB = file.Processing.MaxArchiveSizeMB
	}
	if file.Processing.MaxBatchEntries != 0 && !envSet("NBS_PROCESSING_MAX_BATCH_ENTRIES") {
		cfg.Processing.MaxBatchEntries = file.Processing.MaxBatchEntries
	}
}

func envSet(key string) bool {
	_, ok := os.LookupEnv(key)
	return ok
}

// Validate checks configured values and invariants that cross fields
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.Processing.ControlCount%2 != 0 {
		return fmt.Errorf("control_count must be even (half per control tier), got %d", c.Processing.ControlCount)
	}
	return nil
}

// EnsureDirs creates the data and output directories when absent
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.OutputDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// MaxRawFileBytes returns the raw export size cap in bytes
func (c *Config) MaxRawFileBytes() int64 { return c.Processing.MaxRawFileSizeMB * 1024 * 1024 }

// MaxDocumentBytes returns the single document size cap in bytes
func (c *Config) MaxDocumentBytes() int64 { return c.Processing.MaxDocumentSizeMB * 1024 * 1024 }

// MaxArchiveBytes returns the archive size cap in bytes
func (c *Config) MaxArchiveBytes() int64 { return c.Processing.MaxArchiveSizeMB * 1024 * 1024 }

// configFilePath returns the config file location, overridable for
// deployments that keep config outside the working directory.
func configFilePath() string {
	if path := os.Getenv("NBS_CONFIG_FILE"); path != "" {
		return path
	}
	return filepath.Join("config", "nbslab.yaml")
}
