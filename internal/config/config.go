// Package config provides layered configuration for the EasyMoney BI pipeline.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	apperrors "github.com/easymoney/easymoney-bi/internal/errors"
)

// Mode selects what a run of the binary does.
type Mode string

const (
	ModeAnalyze  Mode = "analyze"
	ModeDescribe Mode = "describe"
	ModeList     Mode = "list"
)

// Config holds the full pipeline configuration.
type Config struct {
	// Mode specifies the run mode: analyze, describe, list
	Mode Mode `json:"mode" yaml:"mode"`

	// DataDir is the base directory for local storage, work files and reports
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// Log configuration
	Log LogConfig `json:"log" yaml:"log"`

	// Input snapshot configuration
	Input InputConfig `json:"input" yaml:"input"`

	// Analysis parameters
	Analysis AnalysisConfig `json:"analysis" yaml:"analysis"`

	// Output report configuration
	Output OutputConfig `json:"output" yaml:"output"`

	// Storage configuration
	Storage StorageConfig `json:"storage" yaml:"storage"`
}

// LogConfig holds logger configuration.
type LogConfig struct {
	// Mode is development or production
	Mode string `json:"mode" yaml:"mode"`

	// Level is debug, info, warn or error
	Level string `json:"level" yaml:"level"`
}

// InputConfig describes where the snapshot lives and how to parse it.
type InputConfig struct {
	// Object is the snapshot object path inside storage
	Object string `json:"object" yaml:"object"`

	// Prefix is the storage prefix listed by the list mode
	Prefix string `json:"prefix" yaml:"prefix"`

	// WorkDir receives downloaded snapshots
	WorkDir string `json:"work_dir" yaml:"work_dir"`

	// Delimiter is the field separator of text snapshots
	Delimiter string `json:"delimiter" yaml:"delimiter"`

	// CustomerColumn names the customer id column
	CustomerColumn string `json:"customer_column" yaml:"customer_column"`

	// PartitionColumn names the partition date column
	PartitionColumn string `json:"partition_column" yaml:"partition_column"`

	// DateLayouts are tried in order when parsing partition dates
	DateLayouts []string `json:"date_layouts" yaml:"date_layouts"`

	// DropColumns are ignored entirely (pandas index column, empty header)
	DropColumns []string `json:"drop_columns" yaml:"drop_columns"`

	// Renames maps input column names to canonical product names
	Renames map[string]string `json:"renames" yaml:"renames"`

	// Table is the snapshot table name inside SQLite inputs
	Table string `json:"table" yaml:"table"`
}

// BucketConfig is one inclusive tenure bucket range in months present.
type BucketConfig struct {
	Name string `json:"name" yaml:"name"`
	Min  int    `json:"min" yaml:"min"`
	Max  int    `json:"max" yaml:"max"`
}

// AnalysisConfig holds the analytics parameters.
type AnalysisConfig struct {
	// PeriodLength is the tenure score denominator; 0 uses the number of partitions
	PeriodLength int `json:"period_length" yaml:"period_length"`

	// Buckets are the tenure bucket boundaries, ascending and contiguous from 1
	Buckets []BucketConfig `json:"buckets" yaml:"buckets"`

	// Workers is the history evaluation parallelism
	Workers int `json:"workers" yaml:"workers"`

	// ProgressEvery logs progress after this many customers
	ProgressEvery int `json:"progress_every" yaml:"progress_every"`

	// Products restricts the growth series to these products (empty = all)
	Products []string `json:"products" yaml:"products"`
}

// OutputConfig holds report writer configuration.
type OutputConfig struct {
	// Dir receives one sub-directory per run
	Dir string `json:"dir" yaml:"dir"`

	// Compress writes snappy-compressed .csv.sz files instead of plain CSV
	Compress bool `json:"compress" yaml:"compress"`

	// XLSX also writes an Excel workbook with one sheet per table
	XLSX bool `json:"xlsx" yaml:"xlsx"`

	// UploadPrefix uploads every report file under this storage prefix when set
	UploadPrefix string `json:"upload_prefix" yaml:"upload_prefix"`
}

// StorageConfig holds storage configuration.
type StorageConfig struct {
	// Type is the storage type: local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local storage path (for local type)
	Path string `json:"path" yaml:"path"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// UsePathStyle enables path-style addressing (MinIO)
	UsePathStyle bool `json:"use_path_style" yaml:"use_path_style"`

	// MaxRetries bounds transport retries (0 = default)
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// DefaultBuckets returns the bucket boundaries of the 17-month EasyMoney window.
func DefaultBuckets() []BucketConfig {
	return []BucketConfig{
		{Name: "low", Min: 1, Max: 6},
		{Name: "medium", Min: 7, Max: 10},
		{Name: "high", Min: 11, Max: 15},
		{Name: "complete", Min: 16, Max: 17},
	}
}

// DefaultConfig returns the default configuration for local runs.
func DefaultConfig() *Config {
	return &Config{
		Mode:    ModeAnalyze,
		DataDir: "./data/easymoney",
		Log: LogConfig{
			Mode:  "development",
			Level: "info",
		},
		Input: InputConfig{
			Object:          "products_df.csv",
			Delimiter:       ",",
			CustomerColumn:  "pk_cid",
			PartitionColumn: "pk_partition",
			DateLayouts:     []string{"2006-01-02", "2006-01-02 15:04:05"},
			DropColumns:     []string{"Unnamed: 0", ""},
			Renames:         map[string]string{"em_acount": "em_account"},
			Table:           "products",
		},
		Analysis: AnalysisConfig{
			PeriodLength:  0,
			Buckets:       DefaultBuckets(),
			Workers:       4,
			ProgressEvery: 10000,
		},
		Output: OutputConfig{
			Compress: false,
			XLSX:     true,
		},
		Storage: StorageConfig{
			Type: "local",
		},
	}
}

// Resolve fills derived paths from DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/easymoney"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(c.DataDir, "storage")
	}
	if c.Input.WorkDir == "" {
		c.Input.WorkDir = filepath.Join(c.DataDir, "work")
	}
	if c.Output.Dir == "" {
		c.Output.Dir = filepath.Join(c.DataDir, "reports")
	}
	if len(c.Analysis.Buckets) == 0 {
		c.Analysis.Buckets = DefaultBuckets()
	}
}

// Validate validates the configuration. Bucket contiguity against the matrix
// width is checked later by the tenure scorer, once the data is known.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeAnalyze, ModeDescribe, ModeList:
	default:
		return apperrors.NewConfigError(fmt.Sprintf("invalid mode: %s (must be analyze, describe, or list)", c.Mode), nil)
	}

	if c.DataDir == "" {
		return apperrors.NewConfigError("data_dir is required", nil)
	}

	if c.Storage.Type != "local" && c.Storage.Type != "s3" {
		return apperrors.NewConfigError(fmt.Sprintf("invalid storage type: %s (must be local or s3)", c.Storage.Type), nil)
	}
	if c.Storage.Type == "s3" && c.Storage.S3.Bucket == "" {
		return apperrors.NewConfigError("s3.bucket is required when storage type is s3", nil)
	}

	if c.Mode != ModeList && c.Input.Object == "" {
		return apperrors.NewConfigError("input.object is required", nil)
	}
	if len([]rune(c.Input.Delimiter)) != 1 {
		return apperrors.NewConfigError(fmt.Sprintf("input.delimiter must be a single character, got %q", c.Input.Delimiter), nil)
	}
	if c.Input.CustomerColumn == "" || c.Input.PartitionColumn == "" {
		return apperrors.NewConfigError("input.customer_column and input.partition_column are required", nil)
	}
	if len(c.Input.DateLayouts) == 0 {
		return apperrors.NewConfigError("input.date_layouts must not be empty", nil)
	}

	if c.Analysis.Workers < 1 || c.Analysis.Workers > 256 {
		return apperrors.NewConfigError(fmt.Sprintf("analysis.workers must be between 1 and 256, got %d", c.Analysis.Workers), nil)
	}
	if c.Analysis.PeriodLength < 0 {
		return apperrors.NewConfigError(fmt.Sprintf("analysis.period_length must not be negative, got %d", c.Analysis.PeriodLength), nil)
	}
	if c.Analysis.ProgressEvery < 0 {
		return apperrors.NewConfigError("analysis.progress_every must not be negative", nil)
	}
	next := 1
	names := make(map[string]bool, len(c.Analysis.Buckets))
	for i, b := range c.Analysis.Buckets {
		if b.Name == "" {
			return apperrors.NewConfigError(fmt.Sprintf("analysis.buckets[%d] has no name", i), nil)
		}
		if names[b.Name] {
			return apperrors.NewConfigError(fmt.Sprintf("analysis.buckets[%d] repeats bucket %s", i, b.Name), nil)
		}
		names[b.Name] = true
		if b.Min != next || b.Max < b.Min {
			return apperrors.NewConfigError(fmt.Sprintf("analysis.buckets[%d] [%d-%d] must start at %d and not be empty", i, b.Min, b.Max, next), nil)
		}
		next = b.Max + 1
	}

	switch strings.ToLower(c.Log.Mode) {
	case "", "development", "dev", "production", "prod":
	default:
		return apperrors.NewConfigError(fmt.Sprintf("invalid log mode: %s", c.Log.Mode), nil)
	}

	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewConfigError("failed to read config file", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, apperrors.NewConfigError("failed to parse YAML config", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, apperrors.NewConfigError("failed to parse JSON config", err)
		}
	default:
		return nil, apperrors.NewConfigError(fmt.Sprintf("unsupported config file format: %s", ext), nil)
	}

	return cfg, nil
}

// LoadFromEnv applies environment overrides.
// Environment variables use the EASYMONEY_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("EASYMONEY_MODE"); v != "" {
		cfg.Mode = Mode(v)
	}
	if v := os.Getenv("EASYMONEY_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	// Logging
	if v := os.Getenv("EASYMONEY_LOG_MODE"); v != "" {
		cfg.Log.Mode = v
	}
	if v := os.Getenv("EASYMONEY_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}

	// Input
	if v := os.Getenv("EASYMONEY_INPUT"); v != "" {
		cfg.Input.Object = v
	}
	if v := os.Getenv("EASYMONEY_INPUT_PREFIX"); v != "" {
		cfg.Input.Prefix = v
	}
	if v := os.Getenv("EASYMONEY_INPUT_DELIMITER"); v != "" {
		cfg.Input.Delimiter = v
	}

	// Analysis
	if v := os.Getenv("EASYMONEY_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Analysis.Workers = n
		}
	}
	if v := os.Getenv("EASYMONEY_PERIOD_LENGTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Analysis.PeriodLength = n
		}
	}
	if v := os.Getenv("EASYMONEY_PRODUCTS"); v != "" {
		cfg.Analysis.Products = SplitList(v)
	}

	// Output
	if v := os.Getenv("EASYMONEY_OUTPUT_DIR"); v != "" {
		cfg.Output.Dir = v
	}
	if v := os.Getenv("EASYMONEY_OUTPUT_COMPRESS"); v != "" {
		cfg.Output.Compress = v == "true" || v == "1"
	}
	if v := os.Getenv("EASYMONEY_OUTPUT_XLSX"); v != "" {
		cfg.Output.XLSX = v == "true" || v == "1"
	}
	if v := os.Getenv("EASYMONEY_UPLOAD_PREFIX"); v != "" {
		cfg.Output.UploadPrefix = v
	}

	// Storage
	if v := os.Getenv("EASYMONEY_STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("EASYMONEY_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("EASYMONEY_S3_BUCKET"); v != "" {
		cfg.Storage.S3.Bucket = v
	}
	if v := os.Getenv("EASYMONEY_S3_REGION"); v != "" {
		cfg.Storage.S3.Region = v
	}
	if v := os.Getenv("EASYMONEY_S3_ENDPOINT"); v != "" {
		cfg.Storage.S3.Endpoint = v
	}
	if v := os.Getenv("EASYMONEY_S3_PATH_STYLE"); v != "" {
		cfg.Storage.S3.UsePathStyle = v == "true" || v == "1"
	}
}

// SplitList splits a comma-separated list, dropping blanks.
func SplitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// EnsureDirectories creates all required local directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.DataDir,
		c.Input.WorkDir,
		c.Output.Dir,
	}
	if c.Storage.Type == "local" {
		dirs = append(dirs, c.Storage.Path)
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return apperrors.NewConfigError(fmt.Sprintf("failed to create directory %s", dir), err)
		}
	}

	return nil
}
