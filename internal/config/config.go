// Package config loads testrig runtime configuration from an optional YAML
// file and TESTRIG_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"testrig/internal/blob"
	"testrig/internal/core"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TESTRIG_"

// Config is the full runtime configuration.
type Config struct {
	Catalog CatalogConfig `yaml:"catalog"`
	Storage StorageConfig `yaml:"storage"`
	Blob    BlobConfig    `yaml:"blob"`
	HTTP    HTTPConfig    `yaml:"http"`
	Logging LoggingConfig `yaml:"logging"`
}

// CatalogConfig points at a catalog file; empty uses the built-in catalog.
type CatalogConfig struct {
	Path string `yaml:"path"`
}

// StorageConfig selects the session store.
type StorageConfig struct {
	Driver      string `yaml:"driver"` // memory, sqlite, postgres, redis
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
	RedisAddr   string `yaml:"redis_addr"`
}

// BlobConfig selects the certificate artifact store.
type BlobConfig struct {
	Driver     string `yaml:"driver"` // fs, s3, memory
	FSRoot     string `yaml:"fs_root"`
	S3Bucket   string `yaml:"s3_bucket"`
	S3Region   string `yaml:"s3_region"`
	S3Endpoint string `yaml:"s3_endpoint"`
	S3Prefix   string `yaml:"s3_prefix"`
	PathStyle  bool   `yaml:"s3_path_style"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level       string `yaml:"level"` // debug, info, warn, error
	Development bool   `yaml:"development"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{Driver: string(core.StorageSQLite), SQLitePath: "testrig.db"},
		Blob:    BlobConfig{Driver: string(blob.DriverFilesystem), FSRoot: "./certificates"},
		HTTP:    HTTPConfig{Addr: ":8080"},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads path over the defaults and applies environment overrides. A
// missing file is not an error; the defaults are used.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	if err := cfg.applyEnvOverrides(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"STORAGE_DRIVER":   &c.Storage.Driver,
		"SQLITE_PATH":      &c.Storage.SQLitePath,
		"POSTGRES_DSN":     &c.Storage.PostgresDSN,
		"REDIS_ADDR":       &c.Storage.RedisAddr,
		"BLOB_DRIVER":      &c.Blob.Driver,
		"BLOB_FS_ROOT":     &c.Blob.FSRoot,
		"BLOB_S3_BUCKET":   &c.Blob.S3Bucket,
		"BLOB_S3_REGION":   &c.Blob.S3Region,
		"BLOB_S3_ENDPOINT": &c.Blob.S3Endpoint,
		"BLOB_S3_PREFIX":   &c.Blob.S3Prefix,
		"CATALOG_PATH":     &c.Catalog.Path,
		"HTTP_ADDR":        &c.HTTP.Addr,
		"LOG_LEVEL":        &c.Logging.Level,
	}
	for name, dst := range strs {
		if v, ok := lookup(EnvPrefix + name); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	if v, ok := lookup(EnvPrefix + "BLOB_S3_PATH_STYLE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sBLOB_S3_PATH_STYLE: %w", EnvPrefix, err)
		}
		c.Blob.PathStyle = b
	}
	return nil
}

// Validate rejects unknown drivers and levels.
func (c *Config) Validate() error {
	var errs []error
	switch core.StorageDriver(strings.ToLower(c.Storage.Driver)) {
	case "", core.StorageMemory, core.StorageSQLite, core.StoragePostgres, core.StorageRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}
	switch blob.Driver(strings.ToLower(c.Blob.Driver)) {
	case "", blob.DriverFilesystem, blob.DriverMemory:
	case blob.DriverS3:
		if c.Blob.S3Bucket == "" {
			errs = append(errs, errors.New("s3 blob driver requires a bucket"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown blob driver %q", c.Blob.Driver))
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log level %q", c.Logging.Level))
	}
	return errors.Join(errs...)
}

// StorageOptions converts the storage section for core.OpenSessionStore.
func (c *Config) StorageOptions() core.StorageOptions {
	return core.StorageOptions{
		Driver:      core.StorageDriver(strings.ToLower(c.Storage.Driver)),
		SQLitePath:  c.Storage.SQLitePath,
		PostgresDSN: c.Storage.PostgresDSN,
		RedisAddr:   c.Storage.RedisAddr,
	}
}

// BlobConfig converts the blob section for blob.Open.
func (c *Config) BlobConfig() blob.Config {
	return blob.Config{
		Driver: blob.Driver(strings.ToLower(c.Blob.Driver)),
		FSRoot: c.Blob.FSRoot,
		S3: blob.S3Config{
			Bucket:    c.Blob.S3Bucket,
			Region:    c.Blob.S3Region,
			Endpoint:  c.Blob.S3Endpoint,
			Prefix:    c.Blob.S3Prefix,
			PathStyle: c.Blob.PathStyle,
		},
	}
}
