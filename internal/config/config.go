// Package config loads the YAML configuration shared by the CLI, the TUI
// and the API server.
package config

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"checklist-cli/internal/logging"

	"gopkg.in/yaml.v3"
)

const DefaultMaxUploadBytes int64 = 50 * 1024 * 1024

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Blob     BlobConfig     `yaml:"blob"`
	Remote   RemoteConfig   `yaml:"remote"`
	Log      logging.Config `yaml:"log"`
}

type ServerConfig struct {
	Addr            string `yaml:"addr"`
	MaxUploadBytes  int64  `yaml:"max_upload_bytes"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite or postgres
	DSN    string `yaml:"dsn"`
}

type BlobConfig struct {
	Driver string   `yaml:"driver"` // fs, memory or s3
	Dir    string   `yaml:"dir"`
	S3     S3Config `yaml:"s3"`
}

type S3Config struct {
	Bucket       string `yaml:"bucket"`
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	AccessKey    string `yaml:"access_key"`
	SecretKey    string `yaml:"secret_key"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

type RemoteConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"`
	// Headers are sent verbatim on every request (credentials, tenant ids).
	Headers map[string]string `yaml:"headers"`
}

func Default() *Config {
	dir := defaultDataDir()
	return &Config{
		Server: ServerConfig{
			Addr:            "127.0.0.1:8080",
			MaxUploadBytes:  DefaultMaxUploadBytes,
			ShutdownTimeout: "10s",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    filepath.Join(dir, "checklist.sqlite"),
		},
		Blob: BlobConfig{
			Driver: "fs",
			Dir:    filepath.Join(dir, "blobs"),
		},
		Remote: RemoteConfig{
			BaseURL: "http://127.0.0.1:8080",
			Timeout: "30s",
		},
		Log: logging.Config{Level: "info", Format: "console"},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".checklist"
	}
	return filepath.Join(home, ".checklist")
}

// Path returns $CHECKLIST_CONFIG or ~/.checklist/config.yaml.
func Path() string {
	if v := strings.TrimSpace(os.Getenv("CHECKLIST_CONFIG")); v != "" {
		return v
	}
	return filepath.Join(defaultDataDir(), "config.yaml")
}

// Load reads path over the defaults and applies CHECKLIST_* environment
// overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(k string, dst *string) {
		if v := strings.TrimSpace(getenv(k)); v != "" {
			*dst = v
		}
	}
	str("CHECKLIST_ADDR", &c.Server.Addr)
	str("CHECKLIST_DB_DRIVER", &c.Database.Driver)
	str("CHECKLIST_DB_DSN", &c.Database.DSN)
	str("CHECKLIST_BLOB_DRIVER", &c.Blob.Driver)
	str("CHECKLIST_BLOB_DIR", &c.Blob.Dir)
	str("CHECKLIST_S3_BUCKET", &c.Blob.S3.Bucket)
	str("CHECKLIST_S3_REGION", &c.Blob.S3.Region)
	str("CHECKLIST_S3_ENDPOINT", &c.Blob.S3.Endpoint)
	str("CHECKLIST_S3_ACCESS_KEY", &c.Blob.S3.AccessKey)
	str("CHECKLIST_S3_SECRET_KEY", &c.Blob.S3.SecretKey)
	str("CHECKLIST_REMOTE_URL", &c.Remote.BaseURL)
	str("CHECKLIST_REMOTE_TIMEOUT", &c.Remote.Timeout)
	str("CHECKLIST_LOG_LEVEL", &c.Log.Level)
	str("CHECKLIST_LOG_FORMAT", &c.Log.Format)

	if v := strings.TrimSpace(getenv("CHECKLIST_MAX_UPLOAD_BYTES")); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("CHECKLIST_MAX_UPLOAD_BYTES: %w", err)
		}
		c.Server.MaxUploadBytes = n
	}
	if v := strings.TrimSpace(getenv("CHECKLIST_S3_PATH_STYLE")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("CHECKLIST_S3_PATH_STYLE: %w", err)
		}
		c.Blob.S3.UsePathStyle = b
	}
	if v := strings.TrimSpace(getenv("CHECKLIST_TOKEN")); v != "" {
		if c.Remote.Headers == nil {
			c.Remote.Headers = map[string]string{}
		}
		c.Remote.Headers["Authorization"] = "Bearer " + v
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("invalid database driver: %q (expected sqlite|postgres)", c.Database.Driver)
	}
	switch c.Blob.Driver {
	case "fs", "memory":
	case "s3":
		if strings.TrimSpace(c.Blob.S3.Bucket) == "" {
			return fmt.Errorf("blob driver s3 requires blob.s3.bucket")
		}
	default:
		return fmt.Errorf("invalid blob driver: %q (expected fs|memory|s3)", c.Blob.Driver)
	}
	if c.Server.MaxUploadBytes <= 0 {
		c.Server.MaxUploadBytes = DefaultMaxUploadBytes
	}
	return nil
}

func (c *Config) RemoteTimeout() time.Duration {
	return durationOr(c.Remote.Timeout, 30*time.Second)
}

func (c *Config) ShutdownTimeout() time.Duration {
	return durationOr(c.Server.ShutdownTimeout, 10*time.Second)
}

// RemoteHeader returns the configured credential headers.
func (c *Config) RemoteHeader() http.Header {
	h := http.Header{}
	for k, v := range c.Remote.Headers {
		h.Set(k, v)
	}
	return h
}

func durationOr(s string, d time.Duration) time.Duration {
	v, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil || v <= 0 {
		return d
	}
	return v
}
