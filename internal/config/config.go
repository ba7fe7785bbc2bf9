// Package config loads dashboard configuration. Values are layered:
// defaults, then an optional YAML file, then a .env file in the working
// directory, then AIODASH_* environment variables. Command-line flags are
// applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all dashboard client configuration.
type Config struct {
	// Backend
	APIURL     string        `yaml:"api_url"`
	APIVersion string        `yaml:"api_version"`
	Timeout    time.Duration `yaml:"timeout"`
	Retries    int           `yaml:"retries"`
	RateLimit  float64       `yaml:"rate_limit"` // requests per second, 0 = unlimited

	// Session
	SessionFile string `yaml:"session_file"`
	TokenStore  string `yaml:"token_store"` // file or keyring

	// Query cache
	StaleTime          time.Duration `yaml:"stale_time"`
	UploadPollInterval time.Duration `yaml:"upload_poll_interval"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Metrics listener, empty = disabled
	MetricsAddr string `yaml:"metrics_addr"`

	// Output format for command results: json or table
	Output  string `yaml:"output"`
	NoColor bool   `yaml:"no_color"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		APIURL:             "http://localhost:8000",
		APIVersion:         "v2",
		Timeout:            30 * time.Second,
		Retries:            3,
		SessionFile:        defaultSessionFile(),
		TokenStore:         "file",
		UploadPollInterval: 2 * time.Second,
		LogLevel:           "warn",
		LogFormat:          "console",
		Output:             "json",
	}
}

// Dir returns the per-user configuration directory.
func Dir() string {
	if runtime.GOOS == "windows" {
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, _ := os.UserHomeDir()
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(appData, "aiodash")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "aiodash")
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

func defaultSessionFile() string {
	return filepath.Join(Dir(), "session.json")
}

// Load builds the configuration. If path is empty the default config file is
// used when present; an explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	filePath := path
	if filePath == "" {
		filePath = DefaultPath()
	}
	if err := loadYAML(filePath, cfg); err != nil {
		if path != "" || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.APIURL = envOr("AIODASH_API_URL", c.APIURL)
	c.APIVersion = envOr("AIODASH_API_VERSION", c.APIVersion)
	c.Timeout = envDuration("AIODASH_TIMEOUT", c.Timeout)
	c.Retries = envInt("AIODASH_RETRIES", c.Retries)
	c.RateLimit = envFloat("AIODASH_RATE_LIMIT", c.RateLimit)
	c.SessionFile = envOr("AIODASH_SESSION_FILE", c.SessionFile)
	c.TokenStore = envOr("AIODASH_TOKEN_STORE", c.TokenStore)
	c.StaleTime = envDuration("AIODASH_STALE_TIME", c.StaleTime)
	c.UploadPollInterval = envDuration("AIODASH_UPLOAD_POLL_INTERVAL", c.UploadPollInterval)
	c.LogLevel = envOr("AIODASH_LOG_LEVEL", c.LogLevel)
	c.LogFormat = envOr("AIODASH_LOG_FORMAT", c.LogFormat)
	c.MetricsAddr = envOr("AIODASH_METRICS_ADDR", c.MetricsAddr)
	c.Output = envOr("AIODASH_OUTPUT", c.Output)
	c.NoColor = envBool("AIODASH_NO_COLOR", c.NoColor)
}

// Validate checks values that would otherwise fail later in confusing ways.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api_url %q must be an http or https URL", c.APIURL)
	}
	c.APIURL = strings.TrimRight(c.APIURL, "/")
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.Retries < 0 {
		return fmt.Errorf("retries must not be negative, got %d", c.Retries)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate_limit must not be negative, got %g", c.RateLimit)
	}
	switch c.TokenStore {
	case "file", "keyring":
	default:
		return fmt.Errorf("token_store must be file or keyring, got %q", c.TokenStore)
	}
	switch c.Output {
	case "json", "table":
	default:
		return fmt.Errorf("output must be json or table, got %q", c.Output)
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("log_format must be json or console, got %q", c.LogFormat)
	}
	return nil
}

// Save writes the configuration as YAML, creating the directory if needed.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
