// Package config resolves inboxchat settings from defaults, a YAML file,
// a .env file and the process environment. Command-line flags are applied
// on top by the cmd package.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"github.com/teemow/inboxchat/internal/gateway"
	"github.com/teemow/inboxchat/internal/logging"
)

// Store types.
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// Defaults.
const (
	DefaultBackendURL      = "http://localhost:8000"
	DefaultRequestTimeout  = 30 * time.Second
	DefaultCallbackAddr    = "127.0.0.1:3000"
	DefaultEmailLimit      = 5
	DefaultCategorizeLimit = 20
)

// Environment variables.
const (
	EnvBackendURL      = "INBOXCHAT_API_URL"
	EnvTimeout         = "INBOXCHAT_TIMEOUT"
	EnvStore           = "INBOXCHAT_STORE"
	EnvStorePath       = "INBOXCHAT_STORE_PATH"
	EnvCallbackAddr    = "INBOXCHAT_CALLBACK_ADDR"
	EnvEmailLimit      = "INBOXCHAT_EMAIL_LIMIT"
	EnvCategorizeLimit = "INBOXCHAT_CATEGORIZE_LIMIT"
	EnvLogLevel        = "INBOXCHAT_LOG_LEVEL"
	EnvLogFormat       = "INBOXCHAT_LOG_FORMAT"
	EnvLogFile         = "INBOXCHAT_LOG_FILE"
)

// Config holds the client configuration.
type Config struct {
	BackendURL      string        `yaml:"api_url"`
	RequestTimeout  time.Duration `yaml:"timeout"`
	StoreType       string        `yaml:"store"`
	// StorePath empty selects the store's default location.
	StorePath       string        `yaml:"store_path"`
	// CallbackAddr is the loopback address receiving the OAuth redirect.
	CallbackAddr    string        `yaml:"callback_addr"`
	EmailLimit      int           `yaml:"email_limit"`
	CategorizeLimit int           `yaml:"categorize_limit"`
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
	LogFile         string        `yaml:"log_file"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		BackendURL:      DefaultBackendURL,
		RequestTimeout:  DefaultRequestTimeout,
		StoreType:       StoreFile,
		CallbackAddr:    DefaultCallbackAddr,
		EmailLimit:      DefaultEmailLimit,
		CategorizeLimit: DefaultCategorizeLimit,
		LogLevel:        "info",
		LogFormat:       logging.FormatText,
	}
}

// DefaultPath returns the config file location under the user config dir.
func DefaultPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "inboxchat", "config.yaml")
	}
	if runtime.GOOS != "windows" {
		if home := os.Getenv("HOME"); home != "" {
			return filepath.Join(home, ".config", "inboxchat", "config.yaml")
		}
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "inboxchat", "config.yaml")
}

// Load builds a Config from defaults, the YAML file at path, ./.env and the
// environment. An empty path reads DefaultPath if it exists; an explicit path
// must exist. The result is not validated.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	filePath, required := path, true
	if filePath == "" {
		filePath, required = DefaultPath(), false
	}
	if filePath != "" {
		if err := cfg.LoadFile(filePath); err != nil {
			if required || !errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
		}
	}

	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays the YAML file at path onto c.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// LoadDotEnv exports the variables in path into the process environment
// without overriding variables that are already set. A missing file is ignored.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays environment variables onto c using lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, v, err)
		}
		*dst = n
		return nil
	}

	str(EnvBackendURL, &c.BackendURL)
	str(EnvStore, &c.StoreType)
	str(EnvStorePath, &c.StorePath)
	str(EnvCallbackAddr, &c.CallbackAddr)
	str(EnvLogLevel, &c.LogLevel)
	str(EnvLogFormat, &c.LogFormat)
	str(EnvLogFile, &c.LogFile)

	if v, ok := lookup(EnvTimeout); ok && strings.TrimSpace(v) != "" {
		d, err := parseTimeout(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvTimeout, v, err)
		}
		c.RequestTimeout = d
	}
	if err := num(EnvEmailLimit, &c.EmailLimit); err != nil {
		return err
	}
	return num(EnvCategorizeLimit, &c.CategorizeLimit)
}

// parseTimeout accepts a Go duration or a bare number of seconds.
func parseTimeout(v string) (time.Duration, error) {
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(v)
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BackendURL)
	if err != nil {
		return fmt.Errorf("invalid api url %q: %w", c.BackendURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api url must be an absolute http(s) URL, got %q", c.BackendURL)
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.EmailLimit < 1 || c.EmailLimit > gateway.MaxLimit {
		return fmt.Errorf("email_limit must be between 1 and %d", gateway.MaxLimit)
	}
	if c.CategorizeLimit < 1 || c.CategorizeLimit > gateway.MaxLimit {
		return fmt.Errorf("categorize_limit must be between 1 and %d", gateway.MaxLimit)
	}

	switch c.StoreType {
	case StoreFile, StoreSQLite, StoreMemory:
	default:
		return fmt.Errorf("invalid store %q, must be one of: file, sqlite, memory", c.StoreType)
	}

	if _, _, err := net.SplitHostPort(c.CallbackAddr); err != nil {
		return fmt.Errorf("invalid callback address %q: %w", c.CallbackAddr, err)
	}

	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	validFormats := map[string]bool{logging.FormatText: true, logging.FormatJSON: true}
	if !validFormats[c.LogFormat] {
		return fmt.Errorf("invalid log format: %s", c.LogFormat)
	}
	return nil
}

// APIURL returns BackendURL without a trailing slash.
func (c *Config) APIURL() string {
	return strings.TrimRight(c.BackendURL, "/")
}
