package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" json:"listen"`

	// BackendURL is the base URL of the profiles/events REST service,
	// including any path prefix (e.g. "http://localhost:5000/api").
	BackendURL string `yaml:"backend_url" json:"backend_url"`

	// RequestTimeout bounds every backend round trip.
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`

	// DefaultTimezone is preselected in forms and used for profiles without one.
	DefaultTimezone string `yaml:"default_timezone" json:"default_timezone"`

	// RefreshCron is a cron-style schedule string (e.g. "*/5 * * * *")
	// for refreshing the cached profile list.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// ProfileCacheTTL is how long a fetched profile list is served from memory.
	ProfileCacheTTL time.Duration `yaml:"profile_cache_ttl" json:"profile_cache_ttl"`

	// ImportHorizonDays limits how far recurring ICS events are expanded on import.
	ImportHorizonDays int `yaml:"import_horizon_days" json:"import_horizon_days"`

	// AllowPrivateFeeds lets ICS feed imports reach loopback, private and
	// link-local addresses. Off by default.
	AllowPrivateFeeds bool `yaml:"allow_private_feeds" json:"allow_private_feeds"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen            = "127.0.0.1:8080"
	defaultBackendURL        = "http://localhost:5000/api"
	defaultRequestTimeout    = 15 * time.Second
	defaultTimezone          = "UTC"
	defaultRefreshCron       = "*/5 * * * *"
	defaultProfileCacheTTL   = 30 * time.Second
	defaultImportHorizonDays = 90
	defaultLogLevel          = "info"
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:            defaultListen,
		BackendURL:        defaultBackendURL,
		RequestTimeout:    defaultRequestTimeout,
		DefaultTimezone:   defaultTimezone,
		RefreshCron:       defaultRefreshCron,
		ProfileCacheTTL:   defaultProfileCacheTTL,
		ImportHorizonDays: defaultImportHorizonDays,
		LogLevel:          defaultLogLevel,
		BasicAuth:         nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.BackendURL == "" {
		c.BackendURL = defaultBackendURL
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.DefaultTimezone == "" {
		c.DefaultTimezone = defaultTimezone
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefreshCron
	}
	if c.ProfileCacheTTL <= 0 {
		c.ProfileCacheTTL = defaultProfileCacheTTL
	}
	if c.ImportHorizonDays <= 0 {
		c.ImportHorizonDays = defaultImportHorizonDays
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
}

// ApplyEnv overrides file values with EVENTTZ_* environment variables.
// Unset variables leave the current value untouched.
func (c *Config) ApplyEnv() error {
	if v, ok := os.LookupEnv("EVENTTZ_LISTEN"); ok {
		c.Listen = v
	}
	if v, ok := os.LookupEnv("EVENTTZ_BACKEND_URL"); ok {
		c.BackendURL = v
	}
	if v, ok := os.LookupEnv("EVENTTZ_REQUEST_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("EVENTTZ_REQUEST_TIMEOUT: %w", err)
		}
		c.RequestTimeout = d
	}
	if v, ok := os.LookupEnv("EVENTTZ_DEFAULT_TIMEZONE"); ok {
		c.DefaultTimezone = v
	}
	if v, ok := os.LookupEnv("EVENTTZ_REFRESH"); ok {
		c.RefreshCron = v
	}
	if v, ok := os.LookupEnv("EVENTTZ_IMPORT_HORIZON_DAYS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("EVENTTZ_IMPORT_HORIZON_DAYS: %w", err)
		}
		c.ImportHorizonDays = n
	}
	if v, ok := os.LookupEnv("EVENTTZ_ALLOW_PRIVATE_FEEDS"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("EVENTTZ_ALLOW_PRIVATE_FEEDS: %w", err)
		}
		c.AllowPrivateFeeds = b
	}
	if v, ok := os.LookupEnv("EVENTTZ_LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	user, hasUser := os.LookupEnv("EVENTTZ_BASIC_AUTH_USERNAME")
	pass, hasPass := os.LookupEnv("EVENTTZ_BASIC_AUTH_PASSWORD")
	if hasUser || hasPass {
		c.BasicAuth = &BasicAuthConfig{Username: user, Password: pass}
	}
	c.Normalize()
	return nil
}

// LoadDotenv loads KEY=VALUE pairs from the given files into the process
// environment. Missing files are ignored; variables already set win.
func LoadDotenv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("dotenv %s: %w", p, err)
		}
	}
	return nil
}

// Load reads the YAML file at path. On first run (file missing) a default
// file is written with 0600 permissions and the defaults are returned. If
// that write fails, the defaults are returned together with the error.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg := DefaultConfig()
		return cfg, Save(path, cfg)
	}
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()
	return cfg, nil
}

// Save writes cfg to path via a temp file in the same directory and a rename,
// so readers never observe a partially written file.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}
	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".eventtz-*.yaml")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := writeAndClose(tmp, data); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func writeAndClose(f *os.File, data []byte) error {
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
