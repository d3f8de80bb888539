// Package config provides configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/artpar/waterspout/app"
	"github.com/artpar/waterspout/web"
	"gopkg.in/yaml.v3"
)

// EnvVar is the environment variable that names the default config file.
const EnvVar = "WATERSPOUT_SETTINGS"

// ErrEnvVarUnset is returned by LoadFromEnvVar when the variable is empty.
var ErrEnvVarUnset = errors.New("config environment variable not set")

// Config is the root configuration structure.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	App     AppConfig     `yaml:"app"`
	Session SessionConfig `yaml:"session"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Addr returns address:port.
func (s ServerConfig) Addr() string {
	return s.Address + ":" + strconv.Itoa(s.Port)
}

// AppConfig configures the container.
type AppConfig struct {
	CookieSecret    string `yaml:"cookie_secret"`
	EncryptCookies  bool   `yaml:"encrypt_cookies"`
	LoginURL        string `yaml:"login_url"`
	TemplatePath    string `yaml:"template_path"`
	StaticPath      string `yaml:"static_path"`
	StaticURLPrefix string `yaml:"static_url_prefix"`
	AutoReload      bool   `yaml:"autoreload"`
	ServerName      string `yaml:"server_name"`
}

// SessionConfig configures the session cookie.
type SessionConfig struct {
	CookieName string        `yaml:"cookie_name"`
	Path       string        `yaml:"path"`
	Domain     string        `yaml:"domain"`
	MaxAge     time.Duration `yaml:"max_age"`
	Secure     bool          `yaml:"secure"`
	// HTTPOnly defaults to true; set false to expose the cookie to scripts.
	HTTPOnly *bool  `yaml:"http_only"`
	SameSite string `yaml:"same_site"` // "lax", "strict" or "none"
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// TracingConfig configures request spans.
type TracingConfig struct {
	Enabled    bool   `yaml:"enabled"`
	TracerName string `yaml:"tracer_name"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse builds a configuration from YAML text. Environment variables in
// the text are expanded and WATERSPOUT_* variables override the result.
func Parse(data []byte) (*Config, error) {
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables.
func LoadFromEnv() (*Config, error) {
	return Parse(nil)
}

// LoadFromEnvVar loads the file named by the environment variable name.
// When the variable is empty it returns ErrEnvVarUnset, or (nil, nil) if
// silent is set.
func LoadFromEnvVar(name string, silent bool) (*Config, error) {
	path := os.Getenv(name)
	if path == "" {
		if silent {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %s must point to a configuration file", ErrEnvVarUnset, name)
	}
	return Load(path)
}

// LoadWithFallback loads path when it exists, then the file named by
// WATERSPOUT_SETTINGS, and finally falls back to the environment alone.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	cfg, err := LoadFromEnvVar(EnvVar, true)
	if err != nil || cfg != nil {
		return cfg, err
	}
	return LoadFromEnv()
}

// applyEnvOverrides applies WATERSPOUT_* environment variables to the
// config. Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("WATERSPOUT_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("WATERSPOUT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("WATERSPOUT_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if v := os.Getenv("WATERSPOUT_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}

	if v := os.Getenv("WATERSPOUT_COOKIE_SECRET"); v != "" {
		cfg.App.CookieSecret = v
	}
	if v := os.Getenv("WATERSPOUT_LOGIN_URL"); v != "" {
		cfg.App.LoginURL = v
	}
	if v := os.Getenv("WATERSPOUT_TEMPLATE_PATH"); v != "" {
		cfg.App.TemplatePath = v
	}
	if v := os.Getenv("WATERSPOUT_STATIC_PATH"); v != "" {
		cfg.App.StaticPath = v
	}
	if v := os.Getenv("WATERSPOUT_AUTORELOAD"); v != "" {
		cfg.App.AutoReload = parseBool(v)
	}

	if v := os.Getenv("WATERSPOUT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("WATERSPOUT_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	if v := os.Getenv("WATERSPOUT_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("WATERSPOUT_TRACING_ENABLED"); v != "" {
		cfg.Tracing.Enabled = parseBool(v)
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Server.Address == "" {
		cfg.Server.Address = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8888
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	if cfg.App.StaticURLPrefix == "" {
		cfg.App.StaticURLPrefix = "/static/"
	}

	if cfg.Session.SameSite == "" {
		cfg.Session.SameSite = "lax"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Tracing.TracerName == "" {
		cfg.Tracing.TracerName = "waterspout"
	}
}

var sameSiteModes = map[string]http.SameSite{
	"lax":    http.SameSiteLaxMode,
	"strict": http.SameSiteStrictMode,
	"none":   http.SameSiteNoneMode,
}

func validate(cfg *Config) error {
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 0 and 65535, got %d", cfg.Server.Port)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	if cfg.Logging.Format != "json" && cfg.Logging.Format != "console" {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", cfg.Logging.Format)
	}

	if _, ok := sameSiteModes[cfg.Session.SameSite]; !ok {
		return fmt.Errorf("session.same_site must be one of: lax, strict, none")
	}
	if cfg.Session.SameSite == "none" && !cfg.Session.Secure {
		return fmt.Errorf("session.same_site 'none' requires session.secure")
	}
	if cfg.Session.MaxAge < 0 {
		return fmt.Errorf("session.max_age must not be negative")
	}

	if !strings.HasPrefix(cfg.App.StaticURLPrefix, "/") {
		return fmt.Errorf("app.static_url_prefix must start with '/', got %q", cfg.App.StaticURLPrefix)
	}
	if !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with '/', got %q", cfg.Metrics.Path)
	}
	return nil
}

// AppSettings maps the configuration onto container settings.
func (c *Config) AppSettings() app.Settings {
	cookie := web.DefaultCookieOptions()
	if c.Session.CookieName != "" {
		cookie.Name = c.Session.CookieName
	}
	if c.Session.Path != "" {
		cookie.Path = c.Session.Path
	}
	if c.Session.MaxAge > 0 {
		cookie.MaxAge = c.Session.MaxAge
	}
	if c.Session.HTTPOnly != nil {
		cookie.HTTPOnly = *c.Session.HTTPOnly
	}
	if mode, ok := sameSiteModes[c.Session.SameSite]; ok {
		cookie.SameSite = mode
	}
	cookie.Domain = c.Session.Domain
	cookie.Secure = c.Session.Secure

	return app.Settings{
		CookieSecret:    c.App.CookieSecret,
		EncryptCookies:  c.App.EncryptCookies,
		Cookie:          cookie,
		LoginURL:        c.App.LoginURL,
		TemplatePath:    c.App.TemplatePath,
		AutoReload:      c.App.AutoReload,
		StaticPath:      c.App.StaticPath,
		StaticURLPrefix: c.App.StaticURLPrefix,
		ServerName:      c.App.ServerName,
	}
}
