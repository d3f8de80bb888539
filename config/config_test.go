package config_test

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/artpar/waterspout/config"
	"github.com/artpar/waterspout/domain/session"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "waterspout.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func writeAndLoad(t *testing.T, content string) *config.Config {
	t.Helper()
	cfg, err := config.Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	return cfg
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
server:
  address: "0.0.0.0"
  port: 9090
  read_timeout: 5s

app:
  cookie_secret: "s3cret"
  login_url: "/login"
  template_path: "/srv/templates"
  autoreload: true

session:
  cookie_name: "sid"
  max_age: 24h
  secure: true
  same_site: strict

logging:
  level: debug
  format: json
`

	cfg := writeAndLoad(t, content)

	if cfg.Server.Addr() != "0.0.0.0:9090" {
		t.Errorf("Addr = %s, want 0.0.0.0:9090", cfg.Server.Addr())
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("ReadTimeout = %v, want 5s", cfg.Server.ReadTimeout)
	}
	if cfg.App.CookieSecret != "s3cret" {
		t.Errorf("CookieSecret = %s, want s3cret", cfg.App.CookieSecret)
	}
	if !cfg.App.AutoReload {
		t.Error("AutoReload = false, want true")
	}
	if cfg.Session.MaxAge != 24*time.Hour {
		t.Errorf("Session.MaxAge = %v, want 24h", cfg.Session.MaxAge)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %s, want json", cfg.Logging.Format)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg := writeAndLoad(t, "")

	if cfg.Server.Address != "127.0.0.1" {
		t.Errorf("default Address = %s, want 127.0.0.1", cfg.Server.Address)
	}
	if cfg.Server.Port != 8888 {
		t.Errorf("default Port = %d, want 8888", cfg.Server.Port)
	}
	if cfg.Server.ShutdownTimeout != 10*time.Second {
		t.Errorf("default ShutdownTimeout = %v, want 10s", cfg.Server.ShutdownTimeout)
	}
	if cfg.App.StaticURLPrefix != "/static/" {
		t.Errorf("default StaticURLPrefix = %s, want /static/", cfg.App.StaticURLPrefix)
	}
	if cfg.Session.SameSite != "lax" {
		t.Errorf("default SameSite = %s, want lax", cfg.Session.SameSite)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "console" {
		t.Errorf("default logging = %+v, want info/console", cfg.Logging)
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("default Metrics.Path = %s, want /metrics", cfg.Metrics.Path)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_COOKIE_SECRET", "from-env")

	cfg := writeAndLoad(t, `
app:
  cookie_secret: "${TEST_COOKIE_SECRET}"
`)

	if cfg.App.CookieSecret != "from-env" {
		t.Errorf("CookieSecret = %s, want from-env", cfg.App.CookieSecret)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("WATERSPOUT_PORT", "7000")
	t.Setenv("WATERSPOUT_LOG_LEVEL", "warn")
	t.Setenv("WATERSPOUT_AUTORELOAD", "yes")
	t.Setenv("WATERSPOUT_METRICS_ENABLED", "1")

	cfg := writeAndLoad(t, `
server:
  port: 9090
logging:
  level: debug
`)

	if cfg.Server.Port != 7000 {
		t.Errorf("Port = %d, want 7000", cfg.Server.Port)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %s, want warn", cfg.Logging.Level)
	}
	if !cfg.App.AutoReload {
		t.Error("AutoReload = false, want true")
	}
	if !cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = false, want true")
	}
}

func TestEnvOverrides_InvalidPort(t *testing.T) {
	t.Setenv("WATERSPOUT_PORT", "not-a-number")

	cfg := writeAndLoad(t, "server:\n  port: 9090\n")
	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d, want 9090 (invalid override ignored)", cfg.Server.Port)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad level", "logging:\n  level: loud\n", "logging.level"},
		{"bad format", "logging:\n  format: xml\n", "logging.format"},
		{"bad port", "server:\n  port: 70000\n", "server.port"},
		{"bad same_site", "session:\n  same_site: sometimes\n", "session.same_site"},
		{"none needs secure", "session:\n  same_site: none\n", "requires session.secure"},
		{"negative max_age", "session:\n  max_age: -1h\n", "session.max_age"},
		{"static prefix", "app:\n  static_url_prefix: static\n", "static_url_prefix"},
		{"metrics path", "metrics:\n  path: metrics\n", "metrics.path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want mention of %s", err, tt.want)
			}
		})
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	if _, err := config.Load(writeConfig(t, "server: [unclosed")); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	if _, err := config.Load("/nonexistent/waterspout.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadFromEnvVar(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9191\n")
	t.Setenv("TEST_WATERSPOUT_FILE", path)

	cfg, err := config.LoadFromEnvVar("TEST_WATERSPOUT_FILE", false)
	if err != nil {
		t.Fatalf("LoadFromEnvVar error: %v", err)
	}
	if cfg.Server.Port != 9191 {
		t.Errorf("Port = %d, want 9191", cfg.Server.Port)
	}
}

func TestLoadFromEnvVar_Unset(t *testing.T) {
	t.Setenv("TEST_WATERSPOUT_UNSET", "")

	_, err := config.LoadFromEnvVar("TEST_WATERSPOUT_UNSET", false)
	if !errors.Is(err, config.ErrEnvVarUnset) {
		t.Fatalf("err = %v, want ErrEnvVarUnset", err)
	}
	if !strings.Contains(err.Error(), "TEST_WATERSPOUT_UNSET") {
		t.Errorf("error %q does not name the variable", err)
	}

	cfg, err := config.LoadFromEnvVar("TEST_WATERSPOUT_UNSET", true)
	if err != nil || cfg != nil {
		t.Errorf("silent LoadFromEnvVar = %v, %v; want nil, nil", cfg, err)
	}
}

func TestLoadFromEnvVar_MissingFile(t *testing.T) {
	t.Setenv("TEST_WATERSPOUT_FILE", "/nonexistent/settings.yaml")

	// silent only covers an unset variable
	if _, err := config.LoadFromEnvVar("TEST_WATERSPOUT_FILE", true); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadWithFallback(t *testing.T) {
	t.Setenv(config.EnvVar, "")
	t.Setenv("WATERSPOUT_PORT", "")

	path := writeConfig(t, "server:\n  port: 9292\n")
	cfg, err := config.LoadWithFallback(path)
	if err != nil {
		t.Fatalf("LoadWithFallback error: %v", err)
	}
	if cfg.Server.Port != 9292 {
		t.Errorf("Port = %d, want 9292", cfg.Server.Port)
	}

	envPath := writeConfig(t, "server:\n  port: 9393\n")
	t.Setenv(config.EnvVar, envPath)
	cfg, err = config.LoadWithFallback("/nonexistent.yaml")
	if err != nil {
		t.Fatalf("LoadWithFallback(env var) error: %v", err)
	}
	if cfg.Server.Port != 9393 {
		t.Errorf("Port = %d, want 9393", cfg.Server.Port)
	}

	t.Setenv(config.EnvVar, "")
	cfg, err = config.LoadWithFallback("")
	if err != nil {
		t.Fatalf("LoadWithFallback(env only) error: %v", err)
	}
	if cfg.Server.Port != 8888 {
		t.Errorf("Port = %d, want default 8888", cfg.Server.Port)
	}
}

func TestParseBoolValues(t *testing.T) {
	tests := map[string]bool{
		"true": true, "TRUE": true, "1": true, "yes": true, "on": true,
		"false": false, "0": false, "no": false, "off": false, "maybe": false,
	}
	for value, want := range tests {
		t.Setenv("WATERSPOUT_TRACING_ENABLED", value)
		cfg, err := config.LoadFromEnv()
		if err != nil {
			t.Fatalf("LoadFromEnv error: %v", err)
		}
		if cfg.Tracing.Enabled != want {
			t.Errorf("parseBool(%q) = %v, want %v", value, cfg.Tracing.Enabled, want)
		}
	}
}

func TestAppSettings(t *testing.T) {
	cfg := writeAndLoad(t, `
app:
  cookie_secret: "s"
  encrypt_cookies: true
  login_url: "/auth/login"
  static_path: "/srv/static"
  server_name: "custom/1"

session:
  cookie_name: "sid"
  domain: "example.com"
  max_age: 1h
  secure: true
  http_only: false
  same_site: none
`)

	s := cfg.AppSettings()
	if s.CookieSecret != "s" || !s.EncryptCookies {
		t.Errorf("secret settings = %q %v", s.CookieSecret, s.EncryptCookies)
	}
	if s.LoginURL != "/auth/login" || s.StaticPath != "/srv/static" || s.ServerName != "custom/1" {
		t.Errorf("settings = %+v", s)
	}
	if s.Cookie.Name != "sid" || s.Cookie.Domain != "example.com" || s.Cookie.MaxAge != time.Hour {
		t.Errorf("cookie = %+v", s.Cookie)
	}
	if !s.Cookie.Secure || s.Cookie.HTTPOnly {
		t.Errorf("cookie flags secure=%v httponly=%v", s.Cookie.Secure, s.Cookie.HTTPOnly)
	}
	if s.Cookie.SameSite != http.SameSiteNoneMode {
		t.Errorf("SameSite = %v, want None", s.Cookie.SameSite)
	}
}

func TestAppSettings_CookieDefaults(t *testing.T) {
	s := writeAndLoad(t, "").AppSettings()

	if s.Cookie.Name != session.CookieName {
		t.Errorf("cookie name = %s, want %s", s.Cookie.Name, session.CookieName)
	}
	if !s.Cookie.HTTPOnly {
		t.Error("HTTPOnly = false, want true by default")
	}
	if s.Cookie.MaxAge != 31*24*time.Hour {
		t.Errorf("MaxAge = %v, want 31 days", s.Cookie.MaxAge)
	}
}
