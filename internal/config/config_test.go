package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestEnvOr(t *testing.T) {
	key := "SURF_TEST_ENV"
	fallback := "default"

	t.Setenv(key, "")
	if got := envOr(key, fallback); got != fallback {
		t.Errorf("envOr() = %v, want %v", got, fallback)
	}

	t.Setenv(key, "set")
	if got := envOr(key, fallback); got != "set" {
		t.Errorf("envOr() = %v, want set", got)
	}
}

func TestEnvIntOr(t *testing.T) {
	key := "SURF_TEST_INT"
	fallback := 42

	t.Setenv(key, "")
	if got := envIntOr(key, fallback); got != fallback {
		t.Errorf("envIntOr() = %v, want %v", got, fallback)
	}

	t.Setenv(key, "100")
	if got := envIntOr(key, fallback); got != 100 {
		t.Errorf("envIntOr() = %v, want 100", got)
	}

	t.Setenv(key, "-1")
	if got := envIntOr(key, fallback); got != -1 {
		t.Errorf("envIntOr() = %v, want -1", got)
	}

	t.Setenv(key, "invalid")
	if got := envIntOr(key, fallback); got != fallback {
		t.Errorf("envIntOr() = %v, want %v", got, fallback)
	}
}

func TestEnvBoolOr(t *testing.T) {
	key := "SURF_TEST_BOOL"
	fallback := true

	_ = os.Unsetenv(key)
	if got := envBoolOr(key, fallback); got != fallback {
		t.Errorf("envBoolOr() = %v, want %v", got, fallback)
	}

	tests := []struct {
		val  string
		want bool
	}{
		{"1", true}, {"true", true}, {"yes", true}, {"on", true},
		{"0", false}, {"false", false}, {"no", false}, {"off", false},
		{"garbage", true}, // should return fallback
	}

	for _, tt := range tests {
		t.Setenv(key, tt.val)
		if got := envBoolOr(key, fallback); got != tt.want {
			t.Errorf("envBoolOr(%q) = %v, want %v", tt.val, got, tt.want)
		}
	}
}

func TestMaskToken(t *testing.T) {
	tests := []struct {
		token string
		want  string
	}{
		{"", "(none)"},
		{"short", "***"},
		{"very-long-token-secret", "very...cret"},
	}

	for _, tt := range tests {
		if got := MaskToken(tt.token); got != tt.want {
			t.Errorf("MaskToken(%q) = %v, want %v", tt.token, got, tt.want)
		}
	}
}

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("SURF_CONFIG", filepath.Join(dir, "config.json"))
	for _, k := range []string{"SURF_PORT", "SURF_BIND", "CDP_URL", "SURF_TOKEN", "SURF_MAX_TABS", "SURF_HISTORY_MAX", "SURF_LOG_LEVEL", "SURF_HEADLESS", "SURF_RATE_LIMIT", "SURF_TRUSTED_PROXIES"} {
		t.Setenv(k, "")
		_ = os.Unsetenv(k)
	}
	return dir
}

func TestLoadConfigDefaults(t *testing.T) {
	isolate(t)

	cfg := Load()
	if cfg.Port != DefaultPort {
		t.Errorf("default Port = %v, want %v", cfg.Port, DefaultPort)
	}
	if cfg.Bind != "127.0.0.1" {
		t.Errorf("default Bind = %v, want 127.0.0.1", cfg.Bind)
	}
	if cfg.HistoryMax != DefaultHistoryMax || cfg.MaxTabs != DefaultMaxTabs {
		t.Errorf("unexpected limits: history=%d tabs=%d", cfg.HistoryMax, cfg.MaxTabs)
	}
	if cfg.SlogLevel() != slog.LevelInfo {
		t.Errorf("default level = %v", cfg.SlogLevel())
	}
	if cfg.RateLimit != DefaultRateLimit || len(cfg.TrustedProxies) != 0 {
		t.Errorf("unexpected rate settings: %d %v", cfg.RateLimit, cfg.TrustedProxies)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("SURF_PORT", "1234")
	t.Setenv("SURF_LOG_LEVEL", "debug")
	t.Setenv("SURF_HISTORY_MAX", "-1")
	t.Setenv("SURF_RATE_LIMIT", "0")
	t.Setenv("SURF_TRUSTED_PROXIES", " 10.0.0.1, ,10.1.0.0/16 ")

	cfg := Load()
	if cfg.RateLimit != 0 {
		t.Errorf("env RateLimit = %d, want 0", cfg.RateLimit)
	}
	if len(cfg.TrustedProxies) != 2 || cfg.TrustedProxies[0] != "10.0.0.1" || cfg.TrustedProxies[1] != "10.1.0.0/16" {
		t.Errorf("env TrustedProxies = %q", cfg.TrustedProxies)
	}
	if cfg.Port != "1234" {
		t.Errorf("env Port = %v, want 1234", cfg.Port)
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("env level = %v, want debug", cfg.SlogLevel())
	}
	if cfg.HistoryMax != -1 {
		t.Errorf("env HistoryMax = %d, want -1", cfg.HistoryMax)
	}
}

func TestDefaultFileConfig(t *testing.T) {
	fc := DefaultFileConfig()
	if fc.Port != DefaultPort {
		t.Errorf("DefaultFileConfig.Port = %v, want %v", fc.Port, DefaultPort)
	}
	if *fc.Headless {
		t.Error("DefaultFileConfig.Headless should be false for a desktop shell")
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := isolate(t)
	configPath := filepath.Join(dir, "config.json")

	configData := `{
		"port": "8888",
		"headless": true,
		"historyMax": 50,
		"openTimeoutSec": 3,
		"trustedProxies": ["127.0.0.1"]
	}`
	if err := os.WriteFile(configPath, []byte(configData), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := Load()
	if cfg.Port != "8888" {
		t.Errorf("file Port = %v, want 8888", cfg.Port)
	}
	if !cfg.Headless {
		t.Error("file Headless = false, want true")
	}
	if cfg.HistoryMax != 50 {
		t.Errorf("file HistoryMax = %d, want 50", cfg.HistoryMax)
	}
	if cfg.OpenTimeout != 3*time.Second {
		t.Errorf("file OpenTimeout = %v, want 3s", cfg.OpenTimeout)
	}
	if len(cfg.TrustedProxies) != 1 || cfg.TrustedProxies[0] != "127.0.0.1" {
		t.Errorf("file TrustedProxies = %q", cfg.TrustedProxies)
	}

	t.Setenv("SURF_PORT", "7777")
	if cfg := Load(); cfg.Port != "7777" {
		t.Errorf("env should win over file, got %s", cfg.Port)
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	if err := WriteDefault(path, false); err != nil {
		t.Fatal(err)
	}
	if err := WriteDefault(path, false); err == nil {
		t.Error("expected error for existing file")
	}
	if err := WriteDefault(path, true); err != nil {
		t.Errorf("overwrite: %v", err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), `"historyBackend": "sqlite"`) {
		t.Errorf("unexpected file contents:\n%s", data)
	}
}

func TestShowMasksToken(t *testing.T) {
	var buf bytes.Buffer
	Show(&buf, &RuntimeConfig{Bind: "127.0.0.1", Port: "9870", Token: "very-long-token-secret"})
	out := buf.String()
	if strings.Contains(out, "very-long-token-secret") {
		t.Error("token leaked in config show")
	}
	if !strings.Contains(out, "127.0.0.1:9870") {
		t.Errorf("listen address missing:\n%s", out)
	}
}
