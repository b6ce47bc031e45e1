package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

const (
	DefaultPort       = "9870"
	DefaultMaxTabs    = 50
	DefaultHistoryMax = 10000
	DefaultRateLimit  = 120
)

type RuntimeConfig struct {
	Bind             string
	Port             string
	CdpURL           string
	Token            string
	StateDir         string
	Headless         bool
	NoRestore        bool
	ProfileDir       string
	ChromeBinary     string
	ChromeExtraFlags string
	MaxTabs          int
	HistoryMax       int
	HistoryBackend   string
	LogLevel         string
	ConfigPath       string
	OpenTimeout      time.Duration
	ShutdownTimeout  time.Duration
	AutosaveDelay    time.Duration
	RateLimit        int
	RateWindow       time.Duration
	TrustedProxies   []string
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBoolOr(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func envListOr(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func homeDir() string {
	h, _ := os.UserHomeDir()
	return h
}

func (c *RuntimeConfig) ListenAddr() string {
	return c.Bind + ":" + c.Port
}

// SlogLevel maps LogLevel onto a slog level; unknown names mean info.
func (c *RuntimeConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type FileConfig struct {
	Port           string   `json:"port"`
	CdpURL         string   `json:"cdpUrl,omitempty"`
	Token          string   `json:"token,omitempty"`
	StateDir       string   `json:"stateDir"`
	ProfileDir     string   `json:"profileDir"`
	Headless       *bool    `json:"headless,omitempty"`
	NoRestore      bool     `json:"noRestore"`
	MaxTabs        *int     `json:"maxTabs,omitempty"`
	HistoryMax     *int     `json:"historyMax,omitempty"`
	HistoryBackend string   `json:"historyBackend,omitempty"`
	LogLevel       string   `json:"logLevel,omitempty"`
	OpenSec        int      `json:"openTimeoutSec,omitempty"`
	RateLimit      *int     `json:"rateLimit,omitempty"`
	TrustedProxies []string `json:"trustedProxies,omitempty"`
}

// DefaultConfigPath is where the optional JSON config file lives unless
// SURF_CONFIG says otherwise.
func DefaultConfigPath() string {
	return envOr("SURF_CONFIG", filepath.Join(homeDir(), ".surf", "config.json"))
}

// Load builds the runtime config from the environment layered over the
// config file. Environment variables win.
func Load() *RuntimeConfig {
	cfg := &RuntimeConfig{
		Bind:             envOr("SURF_BIND", "127.0.0.1"),
		Port:             envOr("SURF_PORT", DefaultPort),
		CdpURL:           os.Getenv("CDP_URL"),
		Token:            os.Getenv("SURF_TOKEN"),
		StateDir:         envOr("SURF_STATE_DIR", filepath.Join(homeDir(), ".surf")),
		Headless:         envBoolOr("SURF_HEADLESS", false),
		NoRestore:        envBoolOr("SURF_NO_RESTORE", false),
		ProfileDir:       envOr("SURF_PROFILE", filepath.Join(homeDir(), ".surf", "chrome-profile")),
		ChromeBinary:     os.Getenv("CHROME_BINARY"),
		ChromeExtraFlags: os.Getenv("CHROME_FLAGS"),
		MaxTabs:          envIntOr("SURF_MAX_TABS", DefaultMaxTabs),
		HistoryMax:       envIntOr("SURF_HISTORY_MAX", DefaultHistoryMax),
		HistoryBackend:   envOr("SURF_HISTORY_BACKEND", "sqlite"),
		LogLevel:         envOr("SURF_LOG_LEVEL", "info"),
		ConfigPath:       DefaultConfigPath(),
		OpenTimeout:      10 * time.Second,
		ShutdownTimeout:  10 * time.Second,
		AutosaveDelay:    500 * time.Millisecond,
		RateLimit:        envIntOr("SURF_RATE_LIMIT", DefaultRateLimit),
		RateWindow:       10 * time.Second,
		TrustedProxies:   envListOr("SURF_TRUSTED_PROXIES", nil),
	}

	data, err := os.ReadFile(cfg.ConfigPath)
	if err != nil {
		return cfg
	}

	var fc FileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		slog.Warn("config file ignored", "path", cfg.ConfigPath, "err", err)
		return cfg
	}

	if fc.Port != "" && os.Getenv("SURF_PORT") == "" {
		cfg.Port = fc.Port
	}
	if fc.CdpURL != "" && os.Getenv("CDP_URL") == "" {
		cfg.CdpURL = fc.CdpURL
	}
	if fc.Token != "" && os.Getenv("SURF_TOKEN") == "" {
		cfg.Token = fc.Token
	}
	if fc.StateDir != "" && os.Getenv("SURF_STATE_DIR") == "" {
		cfg.StateDir = fc.StateDir
	}
	if fc.ProfileDir != "" && os.Getenv("SURF_PROFILE") == "" {
		cfg.ProfileDir = fc.ProfileDir
	}
	if fc.Headless != nil && os.Getenv("SURF_HEADLESS") == "" {
		cfg.Headless = *fc.Headless
	}
	if fc.NoRestore && os.Getenv("SURF_NO_RESTORE") == "" {
		cfg.NoRestore = true
	}
	if fc.MaxTabs != nil && os.Getenv("SURF_MAX_TABS") == "" {
		cfg.MaxTabs = *fc.MaxTabs
	}
	if fc.HistoryMax != nil && os.Getenv("SURF_HISTORY_MAX") == "" {
		cfg.HistoryMax = *fc.HistoryMax
	}
	if fc.HistoryBackend != "" && os.Getenv("SURF_HISTORY_BACKEND") == "" {
		cfg.HistoryBackend = fc.HistoryBackend
	}
	if fc.LogLevel != "" && os.Getenv("SURF_LOG_LEVEL") == "" {
		cfg.LogLevel = fc.LogLevel
	}
	if fc.OpenSec > 0 {
		cfg.OpenTimeout = time.Duration(fc.OpenSec) * time.Second
	}
	if fc.RateLimit != nil && os.Getenv("SURF_RATE_LIMIT") == "" {
		cfg.RateLimit = *fc.RateLimit
	}
	if len(fc.TrustedProxies) > 0 && os.Getenv("SURF_TRUSTED_PROXIES") == "" {
		cfg.TrustedProxies = fc.TrustedProxies
	}

	return cfg
}

func DefaultFileConfig() FileConfig {
	h := false
	maxTabs := DefaultMaxTabs
	historyMax := DefaultHistoryMax
	rateLimit := DefaultRateLimit
	return FileConfig{
		Port:           DefaultPort,
		StateDir:       filepath.Join(homeDir(), ".surf"),
		ProfileDir:     filepath.Join(homeDir(), ".surf", "chrome-profile"),
		Headless:       &h,
		MaxTabs:        &maxTabs,
		HistoryMax:     &historyMax,
		HistoryBackend: "sqlite",
		LogLevel:       "info",
		OpenSec:        10,
		RateLimit:      &rateLimit,
	}
}

// WriteDefault creates the config file at path with the defaults. An
// existing file is kept unless overwrite is set.
func WriteDefault(path string, overwrite bool) error {
	if _, err := os.Stat(path); err == nil && !overwrite {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := json.MarshalIndent(DefaultFileConfig(), "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Show prints the effective configuration with the token masked.
func Show(w io.Writer, cfg *RuntimeConfig) {
	fmt.Fprintln(w, "Current configuration:")
	fmt.Fprintf(w, "  Config:     %s\n", cfg.ConfigPath)
	fmt.Fprintf(w, "  Listen:     %s\n", cfg.ListenAddr())
	fmt.Fprintf(w, "  CDP URL:    %s\n", cfg.CdpURL)
	fmt.Fprintf(w, "  Token:      %s\n", MaskToken(cfg.Token))
	fmt.Fprintf(w, "  State Dir:  %s\n", cfg.StateDir)
	fmt.Fprintf(w, "  Profile:    %s\n", cfg.ProfileDir)
	fmt.Fprintf(w, "  Headless:   %v\n", cfg.Headless)
	fmt.Fprintf(w, "  Max Tabs:   %d\n", cfg.MaxTabs)
	fmt.Fprintf(w, "  History:    %s (max %d)\n", cfg.HistoryBackend, cfg.HistoryMax)
	fmt.Fprintf(w, "  No Restore: %v\n", cfg.NoRestore)
	fmt.Fprintf(w, "  Log Level:  %s\n", cfg.LogLevel)
	fmt.Fprintf(w, "  Rate Limit: %d per %s\n", cfg.RateLimit, cfg.RateWindow)
	if len(cfg.TrustedProxies) > 0 {
		fmt.Fprintf(w, "  Proxies:    %s\n", strings.Join(cfg.TrustedProxies, ", "))
	}
}

func MaskToken(t string) string {
	if t == "" {
		return "(none)"
	}
	if len(t) <= 8 {
		return "***"
	}
	return t[:4] + "..." + t[len(t)-4:]
}
