package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_MissingConfigFallsBackToDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load(filepath.Join(home, "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.APIURL != defaultAPIURL {
		t.Fatalf("APIURL = %q, want %q", cfg.APIURL, defaultAPIURL)
	}
	if cfg.PollInterval != 3*time.Second {
		t.Fatalf("PollInterval = %v, want 3s", cfg.PollInterval)
	}
	if cfg.SettleDelay != time.Second {
		t.Fatalf("SettleDelay = %v, want 1s", cfg.SettleDelay)
	}
	if cfg.NFC.HealthCheckInterval != 10*time.Second || cfg.NFC.MaxInactivity != 15*time.Second {
		t.Fatalf("NFC timings = %+v, want 10s health check and 15s inactivity", cfg.NFC)
	}
	if cfg.NFC.RestartDelay != time.Second || cfg.NFC.InitialDelay != time.Second || cfg.NFC.RetryBackoff != 2*time.Second {
		t.Fatalf("NFC delays = %+v, want 1s/1s/2s", cfg.NFC)
	}
	if cfg.NFC.Device != "" || cfg.QR.Device != "" {
		t.Fatalf("devices = %q/%q, want both empty", cfg.NFC.Device, cfg.QR.Device)
	}
	if cfg.QR.Debounce != time.Second {
		t.Fatalf("QR.Debounce = %v, want 1s", cfg.QR.Debounce)
	}
	if cfg.CacheTTL != 24*time.Hour {
		t.Fatalf("CacheTTL = %v, want 24h", cfg.CacheTTL)
	}
	if !strings.HasPrefix(cfg.CachePath, home) {
		t.Fatalf("CachePath = %q, want it under HOME %q", cfg.CachePath, home)
	}
	if cfg.LogLevel != "INFO" {
		t.Fatalf("LogLevel = %q, want INFO", cfg.LogLevel)
	}
}

func TestLoad_ParsesAndTrimsConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`
api_url = "  https://cafe.example.com  "
user_id = " 42 "
poll_interval_ms = 1500

[nfc]
device = "  ~/nfc.fifo "
max_inactivity_ms = 20000

[qr]
device = "/dev/ttyACM0"
debounce_ms = 500

[cache]
path = "~/cache/images.db"
ttl_hours = 2

[log]
level = "debug"
`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.APIURL != "https://cafe.example.com" {
		t.Fatalf("APIURL = %q, want %q", cfg.APIURL, "https://cafe.example.com")
	}
	if cfg.UserID != "42" {
		t.Fatalf("UserID = %q, want 42", cfg.UserID)
	}
	if cfg.PollInterval != 1500*time.Millisecond {
		t.Fatalf("PollInterval = %v, want 1.5s", cfg.PollInterval)
	}
	if cfg.NFC.Device != filepath.Join(home, "nfc.fifo") {
		t.Fatalf("NFC.Device = %q, want it expanded under HOME", cfg.NFC.Device)
	}
	if cfg.NFC.MaxInactivity != 20*time.Second {
		t.Fatalf("NFC.MaxInactivity = %v, want 20s", cfg.NFC.MaxInactivity)
	}
	if cfg.NFC.HealthCheckInterval != 10*time.Second {
		t.Fatalf("NFC.HealthCheckInterval = %v, want default 10s", cfg.NFC.HealthCheckInterval)
	}
	if cfg.QR.Device != "/dev/ttyACM0" || cfg.QR.Debounce != 500*time.Millisecond {
		t.Fatalf("QR = %+v, want /dev/ttyACM0 with 500ms debounce", cfg.QR)
	}
	if cfg.CachePath != filepath.Join(home, "cache/images.db") {
		t.Fatalf("CachePath = %q, want it under HOME", cfg.CachePath)
	}
	if cfg.CacheTTL != 2*time.Hour {
		t.Fatalf("CacheTTL = %v, want 2h", cfg.CacheTTL)
	}
	if cfg.LogLevel != "DEBUG" {
		t.Fatalf("LogLevel = %q, want DEBUG", cfg.LogLevel)
	}
	if cfg.Path != path {
		t.Fatalf("Path = %q, want %q", cfg.Path, path)
	}
}

func TestLoad_NonPositiveValuesUseDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`
api_url = "   "
poll_interval_ms = -5
settle_delay_ms = 0
`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.APIURL != defaultAPIURL {
		t.Fatalf("APIURL = %q, want %q", cfg.APIURL, defaultAPIURL)
	}
	if cfg.PollInterval != 3*time.Second || cfg.SettleDelay != time.Second {
		t.Fatalf("timings = %v/%v, want 3s/1s", cfg.PollInterval, cfg.SettleDelay)
	}
}

func TestLoad_InvalidTOMLFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`api_url = [`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	_, err := Load(path)
	if err == nil {
		t.Fatalf("Load returned nil error, want parse error")
	}
	if !strings.Contains(err.Error(), "parse config") {
		t.Fatalf("Load error = %q, want it to mention parse config", err.Error())
	}
}

func TestExpandPath_ExpandsTildeAndReturnsAbs(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := expandPath("~/a/b")
	if err != nil {
		t.Fatalf("expandPath returned error: %v", err)
	}
	want := filepath.Join(home, "a/b")
	if got != want {
		t.Fatalf("expandPath = %q, want %q", got, want)
	}
}

func TestExpandPath_EmptyErrors(t *testing.T) {
	if _, err := expandPath("   "); err == nil {
		t.Fatalf("expandPath returned nil error, want error")
	}
}

func TestLogPath_DefaultsWhenLogDirEmpty(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	var cfg Config
	got := cfg.LogPath()
	if !strings.HasPrefix(got, home) {
		t.Fatalf("LogPath = %q, want it under HOME %q", got, home)
	}
	if !strings.HasSuffix(got, filepath.FromSlash("/tray.log")) {
		t.Fatalf("LogPath = %q, want it to end with /tray.log", got)
	}
}
