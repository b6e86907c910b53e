package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config captures everything the kiosk agent reads from config.toml.
type Config struct {
	APIURL         string
	UserID         string
	PollInterval   time.Duration
	SettleDelay    time.Duration
	RequestTimeout time.Duration
	NFC            NFCConfig
	QR             QRConfig
	CachePath      string
	CacheTTL       time.Duration
	ServerListen   string
	LogDir         string
	LogLevel       string
	Path           string // resolved file the values were read from
}

// NFCConfig holds the tag reader device and supervisor timings.
type NFCConfig struct {
	Device              string
	HealthCheckInterval time.Duration
	MaxInactivity       time.Duration
	RestartDelay        time.Duration
	InitialDelay        time.Duration
	RetryBackoff        time.Duration
}

// QRConfig holds the camera device and duplicate-read window.
type QRConfig struct {
	Device   string
	Debounce time.Duration
}

const (
	defaultConfigPath     = "~/.config/tray/config.toml"
	defaultAPIURL         = "http://127.0.0.1:8000"
	defaultPollInterval   = 3000
	defaultSettleDelay    = 1000
	defaultRequestTimeout = 5000
	defaultHealthCheck    = 10000
	defaultMaxInactivity  = 15000
	defaultRestartDelay   = 1000
	defaultInitialDelay   = 1000
	defaultRetryBackoff   = 2000
	defaultDebounce       = 1000
	defaultCachePath      = "~/.local/share/tray/images.db"
	defaultCacheTTLHours  = 24
	defaultServerListen   = "127.0.0.1:7490"
	defaultLogDir         = "~/.local/share/tray/logs"
	defaultLogLevel       = "INFO"
)

type rawConfig struct {
	APIURL           string `toml:"api_url"`
	UserID           string `toml:"user_id"`
	PollIntervalMS   int    `toml:"poll_interval_ms"`
	SettleDelayMS    int    `toml:"settle_delay_ms"`
	RequestTimeoutMS int    `toml:"request_timeout_ms"`
	NFC              struct {
		Device                string `toml:"device"`
		HealthCheckIntervalMS int    `toml:"health_check_interval_ms"`
		MaxInactivityMS       int    `toml:"max_inactivity_ms"`
		RestartDelayMS        int    `toml:"restart_delay_ms"`
		InitialDelayMS        int    `toml:"initial_delay_ms"`
		RetryBackoffMS        int    `toml:"retry_backoff_ms"`
	} `toml:"nfc"`
	QR struct {
		Device     string `toml:"device"`
		DebounceMS int    `toml:"debounce_ms"`
	} `toml:"qr"`
	Cache struct {
		Path     string `toml:"path"`
		TTLHours int    `toml:"ttl_hours"`
	} `toml:"cache"`
	Server struct {
		Listen string `toml:"listen"`
	} `toml:"server"`
	Log struct {
		Dir   string `toml:"dir"`
		Level string `toml:"level"`
	} `toml:"log"`
}

// Load locates and parses the tray config, falling back to defaults when missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	var raw rawConfig
	file, err := os.Open(resolved)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("open config: %w", err)
		}
	} else {
		defer file.Close()
		bytes, err := io.ReadAll(file)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := toml.Unmarshal(bytes, &raw); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg := fromRaw(raw)
	cfg.Path = resolved
	return cfg, nil
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return fromRaw(rawConfig{})
}

func fromRaw(raw rawConfig) Config {
	return Config{
		APIURL:         stringOr(raw.APIURL, defaultAPIURL),
		UserID:         strings.TrimSpace(raw.UserID),
		PollInterval:   millisOr(raw.PollIntervalMS, defaultPollInterval),
		SettleDelay:    millisOr(raw.SettleDelayMS, defaultSettleDelay),
		RequestTimeout: millisOr(raw.RequestTimeoutMS, defaultRequestTimeout),
		NFC: NFCConfig{
			Device:              optionalPath(raw.NFC.Device),
			HealthCheckInterval: millisOr(raw.NFC.HealthCheckIntervalMS, defaultHealthCheck),
			MaxInactivity:       millisOr(raw.NFC.MaxInactivityMS, defaultMaxInactivity),
			RestartDelay:        millisOr(raw.NFC.RestartDelayMS, defaultRestartDelay),
			InitialDelay:        millisOr(raw.NFC.InitialDelayMS, defaultInitialDelay),
			RetryBackoff:        millisOr(raw.NFC.RetryBackoffMS, defaultRetryBackoff),
		},
		QR: QRConfig{
			Device:   optionalPath(raw.QR.Device),
			Debounce: millisOr(raw.QR.DebounceMS, defaultDebounce),
		},
		CachePath:    mustExpand(stringOr(raw.Cache.Path, defaultCachePath)),
		CacheTTL:     time.Duration(intOr(raw.Cache.TTLHours, defaultCacheTTLHours)) * time.Hour,
		ServerListen: stringOr(raw.Server.Listen, defaultServerListen),
		LogDir:       mustExpand(stringOr(raw.Log.Dir, defaultLogDir)),
		LogLevel:     strings.ToUpper(stringOr(raw.Log.Level, defaultLogLevel)),
	}
}

// LogPath returns the path of the agent's own structured log file.
func (c Config) LogPath() string {
	if strings.TrimSpace(c.LogDir) == "" {
		return mustExpand(defaultLogDir + "/tray.log")
	}
	return filepath.Join(c.LogDir, "tray.log")
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return defaultConfigPath
}

func stringOr(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

func intOr(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

func millisOr(value, fallback int) time.Duration {
	return time.Duration(intOr(value, fallback)) * time.Millisecond
}

// Device paths stay empty when unset; an empty device disables that input.
func optionalPath(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	return mustExpand(trimmed)
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
