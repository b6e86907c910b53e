// Package config loads the tray kiosk configuration.
//
// # Overview
//
// The agent reads a single TOML file, by default ~/.config/tray/config.toml.
// A missing file is not an error: every key has a default so a kiosk can boot
// against a local backend with no configuration at all.
//
// # Keys
//
//	api_url            = "http://127.0.0.1:8000"
//	user_id            = "17"        # sent as the User-Id header
//	poll_interval_ms   = 3000        # current-meal polling cadence
//	settle_delay_ms    = 1000        # wait after initialize before refetching
//	request_timeout_ms = 5000
//
//	[nfc]
//	device                   = "/dev/ttyACM0"   # empty disables NFC
//	health_check_interval_ms = 10000
//	max_inactivity_ms        = 15000
//	restart_delay_ms         = 1000
//	initial_delay_ms         = 1000
//	retry_backoff_ms         = 2000
//
//	[qr]
//	device      = "/dev/ttyUSB0"   # empty means no camera
//	debounce_ms = 1000
//
//	[cache]
//	path      = "~/.local/share/tray/images.db"
//	ttl_hours = 24
//
//	[server]
//	listen = "127.0.0.1:7490"
//
//	[log]
//	dir   = "~/.local/share/tray/logs"
//	level = "INFO"
//
// Strings are trimmed, empty or non-positive values fall back to their
// defaults, and a leading ~ expands to the user's home directory.
//
// # Error Handling
//
// Load returns an error only when the file exists but cannot be opened, read,
// or parsed as TOML.
package config
