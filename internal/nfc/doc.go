// Package nfc reads plate tags.
//
// # Overview
//
// A Reader wraps a Platform (the host's tag-reading capability) into a small
// state object with Start, Stop and Clear. A Supervisor keeps the reader
// alive: platform sessions can die without reporting an error, so the
// supervisor restarts any session that has been quiet for longer than
// MaxInactivity and retries failed starts after a fixed backoff.
//
// # Components
//
//   - reader.go: Platform, Reader, the capability gate and NormalizeSerial
//   - supervisor.go: Supervisor with its start, health check and restart timers
//   - device.go: LineDevice, the Platform used on the kiosk
//
// # Capability Gate
//
// NewReader decides once whether reading is possible. Reading needs a
// Platform whose Supported reports true and an origin that is https or
// loopback (see SecureOrigin). When either fails, State.UnsupportedReason
// carries a Portuguese explanation and CanUse reports false. Nothing is
// ever thrown at the screen.
//
// # Reader
//
//	Start ──> Scan(ctx) ──> consume readings ──> State.Data / State.Error
//	  │                          ^
//	  └── ErrAlreadyReading      └── Stop cancels ctx, late readings are discarded
//	      ErrUnsupported
//
// Serials are upper-cased with colons turned into dashes, so "04:a2:3b"
// becomes "04-A2-3B". A tag without a serial sets ErrNoSerial in the state.
// Stop is idempotent. Clear empties Data and Error after a serial has been
// handed on.
//
// # Supervisor
//
// Run owns the reader until its context ends:
//
//  1. Waits InitialDelay (1s), then starts reading
//  2. Every HealthCheckInterval (10s) compares now with the last activity;
//     beyond MaxInactivity (15s) it stops, waits RestartDelay (1s), and starts
//  3. A failed start is retried after RetryBackoff (2s), indefinitely
//  4. Each new serial goes to OnScan exactly once, then the reader is cleared
//
// Activity is refreshed when reading starts and when a tag arrives. Repeated
// start failures reach OnError once they hit three in a row; a successful
// start resets the count. Every timer is stopped before Run returns.
//
// # Devices
//
// LineDevice reads one event per line from a character device or FIFO:
// a serial, "-" for a tag without one, or "error: <text>". Tests substitute
// their own Platform.
package nfc
