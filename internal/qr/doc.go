// Package qr scans plate QR codes from a Camera.
//
// # Overview
//
// A Scanner is a four-state machine around a Camera:
//
//	StatusCheckingPermission ──> StatusIdle <──> StatusScanning
//	          │                      ^
//	          v                      │ RequestPermission
//	StatusPermissionDenied ──────────┘
//
// CheckPermission opens the camera once with the preferred constraints and
// closes it immediately; that stream is never used for decoding. The
// scanner then sits in StatusIdle, or in StatusPermissionDenied until
// RequestPermission succeeds. Denial is a state the screen shows with a
// retry hint, not an error.
//
// # Components
//
//   - camera.go: Camera, Stream, Constraints and LineCamera
//   - scanner.go: Scanner, its status and the decode loop
//
// # Decode Loop
//
// Open starts a loop that calls Stream.Next until Close or until the stream
// ends. Each attempt is one of:
//
//   - decoded text: accepted when at least the debounce window (one second
//     by default) has passed since the last accepted decode, so a plate held
//     in front of the camera is reported once
//   - ErrNotFound, ErrChecksum or ErrFormat: frame noise, dropped silently
//   - any other error: reported through OnError; io.EOF ends the loop
//
// The loop owns the camera. Close does not return before the device has been
// released, and calling it twice is safe.
//
// # Constraints
//
// DefaultConstraints prefer the rear ("environment") camera at 1280x720,
// capped at 1920x1080. Cameras honor what they can.
//
// # Devices
//
// LineCamera reads decoded codes from a line-oriented device: a USB barcode
// scanner in serial mode, or a FIFO written by a decoder such as zbarcam.
// Each line is decoded text or "error: <kind>".
package qr
