// Package scanner composes the QR and NFC inputs into one plate scanner.
//
// # Overview
//
// A plate carries its identifier twice: as a QR code printed on the rim and
// as an NFC tag underneath. Plate treats both as equivalent producers of the
// same Event, so the rest of the kiosk never asks which one fired.
//
// # Architecture
//
//	┌──────────────┐ OnScan(text)   ┌─────────┐
//	│  qr.Scanner  │ ─────────────> │         │  Event{ID, Value, Method, At}
//	└──────────────┘                │  Plate  │ ─────────────────────────────> Events()
//	┌────────────────┐ OnScan(sn)   │         │
//	│ nfc.Supervisor │ ───────────> │         │
//	└────────────────┘              └─────────┘
//
// New always builds both inputs. A nil camera leaves the QR scanner unable
// to open; a nil platform, or an api_url that is neither https nor local,
// leaves NFC unsupported with a reason the screen can show.
//
// # Lifecycle
//
// Run does three things and blocks until its context ends:
//
//  1. Starts the NFC supervisor, only when the reader can be used
//  2. Checks camera permission, and opens the decode loop right away when
//     Options.OpenCamera is set (headless mode)
//  3. Closes the camera before returning
//
// The terminal UI leaves the camera closed and lets the operator open it
// through QR().
//
// # Events
//
// Every accepted read becomes an Event with a fresh UUID, used to correlate
// the scan with its initialize call in the logs. The events channel is
// buffered; when the consumer falls behind, further scans are dropped and
// logged rather than blocking the inputs. First to fire wins: the
// controller ignores scans while a plate is initializing.
//
// # State
//
// State combines the QR status, the NFC supervisor state and two derived
// flags. CanUseNFC is set when NFC is usable. Approach is set while an NFC
// session is open, which is when the screen invites a tap.
package scanner
