// Package app is the kiosk's orchestration layer: it keeps the current meal
// in sync with the backend and turns plate scans into meals.
//
// # Overview
//
// The package wires configuration, logging, the backend client, the photo
// cache, the plate scanner and the meal store into one Kiosk. It is the
// composition root for both front ends: cmd/tray hands the Kiosk's
// Controller to the terminal UI or to the websocket server, and nothing in
// this package imports either of them.
//
// # Architecture
//
// Open builds everything without starting it:
//
//  1. Load config.toml (default ~/.config/tray/config.toml)
//  2. Open the JSON log under log.dir, or stderr for headless modes
//  3. Create the cafeteria client with a session that can reload user_id
//  4. Open the SQLite photo cache and its Loader
//  5. Create the state.Store, the Poller and the scanner.Plate
//  6. Create the Controller on top of all of them
//
// Kiosk.Run then starts the plate scanner and the controller (which starts
// the poller) and blocks until the context ends.
//
// # Components
//
//   - app.go: Open builds a Kiosk from config.toml; Kiosk.Run starts it
//   - poller.go: Poller fetches GET /auth/meals/current into a state.Store
//   - controller.go: Controller runs the plate screen and derives its View
//
// # Data Flow
//
//	┌────────────────┐  Event   ┌──────────────┐ POST /auth/meals/initialize
//	│ scanner.Plate  │ ───────> │  Controller  │ ───────────────────────────> backend
//	└────────────────┘          └──────┬───────┘
//	                                   │ settle delay, then Refetch
//	                                   v
//	                            ┌──────────────┐ GET /auth/meals/current
//	                            │    Poller    │ ───────────────────────────> backend
//	                            └──────┬───────┘
//	                                   │ Apply(seq, meal, err)
//	                                   v
//	                            ┌──────────────┐
//	                            │ state.Store  │ ──> Controller.Snapshot() ──> ui / server
//	                            └──────────────┘
//
// # Polling Behavior
//
// The poller fetches once on start and once per Refetch. Between those it
// ticks every poll interval (default 3 seconds) while two things hold: the
// store is armed and the display is visible. A 404 means no meal is active;
// it disarms polling until the next Refetch. Transient failures keep polling
// armed and surface as a load error.
//
// Requests may overlap when the backend is slower than the interval. Every
// request carries a sequence number and the store discards anything older
// than what it already applied. Refetch returns the number its forced
// request carries.
//
// # Plate Screen
//
// The controller's phases are Loading, Scanning, Processing and Display.
// A scan in Scanning or Display starts one initialize call; scans during
// Processing are ignored. After a successful initialize the backend gets
// the settle delay to create the meal, then the poller is forced to refetch.
// Processing lasts until the store has applied that refetch or a later
// request, so polls sent before the scan cannot bring back the previous
// meal. A failed initialize returns to Scanning with the backend's message,
// or "Erro ao inicializar refeição" when it sent none.
//
// Views are pushed to subscribers on every store change, on every scan and
// four times a second for scanner state. Each subscriber channel holds only
// the latest view.
//
// # Error Handling
//
// Fatal errors (returned from Open):
//   - config.toml present but unreadable or invalid
//   - log directory or photo cache cannot be opened
//   - api_url cannot be parsed
//
// Everything after Open is recoverable and ends up in the View instead:
// poll failures in Error, initialize failures in InitError, and scanner
// problems in the scanner state. Kiosk.Run only returns an error when a
// component panics.
//
// # Photo Cache
//
// Expired photos are never swept while the kiosk runs. Loader.Get ignores
// records older than cache.ttl_hours and refetches them; `tray cache prune`
// deletes them.
//
// # Usage Example
//
//	kiosk, err := app.Open(app.Options{ConfigPath: ""})
//	if err != nil {
//		return err
//	}
//	defer kiosk.Close()
//
//	views := kiosk.Controller.Subscribe()
//	go kiosk.Run(ctx)
//	for v := range views {
//		render(v)
//	}
//
// # Dependencies
//
//   - config: config.toml loading
//   - logging: slog JSON sink
//   - cafeteria: backend client
//   - imagecache: SQLite photo cache
//   - scanner: QR and NFC plate inputs
//   - state: meal store shared by the poller and controller
package app
