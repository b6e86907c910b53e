// Package state holds the kiosk's cached copy of the current meal.
//
// The current-meal poller is the only writer; the plate view controller, the
// TUI and the status server read copies through Snapshot and learn about
// changes through Watch.
//
// # Phases
//
//	Idle ──Refetch──> Loading ──Apply──> Active   (meal present, polling armed)
//	                                 └─> NoMeal   (404, polling disarmed)
//	                                 └─> Error    (other failure, polling armed)
//
// Refetch returns any phase to Loading and always re-arms polling.
//
// # Ordering
//
// Poll ticks are driven by wall-clock time and may overlap when the backend is
// slow. Every request takes a sequence number from Next or Refetch before it is
// sent; Apply ignores a response whose sequence is not newer than the last one
// applied.
//
//	seq := store.Next()
//	snap, err := client.FetchCurrentMeal(ctx)
//	store.Apply(seq, snap, err)
//
// Cancelled requests are never applied.
package state
