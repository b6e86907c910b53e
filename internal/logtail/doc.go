// Package logtail reads the end of tray.log for the TUI logs pane.
//
// Tail keeps a ring of the last n lines, so memory stays bounded however
// large the file grows. Read parses each line as a JSON slog record into an
// Entry; Entry.String renders it compactly:
//
//	14:03:22 INFO  [poller] no active meal, polling disarmed seq=4
package logtail
