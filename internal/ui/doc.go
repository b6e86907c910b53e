// Package ui is the kiosk's terminal screen, built on Bubble Tea.
//
// # Package Structure
//
//   - app.go: Model, Update loop, commands and Run
//   - header.go: status bar, command bar and titled boxes
//   - plate.go: one renderer per plate screen phase
//   - logs.go: tray.log pane backed by logtail
//   - theme.go, style_helpers.go: palettes and background-safe rendering
//   - keys.go, help.go: key bindings and the help overlay
//
// # Data Flow
//
// The model subscribes to the controller's views and re-arms the
// subscription after every view it receives, so rendering never blocks the
// controller. Calories and macro grams ease toward new values on a frame
// tick while a clock tick keeps badges and the logs pane fresh.
//
// Terminal focus is the kiosk's notion of page visibility: the program runs
// with focus reporting and forwards FocusMsg and BlurMsg to the poller.
//
// # Keyboard Shortcuts
//
//   - r: refetch the current meal
//   - s: start or stop the QR camera; p: retry camera permission
//   - m: toggle the macro panel; l: toggle the logs pane
//   - T: cycle theme; h/?: help; q/ctrl+c: quit
//
// Theme and macro panel choices persist through the prefs package.
package ui
