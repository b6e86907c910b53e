package ui

import "time"

// Terminal width thresholds for responsive layouts.
const (
	// LayoutCompactWidth is the threshold below which the header drops labels.
	LayoutCompactWidth = 80

	// LayoutSideBySideWidth is the minimum width to show slices and macros
	// next to each other.
	LayoutSideBySideWidth = 110
)

// Log pane limits.
const (
	LogTailLines   = 500
	LogRefreshRate = time.Second
)

// Timing constants.
const (
	// ClockInterval refreshes the header clock and the scanner badges.
	ClockInterval = time.Second

	// FrameInterval drives counter animations.
	FrameInterval = 33 * time.Millisecond
)
