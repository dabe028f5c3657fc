package ui

import "time"

// Terminal width thresholds for responsive layouts.
const (
	// LayoutCompactWidth is the threshold below which the header drops
	// secondary fields.
	LayoutCompactWidth = 100

	// LayoutSplitWidth is the minimum width to show the region map and the
	// pixel chart side by side.
	LayoutSplitWidth = 140
)

// Log display limits.
const (
	// LogTailLines is the number of lines read from the end of the log file.
	LogTailLines = 2000
)

// Timing constants.
const (
	// LogRefreshInterval is the minimum time between log file reads while
	// the logs view follows the file.
	LogRefreshInterval = 2 * time.Second

	// DefaultUIInterval is the default UI refresh interval.
	DefaultUIInterval = time.Second
)
