// Package logtail reads the tail of the wcpms log file and splits slog text
// lines into fields for display.
//
// # Reading Log Files
//
// Read keeps a ring buffer of maxLines entries while scanning the file once,
// so memory stays O(maxLines) regardless of file size. A missing file is not
// an error: the TUI starts before anything has been logged.
//
//	lines, err := logtail.Read(cfg.LogPath, 400)
//
// # Parsing
//
// Parse understands the key=value format written by slog.TextHandler:
//
//	time=2021-07-13T10:11:12.000Z level=WARN msg="chart annotations unavailable" lat=-29.2
//
// time, level and msg are lifted into Entry fields; every other pair stays in
// Attrs in the order written. Lines that do not follow the format (a panic
// trace, for example) are returned as a message with LevelUnknown.
package logtail
