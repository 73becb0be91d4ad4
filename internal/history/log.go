package history

import (
	"context"
	"log/slog"
	"unicode/utf8"
)

const previewLen = 120

// LogEntry logs a clipboard entry at INFO (source, type, timestamp) and at
// DEBUG a text preview up to 120 bytes, cut on a rune boundary, or the data URI size for images.
func LogEntry(event, source string, e Entry) {
	slog.Info(event, "source", source, "type", string(e.Kind), "timestamp", e.Timestamp)

	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	if e.Kind == Text {
		preview := e.Content
		if len(preview) > previewLen {
			cut := previewLen
			for cut > 0 && !utf8.RuneStart(preview[cut]) {
				cut--
			}
			preview = preview[:cut] + "…"
		}
		slog.Debug("clipboard entry", "type", string(e.Kind), "preview", preview)
		return
	}
	slog.Debug("clipboard entry", "type", string(e.Kind), "size_bytes", len(e.Content))
}
