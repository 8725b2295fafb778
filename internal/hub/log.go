package hub

import (
	"context"
	"log/slog"
	"unicode/utf8"

	"go.klb.dev/cumulus/internal/message"
)

const previewRunes = 50

// LogBuffer logs a buffer event at INFO (length in runes) and DEBUG (text
// preview up to 50 runes).
func LogBuffer(event, buffer string, attrs ...any) {
	args := append([]any{"length", utf8.RuneCountInString(buffer)}, attrs...)
	slog.Info(event, args...)

	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	slog.Debug("buffer contents", "preview", message.Preview(buffer, previewRunes))
}
