package notifications

import (
	"context"
	"log/slog"
)

// LogNotifier writes toasts to the structured log. Used when no browser is attached.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(ctx context.Context, t Toast) error {
	level := slog.LevelInfo
	switch t.Level {
	case LevelError:
		level = slog.LevelError
	case LevelWarning:
		level = slog.LevelWarn
	}
	n.log.Log(ctx, level, "toast", "level", string(t.Level), "message", t.Message, "toast_id", t.ID)
	return nil
}

func (n *LogNotifier) Dismiss(context.Context) error { return nil }
