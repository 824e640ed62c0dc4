package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelInfo    Level = "info"
)

// Toast is a transient message shown once on the next rendered page.
type Toast struct {
	ID      string    `json:"id"`
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

func NewToast(level Level, msg string) Toast {
	return Toast{
		ID:      uuid.NewString(),
		Level:   level,
		Message: msg,
		At:      time.Now().UTC(),
	}
}

// Notifier delivers toasts to the browser session carried by ctx.
type Notifier interface {
	Notify(ctx context.Context, t Toast) error
	// Dismiss drops every toast not yet shown.
	Dismiss(ctx context.Context) error
}

func Success(ctx context.Context, n Notifier, msg string) error {
	return n.Notify(ctx, NewToast(LevelSuccess, msg))
}

func Error(ctx context.Context, n Notifier, msg string) error {
	return n.Notify(ctx, NewToast(LevelError, msg))
}

func Warn(ctx context.Context, n Notifier, msg string) error {
	return n.Notify(ctx, NewToast(LevelWarning, msg))
}

func Info(ctx context.Context, n Notifier, msg string) error {
	return n.Notify(ctx, NewToast(LevelInfo, msg))
}

// Replace dismisses older toasts and shows t, so only the latest message is visible.
func Replace(ctx context.Context, n Notifier, t Toast) error {
	if err := n.Dismiss(ctx); err != nil {
		return err
	}
	return n.Notify(ctx, t)
}

type inboxKey struct{}

// WithInbox binds ctx to the inbox of one browser session.
func WithInbox(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, inboxKey{}, id)
}

func InboxFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(inboxKey{}).(string)
	return id, ok && id != ""
}
