package notifications

import (
	"context"
	"fmt"
)

// Inbox stores pending toasts per browser session until the next page render drains them.
type Inbox interface {
	Push(ctx context.Context, id string, t Toast) error
	Clear(ctx context.Context, id string) error
	Drain(ctx context.Context, id string) ([]Toast, error)
}

// FlashNotifier queues toasts in the inbox bound to ctx. Without a bound inbox it
// falls back to the log notifier.
type FlashNotifier struct {
	inbox    Inbox
	fallback Notifier
}

func NewFlashNotifier(inbox Inbox, fallback Notifier) *FlashNotifier {
	if fallback == nil {
		fallback = NewLogNotifier(nil)
	}
	return &FlashNotifier{inbox: inbox, fallback: fallback}
}

func (n *FlashNotifier) Notify(ctx context.Context, t Toast) error {
	id, ok := InboxFrom(ctx)
	if !ok {
		return n.fallback.Notify(ctx, t)
	}
	if err := n.inbox.Push(ctx, id, t); err != nil {
		return fmt.Errorf("push toast: %w", err)
	}
	return nil
}

func (n *FlashNotifier) Dismiss(ctx context.Context) error {
	id, ok := InboxFrom(ctx)
	if !ok {
		return nil
	}
	if err := n.inbox.Clear(ctx, id); err != nil {
		return fmt.Errorf("clear toasts: %w", err)
	}
	return nil
}

// Pending drains the toasts queued for the browser bound to ctx.
func (n *FlashNotifier) Pending(ctx context.Context) ([]Toast, error) {
	id, ok := InboxFrom(ctx)
	if !ok {
		return nil, nil
	}
	return n.inbox.Drain(ctx, id)
}
