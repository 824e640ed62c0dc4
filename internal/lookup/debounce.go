package lookup

import (
	"context"
	"sync"
	"time"
)

const DefaultDelay = 300 * time.Millisecond

// Debouncer delays each call by the quiet period. Of the calls for one key that
// overlap, only the last runs; the others return ErrSuperseded.
type Debouncer struct {
	delay time.Duration

	mu     sync.Mutex
	next   uint64
	latest map[string]uint64
}

func NewDebouncer(delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Debouncer{delay: delay, latest: make(map[string]uint64)}
}

func (d *Debouncer) Do(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	d.mu.Lock()
	d.next++
	my := d.next
	d.latest[key] = my
	d.mu.Unlock()

	t := time.NewTimer(d.delay)
	defer t.Stop()

	select {
	case <-ctx.Done():
		d.forget(key, my)
		return ctx.Err()
	case <-t.C:
	}

	d.mu.Lock()
	current := d.latest[key] == my
	if current {
		delete(d.latest, key)
	}
	d.mu.Unlock()

	if !current {
		return ErrSuperseded
	}
	return fn(ctx)
}

func (d *Debouncer) forget(key string, my uint64) {
	d.mu.Lock()
	if d.latest[key] == my {
		delete(d.latest, key)
	}
	d.mu.Unlock()
}

// Search runs a debounced Load on l under key.
func (d *Debouncer) Search(ctx context.Context, key string, l *Loader, query string) ([]Option, error) {
	var out []Option
	err := d.Do(ctx, key, func(ctx context.Context) error {
		opts, err := l.Load(ctx, query)
		out = opts
		return err
	})
	return out, err
}
