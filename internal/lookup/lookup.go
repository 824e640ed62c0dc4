// Package lookup loads select options from the backend: per-field loaders with a
// loading flag and a debouncer that coalesces rapid searches into one trailing call.
package lookup

import (
	"context"
	"errors"
	"strings"
	"sync"
)

var ErrSuperseded = errors.New("lookup superseded by a newer search")

type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Func fetches options matching query. An empty query means "first page".
type Func func(ctx context.Context, query string) ([]Option, error)

// Static serves a fixed list, filtered by a case-insensitive label match.
func Static(opts []Option) Func {
	return func(_ context.Context, query string) ([]Option, error) {
		q := strings.ToLower(strings.TrimSpace(query))
		if q == "" {
			return opts, nil
		}
		out := make([]Option, 0, len(opts))
		for _, o := range opts {
			if strings.Contains(strings.ToLower(o.Label), q) {
				out = append(out, o)
			}
		}
		return out, nil
	}
}

// Ensure returns opts with selected present, so an edit form can show a value
// that is not on the first page of results.
func Ensure(opts []Option, selected Option) []Option {
	if selected.Value == "" {
		return opts
	}
	for _, o := range opts {
		if o.Value == selected.Value {
			return opts
		}
	}
	if selected.Label == "" {
		selected.Label = selected.Value
	}
	return append([]Option{selected}, opts...)
}

// Loader holds the option state of one select control.
type Loader struct {
	fetch Func

	mu      sync.Mutex
	seq     uint64
	loading bool
	options []Option
	err     error
}

func NewLoader(fetch Func) *Loader {
	return &Loader{fetch: fetch}
}

// Load fetches options for query. When a newer Load started meanwhile, the result is
// discarded and ErrSuperseded returned.
func (l *Loader) Load(ctx context.Context, query string) ([]Option, error) {
	l.mu.Lock()
	l.seq++
	my := l.seq
	l.loading = true
	l.mu.Unlock()

	opts, err := l.fetch(ctx, query)

	l.mu.Lock()
	defer l.mu.Unlock()

	if my != l.seq {
		return nil, ErrSuperseded
	}
	l.loading = false
	if err != nil {
		l.options, l.err = nil, err
		return nil, err
	}
	l.options, l.err = opts, nil
	return opts, nil
}

func (l *Loader) Loading() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loading
}

func (l *Loader) Options() []Option {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Option(nil), l.options...)
}

func (l *Loader) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}
