package table

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/geocoder89/shopadmin/internal/backend"
	"github.com/geocoder89/shopadmin/internal/lookup"
	"github.com/geocoder89/shopadmin/internal/notifications"
	"github.com/geocoder89/shopadmin/internal/record"
)

var ErrStale = errors.New("response superseded by a newer fetch")

const fetchFailedMessage = "Failed to fetch data"

// FetchFunc lists records for the given backend params.
type FetchFunc func(ctx context.Context, params url.Values) (json.RawMessage, error)

type Config struct {
	Title     string
	EntityKey string
	Columns   []Column
	Filters   []Filter
	Actions   Actions
	Defaults  Defaults
	Fetch     FetchFunc
	// Export replaces the default CSV writer.
	Export ExportFunc
	// ExportMessage replaces the success toast of a CSV export.
	ExportMessage func(count int) string
	Notifier      notifications.Notifier
}

func (c Config) defaults() Defaults {
	d := c.Defaults
	if len(d.FilterKeys) == 0 {
		for _, f := range c.Filters {
			d.FilterKeys = append(d.FilterKeys, f.Key)
		}
	}
	return d.normalized()
}

type State struct {
	Data        []record.Record
	Loading     bool
	Query       Query
	Total       int
	TotalPages  int
	ShowFilters bool
	Err         error
}

// Engine runs the fetch/sort/filter/paginate state machine of one table view.
type Engine struct {
	cfg      Config
	defaults Defaults
	notifier notifications.Notifier

	mu      sync.Mutex
	seq     uint64
	state   State
	options map[string]*lookup.Loader
}

func New(cfg Config, q Query) *Engine {
	n := cfg.Notifier
	if n == nil {
		n = notifications.NewLogNotifier(nil)
	}
	d := cfg.defaults()
	if q.Limit == 0 {
		q = NewQuery(d)
	}

	e := &Engine{
		cfg:      cfg,
		defaults: d,
		notifier: n,
		state:    State{Query: q.clone(), TotalPages: 1},
		options:  make(map[string]*lookup.Loader),
	}
	for _, f := range cfg.Filters {
		if f.Async() {
			e.options[f.Key] = lookup.NewLoader(f.Loader)
		}
	}
	return e
}

// FromURL restores an engine from the page URL. show_filters=1 keeps the filter panel open.
func FromURL(cfg Config, v url.Values) *Engine {
	e := New(cfg, ParseQuery(v, cfg.defaults()))
	if v.Get("show_filters") == "1" {
		e.SetShowFilters(true)
	}
	return e
}

func (e *Engine) Config() Config     { return e.cfg }
func (e *Engine) Defaults() Defaults { return e.defaults }

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.state
	s.Query = s.Query.clone()
	s.Data = append([]record.Record(nil), s.Data...)
	return s
}

// Fetch loads the current query. A response that arrives after a newer fetch started
// is dropped and ErrStale returned. On failure the table is emptied and an error toast shown.
func (e *Engine) Fetch(ctx context.Context) error {
	e.mu.Lock()
	e.seq++
	my := e.seq
	e.state.Loading = true
	params := e.state.Query.Params()
	e.mu.Unlock()

	raw, err := e.cfg.Fetch(ctx, params)

	var page Page
	if err == nil {
		page, err = Normalize(raw, e.cfg.EntityKey)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if my != e.seq {
		return ErrStale
	}
	e.state.Loading = false

	if err != nil {
		e.state.Data = []record.Record{}
		e.state.Total = 0
		e.state.TotalPages = 1
		e.state.Err = err

		// backend errors were already surfaced by the client
		var be *backend.Error
		if !errors.As(err, &be) {
			_ = notifications.Error(ctx, e.notifier, fetchFailedMessage)
		}
		return fmt.Errorf("fetch %s: %w", e.cfg.EntityKey, err)
	}

	e.state.Data = page.Items
	e.state.Total = page.Total
	e.state.TotalPages = page.TotalPages
	e.state.Err = nil
	return nil
}

func (e *Engine) SetShowFilters(show bool) {
	e.mu.Lock()
	e.state.ShowFilters = show
	e.mu.Unlock()
}

// LoadFilterOptions loads every async filter select that loads on mount, concurrently.
// A failing loader leaves its options empty and does not fail the page.
func (e *Engine) LoadFilterOptions(ctx context.Context) {
	var g errgroup.Group
	for _, f := range e.cfg.Filters {
		l, ok := e.options[f.Key]
		if !ok || f.SkipMountLoad {
			continue
		}
		g.Go(func() error {
			_, _ = l.Load(ctx, "")
			return nil
		})
	}
	_ = g.Wait()
}

// FilterOptions returns the options of a select filter, async or static.
func (e *Engine) FilterOptions(key string) []lookup.Option {
	if l, ok := e.options[key]; ok {
		return l.Options()
	}
	for _, f := range e.cfg.Filters {
		if f.Key == key {
			return f.Options
		}
	}
	return nil
}

func (e *Engine) FilterLoading(key string) bool {
	l, ok := e.options[key]
	return ok && l.Loading()
}

// FilterLoader exposes the loader behind an async filter for debounced searches.
func (e *Engine) FilterLoader(key string) (*lookup.Loader, bool) {
	l, ok := e.options[key]
	return l, ok
}
