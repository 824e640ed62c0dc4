package table

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/geocoder89/shopadmin/internal/backend"
	"github.com/geocoder89/shopadmin/internal/lookup"
	"github.com/geocoder89/shopadmin/internal/notifications"
	"github.com/geocoder89/shopadmin/internal/record"
	"github.com/geocoder89/shopadmin/internal/render"
)

type fakeNotifier struct {
	mu     sync.Mutex
	toasts []notifications.Toast
}

func (f *fakeNotifier) Notify(_ context.Context, t notifications.Toast) error {
	f.mu.Lock()
	f.toasts = append(f.toasts, t)
	f.mu.Unlock()
	return nil
}

func (f *fakeNotifier) Dismiss(context.Context) error { return nil }

func (f *fakeNotifier) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.toasts))
	for i, t := range f.toasts {
		out[i] = t.Message
	}
	return out
}

var brandColumns = []Column{
	{Key: "name", Header: "Name", Accessor: record.Field("name")},
	{Key: "status", Header: "Status", Accessor: record.Field("status"), Kind: render.Badge},
	{Key: "products", Header: "Products", Accessor: record.Field("productCount"), Kind: render.Number},
}

func brandConfig(fetch FetchFunc, n notifications.Notifier) Config {
	return Config{
		Title:     "Brands",
		EntityKey: "brands",
		Columns:   brandColumns,
		Filters:   []Filter{{Key: "name", Label: "Name"}, {Key: "status", Label: "Status", Kind: FilterSelect}},
		Fetch:     fetch,
		Notifier:  n,
	}
}

func newEngine(fetch FetchFunc, n notifications.Notifier) *Engine {
	return New(brandConfig(fetch, n), Query{})
}

// newEngineAt builds an engine whose query is derived from the defaults by step.
func newEngineAt(fetch FetchFunc, n notifications.Notifier, step func(Query) Query) *Engine {
	cfg := brandConfig(fetch, n)
	return New(cfg, step(NewQuery(cfg.defaults())))
}

func TestFetchSendsQueryParams(t *testing.T) {
	var got url.Values
	e := newEngineAt(func(_ context.Context, p url.Values) (json.RawMessage, error) {
		got = p
		return json.RawMessage(`{"data":{"brands":[{"_id":"1","name":"Nike"}],"pagination":{"total":1,"totalPages":1}}}`), nil
	}, nil, func(q Query) Query {
		return q.WithSort("name").WithFilters(map[string]string{"name": " Nike ", "status": "  "})
	})

	require.NoError(t, e.Fetch(context.Background()))

	assert.Equal(t, "Nike", got.Get("name"))
	assert.NotContains(t, got, "status")
	assert.Equal(t, "1", got.Get("page"))
	assert.Equal(t, "50", got.Get("limit"))
	assert.Equal(t, "name", got.Get("sortBy"))
	assert.Equal(t, "asc", got.Get("sortOrder"))

	s := e.State()
	assert.Len(t, s.Data, 1)
	assert.Equal(t, 1, s.Total)
	assert.False(t, s.Loading)
}

func TestFetchDefaultSort(t *testing.T) {
	var got url.Values
	e := newEngine(func(_ context.Context, p url.Values) (json.RawMessage, error) {
		got = p
		return json.RawMessage(`[]`), nil
	}, nil)

	require.NoError(t, e.Fetch(context.Background()))
	assert.Equal(t, "createdAt", got.Get("sortBy"))
	assert.Equal(t, "desc", got.Get("sortOrder"))
	assert.Equal(t, "50", got.Get("limit"))
}

func TestFetchErrorResetsStateAndToastsOnce(t *testing.T) {
	n := &fakeNotifier{}
	calls := 0
	e := newEngineAt(func(context.Context, url.Values) (json.RawMessage, error) {
		calls++
		if calls == 1 {
			return json.RawMessage(`{"items":[{"_id":"a"}],"pagination":{"total":30,"totalPages":3}}`), nil
		}
		return nil, &backend.Error{Status: 500, Message: "boom"}
	}, n, func(q Query) Query { return q.WithPage(2) })

	require.NoError(t, e.Fetch(context.Background()))
	require.Equal(t, 30, e.State().Total)
	err := e.Fetch(context.Background())
	require.Error(t, err)

	s := e.State()
	assert.Empty(t, s.Data)
	assert.Equal(t, 0, s.Total)
	assert.Equal(t, 1, s.TotalPages)
	assert.Empty(t, n.messages(), "backend errors are surfaced by the client")
}

func TestFetchShapeErrorToasts(t *testing.T) {
	n := &fakeNotifier{}
	e := newEngine(func(context.Context, url.Values) (json.RawMessage, error) {
		return json.RawMessage(`{"message":"ok"}`), nil
	}, n)

	err := e.Fetch(context.Background())
	assert.ErrorIs(t, err, ErrUnrecognizedShape)
	assert.Equal(t, []string{"Failed to fetch data"}, n.messages())
}

func TestStaleResponseIsDiscarded(t *testing.T) {
	release := make(chan struct{})
	var mu sync.Mutex
	calls := 0
	e := newEngine(func(context.Context, url.Values) (json.RawMessage, error) {
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()
		if first {
			<-release
			return json.RawMessage(`[{"_id":"stale"}]`), nil
		}
		return json.RawMessage(`{"items":[{"_id":"fresh"}],"pagination":{"total":60,"totalPages":2}}`), nil
	}, nil)

	var slowErr error
	done := make(chan struct{})
	go func() {
		slowErr = e.Fetch(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool { return e.State().Loading }, time.Second, time.Millisecond)
	require.NoError(t, e.Fetch(context.Background()))

	close(release)
	<-done

	assert.ErrorIs(t, slowErr, ErrStale)
	s := e.State()
	require.Len(t, s.Data, 1)
	assert.Equal(t, "fresh", s.Data[0].ID())
	assert.Equal(t, 60, s.Total)
}

func TestResetLinkRestoresDefaults(t *testing.T) {
	e := newEngineAt(func(context.Context, url.Values) (json.RawMessage, error) {
		return json.RawMessage(`[]`), nil
	}, nil, func(q Query) Query {
		return q.WithSort("name").WithLimit(10).WithFilter("status", "ACTIVE").WithPage(3)
	})

	q := e.View().ResetLink
	assert.Equal(t, "createdAt", q.SortBy)
	assert.Equal(t, Desc, q.SortOrder)
	assert.Equal(t, DefaultLimit, q.Limit)
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, 0, q.ActiveFilters())
}

func TestFromURLRestoresQuery(t *testing.T) {
	cfg := newEngine(nil, nil).Config()
	v := url.Values{
		"page":         {"3"},
		"limit":        {"500"},
		"sortBy":       {"name"},
		"sortOrder":    {"asc"},
		"status":       {"ACTIVE"},
		"unknown":      {"x"},
		"show_filters": {"1"},
	}

	s := FromURL(cfg, v).State()

	assert.Equal(t, 3, s.Query.Page)
	assert.Equal(t, 100, s.Query.Limit)
	assert.Equal(t, "name", s.Query.SortBy)
	assert.Equal(t, Asc, s.Query.SortOrder)
	assert.Equal(t, "ACTIVE", s.Query.Filters["status"])
	assert.NotContains(t, s.Query.Filters, "unknown")
	assert.True(t, s.ShowFilters)
}

func TestViewProjection(t *testing.T) {
	e := newEngine(func(context.Context, url.Values) (json.RawMessage, error) {
		return json.RawMessage(`{"items":[{"_id":"1","name":"Acme","status":"ACTIVE"},{"_id":"2","name":"Globex","status":"INACTIVE"}],"pagination":{"total":120,"totalPages":3}}`), nil
	}, nil)
	e.cfg.Actions = Actions{Custom: []CustomAction{{
		Name:    "activate",
		Visible: func(r record.Record) bool { return r["status"] != "ACTIVE" },
	}}}

	require.NoError(t, e.Fetch(context.Background()))
	v := e.View()

	assert.Equal(t, 1, v.From)
	assert.Equal(t, 50, v.To)
	require.Len(t, v.Rows, 2)
	assert.Empty(t, v.Rows[0].Custom)
	assert.Len(t, v.Rows[1].Custom, 1)
	assert.Equal(t, "-", v.Rows[0].Cells[2].Text)
	assert.NotNil(t, v.Next)
	assert.Nil(t, v.Prev)
	assert.Equal(t, Asc, v.Headers[0].SortLink.SortOrder)
	assert.Len(t, v.Limits, len(LimitOptions))
}

func TestLoadFilterOptions(t *testing.T) {
	cfg := Config{
		EntityKey: "products",
		Filters: []Filter{
			{Key: "brandId", Kind: FilterSelect, Loader: lookup.Static([]lookup.Option{{Value: "b1", Label: "Acme"}})},
			{Key: "lazy", Kind: FilterSelect, Loader: lookup.Static([]lookup.Option{{Value: "x"}}), SkipMountLoad: true},
			{Key: "status", Kind: FilterSelect, Options: []lookup.Option{{Value: "ACTIVE", Label: "Active"}}},
		},
		Fetch: func(context.Context, url.Values) (json.RawMessage, error) { return nil, nil },
	}
	e := New(cfg, Query{})
	e.LoadFilterOptions(context.Background())

	assert.Len(t, e.FilterOptions("brandId"), 1)
	assert.Empty(t, e.FilterOptions("lazy"))
	assert.Len(t, e.FilterOptions("status"), 1)
}

func TestExportCSV(t *testing.T) {
	n := &fakeNotifier{}
	e := newEngine(func(context.Context, url.Values) (json.RawMessage, error) {
		return json.RawMessage(`[{"_id":"1","name":"Say \"hi\"","status":"ACTIVE","productCount":0},{"_id":"2","name":"Plain"}]`), nil
	}, n)
	require.NoError(t, e.Fetch(context.Background()))

	var buf bytes.Buffer
	require.NoError(t, e.Export(context.Background(), &buf, CSV))

	want := strings.Join([]string{
		`"Name","Status","Products"`,
		`"Say ""hi""","ACTIVE","0"`,
		`"Plain","",""`,
	}, "\n")
	assert.Equal(t, want, buf.String())
	assert.Equal(t, []string{"Exported 2 records to CSV"}, n.messages())
}

func TestExportEmptyWarns(t *testing.T) {
	n := &fakeNotifier{}
	e := newEngine(func(context.Context, url.Values) (json.RawMessage, error) {
		return json.RawMessage(`[]`), nil
	}, n)
	require.NoError(t, e.Fetch(context.Background()))

	var buf bytes.Buffer
	assert.ErrorIs(t, e.Export(context.Background(), &buf, CSV), ErrNoData)
	assert.Zero(t, buf.Len())
	assert.Equal(t, []string{"No data to export"}, n.messages())
}

func TestCustomExportOverridesCSV(t *testing.T) {
	e := newEngine(func(context.Context, url.Values) (json.RawMessage, error) {
		return json.RawMessage(`[{"_id":"1"}]`), nil
	}, nil)
	e.cfg.Export = func(w io.Writer, rows []record.Record) error {
		_, err := w.Write([]byte("custom"))
		return err
	}
	require.NoError(t, e.Fetch(context.Background()))

	var buf bytes.Buffer
	require.NoError(t, e.Export(context.Background(), &buf, CSV))
	assert.Equal(t, "custom", buf.String())
}

func TestExportAllPagesThroughResults(t *testing.T) {
	e := newEngine(func(_ context.Context, p url.Values) (json.RawMessage, error) {
		if p.Get("limit") != "100" {
			return nil, errors.New("export must use the large page size")
		}
		switch p.Get("page") {
		case "1":
			return json.RawMessage(`{"items":[{"_id":"a","name":"A"}],"pagination":{"total":2,"totalPages":2}}`), nil
		default:
			return json.RawMessage(`{"items":[{"_id":"b","name":"B"}],"pagination":{"total":2,"totalPages":2}}`), nil
		}
	}, nil)

	var buf bytes.Buffer
	require.NoError(t, e.ExportAll(context.Background(), &buf, XLSX))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Brands")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Name", rows[0][0])
	assert.Equal(t, "A", rows[1][0])
	assert.Equal(t, "B", rows[2][0])
}

func TestFilename(t *testing.T) {
	now := time.Date(2025, 3, 7, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "brands_2025-03-07.csv", Filename("Brands", CSV, now))
	assert.Equal(t, "product_reviews_2025-03-07.xlsx", Filename("Product Reviews", XLSX, now))
}
