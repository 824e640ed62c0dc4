package catalog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/geocoder89/shopadmin/internal/cache"
	"github.com/geocoder89/shopadmin/internal/lookup"
	"github.com/geocoder89/shopadmin/internal/record"
	"github.com/geocoder89/shopadmin/internal/session"
	"github.com/geocoder89/shopadmin/internal/table"
)

const (
	apiBase = "/api"

	// OptionLimit is the page size of a select lookup.
	OptionLimit = 20

	DefaultOptionsTTL = 30 * time.Second
)

// Requester is the subset of backend.Client the gateway needs.
type Requester interface {
	Get(ctx context.Context, path, token string) (json.RawMessage, error)
	Post(ctx context.Context, path string, body any, token string) (json.RawMessage, error)
	Put(ctx context.Context, path string, body any, token string) (json.RawMessage, error)
	Delete(ctx context.Context, path, token string) (json.RawMessage, error)
}

// Gateway maps entity operations onto the commerce REST API. The bearer token is
// taken from the session store bound to ctx.
type Gateway struct {
	api     Requester
	options *cache.Cache
}

func NewGateway(api Requester, optionsTTL time.Duration) *Gateway {
	if optionsTTL <= 0 {
		optionsTTL = DefaultOptionsTTL
	}
	return &Gateway{api: api, options: cache.New(optionsTTL)}
}

func token(ctx context.Context) string {
	if st, ok := session.FromContext(ctx); ok {
		return st.Token()
	}
	return ""
}

func resourcePath(resource string, parts ...string) string {
	segs := append([]string{apiBase, resource}, parts...)
	for i := 2; i < len(segs); i++ {
		segs[i] = url.PathEscape(segs[i])
	}
	return strings.Join(segs, "/")
}

// List calls GET /api/<resource>/all with the table query params.
func (g *Gateway) List(ctx context.Context, resource string, params url.Values) (json.RawMessage, error) {
	path := resourcePath(resource, "all")
	if enc := params.Encode(); enc != "" {
		path += "?" + enc
	}
	return g.api.Get(ctx, path, token(ctx))
}

// Get loads one record. The record may be returned bare or wrapped in {data: ...}.
func (g *Gateway) Get(ctx context.Context, resource, id string) (record.Record, error) {
	raw, err := g.api.Get(ctx, resourcePath(resource, id), token(ctx))
	if err != nil {
		return nil, err
	}
	return unwrapRecord(raw)
}

func (g *Gateway) Create(ctx context.Context, resource string, payload any) (json.RawMessage, error) {
	raw, err := g.api.Post(ctx, resourcePath(resource, "add"), payload, token(ctx))
	if err == nil {
		g.options.Clear()
	}
	return raw, err
}

func (g *Gateway) Update(ctx context.Context, resource, id string, payload any) (json.RawMessage, error) {
	raw, err := g.api.Put(ctx, resourcePath(resource, "update", id), payload, token(ctx))
	if err == nil {
		g.options.Clear()
	}
	return raw, err
}

func (g *Gateway) Delete(ctx context.Context, resource, id string) error {
	_, err := g.api.Delete(ctx, resourcePath(resource, "delete", id), token(ctx))
	if err == nil {
		g.options.Clear()
	}
	return err
}

// SetReviewStatus calls PUT /api/review/status/:id.
func (g *Gateway) SetReviewStatus(ctx context.Context, id, status string) error {
	_, err := g.api.Put(ctx, resourcePath("review", "status", id), map[string]string{"status": status}, token(ctx))
	return err
}

// Options searches a resource for select options, {_id, name} per record. Results are
// cached briefly per bearer token, and concurrent identical lookups of one token share
// a backend call. Lookups without a token always reach the backend.
func (g *Gateway) Options(ctx context.Context, resource, query string) ([]lookup.Option, error) {
	query = strings.TrimSpace(query)
	tok := token(ctx)
	if tok == "" {
		return g.searchOptions(ctx, resource, query)
	}

	sum := sha256.Sum256([]byte(tok))
	key := hex.EncodeToString(sum[:8]) + "|" + resource + "|" + strings.ToLower(query)

	// the shared load must not fail every waiter when the first caller goes away
	v, err := g.options.GetOrLoad(context.WithoutCancel(ctx), key, func(ctx context.Context) (any, error) {
		return g.searchOptions(ctx, resource, query)
	})
	if err != nil {
		return nil, err
	}
	return v.([]lookup.Option), nil
}

func (g *Gateway) searchOptions(ctx context.Context, resource, query string) ([]lookup.Option, error) {
	params := url.Values{}
	if query != "" {
		params.Set("search", query)
	}
	params.Set("limit", fmt.Sprint(OptionLimit))

	raw, err := g.List(ctx, resource, params)
	if err != nil {
		return nil, err
	}
	page, err := table.Normalize(raw, resource+"s")
	if err != nil {
		return nil, fmt.Errorf("%s options: %w", resource, err)
	}

	opts := make([]lookup.Option, 0, len(page.Items))
	for _, r := range page.Items {
		opts = append(opts, lookup.Option{Value: r.ID(), Label: record.String(r["name"])})
	}
	return opts, nil
}

// OptionsFunc binds Options to one resource for use as a select loader.
func (g *Gateway) OptionsFunc(resource string) lookup.Func {
	return func(ctx context.Context, query string) ([]lookup.Option, error) {
		return g.Options(ctx, resource, query)
	}
}

var ErrNoRecord = errors.New("response carries no record")

func unwrapRecord(raw json.RawMessage) (record.Record, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	if inner, ok := m["data"].(map[string]any); ok {
		return record.Record(inner), nil
	}
	if len(m) == 0 {
		return nil, ErrNoRecord
	}
	return record.Record(m), nil
}
