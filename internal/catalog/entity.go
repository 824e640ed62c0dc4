// Package catalog describes the brand, product and review screens: their table,
// form and detail schemas, payload shaping and the backend gateway behind them.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/geocoder89/shopadmin/internal/form"
	"github.com/geocoder89/shopadmin/internal/notifications"
	"github.com/geocoder89/shopadmin/internal/record"
	"github.com/geocoder89/shopadmin/internal/table"
	"github.com/geocoder89/shopadmin/internal/view"
)

// Command is a custom row action. It returns the success message to show.
type Command func(ctx context.Context, g *Gateway, r record.Record) (string, error)

type Messages struct {
	Created string
	Updated string
	Deleted string
}

// Entity is everything the console needs to list, create, edit, view and delete one
// backend resource.
type Entity struct {
	// Resource is the backend path segment, e.g. "brand".
	Resource string
	// Slug is the console path segment, e.g. "brands".
	Slug     string
	Singular string
	Title    string

	Columns       []table.Column
	Filters       []table.Filter
	Actions       table.Actions
	Defaults      table.Defaults
	Export        table.ExportFunc
	ExportMessage func(count int) string
	AddEnabled    bool

	Fields    []form.Field
	AddTitle  string
	EditTitle string
	// Initial adapts a fetched record to form values.
	Initial func(record.Record) map[string]any
	// Payload shapes submitted values into the backend body.
	Payload func(form.Values) (any, error)

	ViewFields []view.Field
	ViewTitle  func(record.Record) string

	// Label names a record in confirmations.
	Label    func(record.Record) string
	Confirm  func(record.Record) string
	Messages Messages
	Commands map[string]Command
}

// EntityKey is the list key the backend may wrap records in, e.g. "brands".
func (e *Entity) EntityKey() string { return e.Resource + "s" }

func (e *Entity) Path(parts ...string) string {
	p := "/admin/" + e.Slug
	for _, s := range parts {
		p += "/" + url.PathEscape(s)
	}
	return p
}

// TableConfig binds the entity schema to the gateway for one table engine.
func (e *Entity) TableConfig(g *Gateway, n notifications.Notifier) table.Config {
	return table.Config{
		Title:     e.Title,
		EntityKey: e.EntityKey(),
		Columns:   e.Columns,
		Filters:   e.Filters,
		Actions:   e.Actions,
		Defaults:  e.Defaults,
		Fetch: func(ctx context.Context, params url.Values) (json.RawMessage, error) {
			return g.List(ctx, e.Resource, params)
		},
		Export:        e.Export,
		ExportMessage: e.ExportMessage,
		Notifier:      n,
	}
}

func (e *Entity) NewForm(initial record.Record, edit bool, n notifications.Notifier) *form.Form {
	values := map[string]any(initial)
	if initial != nil && e.Initial != nil {
		values = e.Initial(initial)
	}
	opts := []form.Option{form.WithNotifier(n)}
	title := e.AddTitle
	if edit {
		opts = append(opts, form.Edit())
		title = e.EditTitle
	}
	return form.New(title, e.Fields, values, opts...)
}

// ViewConfig carries the custom row actions over to the detail page.
func (e *Entity) ViewConfig() view.Config {
	cfg := view.Config{
		Fields:    e.ViewFields,
		CanEdit:   e.Actions.Edit,
		CanDelete: e.Actions.Delete,
	}
	for _, a := range e.Actions.Custom {
		cfg.Actions = append(cfg.Actions, view.Action{
			Name:    a.Name,
			Label:   a.Label,
			Color:   a.Color,
			Icon:    a.Icon,
			Visible: a.Visible,
		})
	}
	return cfg
}

func (e *Entity) BuildView(r record.Record) view.Page {
	cfg := e.ViewConfig()
	cfg.Title = e.Singular + " Details"
	if e.ViewTitle != nil {
		cfg.Title = e.ViewTitle(r)
	}
	return view.Build(cfg, r)
}

func (e *Entity) ConfirmText(r record.Record) string {
	if e.Confirm != nil {
		return e.Confirm(r)
	}
	name := e.Singular
	if e.Label != nil {
		if l := e.Label(r); l != "" {
			name = l
		}
	}
	return fmt.Sprintf("Are you sure you want to delete %s? This action cannot be undone.", name)
}

// Catalog is the set of entities served by the console.
type Catalog struct {
	Gateway  *Gateway
	entities []*Entity
	bySlug   map[string]*Entity
}

func New(g *Gateway) *Catalog {
	c := &Catalog{Gateway: g, bySlug: map[string]*Entity{}}
	for _, e := range []*Entity{Brand(g), Product(g), Review(g)} {
		c.entities = append(c.entities, e)
		c.bySlug[e.Slug] = e
	}
	return c
}

func (c *Catalog) Entities() []*Entity { return c.entities }

func (c *Catalog) Lookup(slug string) (*Entity, bool) {
	e, ok := c.bySlug[slug]
	return e, ok
}
