// Package view renders one record read-only, grouped into sections.
package view

import (
	"github.com/geocoder89/shopadmin/internal/record"
	"github.com/geocoder89/shopadmin/internal/render"
)

const DefaultSection = "General Information"

type Field struct {
	Name     string
	Label    string
	Accessor record.Accessor
	Kind     render.Kind
	Options  render.Options
	Render   func(record.Record) render.Cell
	Section  string
	Span     int
	Hidden   bool
}

func (f Field) value(r record.Record) any {
	if !f.Accessor.IsZero() {
		return f.Accessor.Value(r)
	}
	return r.Lookup(f.Name)
}

func (f Field) section() string {
	if f.Section == "" {
		return DefaultSection
	}
	return f.Section
}

// Action is a page-level button. Visible gates it per record.
type Action struct {
	Name     string
	Label    string
	Color    string
	Icon     string
	Disabled bool
	Visible  func(record.Record) bool
}

func (a Action) VisibleFor(r record.Record) bool {
	return a.Visible == nil || a.Visible(r)
}

type Item struct {
	Label  string
	Cell   render.Cell
	Span   int
	Hidden bool
}

type Section struct {
	Title string
	Items []Item
}

type Page struct {
	Title     string
	ID        string
	Record    record.Record
	Sections  []Section
	Actions   []Action
	CanEdit   bool
	CanDelete bool
	CreatedAt string
	UpdatedAt string
}

func (p Page) HasMetadata() bool { return p.CreatedAt != "" || p.UpdatedAt != "" }

type Config struct {
	Title     string
	Fields    []Field
	Actions   []Action
	CanEdit   bool
	CanDelete bool
}

// Build groups fields into sections in order of first appearance and formats every value.
// Missing values render as the placeholder dash.
func Build(cfg Config, r record.Record) Page {
	p := Page{
		Title:     cfg.Title,
		ID:        r.ID(),
		Record:    r,
		CanEdit:   cfg.CanEdit,
		CanDelete: cfg.CanDelete,
	}

	index := map[string]int{}
	for _, f := range cfg.Fields {
		name := f.section()
		i, ok := index[name]
		if !ok {
			i = len(p.Sections)
			index[name] = i
			p.Sections = append(p.Sections, Section{Title: name})
		}

		var cell render.Cell
		if f.Render != nil {
			cell = f.Render(r)
		} else {
			cell = render.Format(f.Kind, f.value(r), f.Options)
		}

		span := f.Span
		if span <= 0 || span > 12 {
			span = 6
		}
		p.Sections[i].Items = append(p.Sections[i].Items, Item{
			Label:  f.Label,
			Cell:   cell,
			Span:   span,
			Hidden: f.Hidden,
		})
	}

	for _, a := range cfg.Actions {
		if a.VisibleFor(r) {
			p.Actions = append(p.Actions, a)
		}
	}

	p.CreatedAt = timestamp(r["createdAt"])
	p.UpdatedAt = timestamp(r["updatedAt"])
	return p
}

func timestamp(v any) string {
	c := render.Format(render.DateTime, v, render.Options{})
	if c.Empty {
		return ""
	}
	if c.Detail == "" {
		return c.Text
	}
	return c.Text + " " + c.Detail
}
