package table

import (
	"strings"

	"github.com/geocoder89/shopadmin/internal/lookup"
	"github.com/geocoder89/shopadmin/internal/record"
	"github.com/geocoder89/shopadmin/internal/render"
)

type Column struct {
	Key       string
	Header    string
	Accessor  record.Accessor
	Kind      render.Kind
	Options   render.Options
	Render    func(record.Record) render.Cell
	SortField string
	NoSort    bool
	// Export overrides the exported text of this column.
	Export func(record.Record) string
}

func (c Column) Cell(r record.Record) render.Cell {
	if c.Render != nil {
		return c.Render(r)
	}
	return render.Format(c.Kind, c.Accessor.Value(r), c.Options)
}

// SortKey is the backend field this column sorts by.
func (c Column) SortKey() string {
	switch {
	case c.SortField != "":
		return c.SortField
	case c.Accessor.Path != "":
		return c.Accessor.Path
	default:
		return c.Key
	}
}

func (c Column) Sortable() bool {
	return !c.NoSort && c.SortKey() != ""
}

// ExportText is the raw exported value. Unlike the cell, a missing value is "".
func (c Column) ExportText(r record.Record) string {
	switch {
	case c.Export != nil:
		return c.Export(r)
	case !c.Accessor.IsZero():
		return record.String(c.Accessor.Value(r))
	case c.Render != nil:
		cell := c.Render(r)
		if cell.Empty {
			return ""
		}
		return cell.Text
	default:
		return record.String(r.Lookup(c.Key))
	}
}

type FilterKind int

const (
	FilterText FilterKind = iota
	FilterSelect
)

type Filter struct {
	Key         string
	Label       string
	Placeholder string
	Kind        FilterKind
	Options     []lookup.Option
	// Loader makes a select searchable against the backend.
	Loader lookup.Func
	// SkipMountLoad defers the first option load until the user searches.
	SkipMountLoad bool
}

func (f Filter) PlaceholderText() string {
	if f.Placeholder != "" {
		return f.Placeholder
	}
	return "Search by " + strings.ToLower(f.Label) + "..."
}

func (f Filter) IsSelect() bool { return f.Kind == FilterSelect }

func (f Filter) Async() bool { return f.Kind == FilterSelect && f.Loader != nil }

type CustomAction struct {
	Name    string
	Label   string
	Color   string
	Icon    string
	Visible func(record.Record) bool
	// Confirm routes the action through a confirmation step.
	Confirm bool
}

func (a CustomAction) VisibleFor(r record.Record) bool {
	return a.Visible == nil || a.Visible(r)
}

type Actions struct {
	View   bool
	Edit   bool
	Delete bool
	Custom []CustomAction
}

func (a Actions) Any() bool {
	return a.View || a.Edit || a.Delete || len(a.Custom) > 0
}

func (a Actions) Find(name string) (CustomAction, bool) {
	for _, c := range a.Custom {
		if c.Name == name {
			return c, true
		}
	}
	return CustomAction{}, false
}
