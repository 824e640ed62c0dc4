package table

import (
	"github.com/geocoder89/shopadmin/internal/lookup"
	"github.com/geocoder89/shopadmin/internal/record"
	"github.com/geocoder89/shopadmin/internal/render"
)

// Header is a column heading with the query its sort link leads to.
type Header struct {
	Label    string
	Sortable bool
	Active   bool
	Order    SortOrder
	SortLink Query
}

type Row struct {
	ID     string
	Record record.Record
	Cells  []render.Cell
	Custom []CustomAction
}

type PageLink struct {
	Number  int
	Current bool
	Gap     bool
	Link    Query
}

type LimitLink struct {
	Limit   int
	Current bool
	Link    Query
}

type FilterView struct {
	Filter
	Value       string
	Placeholder string
	Options     []lookup.Option
	Loading     bool
}

// View is the render-ready projection of the engine state.
type View struct {
	Title         string
	Headers       []Header
	Rows          []Row
	Actions       Actions
	Query         Query
	Total         int
	TotalPages    int
	From, To      int
	ActiveFilters int
	Loading       bool
	ShowFilters   bool
	Filters       []FilterView
	Pages         []PageLink
	Limits        []LimitLink
	Prev, Next    *Query
	ResetLink     Query
}

func (v View) Empty() bool { return len(v.Rows) == 0 }

func (e *Engine) View() View {
	s := e.State()
	q := s.Query

	v := View{
		Title:         e.cfg.Title,
		Actions:       e.cfg.Actions,
		Query:         q,
		Total:         s.Total,
		TotalPages:    s.TotalPages,
		ActiveFilters: q.ActiveFilters(),
		Loading:       s.Loading,
		ShowFilters:   s.ShowFilters || q.ActiveFilters() > 0,
		ResetLink:     NewQuery(e.defaults),
	}
	v.From, v.To = Range(q.Page, q.Limit, s.Total)

	for _, c := range e.cfg.Columns {
		h := Header{Label: c.Header, Sortable: c.Sortable()}
		if h.Sortable {
			h.Active = q.SortBy == c.SortKey()
			h.Order = q.SortOrder
			h.SortLink = q.WithSort(c.SortKey())
		}
		v.Headers = append(v.Headers, h)
	}

	for _, r := range s.Data {
		row := Row{ID: r.ID(), Record: r}
		for _, c := range e.cfg.Columns {
			row.Cells = append(row.Cells, c.Cell(r))
		}
		for _, a := range e.cfg.Actions.Custom {
			if a.VisibleFor(r) {
				row.Custom = append(row.Custom, a)
			}
		}
		v.Rows = append(v.Rows, row)
	}

	for _, f := range e.cfg.Filters {
		v.Filters = append(v.Filters, FilterView{
			Filter:      f,
			Value:       q.Filters[f.Key],
			Placeholder: f.PlaceholderText(),
			Options:     e.FilterOptions(f.Key),
			Loading:     e.FilterLoading(f.Key),
		})
	}

	for _, l := range LimitOptions {
		v.Limits = append(v.Limits, LimitLink{Limit: l, Current: l == q.Limit, Link: q.WithLimit(l)})
	}

	if s.TotalPages > 1 {
		v.Pages = pageWindow(q, s.TotalPages)
		if q.Page > 1 {
			prev := q.WithPage(q.Page - 1)
			v.Prev = &prev
		}
		if q.Page < s.TotalPages {
			next := q.WithPage(q.Page + 1)
			v.Next = &next
		}
	}
	return v
}

// pageWindow lists first, last and two pages around the current one, with gaps between.
func pageWindow(q Query, total int) []PageLink {
	link := func(p int) PageLink {
		return PageLink{Number: p, Current: p == q.Page, Link: q.WithPage(p)}
	}

	out := []PageLink{link(1)}
	lo, hi := max(2, q.Page-2), min(total-1, q.Page+2)
	if lo > 2 {
		out = append(out, PageLink{Gap: true})
	}
	for p := lo; p <= hi; p++ {
		out = append(out, link(p))
	}
	if hi < total-1 {
		out = append(out, PageLink{Gap: true})
	}
	if total > 1 {
		out = append(out, link(total))
	}
	return out
}
