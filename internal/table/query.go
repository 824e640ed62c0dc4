package table

import (
	"maps"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

func (o SortOrder) Toggle() SortOrder {
	if o == Asc {
		return Desc
	}
	return Asc
}

type Sort struct {
	Field string
	Order SortOrder
}

var (
	DefaultSort  = Sort{Field: "createdAt", Order: Desc}
	LimitOptions = []int{10, 25, 50, 100}
)

const (
	DefaultLimit = 50
	maxLimit     = 100
)

// Defaults are the values a fresh or reset query starts from.
type Defaults struct {
	Sort       Sort
	Limit      int
	FilterKeys []string
}

func (d Defaults) normalized() Defaults {
	if d.Sort.Field == "" {
		d.Sort.Field = DefaultSort.Field
	}
	if d.Sort.Order != Asc && d.Sort.Order != Desc {
		d.Sort.Order = DefaultSort.Order
	}
	if d.Limit <= 0 {
		d.Limit = DefaultLimit
	}
	return d
}

// Query is the table query state. It is a value: every transition returns a new Query.
// Page is always >= 1 and any filter, sort or limit change resets it to 1.
type Query struct {
	Page      int
	Limit     int
	SortBy    string
	SortOrder SortOrder
	Filters   map[string]string
}

func NewQuery(d Defaults) Query {
	d = d.normalized()
	filters := make(map[string]string, len(d.FilterKeys))
	for _, k := range d.FilterKeys {
		filters[k] = ""
	}
	return Query{
		Page:      1,
		Limit:     d.Limit,
		SortBy:    d.Sort.Field,
		SortOrder: d.Sort.Order,
		Filters:   filters,
	}
}

func (q Query) clone() Query {
	q.Filters = maps.Clone(q.Filters)
	if q.Filters == nil {
		q.Filters = map[string]string{}
	}
	return q
}

// WithSort toggles the order when field is already the sort field, else sorts field ascending.
func (q Query) WithSort(field string) Query {
	out := q.clone()
	if out.SortBy == field {
		out.SortOrder = out.SortOrder.Toggle()
	} else {
		out.SortBy = field
		out.SortOrder = Asc
	}
	out.Page = 1
	return out
}

// WithPage is the only transition that keeps filters and sort without resetting the page.
func (q Query) WithPage(page int) Query {
	out := q.clone()
	out.Page = max(page, 1)
	return out
}

func (q Query) WithLimit(limit int) Query {
	out := q.clone()
	out.Limit = clampLimit(limit, q.Limit)
	out.Page = 1
	return out
}

func (q Query) WithFilter(key, value string) Query {
	out := q.clone()
	out.Filters[key] = value
	out.Page = 1
	return out
}

// WithFilters replaces every filter value, as the search button does.
func (q Query) WithFilters(values map[string]string) Query {
	out := q.clone()
	for k := range out.Filters {
		out.Filters[k] = ""
	}
	for k, v := range values {
		out.Filters[k] = v
	}
	out.Page = 1
	return out
}

// ActiveFilters counts filters with a non-blank value.
func (q Query) ActiveFilters() int {
	n := 0
	for _, v := range q.Filters {
		if strings.TrimSpace(v) != "" {
			n++
		}
	}
	return n
}

// Params are the backend request parameters: paging, sort and every non-empty trimmed filter.
func (q Query) Params() url.Values {
	v := url.Values{}
	v.Set("page", strconv.Itoa(max(q.Page, 1)))
	v.Set("limit", strconv.Itoa(q.Limit))
	if q.SortBy != "" {
		v.Set("sortBy", q.SortBy)
		v.Set("sortOrder", string(q.SortOrder))
	}
	for _, k := range slices.Sorted(maps.Keys(q.Filters)) {
		if s := strings.TrimSpace(q.Filters[k]); s != "" {
			v.Set(k, s)
		}
	}
	return v
}

// Values mirrors the query into the page URL.
func (q Query) Values() url.Values {
	return q.Params()
}

func (q Query) Encode() string {
	return q.Values().Encode()
}

// ParseQuery restores a query from the page URL. Unknown keys are ignored and bad
// numbers fall back to the defaults.
func ParseQuery(v url.Values, d Defaults) Query {
	d = d.normalized()
	q := NewQuery(d)

	if p, err := strconv.Atoi(v.Get("page")); err == nil {
		q.Page = max(p, 1)
	}
	if l, err := strconv.Atoi(v.Get("limit")); err == nil {
		q.Limit = clampLimit(l, d.Limit)
	}
	if s := strings.TrimSpace(v.Get("sortBy")); s != "" {
		q.SortBy = s
	}
	switch SortOrder(v.Get("sortOrder")) {
	case Asc:
		q.SortOrder = Asc
	case Desc:
		q.SortOrder = Desc
	}
	for _, k := range d.FilterKeys {
		q.Filters[k] = v.Get(k)
	}
	return q
}

func clampLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	return min(limit, maxLimit)
}

// Range returns the 1-based bounds of the rows shown on page, "0 - 0" when empty.
func Range(page, limit, total int) (from, to int) {
	if total == 0 {
		return 0, 0
	}
	from = (page-1)*limit + 1
	to = min(page*limit, total)
	return from, to
}
