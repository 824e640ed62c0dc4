package table

import (
	"net/url"
	"testing"
)

var testDefaults = Defaults{FilterKeys: []string{"name", "status"}}

func TestTransitionsResetPage(t *testing.T) {
	q := NewQuery(testDefaults).WithPage(4)

	tests := []struct {
		name string
		next Query
		page int
	}{
		{"sort", q.WithSort("name"), 1},
		{"filter", q.WithFilter("name", "acme"), 1},
		{"filters", q.WithFilters(map[string]string{"status": "ACTIVE"}), 1},
		{"limit", q.WithLimit(10), 1},
		{"page", q.WithPage(7), 7},
		{"page floor", q.WithPage(0), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.next.Page != tt.page {
				t.Fatalf("page = %d want %d", tt.next.Page, tt.page)
			}
			if q.Page != 4 {
				t.Fatalf("transition mutated the original query")
			}
		})
	}
}

func TestWithSortToggles(t *testing.T) {
	q := NewQuery(testDefaults)
	if q.SortBy != "createdAt" || q.SortOrder != Desc {
		t.Fatalf("unexpected default sort %s %s", q.SortBy, q.SortOrder)
	}

	q = q.WithSort("name")
	if q.SortBy != "name" || q.SortOrder != Asc {
		t.Fatalf("new field must sort ascending, got %s %s", q.SortBy, q.SortOrder)
	}
	q = q.WithSort("name")
	if q.SortOrder != Desc {
		t.Fatalf("same field must toggle to desc")
	}
	q = q.WithSort("name")
	if q.SortOrder != Asc {
		t.Fatalf("same field must toggle back to asc")
	}
}

func TestParamsTrimAndSkipEmptyFilters(t *testing.T) {
	q := NewQuery(testDefaults).
		WithFilter("name", "  acme  ").
		WithFilter("status", "   ")

	p := q.Params()
	if p.Get("name") != "acme" {
		t.Fatalf("name = %q", p.Get("name"))
	}
	if _, ok := p["status"]; ok {
		t.Fatalf("blank filter must be omitted")
	}
	if p.Get("page") != "1" || p.Get("limit") != "50" || p.Get("sortBy") != "createdAt" || p.Get("sortOrder") != "desc" {
		t.Fatalf("unexpected paging params %v", p)
	}
	if q.ActiveFilters() != 1 {
		t.Fatalf("active filters = %d", q.ActiveFilters())
	}
}

func TestParseQueryRoundTrip(t *testing.T) {
	q := NewQuery(testDefaults).WithSort("name").WithFilter("status", "ACTIVE").WithLimit(25).WithPage(3)

	back := ParseQuery(q.Values(), testDefaults)
	if back.Page != 3 || back.Limit != 25 || back.SortBy != "name" || back.SortOrder != Asc || back.Filters["status"] != "ACTIVE" {
		t.Fatalf("round trip lost state: %+v", back)
	}
}

func TestParseQueryRejectsBadInput(t *testing.T) {
	v := url.Values{
		"page":      {"-3"},
		"limit":     {"abc"},
		"sortOrder": {"sideways"},
		"unknown":   {"x"},
	}
	q := ParseQuery(v, testDefaults)

	if q.Page != 1 || q.Limit != DefaultLimit || q.SortOrder != Desc {
		t.Fatalf("bad input must fall back to defaults: %+v", q)
	}
	if _, ok := q.Filters["unknown"]; ok {
		t.Fatalf("unknown keys must be ignored")
	}

	big := ParseQuery(url.Values{"limit": {"5000"}}, testDefaults)
	if big.Limit != 100 {
		t.Fatalf("limit must be capped, got %d", big.Limit)
	}
}

func TestRange(t *testing.T) {
	tests := []struct {
		page, limit, total int
		from, to           int
	}{
		{1, 50, 0, 0, 0},
		{1, 50, 12, 1, 12},
		{2, 10, 25, 11, 20},
		{3, 10, 25, 21, 25},
	}
	for _, tt := range tests {
		from, to := Range(tt.page, tt.limit, tt.total)
		if from != tt.from || to != tt.to {
			t.Fatalf("Range(%d,%d,%d) = %d-%d want %d-%d", tt.page, tt.limit, tt.total, from, to, tt.from, tt.to)
		}
	}
}
