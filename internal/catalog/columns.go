package catalog

import (
	"strings"

	"github.com/geocoder89/shopadmin/internal/lookup"
	"github.com/geocoder89/shopadmin/internal/record"
	"github.com/geocoder89/shopadmin/internal/render"
)

var (
	activeInactive = []lookup.Option{
		{Value: "ACTIVE", Label: "Active"},
		{Value: "INACTIVE", Label: "Inactive"},
	}
	allStatuses = lookup.Option{Value: "", Label: "All Statuses"}
)

func withAll(all lookup.Option, opts []lookup.Option) []lookup.Option {
	return append([]lookup.Option{all}, opts...)
}

// statusBadge renders the status field, "UNKNOWN" when missing.
func statusBadge(color func(any) string) func(record.Record) render.Cell {
	return func(r record.Record) render.Cell {
		s := record.String(r["status"])
		if s == "" {
			s = "UNKNOWN"
		}
		return render.Cell{Kind: render.Badge, Text: s, Color: color(r["status"])}
	}
}

// textOr renders the value at path, or fallback when it is blank.
func textOr(path, fallback string) func(record.Record) render.Cell {
	return func(r record.Record) render.Cell {
		s := strings.TrimSpace(record.String(r.Lookup(path)))
		if s == "" {
			s = fallback
		}
		return render.Cell{Kind: render.Text, Text: s}
	}
}

func number(r record.Record, path string) float64 {
	f, _ := record.Float(r.Lookup(path))
	return f
}

func snippet(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s + "..."
	}
	return string(runes[:n]) + "..."
}

func name(r record.Record) string {
	return record.String(r["name"])
}
