package table

import (
	"encoding/json"
	"errors"

	"github.com/geocoder89/shopadmin/internal/record"
)

var ErrUnrecognizedShape = errors.New("unrecognized list response shape")

// MaxTotalPages bounds the page count a backend may report.
const MaxTotalPages = 1_000_000

// Page is a normalized list response.
type Page struct {
	Items      []record.Record
	Total      int
	TotalPages int
}

type pagination struct {
	Total      *float64 `json:"total"`
	TotalPages *float64 `json:"totalPages"`
}

// Normalize accepts a bare array, {items, pagination} or {<entityKey>: [...], pagination},
// each optionally wrapped in {data: ...}. total and totalPages may also sit on the envelope.
func Normalize(raw json.RawMessage, entityKey string) (Page, error) {
	if items, err := record.Decode(raw); err == nil {
		return Page{Items: items, Total: len(items), TotalPages: 1}, nil
	}

	var outer map[string]json.RawMessage
	if err := json.Unmarshal(raw, &outer); err != nil {
		return Page{}, ErrUnrecognizedShape
	}

	envelope := outer
	if data, ok := outer["data"]; ok {
		if items, err := record.Decode(data); err == nil {
			return paged(items, outer["pagination"], outer), nil
		}
		var inner map[string]json.RawMessage
		if err := json.Unmarshal(data, &inner); err != nil {
			return Page{}, ErrUnrecognizedShape
		}
		outer = inner
	}

	key, ok := listKey(outer, entityKey)
	if !ok {
		return Page{}, ErrUnrecognizedShape
	}
	items, err := record.Decode(outer[key])
	if err != nil {
		return Page{}, ErrUnrecognizedShape
	}

	p := paged(items, outer["pagination"], outer)
	if outer["pagination"] == nil && !hasTotals(outer) {
		p = paged(items, nil, envelope)
	}
	return p, nil
}

func listKey(m map[string]json.RawMessage, entityKey string) (string, bool) {
	for _, k := range []string{"items", entityKey} {
		if k == "" {
			continue
		}
		if isArray(m[k]) {
			return k, true
		}
	}

	// fall back to the only array-valued key
	var found []string
	for k, v := range m {
		if isArray(v) {
			found = append(found, k)
		}
	}
	if len(found) == 1 {
		return found[0], true
	}
	return "", false
}

func isArray(raw json.RawMessage) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case '[':
			return true
		default:
			return false
		}
	}
	return false
}

func hasTotals(m map[string]json.RawMessage) bool {
	_, ok := m["total"]
	return ok
}

func paged(items []record.Record, pag json.RawMessage, envelope map[string]json.RawMessage) Page {
	p := Page{Items: items, Total: len(items), TotalPages: 1}

	var pg pagination
	if len(pag) > 0 && json.Unmarshal(pag, &pg) == nil {
		p.Total, p.TotalPages = 0, 1
		if pg.Total != nil {
			p.Total = int(*pg.Total)
		}
		if pg.TotalPages != nil {
			p.TotalPages = pageCount(*pg.TotalPages)
		}
		return p
	}

	var total, totalPages float64
	if raw, ok := envelope["total"]; ok && json.Unmarshal(raw, &total) == nil && total > 0 {
		p.Total = int(total)
		p.TotalPages = 1
		if raw, ok := envelope["totalPages"]; ok && json.Unmarshal(raw, &totalPages) == nil {
			p.TotalPages = pageCount(totalPages)
		}
	}
	return p
}

func pageCount(f float64) int {
	switch {
	case !(f >= 1):
		return 1
	case f > MaxTotalPages:
		return MaxTotalPages
	}
	return int(f)
}
