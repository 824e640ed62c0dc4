package record

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Record is an untyped backend entity. Only the identity key is interpreted.
type Record map[string]any

// ID returns the record identity, preferring "_id" over "id".
func (r Record) ID() string {
	for _, key := range []string{"_id", "id"} {
		if v, ok := r[key]; ok && v != nil {
			if s := String(v); s != "" {
				return s
			}
		}
	}
	return ""
}

// Lookup resolves a dotted path such as "brandId.name". Missing segments yield nil.
func (r Record) Lookup(path string) any {
	if path == "" {
		return nil
	}

	var cur any = map[string]any(r)
	for _, key := range strings.Split(path, ".") {
		switch m := cur.(type) {
		case map[string]any:
			cur = m[key]
		case Record:
			cur = m[key]
		default:
			return nil
		}
		if cur == nil {
			return nil
		}
	}
	return cur
}

// Accessor reads one value from a record, either by dotted path or with a pure function.
type Accessor struct {
	Path string
	Func func(Record) any
}

func Field(path string) Accessor {
	return Accessor{Path: path}
}

func Compute(fn func(Record) any) Accessor {
	return Accessor{Func: fn}
}

func (a Accessor) Value(r Record) any {
	if a.Func != nil {
		return a.Func(r)
	}
	return r.Lookup(a.Path)
}

func (a Accessor) IsZero() bool {
	return a.Func == nil && a.Path == ""
}

// Decode turns a JSON array into records.
func Decode(raw json.RawMessage) ([]Record, error) {
	var items []Record
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []Record{}
	}
	return items, nil
}

// String renders a scalar for display or export. nil becomes "".
func String(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	case fmt.Stringer:
		return t.String()
	case map[string]any:
		if name, ok := t["name"]; ok {
			return String(name)
		}
		if label, ok := t["label"]; ok {
			return String(label)
		}
		b, _ := json.Marshal(t)
		return string(b)
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = append(parts, String(item))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Float parses numeric values that may arrive as numbers or strings.
func Float(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// IsEmpty reports nil, blank strings and empty slices.
func IsEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case []string:
		return len(t) == 0
	default:
		return false
	}
}
