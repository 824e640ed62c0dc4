package form

import (
	"encoding/base64"
	"strconv"
	"strings"

	"github.com/geocoder89/shopadmin/internal/record"
)

// Values are the raw field values keyed by field name.
type Values map[string]any

func (v Values) String(name string) string {
	return record.String(v[name])
}

func (v Values) Bool(name string) bool {
	switch t := v[name].(type) {
	case bool:
		return t
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(t))
		return b || t == "on"
	default:
		return false
	}
}

func (v Values) Float(name string) (float64, bool) {
	if s, ok := v[name].(string); ok && strings.TrimSpace(s) == "" {
		return 0, false
	}
	return record.Float(v[name])
}

func (v Values) Strings(name string) []string {
	switch t := v[name].(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, record.String(item))
		}
		return out
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	default:
		return nil
	}
}

// File returns the uploaded file for name, or nil when the value is not an upload.
func (v Values) File(name string) *Upload {
	u, _ := v[name].(*Upload)
	return u
}

// Upload is a file posted through a file field.
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

// PreviewURL is a data URL of the upload, used to preview it before submit.
func (u *Upload) PreviewURL() string {
	if u == nil || len(u.Data) == 0 {
		return ""
	}
	return "data:" + u.ContentType + ";base64," + base64.StdEncoding.EncodeToString(u.Data)
}
