package catalog

import (
	"github.com/geocoder89/shopadmin/internal/backend"
	"github.com/geocoder89/shopadmin/internal/form"
	"github.com/geocoder89/shopadmin/internal/record"
)

// ValidationError is a submit-time check that the field schema cannot express.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// multipartPayload appends every non-empty value in schema order. A new upload is sent
// as a file part; an unchanged file field keeps its current URL as a plain value.
func multipartPayload(fields []form.Field, values form.Values) *backend.Multipart {
	mp := backend.NewMultipart()
	for _, fd := range fields {
		v := values[fd.Name]
		if u := values.File(fd.Name); u != nil {
			mp.AddFile(backend.File{
				Field:       fd.Name,
				Name:        u.Name,
				ContentType: u.ContentType,
				Data:        u.Data,
			})
			continue
		}
		if fd.Kind == form.MultiSelect {
			for _, s := range values.Strings(fd.Name) {
				mp.Add(fd.Name, s)
			}
			continue
		}
		if record.IsEmpty(v) {
			continue
		}
		mp.Add(fd.Name, scalar(v))
	}
	return mp
}

// scalar flattens a populated reference such as {_id, name} to its id.
func scalar(v any) string {
	if m, ok := v.(map[string]any); ok {
		return record.Record(m).ID()
	}
	return record.String(v)
}
