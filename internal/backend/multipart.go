package backend

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"

	"github.com/gabriel-vasile/mimetype"
)

type formField struct {
	name  string
	value string
}

type File struct {
	Field       string
	Name        string
	ContentType string
	Data        []byte
}

// Multipart is an ordered multipart/form-data body.
type Multipart struct {
	fields []formField
	files  []File
}

func NewMultipart() *Multipart { return &Multipart{} }

func (m *Multipart) Add(name, value string) *Multipart {
	m.fields = append(m.fields, formField{name: name, value: value})
	return m
}

// AddFile appends a file part. An empty content type is sniffed from the data.
func (m *Multipart) AddFile(f File) *Multipart {
	if f.ContentType == "" {
		f.ContentType = mimetype.Detect(f.Data).String()
	}
	m.files = append(m.files, f)
	return m
}

func (m *Multipart) Files() []File { return m.files }

func (m *Multipart) Value(name string) (string, bool) {
	for _, f := range m.fields {
		if f.name == name {
			return f.value, true
		}
	}
	return "", false
}

// Encode writes the body and returns it with its Content-Type header value.
func (m *Multipart) Encode() (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, f := range m.fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", f.name, err)
		}
	}

	for _, f := range m.files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.Field, f.Name))
		h.Set("Content-Type", f.ContentType)

		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("create part %s: %w", f.Field, err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, "", fmt.Errorf("write part %s: %w", f.Field, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
