package form

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sync/errgroup"

	"github.com/geocoder89/shopadmin/internal/backend"
	"github.com/geocoder89/shopadmin/internal/lookup"
	"github.com/geocoder89/shopadmin/internal/notifications"
)

var ErrInvalid = errors.New("form has invalid fields")

const (
	maxMemory     = 8 << 20
	MaxUploadSize = 5 << 20
)

// SubmitFunc receives the raw values; payload shaping is the caller's job.
type SubmitFunc func(ctx context.Context, values Values) error

type Form struct {
	Title  string
	Fields []Field
	Values Values
	Errors map[string]string
	// FirstInvalid is the first field, in schema order, that failed validation.
	FirstInvalid string
	IsEdit       bool
	Preview      string

	loaders  map[string]*lookup.Loader
	notifier notifications.Notifier
}

type Option func(*Form)

func WithNotifier(n notifications.Notifier) Option {
	return func(f *Form) { f.notifier = n }
}

func Edit() Option {
	return func(f *Form) { f.IsEdit = true }
}

// New builds a form. Each value starts as initial[name], else the field default, else "".
func New(title string, fields []Field, initial map[string]any, opts ...Option) *Form {
	f := &Form{
		Title:   title,
		Fields:  fields,
		Values:  make(Values, len(fields)),
		Errors:  map[string]string{},
		loaders: map[string]*lookup.Loader{},
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.notifier == nil {
		f.notifier = notifications.NewLogNotifier(nil)
	}

	for _, fd := range fields {
		switch {
		case initial[fd.Name] != nil:
			f.Values[fd.Name] = initial[fd.Name]
		case fd.Default != nil:
			f.Values[fd.Name] = fd.Default
		default:
			f.Values[fd.Name] = ""
		}
		if fd.async() {
			f.loaders[fd.Name] = lookup.NewLoader(fd.Loader)
		}
	}

	for _, key := range []string{"image", "logoUrl"} {
		if s, ok := initial[key].(string); ok && s != "" {
			f.Preview = s
			break
		}
	}
	return f
}

func (f *Form) Field(name string) (Field, bool) {
	for _, fd := range f.Fields {
		if fd.Name == name {
			return fd, true
		}
	}
	return Field{}, false
}

func (f *Form) Visible(fd Field) bool {
	return fd.ShowWhen == nil || fd.ShowWhen(f.Values)
}

// Bind reads a posted urlencoded or multipart body into the values.
// A file field without a new upload keeps its current value.
func (f *Form) Bind(r *http.Request) error {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxMemory); err != nil {
			return fmt.Errorf("parse multipart form: %w", err)
		}
	} else if err := r.ParseForm(); err != nil {
		return fmt.Errorf("parse form: %w", err)
	}

	for _, fd := range f.Fields {
		switch fd.Kind {
		case Switch, Checkbox:
			f.Values[fd.Name] = f.checked(r, fd.Name)
		case MultiSelect:
			f.Values[fd.Name] = nonEmpty(r.PostForm[fd.Name])
		case Number:
			f.Values[fd.Name] = bindNumber(fd, r.PostForm.Get(fd.Name))
		case File:
			up, err := readUpload(r, fd.Name)
			if err != nil {
				f.Errors[fd.Name] = err.Error()
				continue
			}
			if up != nil {
				f.Values[fd.Name] = up
				f.Preview = up.PreviewURL()
			}
		default:
			if _, ok := r.PostForm[fd.Name]; ok {
				f.Values[fd.Name] = r.PostForm.Get(fd.Name)
			}
		}
	}
	return nil
}

func (f *Form) checked(r *http.Request, name string) bool {
	for _, v := range r.PostForm[name] {
		switch strings.ToLower(v) {
		case "on", "true", "1", "yes":
			return true
		}
	}
	return false
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

// bindNumber parses, clamps to [Min, Max] and rounds to DecimalScale.
// Blank stays "" so the required check can see it; garbage is kept for the error message.
func bindNumber(fd Field, raw string) any {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return raw
	}
	return ClampNumber(fd, n)
}

func ClampNumber(fd Field, n float64) float64 {
	if fd.Min != nil && n < *fd.Min {
		n = *fd.Min
	}
	if fd.Max != nil && n > *fd.Max {
		n = *fd.Max
	}
	if fd.DecimalScale != nil {
		p := math.Pow(10, float64(*fd.DecimalScale))
		n = math.Round(n*p) / p
	}
	return n
}

func readUpload(r *http.Request, name string) (*Upload, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	headers := r.MultipartForm.File[name]
	if len(headers) == 0 || headers[0].Size == 0 {
		return nil, nil
	}
	return openUpload(headers[0])
}

func openUpload(h *multipart.FileHeader) (*Upload, error) {
	if h.Size > MaxUploadSize {
		return nil, fmt.Errorf("%s is larger than %d MB", h.Filename, MaxUploadSize>>20)
	}
	file, err := h.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	return &Upload{
		Name:        h.Filename,
		ContentType: mimetype.Detect(data).String(),
		Data:        data,
	}, nil
}

// Validate checks every visible field and records messages in Errors.
func (f *Form) Validate() bool {
	f.Errors = map[string]string{}
	f.FirstInvalid = ""

	for _, fd := range f.Fields {
		if !f.Visible(fd) {
			continue
		}
		if msg := f.check(fd); msg != "" {
			f.Errors[fd.Name] = msg
			if f.FirstInvalid == "" {
				f.FirstInvalid = fd.Name
			}
		}
	}
	return len(f.Errors) == 0
}

func (f *Form) check(fd Field) string {
	v := f.Values[fd.Name]

	if fd.Validate != nil {
		return fd.Validate(v, f.Values)
	}

	if fd.Kind == Number {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return fd.Label + " must be a number"
		}
	}

	if !fd.Required || fd.Kind == File {
		return ""
	}

	if blank(fd, v) {
		if fd.ErrorMessage != "" {
			return fd.ErrorMessage
		}
		return fd.Label + " is required"
	}
	return ""
}

func blank(fd Field, v any) bool {
	switch fd.Kind {
	case Checkbox:
		b, _ := v.(bool)
		return !b
	case MultiSelect:
		return len(Values{fd.Name: v}.Strings(fd.Name)) == 0
	}

	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case bool:
		return !t
	default:
		return false
	}
}

// LoadOptions loads every async select marked LoadOnMount concurrently.
// A failing loader leaves its options empty.
func (f *Form) LoadOptions(ctx context.Context) {
	var g errgroup.Group
	for _, fd := range f.Fields {
		l, ok := f.loaders[fd.Name]
		if !ok || !fd.LoadOnMount {
			continue
		}
		g.Go(func() error {
			_, _ = l.Load(ctx, "")
			return nil
		})
	}
	_ = g.Wait()
}

// Search reloads the options of one async select for query.
func (f *Form) Search(ctx context.Context, name, query string) ([]lookup.Option, error) {
	l, ok := f.loaders[name]
	if !ok {
		return nil, fmt.Errorf("field %q has no option loader", name)
	}
	return l.Load(ctx, query)
}

// Options returns the current options of a select, async or static.
func (f *Form) Options(name string) []lookup.Option {
	fd, _ := f.Field(name)
	opts := fd.Options
	if l, ok := f.loaders[name]; ok {
		opts = l.Options()
	}
	return opts
}

func (f *Form) Loading(name string) bool {
	l, ok := f.loaders[name]
	return ok && l.Loading()
}

// Submit validates and, only when valid, calls fn. On failure the values stay in
// place so the form can be re-rendered as posted.
func (f *Form) Submit(ctx context.Context, fn SubmitFunc) error {
	if !f.Validate() {
		return ErrInvalid
	}

	if err := fn(ctx, f.Values); err != nil {
		// backend errors were already surfaced by the client
		var be *backend.Error
		if !errors.As(err, &be) {
			msg := err.Error()
			if msg == "" {
				msg = "Something went wrong"
			}
			_ = notifications.Error(ctx, f.notifier, msg)
		}
		return err
	}
	return nil
}

func (f *Form) SubmitLabel() string {
	if f.IsEdit {
		return "Update"
	}
	return "Create"
}
