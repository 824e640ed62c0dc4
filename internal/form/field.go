// Package form is the schema-driven form engine: typed fields, initial values,
// request binding, validation and async select options.
package form

import (
	"github.com/geocoder89/shopadmin/internal/lookup"
)

type Kind int

const (
	Text Kind = iota
	Email
	URL
	TextArea
	Number
	Select
	MultiSelect
	Switch
	Checkbox
	File
)

var kindNames = map[Kind]string{
	Text:        "text",
	Email:       "email",
	URL:         "url",
	TextArea:    "textarea",
	Number:      "number",
	Select:      "select",
	MultiSelect: "multiselect",
	Switch:      "switch",
	Checkbox:    "checkbox",
	File:        "file",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "text"
}

// Validator returns an error message, or "" when v is valid.
type Validator func(v any, values Values) string

type Field struct {
	Name        string
	Label       string
	Placeholder string
	Description string
	Kind        Kind
	Required    bool
	Disabled    bool
	// ErrorMessage replaces "<Label> is required".
	ErrorMessage string
	Default      any
	// Validate replaces the required check.
	Validate Validator

	Options     []lookup.Option
	Loader      lookup.Func
	LoadOnMount bool
	Searchable  bool
	Clearable   bool

	Min          *float64
	Max          *float64
	Step         float64
	DecimalScale *int

	Accept      string
	SwitchLabel string
	MinRows     int
	Span        int

	// ShowWhen hides the field, and skips its validation, while it returns false.
	ShowWhen func(Values) bool
}

func Float(f float64) *float64 { return &f }
func Int(i int) *int           { return &i }

func (f Field) KindName() string { return f.Kind.String() }

func (f Field) ColSpan() int {
	if f.Span <= 0 || f.Span > 12 {
		return 12
	}
	return f.Span
}

func (f Field) StepValue() float64 {
	if f.Step <= 0 {
		return 1
	}
	return f.Step
}

func (f Field) AcceptValue() string {
	if f.Accept == "" {
		return "image/*"
	}
	return f.Accept
}

func (f Field) Rows() int {
	if f.MinRows <= 0 {
		return 3
	}
	return f.MinRows
}

func (f Field) async() bool {
	return f.Kind == Select && f.Loader != nil
}
