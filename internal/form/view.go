package form

import (
	"slices"

	"github.com/geocoder89/shopadmin/internal/lookup"
	"github.com/geocoder89/shopadmin/internal/record"
)

// FieldView is a render-ready field.
type FieldView struct {
	Field
	Value    string
	Checked  bool
	Selected []string
	Error    string
	Choices  []lookup.Option
	Loading  bool
	Hidden   bool
}

func (v FieldView) IsSelected(value string) bool {
	return slices.Contains(v.Selected, value)
}

func (f *Form) View() []FieldView {
	out := make([]FieldView, 0, len(f.Fields))
	for _, fd := range f.Fields {
		fv := FieldView{
			Field:   fd,
			Error:   f.Errors[fd.Name],
			Loading: f.Loading(fd.Name),
			Hidden:  !f.Visible(fd),
		}

		switch fd.Kind {
		case Switch, Checkbox:
			fv.Checked = f.Values.Bool(fd.Name)
		case MultiSelect:
			fv.Selected = f.Values.Strings(fd.Name)
			fv.Choices = fd.Options
		case Select:
			fv.Value = selectValue(f.Values[fd.Name])
			fv.Selected = []string{fv.Value}
			fv.Choices = lookup.Ensure(f.Options(fd.Name), lookup.Option{Value: fv.Value, Label: selectLabel(f.Values[fd.Name])})
		case File:
			if f.Values.File(fd.Name) == nil {
				fv.Value = f.Values.String(fd.Name)
			}
		default:
			fv.Value = f.Values.String(fd.Name)
		}
		out = append(out, fv)
	}
	return out
}

// selectValue accepts a plain id or a populated reference such as {_id, name}.
func selectValue(v any) string {
	if m, ok := v.(map[string]any); ok {
		return record.Record(m).ID()
	}
	return record.String(v)
}

func selectLabel(v any) string {
	if m, ok := v.(map[string]any); ok {
		return record.String(m["name"])
	}
	return ""
}
