package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// FieldError is one failed binding rule of a posted form, keyed by the form field name.
type FieldError struct {
	Field   string
	Rule    string
	Param   string
	Message string
}

// BindForm binds a posted urlencoded or multipart form. On failure it returns the
// first error of each field keyed by the field's form name; a body that could not be
// read or decoded yields a single "" key.
func BindForm(ctx *gin.Context, out any) (map[string]FieldError, bool) {
	err := ctx.ShouldBind(out)
	if err == nil {
		return nil, true
	}

	byName := map[string]FieldError{}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		names := formNames(out)
		for _, fe := range verrs {
			name := names[fe.StructField()]
			if name == "" {
				name = fe.Field()
			}
			if _, seen := byName[name]; seen {
				continue
			}
			byName[name] = FieldError{
				Field:   name,
				Rule:    fe.Tag(),
				Param:   fe.Param(),
				Message: validationMessage(fe.Tag(), fe.Param()),
			}
		}
	}

	if len(byName) == 0 {
		byName[""] = FieldError{Rule: "body", Message: "could not be read"}
	}
	return byName, false
}

// formNames maps struct field names to their form tag names for a flat request struct.
func formNames(v any) map[string]string {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil
	}

	names := make(map[string]string, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		name, _, _ := strings.Cut(sf.Tag.Get("form"), ",")
		if name == "" || name == "-" {
			name = sf.Name
		}
		names[sf.Name] = name
	}
	return names
}

func validationMessage(rule, param string) string {
	switch rule {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + param
	case "max":
		return "must be at most " + param
	default:
		if param != "" {
			return fmt.Sprintf("failed %s validation (%s)", rule, param)
		}
		return "failed " + rule + " validation"
	}
}
