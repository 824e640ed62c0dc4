package form

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/geocoder89/shopadmin/internal/record"
)

var validate = validator.New()

// Required reproduces the default required check, for use inside Chain.
func Required(label string) Validator {
	return func(v any, _ Values) string {
		if record.IsEmpty(v) {
			return label + " is required"
		}
		return ""
	}
}

// EmailFormat accepts a blank value; pair it with Required when the field is mandatory.
func EmailFormat(msg string) Validator {
	return tagged("email", msg)
}

func URLFormat(msg string) Validator {
	return tagged("url", msg)
}

func tagged(tag, msg string) Validator {
	return func(v any, _ Values) string {
		s := strings.TrimSpace(record.String(v))
		if s == "" {
			return ""
		}
		if err := validate.Var(s, tag); err != nil {
			return msg
		}
		return ""
	}
}

func Pattern(re *regexp.Regexp, msg string) Validator {
	return func(v any, _ Values) string {
		s := strings.TrimSpace(record.String(v))
		if s == "" || re.MatchString(s) {
			return ""
		}
		return msg
	}
}

func NonNegative(msg string) Validator {
	return func(v any, _ Values) string {
		if record.IsEmpty(v) {
			return ""
		}
		f, ok := record.Float(v)
		if !ok || f < 0 {
			return msg
		}
		return ""
	}
}

// Chain returns the first failing message.
func Chain(vs ...Validator) Validator {
	return func(v any, values Values) string {
		for _, fn := range vs {
			if msg := fn(v, values); msg != "" {
				return msg
			}
		}
		return ""
	}
}
