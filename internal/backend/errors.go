package backend

import (
	"fmt"
	"strings"

	"github.com/geocoder89/shopadmin/internal/record"
)

const (
	FallbackMessage       = "An unexpected error occurred."
	SessionExpiredMessage = "Session expired. Please login again."
)

// Error is the single normalized failure of a backend call.
// Status is 0 when the request never produced a response.
type Error struct {
	Status     int
	StatusText string
	Message    string
	Body       map[string]any
	Err        error
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return e.Message
	}
	return fmt.Sprintf("backend %d: %s", e.Status, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Unauthorized() bool {
	return e.Status == 401 || e.StatusText == "Unauthorized"
}

// ResolveMessage picks the most specific human message out of an error body.
// Order: validation path, details[0].message, message, desc, error, transport text, fallback.
func ResolveMessage(body map[string]any, transport string) string {
	if msg := validationMessage(body); msg != "" {
		return msg
	}
	if details, ok := body["details"].([]any); ok && len(details) > 0 {
		if first, ok := details[0].(map[string]any); ok {
			if msg := nonBlank(first["message"]); msg != "" {
				return msg
			}
		}
	}
	for _, key := range []string{"message", "desc", "error"} {
		if msg := nonBlank(body[key]); msg != "" {
			return msg
		}
	}
	if strings.TrimSpace(transport) != "" {
		return transport
	}
	return FallbackMessage
}

// validationMessage reads validation.{body,query,params}; keys are prefixed when present.
func validationMessage(body map[string]any) string {
	v, ok := body["validation"].(map[string]any)
	if !ok {
		return ""
	}

	for _, part := range []string{"body", "query", "params"} {
		sec, ok := v[part].(map[string]any)
		if !ok {
			continue
		}
		msg := nonBlank(sec["message"])

		var keys []string
		if raw, ok := sec["keys"].([]any); ok {
			for _, k := range raw {
				if s := record.String(k); s != "" {
					keys = append(keys, s)
				}
			}
		}

		switch {
		case len(keys) > 0 && msg != "":
			return strings.Join(keys, ", ") + ": " + msg
		case msg != "":
			return msg
		}
	}
	return ""
}

func nonBlank(v any) string {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return ""
	}
	return s
}

// successMessage is the message a mutating call's response carries, if any.
func successMessage(body map[string]any) string {
	if msg := nonBlank(body["message"]); msg != "" {
		return msg
	}
	return nonBlank(body["desc"])
}
