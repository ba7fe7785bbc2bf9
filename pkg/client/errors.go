package client

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// Kind classifies a request failure.
type Kind int

const (
	// KindHTTP is a non-2xx response.
	KindHTTP Kind = iota
	// KindAPI is a 2xx response whose envelope reports success=false.
	KindAPI
	// KindNetwork is a transport failure with no response.
	KindNetwork
	// KindTimeout is a request that exceeded its deadline.
	KindTimeout
	// KindDecode is a response body that could not be parsed.
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindHTTP:
		return "http"
	case KindAPI:
		return "api"
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// Error is returned for every failed backend call.
type Error struct {
	Kind      Kind
	Status    int
	Message   string
	Method    string
	Path      string
	RequestID string
	Err       error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s %s: %d: %s", e.Method, e.Path, e.Status, e.Message)
	}
	return fmt.Sprintf("%s %s: %s: %s", e.Method, e.Path, e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Transient reports whether the failure may succeed on retry.
func (e *Error) Transient() bool {
	switch e.Kind {
	case KindNetwork, KindTimeout:
		return true
	case KindHTTP:
		return e.Status >= 500
	}
	return false
}

// AsError checks if err is an *Error and returns it.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsUnauthorized reports whether err is a 401 response.
func IsUnauthorized(err error) bool {
	e, ok := AsError(err)
	return ok && e.Status == http.StatusUnauthorized
}

// IsTimeout reports whether err is a request timeout.
func IsTimeout(err error) bool {
	e, ok := AsError(err)
	return ok && e.Kind == KindTimeout
}

// Message returns the backend-supplied message carried by err, or fallback
// when err has none.
func Message(err error, fallback string) string {
	if e, ok := AsError(err); ok && e.Message != "" {
		return e.Message
	}
	if err != nil && fallback == "" {
		return err.Error()
	}
	return fallback
}

// extractMessage pulls a human-readable message out of an error body.
// FastAPI validation errors put a list under "detail".
func extractMessage(body []byte, status int) string {
	if gjson.ValidBytes(body) {
		for _, r := range gjson.GetManyBytes(body, "error", "detail", "message") {
			if r.Type == gjson.String && strings.TrimSpace(r.String()) != "" {
				return r.String()
			}
		}
		if msg := gjson.GetBytes(body, "detail.0.msg"); msg.Exists() {
			return msg.String()
		}
	} else if text := strings.TrimSpace(string(body)); text != "" && len(text) <= 200 {
		return text
	}
	if status > 0 {
		return http.StatusText(status)
	}
	return "request failed"
}
