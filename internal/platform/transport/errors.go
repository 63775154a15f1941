package transport

import (
	"errors"
	"fmt"
)

// Kind classifies a failed request the way callers care about it.
type Kind int

const (
	// KindNetwork covers transport failures and 5xx responses.
	KindNetwork Kind = iota
	// KindAuth is a 401: the token is missing or was rejected.
	KindAuth
	// KindForbidden is a 403: valid token, insufficient privilege.
	KindForbidden
	// KindValidation is a 400/422 carrying a field error list.
	KindValidation
	// KindNotFound is a 404.
	KindNotFound
	// KindConflict is a 409.
	KindConflict
	// KindRemote is any other 4xx, surfaced with the backend message
	// or the raw body when the envelope does not match.
	KindRemote
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindAuth:
		return "auth"
	case KindForbidden:
		return "forbidden"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "remote"
	}
}

// FieldError is one entry of the backend validation list. Different
// endpoints spell the field name as "param" or "field" and the message as
// "msg" or "message"; both spellings are accepted.
type FieldError struct {
	Param   string `json:"param,omitempty"`
	Field   string `json:"field,omitempty"`
	Msg     string `json:"msg,omitempty"`
	Message string `json:"message,omitempty"`
}

// Name returns the field name regardless of spelling.
func (f FieldError) Name() string {
	if f.Param != "" {
		return f.Param
	}
	return f.Field
}

// Text returns the message regardless of spelling.
func (f FieldError) Text() string {
	if f.Msg != "" {
		return f.Msg
	}
	return f.Message
}

// envelope is the canonical backend error shape.
type envelope struct {
	Message string       `json:"message"`
	Errors  []FieldError `json:"errors,omitempty"`
}

// Error is the normalized failure returned by the client. Facades propagate
// it unchanged; screens branch on Kind.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Fields  []FieldError
	Raw     string
	cause   error
}

func (e *Error) Error() string {
	switch {
	case e.Kind == KindNetwork && e.cause != nil:
		return fmt.Sprintf("network error: %v", e.cause)
	case e.Message != "":
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Message)
	case e.Raw != "":
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Raw)
	default:
		return fmt.Sprintf("%s (%d)", e.Kind, e.Status)
	}
}

func (e *Error) Unwrap() error { return e.cause }

// KindOf returns the Kind of err when it is a transport error. Errors that
// did not come from the transport report KindNetwork, the safest default
// for callers deciding whether to show a generic failure toast.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindNetwork
}

// IsAuth reports whether err is the 401 auth failure.
func IsAuth(err error) bool {
	var te *Error
	return errors.As(err, &te) && te.Kind == KindAuth
}

// ValidationFields extracts the field error list from err, if any.
func ValidationFields(err error) []FieldError {
	var te *Error
	if errors.As(err, &te) {
		return te.Fields
	}
	return nil
}
