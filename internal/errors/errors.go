// Package errors defines the error kinds surfaced by the gateway. Every
// error that reaches the HTTP boundary either is an *Error or wraps one,
// so callers branch on Kind instead of inspecting concrete types.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a gateway failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindUnauthenticated
	KindLoginFailed
	KindDownstream
	KindAuthorizationRefused
)

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindLoginFailed:
		return "login_failed"
	case KindDownstream:
		return "downstream_error"
	case KindAuthorizationRefused:
		return "authorization_refused"
	default:
		return "unknown"
	}
}

// Sentinels matched by (*Error).Is, one per kind.
var (
	ErrUnauthenticated      = errors.New("app token not found")
	ErrLoginFailed          = errors.New("login failed")
	ErrDownstream           = errors.New("downstream API error")
	ErrAuthorizationRefused = errors.New("authorization refused")
)

// Request validation errors. These never reach the box.
var (
	ErrUnsupportedMethod = errors.New("unsupported method")
	ErrInvalidBody       = errors.New("request body is not valid JSON")
)

// Error is a classified gateway failure. Status is the HTTP status the
// front end should answer with; Envelope holds the raw downstream
// response for KindDownstream.
type Error struct {
	Kind     Kind
	Status   int
	Message  string
	Envelope json.RawMessage
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	switch e.Kind {
	case KindUnauthenticated:
		return target == ErrUnauthenticated
	case KindLoginFailed:
		return target == ErrLoginFailed
	case KindDownstream:
		return target == ErrDownstream
	case KindAuthorizationRefused:
		return target == ErrAuthorizationRefused
	}

	return false
}

// Unauthenticated reports that no app token is available for login.
func Unauthenticated() *Error {
	return &Error{
		Kind:    KindUnauthenticated,
		Status:  http.StatusUnauthorized,
		Message: "app token not found, pair the gateway first",
	}
}

// LoginFailed reports that every login attempt failed. The last
// attempt's error is kept as the cause.
func LoginFailed(attempts int, cause error) *Error {
	return &Error{
		Kind:    KindLoginFailed,
		Status:  http.StatusBadGateway,
		Message: fmt.Sprintf("login failed after %d attempts", attempts),
		Err:     cause,
	}
}

// Downstream reports a success=false envelope that could not be
// recovered. Status outside 400..599 is replaced with 400.
func Downstream(status int, code, msg string, envelope []byte) *Error {
	if status < 400 || status > 599 {
		status = http.StatusBadRequest
	}

	message := "downstream API error"
	if code != "" {
		message += " " + code
	}

	if msg != "" {
		message += ": " + msg
	}

	return &Error{
		Kind:     KindDownstream,
		Status:   status,
		Message:  message,
		Envelope: json.RawMessage(envelope),
	}
}

// AuthorizationRefused reports a pairing request that ended in any
// status other than granted.
func AuthorizationRefused(status string) *Error {
	return &Error{
		Kind:    KindAuthorizationRefused,
		Status:  http.StatusBadRequest,
		Message: fmt.Sprintf("authorization refused (status %q)", status),
	}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return KindUnknown
}

// StatusOf returns the HTTP status for err, defaulting to 500.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) && e.Status != 0 {
		return e.Status
	}

	switch {
	case errors.Is(err, ErrUnsupportedMethod):
		return http.StatusMethodNotAllowed
	case errors.Is(err, ErrInvalidBody):
		return http.StatusBadRequest
	}

	return http.StatusInternalServerError
}

// EnvelopeOf returns the first downstream envelope found in err's chain,
// looking through errors such as LoginFailed that wrap one.
func EnvelopeOf(err error) json.RawMessage {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return nil
		}

		if len(e.Envelope) > 0 {
			return e.Envelope
		}

		err = e.Err
	}

	return nil
}
