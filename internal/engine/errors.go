package engine

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"automationdash/internal/client"
)

// ErrBusy is returned by the Orchestrator when a mutation is already running.
var ErrBusy = errors.New("another operation is in progress")

const defaultMessage = "Request failed"

// Kind classifies a failed API call.
type Kind string

const (
	KindNetwork     Kind = "network"
	KindValidation  Kind = "validation"
	KindRateLimited Kind = "rate_limited"
	KindServer      Kind = "server"
)

// Error is the uniform error surfaced to callers of the engine.
type Error struct {
	Op      string
	Kind    Kind
	Status  int
	Message string
	// RetryAfter is the parsed Retry-After delay of a rate-limited call.
	RetryAfter time.Duration
	// RetryAfterRaw is the Retry-After header exactly as received.
	RetryAfterRaw string
	Err           error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: %s (%d): %s", e.Op, e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

type httpError interface {
	error
	HTTPStatus() int
	ErrorDetail() json.RawMessage
	RetryAfterHeader() string
}

// Normalize converts err into an *Error. A nil err yields nil and an *Error
// is returned unchanged.
func Normalize(op string, err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}

	var he httpError
	if !errors.As(err, &he) {
		return &Error{Op: op, Kind: KindNetwork, Message: defaultMessage, Err: err}
	}

	status := he.HTTPStatus()
	out := &Error{
		Op:      op,
		Kind:    kindOf(status),
		Status:  status,
		Message: messageOf(he.ErrorDetail()),
		Err:     err,
	}
	if status == http.StatusTooManyRequests {
		out.RetryAfterRaw = he.RetryAfterHeader()
		if d, ok := client.ParseRetryAfter(out.RetryAfterRaw, time.Now()); ok {
			out.RetryAfter = d
		}
	}
	return out
}

// IsKind reports whether err normalizes to the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

func kindOf(status int) Kind {
	switch {
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status >= 400 && status < 500:
		return KindValidation
	case status >= 500:
		return KindServer
	default:
		return KindNetwork
	}
}

func messageOf(detail json.RawMessage) string {
	if len(detail) == 0 {
		return defaultMessage
	}
	var s string
	if err := json.Unmarshal(detail, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, detail); err != nil {
		return defaultMessage
	}
	return buf.String()
}

func validationError(op, message string) *Error {
	return &Error{Op: op, Kind: KindValidation, Message: message}
}
