package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

const maxErrorBody = 64 << 10

// APIError is a non-2xx response from the Automation API.
type APIError struct {
	Op         string
	StatusCode int
	Status     string
	// Detail is the raw "detail" member of the JSON error body, if any. It may
	// hold a string or a structured value.
	Detail     json.RawMessage
	Body       string
	RetryAfter string
}

func (e *APIError) Error() string {
	if msg, ok := e.detailString(); ok {
		return fmt.Sprintf("%s: %d %s: %s", e.Op, e.StatusCode, http.StatusText(e.StatusCode), msg)
	}
	return fmt.Sprintf("%s: %d %s", e.Op, e.StatusCode, http.StatusText(e.StatusCode))
}

// HTTPStatus returns the response status code.
func (e *APIError) HTTPStatus() int { return e.StatusCode }

// ErrorDetail returns the raw detail value.
func (e *APIError) ErrorDetail() json.RawMessage { return e.Detail }

// RetryAfterHeader returns the Retry-After header exactly as received.
func (e *APIError) RetryAfterHeader() string { return e.RetryAfter }

func (e *APIError) detailString() (string, bool) {
	if len(e.Detail) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(e.Detail, &s); err != nil {
		return "", false
	}
	return s, true
}

// ParseRetryAfter interprets a Retry-After header given either as delay
// seconds or as an HTTP date.
func ParseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(value); err == nil {
		d := at.Sub(now)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}

func parseAPIError(op string, resp *http.Response) error {
	apiErr := &APIError{
		Op:         op,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		RetryAfter: resp.Header.Get("Retry-After"),
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		apiErr.Body = fmt.Sprintf("failed to read error response body: %v", err)
		return apiErr
	}
	apiErr.Body = string(body)

	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if json.Unmarshal(body, &envelope) == nil && len(envelope.Detail) > 0 && !bytes.Equal(envelope.Detail, []byte("null")) {
		apiErr.Detail = envelope.Detail
	}
	return apiErr
}
