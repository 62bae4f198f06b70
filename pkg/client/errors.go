package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrMissingAPIKey is returned by New without an API key.
	ErrMissingAPIKey = errors.New("api key is required")

	// ErrRateLimited matches APIErrors for HTTP 429.
	ErrRateLimited = errors.New("rate limited")

	// ErrAuthentication matches APIErrors for HTTP 401 and 403.
	ErrAuthentication = errors.New("authentication failed")

	// ErrInvalidRequest matches APIErrors for HTTP 400 without a structured body.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrServer matches APIErrors for HTTP 5xx.
	ErrServer = errors.New("server error")
)

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int

	// Type and Message come from the error envelope when the body has one.
	// Otherwise Message holds the raw body.
	Type    string
	Message string

	// RetryAfter is the delay requested by a Retry-After header, if any.
	RetryAfter time.Duration

	kind error
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "anthropic API error (status %d)", e.StatusCode)
	if e.Type != "" {
		fmt.Fprintf(&b, " %s", e.Type)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	return b.String()
}

// Unwrap exposes the status class sentinel, e.g. ErrRateLimited.
func (e *APIError) Unwrap() error {
	return e.kind
}

// IsRetryable reports whether the request may succeed when repeated: rate
// limits, server errors and the API's overloaded responses.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= 500 ||
		e.Type == "overloaded_error"
}

// RetryHint returns the Retry-After delay.
func (e *APIError) RetryHint() (time.Duration, bool) {
	return e.RetryAfter, e.RetryAfter > 0
}

// ConnectionError is a failure to send a request or to receive its response
// headers.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connecting to anthropic API: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

func (e *ConnectionError) IsRetryable() bool {
	return true
}

type errorEnvelope struct {
	Type  string `json:"type"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// newAPIError maps a non-2xx status and its body to an *APIError.
func newAPIError(status int, header http.Header, body []byte) *APIError {
	e := &APIError{
		StatusCode: status,
		Message:    strings.TrimSpace(string(body)),
	}

	var env errorEnvelope
	structured := json.Unmarshal(body, &env) == nil && env.Error != nil
	if structured {
		e.Type = env.Error.Type
		e.Message = env.Error.Message
	}

	switch {
	case status == http.StatusTooManyRequests:
		e.kind = ErrRateLimited
		e.RetryAfter = parseRetryAfter(header.Get("retry-after"))
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.kind = ErrAuthentication
	case status == http.StatusBadRequest && !structured:
		e.kind = ErrInvalidRequest
	case status >= 500:
		e.kind = ErrServer
	}

	return e
}

// parseRetryAfter accepts delta seconds or an HTTP date.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
