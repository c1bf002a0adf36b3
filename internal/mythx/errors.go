// Package mythx provides a client for the MythX smart-contract analysis API.
// It owns the session lifecycle (login, refresh-and-retry on 401), job
// submission, and bounded polling for asynchronous results.
package mythx

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Sentinel errors for HTTP status code classification.
// Use errors.Is(err, mythx.ErrUnauthorized) to check.
var (
	ErrBadRequest   = errors.New("mythx: bad request")
	ErrUnauthorized = errors.New("mythx: unauthorized")
	ErrForbidden    = errors.New("mythx: forbidden")
	ErrNotFound     = errors.New("mythx: not found")
	ErrConflict     = errors.New("mythx: conflict")
	ErrThrottled    = errors.New("mythx: throttled")
	ErrServerError  = errors.New("mythx: server error")
)

// Sentinel errors for the client error taxonomy. Each typed error below
// unwraps to exactly one of these.
var (
	ErrConfiguration  = errors.New("mythx: invalid configuration")
	ErrAuthentication = errors.New("mythx: authentication failed")
	ErrInvalidRequest = errors.New("mythx: invalid request")
	ErrRetrieval      = errors.New("mythx: retrieval failed")
	ErrPollTimeout    = errors.New("mythx: poll timeout")
	ErrAnalysisFailed = errors.New("mythx: analysis failed")
)

// APIError is a non-2xx response from the service. It wraps a status
// sentinel so callers can use errors.Is without inspecting the code.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
	Err        error // sentinel, for errors.Is()
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("mythx: %s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
	}

	return fmt.Sprintf("mythx: %s %s: HTTP %d", e.Method, e.Path, e.StatusCode)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// ConfigurationError reports malformed construction input.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("mythx: invalid configuration: %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

// AuthenticationError reports a login or refresh rejected by the service.
// It names the identity but never carries the password.
type AuthenticationError struct {
	Address    string
	Op         string // "login" or "refresh"
	StatusCode int    // 0 when the service answered 2xx with an unusable body
	Err        error
}

func (e *AuthenticationError) Error() string {
	msg := fmt.Sprintf("mythx: %s failed for %s", e.Op, e.Address)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *AuthenticationError) Unwrap() []error {
	return unwrapWith(ErrAuthentication, e.Err)
}

// InvalidRequestError reports a violated caller precondition. Requests that
// fail this way are never sent.
type InvalidRequestError struct {
	Field  string
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("mythx: invalid request: %s: %s", e.Field, e.Reason)
}

func (e *InvalidRequestError) Unwrap() error {
	return ErrInvalidRequest
}

// NotFoundError reports that the service has no job with the given uuid.
type NotFoundError struct {
	UUID string
	Err  error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("mythx: analysis %s not found", e.UUID)
}

func (e *NotFoundError) Unwrap() []error {
	return unwrapWith(ErrNotFound, e.Err)
}

// RetrievalError reports any other failure while fetching a job's status or
// issues. StatusCode is 0 when no HTTP response was received.
type RetrievalError struct {
	UUID       string
	StatusCode int
	Err        error
}

func (e *RetrievalError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("mythx: retrieving analysis %s: HTTP %d: %v", e.UUID, e.StatusCode, e.Err)
	}

	return fmt.Sprintf("mythx: retrieving analysis %s: %v", e.UUID, e.Err)
}

func (e *RetrievalError) Unwrap() []error {
	return unwrapWith(ErrRetrieval, e.Err)
}

// PollTimeoutError reports that a job did not reach a terminal state within
// its polling budget. UUID lets the caller resume later with Client.Resume.
type PollTimeoutError struct {
	UUID       string
	Elapsed    time.Duration
	LastStatus Status
}

func (e *PollTimeoutError) Error() string {
	if e.LastStatus != "" {
		return fmt.Sprintf("mythx: analysis %s still %q after %s", e.UUID, e.LastStatus, e.Elapsed.Round(time.Millisecond))
	}

	return fmt.Sprintf("mythx: analysis %s not finished after %s", e.UUID, e.Elapsed.Round(time.Millisecond))
}

func (e *PollTimeoutError) Unwrap() error {
	return ErrPollTimeout
}

// AnalysisFailedError reports a job that ended in the Error state.
type AnalysisFailedError struct {
	UUID    string
	Message string
}

func (e *AnalysisFailedError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("mythx: analysis %s failed: %s", e.UUID, e.Message)
	}

	return fmt.Sprintf("mythx: analysis %s failed", e.UUID)
}

func (e *AnalysisFailedError) Unwrap() error {
	return ErrAnalysisFailed
}

func unwrapWith(sentinel, cause error) []error {
	if cause == nil {
		return []error{sentinel}
	}

	return []error{sentinel, cause}
}

// statusCode returns the HTTP status carried by err, or 0.
func statusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}

	return 0
}

// classifyStatus maps an HTTP status code to a sentinel error.
// Returns nil for codes without a dedicated sentinel.
func classifyStatus(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusTooManyRequests:
		return ErrThrottled
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		return nil
	}
}
