package mythx

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassifyStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code int
		want error
	}{
		{http.StatusBadRequest, ErrBadRequest},
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrForbidden},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusConflict, ErrConflict},
		{http.StatusTooManyRequests, ErrThrottled},
		{http.StatusInternalServerError, ErrServerError},
		{http.StatusGatewayTimeout, ErrServerError},
		{http.StatusTeapot, nil},
		{http.StatusFound, nil},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, classifyStatus(tt.code), "status %d", tt.code)
	}
}

func TestTypedErrors_UnwrapToTaxonomy(t *testing.T) {
	t.Parallel()

	apiErr := &APIError{Method: "GET", Path: "/analyses/u", StatusCode: 500, Err: ErrServerError}

	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"configuration", &ConfigurationError{Field: "address", Reason: "empty"}, ErrConfiguration},
		{"authentication", &AuthenticationError{Address: "0xabc", Op: "login", StatusCode: 401}, ErrAuthentication},
		{"invalid request", &InvalidRequestError{Field: "data", Reason: "required"}, ErrInvalidRequest},
		{"not found", &NotFoundError{UUID: "u"}, ErrNotFound},
		{"retrieval", &RetrievalError{UUID: "u", StatusCode: 500, Err: apiErr}, ErrRetrieval},
		{"retrieval cause", &RetrievalError{UUID: "u", StatusCode: 500, Err: apiErr}, ErrServerError},
		{"poll timeout", &PollTimeoutError{UUID: "u", Elapsed: time.Minute}, ErrPollTimeout},
		{"analysis failed", &AnalysisFailedError{UUID: "u"}, ErrAnalysisFailed},
		{"wrapped", fmt.Errorf("analyze: %w", &PollTimeoutError{UUID: "u"}), ErrPollTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.ErrorIs(t, tt.err, tt.sentinel)
		})
	}
}

func TestErrorMessages(t *testing.T) {
	t.Parallel()

	assert.Equal(t,
		"mythx: GET /analyses/u: HTTP 404: not here",
		(&APIError{Method: "GET", Path: "/analyses/u", StatusCode: 404, Message: "not here"}).Error())

	assert.Equal(t,
		"mythx: login failed for 0xabc (HTTP 401)",
		(&AuthenticationError{Address: "0xabc", Op: "login", StatusCode: 401}).Error())

	assert.Equal(t,
		`mythx: analysis u still "In Progress" after 1m0s`,
		(&PollTimeoutError{UUID: "u", Elapsed: time.Minute, LastStatus: StatusInProgress}).Error())

	assert.Equal(t,
		"mythx: retrieving analysis u: boom",
		(&RetrievalError{UUID: "u", Err: errors.New("boom")}).Error())
}

func TestStatusCode(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("outer: %w", &APIError{StatusCode: 429, Err: ErrThrottled})

	assert.Equal(t, 429, statusCode(wrapped))
	assert.Zero(t, statusCode(errors.New("dial tcp")))
}

func TestCredentials_NeverExposePassword(t *testing.T) {
	t.Parallel()

	creds := Credentials{Address: "0xabc", Password: "hunter2"}

	assert.NotContains(t, creds.String(), "hunter2")
	assert.NotContains(t, fmt.Sprintf("%v", creds), "hunter2")
	assert.NotContains(t, creds.LogValue().String(), "hunter2")
	assert.Contains(t, creds.String(), "0xabc")
}
