package mythx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

const (
	apiPrefix        = "/v1"
	defaultUserAgent = "mythx-go/0.1"

	// maxResponseBytes bounds how much of a response body is read into memory.
	// Issue reports for large projects run to a few MiB.
	maxResponseBytes = 32 << 20

	// maxErrorMessage caps the server message kept on APIError.
	maxErrorMessage = 512
)

// Request is a single call against the API. Path is relative to the /v1
// prefix. Token, when set, is sent as a bearer credential.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	Token  string
}

// Response is a successful (2xx) reply.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// decode unmarshals the JSON body into v.
func (r *Response) decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("mythx: decoding response: %w", err)
	}

	return nil
}

// Transport sends one request and returns its response. Implementations must
// return an *APIError for non-2xx replies so that callers can classify the
// failure; any other error is a transport failure with no status code.
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// HTTPTransport is the net/http implementation of Transport. It performs no
// retries: every failure is returned to the caller.
type HTTPTransport struct {
	baseURL    *url.URL
	httpClient *http.Client
	userAgent  string
	logger     *slog.Logger
}

// NewHTTPTransport creates a transport rooted at baseURL (scheme and host,
// optionally a path prefix; the /v1 API prefix is appended).
func NewHTTPTransport(baseURL *url.URL, httpClient *http.Client, userAgent string, logger *slog.Logger) *HTTPTransport {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	return &HTTPTransport{
		baseURL:    baseURL,
		httpClient: httpClient,
		userAgent:  userAgent,
		logger:     logger,
	}
}

// Do executes req. For non-nil bodies, Content-Type is set to
// application/json.
func (t *HTTPTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	httpReq, err := t.newRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("mythx: %s %s canceled: %w", req.Method, req.Path, ctx.Err())
		}

		return nil, fmt.Errorf("mythx: %s %s: %w", req.Method, req.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("mythx: reading %s %s response: %w", req.Method, req.Path, err)
	}

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		t.logger.Debug("request succeeded",
			slog.String("method", req.Method),
			slog.String("path", req.Path),
			slog.Int("status", resp.StatusCode),
			slog.Int("bytes", len(body)),
		)

		return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
	}

	t.logger.Debug("request failed",
		slog.String("method", req.Method),
		slog.String("path", req.Path),
		slog.Int("status", resp.StatusCode),
	)

	return nil, &APIError{
		Method:     req.Method,
		Path:       req.Path,
		StatusCode: resp.StatusCode,
		Message:    errorMessage(body),
		Err:        classifyStatus(resp.StatusCode),
	}
}

// newRequest builds the *http.Request for req.
func (t *HTTPTransport) newRequest(ctx context.Context, req *Request) (*http.Request, error) {
	u := t.baseURL.JoinPath(apiPrefix, req.Path)
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}

	var body io.Reader

	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("mythx: encoding %s %s body: %w", req.Method, req.Path, err)
		}

		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("mythx: creating request: %w", err)
	}

	httpReq.Header.Set("User-Agent", t.userAgent)
	httpReq.Header.Set("Accept", "application/json")

	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	if req.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Token)
	}

	return httpReq, nil
}

// errorMessage extracts a human-readable message from an error body. The API
// answers {"error": "..."} or {"message": "..."}; anything else is kept as
// trimmed text.
func errorMessage(body []byte) string {
	var parsed struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}

	if json.Unmarshal(body, &parsed) == nil {
		switch {
		case parsed.Error != "":
			return parsed.Error
		case parsed.Message != "":
			return parsed.Message
		}
	}

	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrorMessage {
		// Drop a rune split by the byte cut.
		msg = strings.ToValidUTF8(msg[:maxErrorMessage], "") + "..."
	}

	return msg
}
