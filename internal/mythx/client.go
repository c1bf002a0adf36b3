package mythx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// DefaultBaseURL is the public MythX endpoint.
const DefaultBaseURL = "https://api.mythx.io"

// defaultClientToolName identifies this client in submissions.
const defaultClientToolName = "mythx-go"

// API paths, relative to the /v1 prefix.
const (
	pathAnalyses = "/analyses"
	pathVersion  = "/version"
	pathOpenAPI  = "/openapi.yaml"
)

// Options configures a Client. Every field is optional.
type Options struct {
	// BaseURL defaults to DefaultBaseURL. It must be absolute with a host.
	BaseURL string

	// HTTPClient is used by the default transport. Ignored when Transport is set.
	HTTPClient *http.Client

	// Transport overrides the HTTP transport.
	Transport Transport

	Logger         *slog.Logger
	UserAgent      string
	ClientToolName string

	// Tokens seeds the session with a previously issued pair so that a
	// persisted session can be resumed without a fresh login.
	Tokens TokenPair

	// OnTokenChange is called after every login and refresh with the new
	// pair, e.g. to persist it.
	OnTokenChange func(TokenPair)

	Policy PollPolicy
}

// Client is a MythX API session. It logs in lazily, refreshes the access
// token transparently on 401, and polls long-running analyses. A Client is
// safe for concurrent use.
type Client struct {
	baseURL        *url.URL
	transport      Transport
	session        *session
	policy         PollPolicy
	clientToolName string
	logger         *slog.Logger

	// nowFunc and sleepFunc drive polling. Tests override both to run the
	// poll schedule on a fake clock.
	nowFunc   func() time.Time
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// NewClient validates creds and opts and returns a Client. It makes no
// network calls.
func NewClient(creds Credentials, opts Options) (*Client, error) {
	if creds.Address == "" {
		return nil, &ConfigurationError{Field: "address", Reason: "must not be empty"}
	}

	if creds.Password == "" {
		return nil, &ConfigurationError{Field: "password", Reason: "must not be empty"}
	}

	base, err := parseBaseURL(opts.BaseURL)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	transport := opts.Transport
	if transport == nil {
		transport = NewHTTPTransport(base, opts.HTTPClient, opts.UserAgent, logger)
	}

	toolName := opts.ClientToolName
	if toolName == "" {
		toolName = defaultClientToolName
	}

	c := &Client{
		baseURL:        base,
		transport:      transport,
		policy:         opts.Policy.withDefaults(),
		clientToolName: toolName,
		logger:         logger,
		nowFunc:        time.Now,
		sleepFunc:      timeSleep,
	}

	c.session = &session{
		creds:    creds,
		auth:     &authenticator{transport: transport, logger: logger},
		logger:   logger,
		onChange: opts.OnTokenChange,
		tokens:   opts.Tokens,
	}

	return c, nil
}

// NewPublicTransport returns the transport NewClient would build from opts,
// for the endpoints that need no credentials.
func NewPublicTransport(opts Options) (Transport, error) {
	base, err := parseBaseURL(opts.BaseURL)
	if err != nil {
		return nil, err
	}

	if opts.Transport != nil {
		return opts.Transport, nil
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return NewHTTPTransport(base, opts.HTTPClient, opts.UserAgent, logger), nil
}

// parseBaseURL validates raw as an absolute http(s) URL with a host.
func parseBaseURL(raw string) (*url.URL, error) {
	if raw == "" {
		raw = DefaultBaseURL
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, &ConfigurationError{Field: "base_url", Reason: err.Error()}
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, &ConfigurationError{Field: "base_url", Reason: fmt.Sprintf("scheme must be http or https, got %q", u.Scheme)}
	}

	if u.Hostname() == "" {
		return nil, &ConfigurationError{Field: "base_url", Reason: "host is required"}
	}

	return u, nil
}

// BaseURL returns the service root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Tokens returns a snapshot of the current token pair (zero before login).
func (c *Client) Tokens() TokenPair {
	return c.session.current()
}

// Login authenticates if no token pair is held. It is a no-op otherwise.
func (c *Client) Login(ctx context.Context) error {
	_, err := c.session.ensureLogin(ctx)

	return err
}

// Analyze submits sub and returns its issues. A cached result is returned
// directly; otherwise the job is polled until it finishes, fails, or its
// timeout passes.
func (c *Client) Analyze(ctx context.Context, sub *Submission) (*Result, error) {
	if sub == nil || len(sub.Data) == 0 {
		return nil, &InvalidRequestError{Field: "data", Reason: "submission data is required"}
	}

	if err := c.Login(ctx); err != nil {
		return nil, err
	}

	start := c.nowFunc()

	submitted, err := c.submit(ctx, sub)
	if err != nil {
		return nil, err
	}

	c.logger.Info("analysis submitted",
		slog.String("uuid", submitted.UUID),
		slog.String("status", string(submitted.Status)),
		slog.String("mode", sub.mode()),
	)

	if sub.Submitted != nil {
		sub.Submitted(submitted)
	}

	if submitted.Status == StatusFinished {
		return c.fetchResult(ctx, submitted.UUID)
	}

	return c.awaitResult(ctx, pollJob{
		uuid:         submitted.UUID,
		start:        start,
		timeout:      c.policy.timeoutFor(sub),
		initialDelay: c.policy.initialDelayFor(sub),
		debug:        sub.Debug,
	})
}

// AnalyzeWithStatus runs Analyze and also returns the elapsed wall-clock
// time and the job's final status record.
func (c *Client) AnalyzeWithStatus(ctx context.Context, sub *Submission) (*StatusResult, error) {
	start := c.nowFunc()

	res, err := c.Analyze(ctx, sub)
	if err != nil {
		return nil, err
	}

	elapsed := c.nowFunc().Sub(start)

	status, err := c.Status(ctx, res.UUID)
	if err != nil {
		return nil, err
	}

	return &StatusResult{Elapsed: elapsed, Issues: res.Issues, Status: status}, nil
}

// Resume polls an already-submitted job from now for at most timeout (the
// quick-mode default when zero) and returns its issues. It is the follow-up
// to a PollTimeoutError.
func (c *Client) Resume(ctx context.Context, uuid string, timeout time.Duration) (*Result, error) {
	if uuid == "" {
		return nil, &InvalidRequestError{Field: "uuid", Reason: "must not be empty"}
	}

	if timeout <= 0 {
		timeout = c.policy.QuickTimeout
	}

	return c.awaitResult(ctx, pollJob{uuid: uuid, start: c.nowFunc(), timeout: timeout})
}

// awaitResult polls job to a terminal state, then fetches its issues.
func (c *Client) awaitResult(ctx context.Context, job pollJob) (*Result, error) {
	p := &poller{
		policy:    c.policy,
		fetch:     c.Status,
		nowFunc:   c.nowFunc,
		sleepFunc: c.sleepFunc,
		logger:    c.logger,
	}

	final, err := p.run(ctx, job)
	if err != nil {
		return nil, err
	}

	if final.Status.Failed() {
		return nil, &AnalysisFailedError{UUID: final.UUID, Message: final.Error}
	}

	return c.fetchResult(ctx, job.uuid)
}

func (c *Client) fetchResult(ctx context.Context, uuid string) (*Result, error) {
	issues, err := c.Issues(ctx, uuid)
	if err != nil {
		return nil, err
	}

	return &Result{UUID: uuid, Issues: issues}, nil
}

// submitRequest is the body of POST /analyses.
type submitRequest struct {
	ClientToolName string         `json:"clientToolName"`
	NoCacheLookup  bool           `json:"noCacheLookup,omitempty"`
	Data           map[string]any `json:"data"`
}

func (c *Client) submit(ctx context.Context, sub *Submission) (*Analysis, error) {
	resp, err := c.authorized(ctx, &Request{
		Method: http.MethodPost,
		Path:   pathAnalyses,
		Body: submitRequest{
			ClientToolName: c.clientToolName,
			NoCacheLookup:  sub.NoCacheLookup,
			Data:           sub.Data,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("mythx: submitting analysis: %w", err)
	}

	var a Analysis
	if err := resp.decode(&a); err != nil {
		return nil, err
	}

	if a.UUID == "" {
		return nil, errors.New("mythx: submission response missing uuid")
	}

	return &a, nil
}

// Status returns the status record of the job with the given uuid.
func (c *Client) Status(ctx context.Context, uuid string) (*Analysis, error) {
	resp, err := c.authorized(ctx, &Request{
		Method: http.MethodGet,
		Path:   analysisPath(uuid),
	})
	if err != nil {
		return nil, retrievalFailure(uuid, err)
	}

	var a Analysis
	if err := resp.decode(&a); err != nil {
		return nil, &RetrievalError{UUID: uuid, StatusCode: resp.StatusCode, Err: err}
	}

	return &a, nil
}

// Issues returns the issue reports of the job with the given uuid.
func (c *Client) Issues(ctx context.Context, uuid string) (Issues, error) {
	resp, err := c.authorized(ctx, &Request{
		Method: http.MethodGet,
		Path:   analysisPath(uuid) + "/issues",
	})
	if err != nil {
		return nil, retrievalFailure(uuid, err)
	}

	var issues Issues
	if err := resp.decode(&issues); err != nil {
		return nil, &RetrievalError{UUID: uuid, StatusCode: resp.StatusCode, Err: err}
	}

	return issues, nil
}

// Analyses lists past analyses matching q. DateFrom is required.
func (c *Client) Analyses(ctx context.Context, q AnalysesQuery) (*AnalysisList, error) {
	if q.DateFrom.IsZero() {
		return nil, &InvalidRequestError{Field: "dateFrom", Reason: "is required"}
	}

	query := url.Values{}
	query.Set("dateFrom", q.DateFrom.UTC().Format(time.RFC3339))

	if !q.DateTo.IsZero() {
		query.Set("dateTo", q.DateTo.UTC().Format(time.RFC3339))
	}

	if q.Offset > 0 {
		query.Set("offset", strconv.Itoa(q.Offset))
	}

	return c.listAnalyses(ctx, query)
}

// ListAnalyses returns the most recent page of analyses.
func (c *Client) ListAnalyses(ctx context.Context) (*AnalysisList, error) {
	return c.listAnalyses(ctx, nil)
}

func (c *Client) listAnalyses(ctx context.Context, query url.Values) (*AnalysisList, error) {
	resp, err := c.authorized(ctx, &Request{
		Method: http.MethodGet,
		Path:   pathAnalyses,
		Query:  query,
	})
	if err != nil {
		return nil, fmt.Errorf("mythx: listing analyses: %w", err)
	}

	var list AnalysisList
	if err := resp.decode(&list); err != nil {
		return nil, err
	}

	return &list, nil
}

// Version returns the service component versions. No login is needed.
func (c *Client) Version(ctx context.Context) (map[string]string, error) {
	return ServiceVersion(ctx, c.transport)
}

// OpenAPISpec returns the service's machine-readable API description. No
// login is needed.
func (c *Client) OpenAPISpec(ctx context.Context) ([]byte, error) {
	return ServiceAPISpec(ctx, c.transport)
}

// ServiceVersion is Client.Version for callers that hold no credentials.
func ServiceVersion(ctx context.Context, t Transport) (map[string]string, error) {
	resp, err := t.Do(ctx, &Request{Method: http.MethodGet, Path: pathVersion})
	if err != nil {
		return nil, fmt.Errorf("mythx: fetching version: %w", err)
	}

	versions := make(map[string]string)
	if err := resp.decode(&versions); err != nil {
		return nil, err
	}

	return versions, nil
}

// ServiceAPISpec is Client.OpenAPISpec for callers that hold no credentials.
func ServiceAPISpec(ctx context.Context, t Transport) ([]byte, error) {
	resp, err := t.Do(ctx, &Request{Method: http.MethodGet, Path: pathOpenAPI})
	if err != nil {
		return nil, fmt.Errorf("mythx: fetching API spec: %w", err)
	}

	return resp.Body, nil
}

// authorized sends req through the session's refresh-and-retry executor.
// req is copied per attempt so the retry carries the new token.
func (c *Client) authorized(ctx context.Context, req *Request) (*Response, error) {
	return c.session.do(ctx, func(ctx context.Context, token string) (*Response, error) {
		attempt := *req
		attempt.Token = token

		return c.transport.Do(ctx, &attempt)
	})
}

func analysisPath(uuid string) string {
	return pathAnalyses + "/" + url.PathEscape(uuid)
}

// retrievalFailure maps a status/issues failure onto the error taxonomy.
// Authentication failures and cancellation pass through unchanged.
func retrievalFailure(uuid string, err error) error {
	var authErr *AuthenticationError
	if errors.As(err, &authErr) {
		return err
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	if errors.Is(err, ErrNotFound) {
		return &NotFoundError{UUID: uuid, Err: err}
	}

	return &RetrievalError{UUID: uuid, StatusCode: statusCode(err), Err: err}
}
