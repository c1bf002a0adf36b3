package mythx

import (
	"encoding/json"
	"log/slog"
	"time"

	"golang.org/x/oauth2"
)

// Credentials identify a MythX user. The password is never logged and never
// persisted by this package.
type Credentials struct {
	Address  string
	Password string
}

// String redacts the password so credentials are safe in %v output.
func (c Credentials) String() string {
	return c.Address + ":[redacted]"
}

// LogValue implements slog.LogValuer.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(slog.String("address", c.Address))
}

// TokenPair is the JWT access/refresh pair issued on login and refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// IsZero reports whether no access token is held.
func (p TokenPair) IsZero() bool {
	return p.AccessToken == ""
}

// OAuth2Token converts the pair to the oauth2 token shape used by tokenfile.
func (p TokenPair) OAuth2Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		TokenType:    "Bearer",
	}
}

// TokenPairFromOAuth2 is the inverse of OAuth2Token. A nil token yields the
// zero pair.
func TokenPairFromOAuth2(tok *oauth2.Token) TokenPair {
	if tok == nil {
		return TokenPair{}
	}

	return TokenPair{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken}
}

// Status is the lifecycle state of an analysis job as reported by the API.
type Status string

// Known job statuses. The API may report others; they are treated as
// non-terminal.
const (
	StatusQueued     Status = "Queued"
	StatusInProgress Status = "In Progress"
	StatusFinished   Status = "Finished"
	StatusError      Status = "Error"
)

// Terminal reports whether no further polling is meaningful.
func (s Status) Terminal() bool {
	return s == StatusFinished || s == StatusError
}

// Failed reports whether the job ended unsuccessfully.
func (s Status) Failed() bool {
	return s == StatusError
}

// Analysis modes. Full analyses run far longer than quick ones.
const (
	ModeQuick = "quick"
	ModeFull  = "full"
)

// Submission is a caller-supplied analysis request. Data is required and is
// sent verbatim; Timeout and InitialDelay fall back to the client's policy.
type Submission struct {
	Data          map[string]any
	Timeout       time.Duration
	InitialDelay  time.Duration
	Debug         int
	NoCacheLookup bool

	// Submitted, if set, is called once the service has accepted the job and
	// before any polling, so the uuid can be recorded even if the caller
	// later gives up.
	Submitted func(*Analysis)
}

// mode returns the analysis mode requested in Data, defaulting to quick.
func (s *Submission) mode() string {
	if m, ok := s.Data["analysisMode"].(string); ok && m != "" {
		return m
	}

	return ModeQuick
}

// Analysis is a job status record. The submission endpoint returns the same
// shape, so it doubles as the submission response.
type Analysis struct {
	UUID                 string `json:"uuid"`
	Status               Status `json:"status"`
	APIVersion           string `json:"apiVersion,omitempty"`
	ClientToolName       string `json:"clientToolName,omitempty"`
	SubmittedAt          string `json:"submittedAt,omitempty"`
	SubmittedBy          string `json:"submittedBy,omitempty"`
	RunTime              int64  `json:"runTime,omitempty"`
	Error                string `json:"error,omitempty"`
	UpstreamAnalysisMode string `json:"analysisMode,omitempty"`
}

// Issues is the list of issue reports for a job. The report schema belongs to
// the service, so each entry is kept as raw JSON.
type Issues []json.RawMessage

// Result is the outcome of a completed analysis.
type Result struct {
	UUID   string
	Issues Issues
}

// StatusResult is Result plus wall-clock duration and the final status record.
type StatusResult struct {
	Elapsed time.Duration
	Issues  Issues
	Status  *Analysis
}

// AnalysesQuery filters the analysis history. DateFrom is required.
type AnalysesQuery struct {
	DateFrom time.Time
	DateTo   time.Time
	Offset   int
}

// AnalysisList is one page of analysis history.
type AnalysisList struct {
	Analyses []Analysis `json:"analyses"`
	Total    int        `json:"total"`
}
