package client

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/txn2/dms-client/pkg/auth"
)

// CorrelationHeader carries the per-request correlation id.
const CorrelationHeader = "X-Correlation-ID"

// Authorizer is an http.RoundTripper that attaches the current bearer token
// to every outbound request, along with a correlation id and the user agent.
// A request made while signed out is forwarded unmodified; a 401 is returned
// to the caller as-is.
type Authorizer struct {
	// Source yields the credential snapshot read once per request.
	Source auth.TokenSource

	// Next performs the request. Defaults to http.DefaultTransport.
	Next http.RoundTripper

	// UserAgent is set on authenticated requests when non-empty.
	UserAgent string
}

// RoundTrip implements http.RoundTripper.
func (a *Authorizer) RoundTrip(req *http.Request) (*http.Response, error) {
	next := a.Next
	if next == nil {
		next = http.DefaultTransport
	}

	out := req
	snap := a.Source.Snapshot()
	if snap.Present() {
		out = req.Clone(req.Context())
		out.Header.Set("Authorization", "Bearer "+snap.Token)
		if a.UserAgent != "" && out.Header.Get("User-Agent") == "" {
			out.Header.Set("User-Agent", a.UserAgent)
		}
		if out.Header.Get(CorrelationHeader) == "" {
			out.Header.Set(CorrelationHeader, uuid.NewString())
		}
	}
	correlationID := out.Header.Get(CorrelationHeader)

	start := time.Now()
	resp, err := next.RoundTrip(out)
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	slog.Debug("dms request",
		"method", out.Method,
		"path", out.URL.Path,
		"status", status,
		"correlation_id", correlationID,
		"credential", snap.Fingerprint(),
		"duration", time.Since(start),
		"error", err,
	)
	return resp, err //nolint:wrapcheck // RoundTripper must return transport errors unwrapped
}

// Verify interface compliance.
var _ http.RoundTripper = (*Authorizer)(nil)
