package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/txn2/dms-client/pkg/dmserr"
)

// Server error codes with a dedicated mapping.
const (
	CodeLegalHoldActive        = "LEGAL_HOLD_ACTIVE"
	CodeRetentionNotExpired    = "RETENTION_NOT_EXPIRED"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
	CodeValidationFailed       = "VALIDATION_FAILED"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// ErrorResponse is the server's error envelope.
type ErrorResponse struct {
	ErrorCode     string            `json:"errorCode"`
	Message       string            `json:"message"`
	Timestamp     string            `json:"timestamp,omitempty"`
	CorrelationID string            `json:"correlationId,omitempty"`
	FieldErrors   map[string]string `json:"fieldErrors,omitempty"`
}

// APIError is the decoded body of a failed call. It is wrapped inside a
// dmserr.Error so callers can still inspect the server's code.
type APIError struct {
	StatusCode int
	Response   ErrorResponse
}

// Error implements error.
func (e *APIError) Error() string {
	msg := e.Response.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Response.ErrorCode != "" {
		return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Response.ErrorCode, msg)
	}
	return fmt.Sprintf("%d: %s", e.StatusCode, msg)
}

// readError decodes a non-2xx response into a classified error.
func readError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if len(body) > 0 {
		if err := json.Unmarshal(body, &apiErr.Response); err != nil {
			apiErr.Response.Message = strings.TrimSpace(string(body))
		}
	}
	return classify(apiErr)
}

// classify maps a status code and server error code onto the taxonomy.
func classify(e *APIError) error {
	code := e.Response.ErrorCode
	msg := e.Response.Message

	switch {
	case code == CodeLegalHoldActive:
		return dmserr.Wrap(dmserr.KindPolicyViolation, dmserr.ReasonActiveLegalHold, e)
	case code == CodeRetentionNotExpired:
		return dmserr.Wrap(dmserr.KindPolicyViolation, dmserr.ReasonRetentionActive, e)
	case code == CodeConcurrentModification:
		return dmserr.Wrap(dmserr.KindConflict, dmserr.ReasonConcurrentChange, e)
	}

	switch s := e.StatusCode; {
	case s == http.StatusUnauthorized:
		return dmserr.Wrap(dmserr.KindAuthenticationMissing, dmserr.ReasonNoSession, e)
	case s == http.StatusForbidden:
		return dmserr.Wrap(dmserr.KindAuthorizationDenied, reasonOr(msg, dmserr.ReasonRoleRequired), e)
	case s == http.StatusNotFound:
		return dmserr.Wrap(dmserr.KindNotFound, reasonOr(msg, "not found"), e)
	case s == http.StatusConflict:
		return dmserr.Wrap(dmserr.KindConflict, reasonOr(msg, dmserr.ReasonConcurrentChange), e)
	case s == http.StatusBadRequest || s == http.StatusUnprocessableEntity:
		return dmserr.Wrap(dmserr.KindValidation, reasonOr(msg, "request rejected"), e)
	case s == http.StatusLocked:
		return dmserr.Wrap(dmserr.KindPolicyViolation, reasonOr(msg, dmserr.ReasonActiveLegalHold), e)
	case s == http.StatusTooManyRequests || s >= http.StatusInternalServerError:
		return dmserr.Wrap(dmserr.KindTransient, reasonOr(msg, http.StatusText(s)), e)
	default:
		return dmserr.Wrap(dmserr.KindValidation, reasonOr(msg, http.StatusText(s)), e)
	}
}

func reasonOr(msg, fallback string) string {
	if msg != "" {
		return msg
	}
	return fallback
}

// transportError classifies a failure to reach the server.
func transportError(method, path string, err error) error {
	return dmserr.Wrap(dmserr.KindTransient, "server unreachable", fmt.Errorf("%s %s: %w", method, path, err))
}
