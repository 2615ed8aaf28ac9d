// Package dmserr defines the error taxonomy shared by the document
// management client. Every failure surfaced to a caller carries a Kind and a
// stable, user-facing reason string so a UI can explain why an operation was
// refused.
package dmserr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	// KindAuthenticationMissing means no session exists.
	KindAuthenticationMissing Kind = "authentication_missing"

	// KindAuthorizationDenied means a session exists but lacks the role.
	KindAuthorizationDenied Kind = "authorization_denied"

	// KindPolicyViolation means a lifecycle rule rejected the operation.
	KindPolicyViolation Kind = "policy_violation"

	// KindConflict is a PolicyViolation raised by a concurrent modification.
	KindConflict Kind = "conflict"

	// KindNotFound means the entity does not exist (or no longer exists).
	KindNotFound Kind = "not_found"

	// KindValidation means the input was rejected before or by the server.
	KindValidation Kind = "validation"

	// KindTransient covers network failures and 5xx responses.
	KindTransient Kind = "transient_network_failure"

	// KindMalformedCredential means the token could not be decoded.
	// Callers treat it like KindAuthenticationMissing.
	KindMalformedCredential Kind = "malformed_credential"
)

// Reasons reported for lifecycle rejections.
const (
	ReasonActiveLegalHold   = "active legal hold prevents permanent deletion"
	ReasonNotSoftDeleted    = "document must be soft-deleted before permanent deletion"
	ReasonAlreadyDeleted    = "document is already deleted"
	ReasonNotDeleted        = "document is not deleted"
	ReasonDeletedNoVersion  = "new versions cannot be added to a deleted document"
	ReasonHardDeleted       = "document has been permanently deleted"
	ReasonSoftDeleted       = "document is soft-deleted"
	ReasonHoldReleased      = "legal hold already released"
	ReasonNoSession         = "sign in required"
	ReasonRoleRequired      = "role required"
	ReasonConcurrentChange  = "document was modified by another session"
	ReasonInvalidRetention  = "retention days must be between 0 and 36500"
	ReasonDocumentNotFound  = "document not found"
	ReasonLegalHoldNotFound = "legal hold not found"
	ReasonRetentionActive   = "retention period has not expired"
)

// Error is a classified failure.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

// New creates a classified error.
func New(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

// Wrap classifies an underlying error.
func Wrap(kind Kind, reason string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}

// Error implements error.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by Kind so that
// errors.Is(err, dmserr.New(dmserr.KindNotFound, "")) works for any reason.
// A Conflict also matches PolicyViolation.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	if t.Kind == e.Kind {
		return true
	}
	return t.Kind == KindPolicyViolation && e.Kind == KindConflict
}

// Sentinels for errors.Is comparisons.
var (
	ErrAuthenticationMissing = New(KindAuthenticationMissing, "")
	ErrAuthorizationDenied   = New(KindAuthorizationDenied, "")
	ErrPolicyViolation       = New(KindPolicyViolation, "")
	ErrConflict              = New(KindConflict, "")
	ErrNotFound              = New(KindNotFound, "")
	ErrValidation            = New(KindValidation, "")
	ErrTransient             = New(KindTransient, "")
	ErrMalformedCredential   = New(KindMalformedCredential, "")
)

// KindOf returns the Kind of err, or "" when err is not classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// ReasonOf returns the user-facing reason of err, falling back to err.Error().
func ReasonOf(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Reason != "" {
		return e.Reason
	}
	return err.Error()
}

// IsRetryable reports whether the caller may retry. Only transient failures
// qualify; policy violations are never retried.
func IsRetryable(err error) bool {
	return KindOf(err) == KindTransient
}
