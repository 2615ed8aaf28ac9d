// Package credential holds the bearer token for the current session. A Store
// persists the raw token; the Holder is the single writer that drives the
// login, refresh and logout lifecycle and hands readers immutable snapshots.
package credential

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Store persists the current bearer token.
type Store interface {
	// Get returns the stored token, or "" when none is stored.
	Get(ctx context.Context) (string, error)

	// Set replaces the stored token.
	Set(ctx context.Context, token string) error

	// Clear removes the stored token. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
}

// Snapshot is an immutable view of the credential at one point in time.
type Snapshot struct {
	// Token is the raw bearer token; empty when signed out.
	Token string

	// Version increments on every write so readers can detect staleness.
	Version uint64

	// UpdatedAt is when the Holder last wrote the token.
	UpdatedAt time.Time
}

// Present reports whether the snapshot carries a token.
func (s Snapshot) Present() bool {
	return s.Token != ""
}

// Fingerprint returns a short, non-reversible identifier of the token that is
// safe to log.
func (s Snapshot) Fingerprint() string {
	return Fingerprint(s.Token)
}

// Fingerprint returns the first 12 hex characters of the token's SHA-256.
func Fingerprint(token string) string {
	if token == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])[:12]
}
