// Package auth turns the session's bearer token into an AuthorizationContext
// and answers role questions against it. Decoding failures never escape: a
// token that cannot be read yields an unauthenticated context with no roles.
package auth

import (
	"context"
	"slices"
	"time"
)

// Roles recognised by the document management platform.
const (
	RoleAdministrator     = "administrator"
	RoleLegalOfficer      = "legal_officer"
	RoleComplianceOfficer = "compliance_officer"
	RoleDocumentUser      = "document_user"
)

// contextKey is a private type for context keys.
type contextKey int

const (
	authorizationContextKey contextKey = iota
)

// AuthorizationContext is the authorization view of one session, built once
// per token value. It is never mutated after construction.
type AuthorizationContext struct {
	Authenticated bool           `json:"authenticated"`
	Subject       string         `json:"subject,omitempty"`
	TenantID      string         `json:"tenant_id,omitempty"`
	Email         string         `json:"email,omitempty"`
	Name          string         `json:"name,omitempty"`
	Roles         []string       `json:"roles,omitempty"`
	ExpiresAt     *time.Time     `json:"expires_at,omitempty"`
	Claims        map[string]any `json:"-"`

	// Override is set when authorization enforcement is disabled for local
	// development. Every check succeeds while it is true.
	Override bool `json:"override,omitempty"`
}

// Anonymous returns the context of a signed-out session.
func Anonymous() *AuthorizationContext {
	return &AuthorizationContext{}
}

// IsAuthenticated reports whether a usable session exists.
func (ac *AuthorizationContext) IsAuthenticated() bool {
	if ac == nil {
		return false
	}
	return ac.Override || ac.Authenticated
}

// HasRole checks if the session has a specific role.
func (ac *AuthorizationContext) HasRole(role string) bool {
	if ac == nil {
		return false
	}
	if ac.Override {
		return true
	}
	if !ac.Authenticated || role == "" {
		return false
	}
	return slices.Contains(ac.Roles, role)
}

// HasAnyRole checks if the session has any of the specified roles.
func (ac *AuthorizationContext) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if ac.HasRole(role) {
			return true
		}
	}
	return false
}

// ExpiredAt reports whether the token's exp claim lies before now.
func (ac *AuthorizationContext) ExpiredAt(now time.Time) bool {
	if ac == nil || ac.ExpiresAt == nil {
		return false
	}
	return !now.Before(*ac.ExpiresAt)
}

// WithAuthorization adds an authorization context to ctx.
func WithAuthorization(ctx context.Context, ac *AuthorizationContext) context.Context {
	return context.WithValue(ctx, authorizationContextKey, ac)
}

// FromContext retrieves the authorization context from ctx. A context without
// one is treated as anonymous.
func FromContext(ctx context.Context) *AuthorizationContext {
	if ac, ok := ctx.Value(authorizationContextKey).(*AuthorizationContext); ok && ac != nil {
		return ac
	}
	return Anonymous()
}
