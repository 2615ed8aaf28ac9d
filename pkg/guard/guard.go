// Package guard decides whether a navigation may proceed. Guards are pure:
// they read an AuthorizationContext and never change session state.
//
// Policy: a missing session redirects to PathUnauthorized; a session lacking
// the destination's role redirects to PathForbidden. Both outcomes are
// redirects so the caller can always explain the refusal.
package guard

import (
	"github.com/txn2/dms-client/pkg/auth"
	"github.com/txn2/dms-client/pkg/dmserr"
)

// Redirect targets.
const (
	PathUnauthorized = "unauthorized"
	PathForbidden    = "forbidden"
)

// Outcome is the terminal state of a guard evaluation.
type Outcome string

const (
	// Allowed means the navigation proceeds.
	Allowed Outcome = "allowed"

	// Redirected means the navigation is replaced by Decision.Target.
	Redirected Outcome = "redirected"
)

// Destination is a navigation target.
type Destination struct {
	// Path identifies the view, e.g. "admin/retention".
	Path string

	// RequiredRole is the role the session must hold; empty means any
	// authenticated session.
	RequiredRole string

	// Public destinations skip the session check.
	Public bool
}

// Decision is the result of evaluating guards for one navigation.
type Decision struct {
	Outcome Outcome
	Target  string
	Kind    dmserr.Kind
	Reason  string
}

// Allowed reports whether the navigation may proceed.
func (d Decision) Allowed() bool {
	return d.Outcome == Allowed
}

// Err converts a redirect into a classified error; nil when allowed.
func (d Decision) Err() error {
	if d.Allowed() {
		return nil
	}
	return dmserr.New(d.Kind, d.Reason)
}

// Guard evaluates one check. It returns a redirect Decision to stop the
// chain, or ok=true to continue.
type Guard func(ac *auth.AuthorizationContext, dest Destination) (Decision, bool)

// RequireSession redirects to PathUnauthorized when no session exists.
func RequireSession(ac *auth.AuthorizationContext, dest Destination) (Decision, bool) {
	if dest.Public || ac.IsAuthenticated() {
		return Decision{}, true
	}
	return Decision{
		Outcome: Redirected,
		Target:  PathUnauthorized,
		Kind:    dmserr.KindAuthenticationMissing,
		Reason:  dmserr.ReasonNoSession,
	}, false
}

// RequireRole redirects to PathForbidden when the destination declares a
// role the session lacks.
func RequireRole(ac *auth.AuthorizationContext, dest Destination) (Decision, bool) {
	if dest.RequiredRole == "" || ac.HasRole(dest.RequiredRole) {
		return Decision{}, true
	}
	return Decision{
		Outcome: Redirected,
		Target:  PathForbidden,
		Kind:    dmserr.KindAuthorizationDenied,
		Reason:  dmserr.ReasonRoleRequired + ": " + dest.RequiredRole,
	}, false
}

// Chain composes guards; the first redirect wins.
func Chain(guards ...Guard) Guard {
	return func(ac *auth.AuthorizationContext, dest Destination) (Decision, bool) {
		for _, g := range guards {
			if d, ok := g(ac, dest); !ok {
				return d, false
			}
		}
		return Decision{}, true
	}
}

// Default is RequireSession followed by RequireRole.
var Default = Chain(RequireSession, RequireRole)

// Evaluate runs g for dest and returns the terminal Decision.
func Evaluate(g Guard, ac *auth.AuthorizationContext, dest Destination) Decision {
	if d, ok := g(ac, dest); !ok {
		return d
	}
	return Decision{Outcome: Allowed, Target: dest.Path}
}
