package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/dms-client/pkg/auth"
	"github.com/txn2/dms-client/pkg/dmserr"
)

type fixedAuthorizer struct{ ac *auth.AuthorizationContext }

func (f fixedAuthorizer) Current() *auth.AuthorizationContext { return f.ac }

func session(roles ...string) *auth.AuthorizationContext {
	return &auth.AuthorizationContext{Authenticated: true, Roles: roles}
}

func TestEvaluate(t *testing.T) {
	adminDest := Destination{Path: "admin/retention", RequiredRole: auth.RoleAdministrator}
	openDest := Destination{Path: "documents"}

	tests := []struct {
		name    string
		ac      *auth.AuthorizationContext
		dest    Destination
		outcome Outcome
		target  string
		kind    dmserr.Kind
	}{
		{"no session", auth.Anonymous(), openDest, Redirected, PathUnauthorized, dmserr.KindAuthenticationMissing},
		{"no session on privileged view", auth.Anonymous(), adminDest, Redirected, PathUnauthorized, dmserr.KindAuthenticationMissing},
		{"session without role", session(auth.RoleLegalOfficer), adminDest, Redirected, PathForbidden, dmserr.KindAuthorizationDenied},
		{"session with role", session(auth.RoleAdministrator), adminDest, Allowed, "admin/retention", ""},
		{"session on open view", session(), openDest, Allowed, "documents", ""},
		{"public view", auth.Anonymous(), Destination{Path: PathUnauthorized, Public: true}, Allowed, PathUnauthorized, ""},
		{"dev override", &auth.AuthorizationContext{Override: true}, adminDest, Allowed, "admin/retention", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Evaluate(Default, tt.ac, tt.dest)
			assert.Equal(t, tt.outcome, d.Outcome)
			assert.Equal(t, tt.target, d.Target)
			assert.Equal(t, tt.kind, d.Kind)
			if d.Allowed() {
				assert.NoError(t, d.Err())
			} else {
				assert.Equal(t, tt.kind, dmserr.KindOf(d.Err()))
				assert.NotEmpty(t, d.Reason)
			}
		})
	}
}

func TestEvaluate_DoesNotMutateContext(t *testing.T) {
	ac := session(auth.RoleLegalOfficer)
	before := *ac
	_ = Evaluate(Default, ac, Destination{Path: "admin/groups", RequiredRole: auth.RoleAdministrator})
	assert.Equal(t, before, *ac)
}

func TestChain_FirstRedirectWins(t *testing.T) {
	calls := 0
	counting := func(_ *auth.AuthorizationContext, _ Destination) (Decision, bool) {
		calls++
		return Decision{}, true
	}

	g := Chain(RequireSession, counting)
	d := Evaluate(g, auth.Anonymous(), Destination{Path: "documents"})
	assert.Equal(t, Redirected, d.Outcome)
	assert.Zero(t, calls)

	d = Evaluate(g, session(), Destination{Path: "documents"})
	assert.True(t, d.Allowed())
	assert.Equal(t, 1, calls)
}

func TestNavigator(t *testing.T) {
	tests := []struct {
		name   string
		ac     *auth.AuthorizationContext
		path   string
		target string
		ok     bool
	}{
		{"document detail", session(), "/documents/123/", "documents/123", true},
		{"upload beats :id", session(), "documents/upload", "documents/upload", true},
		{"preview", session(), "documents/abc/preview", "documents/abc/preview", true},
		{"unknown path falls back", session(), "nowhere/at/all", PathDefault, true},
		{"empty path falls back", session(), "", PathDefault, true},
		{"legal holds need legal officer", session(auth.RoleAdministrator), "legal/holds", PathForbidden, false},
		{"audit logs for compliance", session(auth.RoleComplianceOfficer), "admin/audit-logs", "admin/audit-logs", true},
		{"audit logs not for admin", session(auth.RoleAdministrator), "admin/audit-logs", PathForbidden, false},
		{"governance", session(auth.RoleComplianceOfficer), "governance/traceability", "governance/traceability", true},
		{"unauthorized page is public", auth.Anonymous(), "unauthorized", PathUnauthorized, true},
		{"anonymous search", auth.Anonymous(), "search", PathUnauthorized, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewNavigator(fixedAuthorizer{ac: tt.ac}, nil)
			d := n.Navigate(tt.path)
			assert.Equal(t, tt.ok, d.Allowed())
			assert.Equal(t, tt.target, d.Target)
		})
	}
}

func TestNavigator_Match(t *testing.T) {
	n := NewNavigator(fixedAuthorizer{ac: session()}, nil)

	dest, ok := n.Match("admin/groups")
	require.True(t, ok)
	assert.Equal(t, auth.RoleAdministrator, dest.RequiredRole)

	_, ok = n.Match("documents//preview")
	assert.False(t, ok, "empty :id segment does not match")
}
