package guard

import (
	"strings"

	"github.com/txn2/dms-client/pkg/auth"
)

// PathDefault is where empty and unknown paths land.
const PathDefault = "documents"

// DefaultRoutes is the platform's navigation map. Patterns use ":name" for a
// single path segment.
func DefaultRoutes() []Destination {
	return []Destination{
		{Path: PathUnauthorized, Public: true},
		{Path: PathForbidden, Public: true},
		{Path: "documents"},
		{Path: "documents/upload"},
		{Path: "documents/:id"},
		{Path: "documents/:id/preview"},
		{Path: "search"},
		{Path: "admin/document-types", RequiredRole: auth.RoleAdministrator},
		{Path: "admin/groups", RequiredRole: auth.RoleAdministrator},
		{Path: "admin/retention", RequiredRole: auth.RoleAdministrator},
		{Path: "admin/audit-logs", RequiredRole: auth.RoleComplianceOfficer},
		{Path: "legal/holds", RequiredRole: auth.RoleLegalOfficer},
		{Path: "governance/version-history", RequiredRole: auth.RoleComplianceOfficer},
		{Path: "governance/traceability", RequiredRole: auth.RoleComplianceOfficer},
		{Path: "governance/retrieval-audit", RequiredRole: auth.RoleComplianceOfficer},
	}
}

// Authorizer yields the current AuthorizationContext. auth.Resolver
// implements it.
type Authorizer interface {
	Current() *auth.AuthorizationContext
}

// Navigator resolves paths against a route table and applies guards.
type Navigator struct {
	routes []Destination
	guard  Guard
	authz  Authorizer
}

// NewNavigator creates a Navigator. A nil routes slice uses DefaultRoutes.
func NewNavigator(authz Authorizer, routes []Destination) *Navigator {
	if routes == nil {
		routes = DefaultRoutes()
	}
	return &Navigator{routes: routes, guard: Default, authz: authz}
}

// Navigate evaluates a navigation to path. Empty or unknown paths are
// rewritten to PathDefault before guards run.
func (n *Navigator) Navigate(path string) Decision {
	dest, ok := n.Match(path)
	if !ok {
		dest, _ = n.Match(PathDefault)
	}
	d := Evaluate(n.guard, n.authz.Current(), dest)
	if d.Allowed() {
		d.Target = normalize(path)
		if !ok {
			d.Target = PathDefault
		}
	}
	return d
}

// Match finds the destination for path.
func (n *Navigator) Match(path string) (Destination, bool) {
	path = normalize(path)
	if path == "" {
		return Destination{}, false
	}
	for _, dest := range n.routes {
		if matchPattern(dest.Path, path) {
			return dest, true
		}
	}
	return Destination{}, false
}

func normalize(path string) string {
	return strings.Trim(strings.TrimSpace(path), "/")
}

func matchPattern(pattern, path string) bool {
	pp := strings.Split(pattern, "/")
	sp := strings.Split(path, "/")
	if len(pp) != len(sp) {
		return false
	}
	for i := range pp {
		if strings.HasPrefix(pp[i], ":") {
			if sp[i] == "" {
				return false
			}
			continue
		}
		if pp[i] != sp[i] {
			return false
		}
	}
	return true
}
