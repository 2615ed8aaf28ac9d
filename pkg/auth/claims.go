package auth

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/txn2/dms-client/pkg/dmserr"
)

// ClaimsExtractor extracts values from token claims.
type ClaimsExtractor struct {
	// RoleClaimPath is the dot-separated path to roles in claims.
	// e.g., "roles" or "realm_access.roles"
	RoleClaimPath string

	// RolePrefix filters roles to those starting with this prefix.
	RolePrefix string

	// TenantClaimPath is the path to the tenant identifier.
	TenantClaimPath string

	// EmailClaimPath is the path to the email claim.
	EmailClaimPath string

	// NameClaimPath is the path to the name claim.
	NameClaimPath string
}

// DefaultClaimsExtractor returns an extractor with common defaults.
func DefaultClaimsExtractor() *ClaimsExtractor {
	return &ClaimsExtractor{
		RoleClaimPath:   "roles",
		TenantClaimPath: "tenant_id",
		EmailClaimPath:  "email",
		NameClaimPath:   "name",
	}
}

// DecodeClaims decodes the payload segment of a bearer token. The signature
// is not verified: the server is the authority, the client only reads the
// claims to shape navigation.
func DecodeClaims(token string) (jwt.MapClaims, error) {
	parts := strings.Split(token, ".")
	if len(parts) < 2 {
		return nil, dmserr.New(dmserr.KindMalformedCredential, "token has no payload segment")
	}

	payload, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return nil, dmserr.Wrap(dmserr.KindMalformedCredential, "decoding payload", err)
	}

	var claims jwt.MapClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, dmserr.Wrap(dmserr.KindMalformedCredential, "parsing claims", err)
	}
	if claims == nil {
		return nil, dmserr.New(dmserr.KindMalformedCredential, "claims are not an object")
	}
	return claims, nil
}

// Extract builds an authenticated AuthorizationContext from decoded claims.
func (e *ClaimsExtractor) Extract(claims jwt.MapClaims) *AuthorizationContext {
	ac := &AuthorizationContext{
		Authenticated: true,
		Claims:        claims,
	}

	if sub, err := claims.GetSubject(); err == nil {
		ac.Subject = sub
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		t := exp.Time
		ac.ExpiresAt = &t
	}

	ac.TenantID = e.getStringValue(claims, e.TenantClaimPath)
	ac.Email = e.getStringValue(claims, e.EmailClaimPath)
	ac.Name = e.getStringValue(claims, e.NameClaimPath)

	if e.RoleClaimPath != "" {
		roles := e.getStringSlice(claims, e.RoleClaimPath)
		if e.RolePrefix != "" {
			roles = filterByPrefix(roles, e.RolePrefix)
		}
		ac.Roles = roles
	}

	return ac
}

// getStringValue gets a string value at a dot-separated path.
func (e *ClaimsExtractor) getStringValue(claims map[string]any, path string) string {
	value := e.getValue(claims, path)
	if s, ok := value.(string); ok {
		return s
	}
	return ""
}

// getStringSlice gets a string slice at a dot-separated path. Non-string
// entries are skipped.
func (e *ClaimsExtractor) getStringSlice(claims map[string]any, path string) []string {
	value := e.getValue(claims, path)
	if arr, ok := value.([]any); ok {
		result := make([]string, 0, len(arr))
		for _, v := range arr {
			if s, ok := v.(string); ok {
				result = append(result, s)
			}
		}
		return result
	}
	if arr, ok := value.([]string); ok {
		return arr
	}
	return nil
}

// getValue gets a value at a dot-separated path.
func (*ClaimsExtractor) getValue(claims map[string]any, path string) any {
	if path == "" {
		return nil
	}

	var current any = claims
	for part := range strings.SplitSeq(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = m[part]
	}
	return current
}

// filterByPrefix filters strings to those starting with prefix.
func filterByPrefix(items []string, prefix string) []string {
	result := make([]string, 0, len(items))
	for _, item := range items {
		if strings.HasPrefix(item, prefix) {
			result = append(result, item)
		}
	}
	return result
}
