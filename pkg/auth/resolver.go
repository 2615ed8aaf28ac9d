package auth

import (
	"log/slog"
	"sync"
	"time"

	"github.com/txn2/dms-client/pkg/credential"
)

// TokenSource yields the current credential snapshot. credential.Holder
// implements it.
type TokenSource interface {
	Snapshot() credential.Snapshot
}

// ResolverConfig configures a Resolver.
type ResolverConfig struct {
	// Extractor reads roles and identity from claims. Defaults to
	// DefaultClaimsExtractor.
	Extractor *ClaimsExtractor

	// InsecureSkipAuthorization makes every authentication and role check
	// succeed. Local development only; never enable against a shared backend.
	InsecureSkipAuthorization bool

	// Now overrides the clock (tests).
	Now func() time.Time
}

// Resolver answers role questions for the current session. Decoded claims
// are cached per raw token value.
type Resolver struct {
	source    TokenSource
	extractor *ClaimsExtractor
	override  bool
	now       func() time.Time

	mu          sync.Mutex
	cachedToken string
	cached      *AuthorizationContext
}

// NewResolver creates a Resolver reading tokens from source.
func NewResolver(source TokenSource, cfg ResolverConfig) *Resolver {
	if cfg.Extractor == nil {
		cfg.Extractor = DefaultClaimsExtractor()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.InsecureSkipAuthorization {
		slog.Warn("authorization enforcement disabled: every role check succeeds (insecure_skip_authorization)")
	}
	return &Resolver{
		source:    source,
		extractor: cfg.Extractor,
		override:  cfg.InsecureSkipAuthorization,
		now:       cfg.Now,
	}
}

// Current returns the AuthorizationContext for the current credential.
func (r *Resolver) Current() *AuthorizationContext {
	var token string
	if r.source != nil {
		token = r.source.Snapshot().Token
	}

	ac := r.resolve(token)
	if ac.ExpiredAt(r.now()) {
		ac = Anonymous()
	}
	if r.override {
		overridden := *ac
		overridden.Override = true
		return &overridden
	}
	return ac
}

// HasRole reports whether the current session has role.
func (r *Resolver) HasRole(role string) bool {
	return r.Current().HasRole(role)
}

// IsAuthenticated reports whether the current session is usable.
func (r *Resolver) IsAuthenticated() bool {
	return r.Current().IsAuthenticated()
}

func (r *Resolver) resolve(token string) *AuthorizationContext {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cached != nil && token == r.cachedToken {
		return r.cached
	}

	ac := Resolve(token, r.extractor)
	r.cachedToken = token
	r.cached = ac
	return ac
}

// Resolve decodes token into an AuthorizationContext. Absent or malformed
// tokens yield Anonymous.
func Resolve(token string, extractor *ClaimsExtractor) *AuthorizationContext {
	if token == "" {
		return Anonymous()
	}
	if extractor == nil {
		extractor = DefaultClaimsExtractor()
	}

	claims, err := DecodeClaims(token)
	if err != nil {
		slog.Debug("credential not decodable", "credential", credential.Fingerprint(token), "error", err)
		return Anonymous()
	}
	return extractor.Extract(claims)
}
