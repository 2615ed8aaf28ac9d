package credential

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/txn2/dms-client/pkg/dmserr"
)

// Holder is the process-wide owner of the session credential. It is the only
// writer; every reader takes a Snapshot.
type Holder struct {
	mu      sync.RWMutex
	durable Store
	current Snapshot
	now     func() time.Time
}

// NewHolder creates a Holder backed by durable. A nil durable store keeps the
// credential in memory only.
func NewHolder(durable Store) *Holder {
	if durable == nil {
		durable = NewMemoryStore()
	}
	return &Holder{durable: durable, now: time.Now}
}

// Load restores the credential from durable storage. It is called once at
// start-up; a missing credential leaves the holder signed out.
func (h *Holder) Load(ctx context.Context) error {
	token, err := h.durable.Get(ctx)
	if err != nil {
		return fmt.Errorf("loading credential: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.write(strings.TrimSpace(token))
	return nil
}

// Login stores a freshly issued token.
func (h *Holder) Login(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return dmserr.New(dmserr.KindValidation, "token is required")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.durable.Set(ctx, token); err != nil {
		return fmt.Errorf("persisting credential: %w", err)
	}
	h.write(token)
	slog.Info("session started", "credential", Fingerprint(token), "version", h.current.Version)
	return nil
}

// Refresh replaces the token of an existing session.
func (h *Holder) Refresh(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return dmserr.New(dmserr.KindValidation, "token is required")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.current.Present() {
		return dmserr.New(dmserr.KindAuthenticationMissing, dmserr.ReasonNoSession)
	}
	if err := h.durable.Set(ctx, token); err != nil {
		return fmt.Errorf("persisting credential: %w", err)
	}
	h.write(token)
	slog.Debug("session refreshed", "credential", Fingerprint(token), "version", h.current.Version)
	return nil
}

// Logout clears the credential from memory and durable storage. The
// in-memory copy is cleared even when the durable store fails.
func (h *Holder) Logout(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	had := h.current.Present()
	h.write("")
	if err := h.durable.Clear(ctx); err != nil {
		return fmt.Errorf("clearing credential: %w", err)
	}
	if had {
		slog.Info("session ended", "version", h.current.Version)
	}
	return nil
}

// Snapshot returns the current credential.
func (h *Holder) Snapshot() Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Token returns the current raw token.
func (h *Holder) Token() string {
	return h.Snapshot().Token
}

// write must be called with mu held.
func (h *Holder) write(token string) {
	h.current = Snapshot{
		Token:     token,
		Version:   h.current.Version + 1,
		UpdatedAt: h.now(),
	}
}
