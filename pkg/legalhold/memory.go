package legalhold

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/txn2/dms-client/pkg/auth"
	"github.com/txn2/dms-client/pkg/dmserr"
)

// MemoryLedger implements Ledger in memory. The acting user and tenant are
// taken from the AuthorizationContext on ctx.
type MemoryLedger struct {
	mu    sync.RWMutex
	holds map[string]*LegalHold
	now   func() time.Time
}

// NewMemoryLedger creates an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		holds: make(map[string]*LegalHold),
		now:   time.Now,
	}
}

// Place records a new active hold.
func (l *MemoryLedger) Place(ctx context.Context, req PlaceRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	ac := auth.FromContext(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()

	hold := &LegalHold{
		ID:            uuid.NewString(),
		TenantID:      ac.TenantID,
		DocumentID:    req.DocumentID,
		CaseReference: req.CaseReference,
		Reason:        req.Reason,
		PlacedAt:      l.now(),
		PlacedBy:      ac.Subject,
	}
	l.holds[hold.ID] = hold

	slog.Info("legal hold placed", "hold_id", hold.ID, "document_id", hold.DocumentID, "case", hold.CaseReference)
	return hold.ID, nil
}

// Release ends an active hold.
func (l *MemoryLedger) Release(ctx context.Context, holdID, releaseReason string) error {
	ac := auth.FromContext(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()

	hold, ok := l.holds[holdID]
	if !ok {
		return dmserr.New(dmserr.KindNotFound, dmserr.ReasonLegalHoldNotFound)
	}
	if !hold.Active() {
		return dmserr.New(dmserr.KindPolicyViolation, dmserr.ReasonHoldReleased)
	}

	now := l.now()
	by := ac.Subject
	reason := releaseReason
	hold.ReleasedAt = &now
	hold.ReleasedBy = &by
	hold.ReleaseReason = &reason

	slog.Info("legal hold released", "hold_id", hold.ID, "document_id", hold.DocumentID)
	return nil
}

// ListActive returns active holds, optionally for one case reference.
func (l *MemoryLedger) ListActive(_ context.Context, caseReference string) ([]LegalHold, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]LegalHold, 0)
	for _, h := range l.holds {
		if !h.Active() {
			continue
		}
		if caseReference != "" && h.CaseReference != caseReference {
			continue
		}
		result = append(result, *h)
	}
	SortNewestFirst(result)
	return result, nil
}

// History returns every hold on documentID, newest first.
func (l *MemoryLedger) History(_ context.Context, documentID string) ([]LegalHold, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]LegalHold, 0)
	for _, h := range l.holds {
		if h.DocumentID == documentID {
			result = append(result, *h)
		}
	}
	SortNewestFirst(result)
	return result, nil
}

// SortNewestFirst orders holds by placement time, newest first, then id.
func SortNewestFirst(holds []LegalHold) {
	slices.SortStableFunc(holds, func(a, b LegalHold) int {
		if c := b.PlacedAt.Compare(a.PlacedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// Verify interface compliance.
var _ Ledger = (*MemoryLedger)(nil)
