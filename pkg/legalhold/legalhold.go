// Package legalhold records legal holds placed on and released from
// documents. An active hold unconditionally blocks permanent deletion.
package legalhold

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/txn2/dms-client/pkg/dmserr"
)

// LegalHold is a case-linked hold on one document. A released hold is
// immutable history.
type LegalHold struct {
	ID            string     `json:"id"`
	TenantID      string     `json:"tenantId"`
	DocumentID    string     `json:"documentId"`
	CaseReference string     `json:"caseReference"`
	Reason        string     `json:"reason"`
	PlacedAt      time.Time  `json:"placedAt"`
	PlacedBy      string     `json:"placedBy"`
	ReleasedAt    *time.Time `json:"releasedAt"`
	ReleasedBy    *string    `json:"releasedBy"`
	ReleaseReason *string    `json:"releaseReason"`
}

// Active reports whether the hold is still in force.
func (h LegalHold) Active() bool {
	return h.ReleasedAt == nil
}

// PlaceRequest is the body of a place call.
type PlaceRequest struct {
	DocumentID    string `json:"documentId"`
	CaseReference string `json:"caseReference"`
	Reason        string `json:"reason"`
}

// Validate checks the required fields.
func (r PlaceRequest) Validate() error {
	var missing []string
	if strings.TrimSpace(r.DocumentID) == "" {
		missing = append(missing, "documentId")
	}
	if strings.TrimSpace(r.CaseReference) == "" {
		missing = append(missing, "caseReference")
	}
	if strings.TrimSpace(r.Reason) == "" {
		missing = append(missing, "reason")
	}
	if len(missing) > 0 {
		return dmserr.New(dmserr.KindValidation, "missing "+strings.Join(missing, ", "))
	}
	return nil
}

// Ledger places, releases and lists holds.
type Ledger interface {
	// Place puts a hold on a document and returns the hold id.
	Place(ctx context.Context, req PlaceRequest) (string, error)

	// Release ends a hold. Releasing a released hold fails with a
	// PolicyViolation and changes nothing.
	Release(ctx context.Context, holdID, releaseReason string) error

	// ListActive returns active holds, optionally narrowed to one case.
	ListActive(ctx context.Context, caseReference string) ([]LegalHold, error)

	// History returns every hold on a document, newest first.
	History(ctx context.Context, documentID string) ([]LegalHold, error)
}

// HasActiveLegalHolds reports whether any hold on documentID is active.
func HasActiveLegalHolds(ctx context.Context, l Ledger, documentID string) (bool, error) {
	holds, err := l.History(ctx, documentID)
	if err != nil {
		return false, err
	}
	return AnyActive(holds), nil
}

// AnyActive reports whether holds contains an active hold.
func AnyActive(holds []LegalHold) bool {
	for _, h := range holds {
		if h.Active() {
			return true
		}
	}
	return false
}

// PlaceMany places each request in order and returns the hold ids placed
// before the first failure.
func PlaceMany(ctx context.Context, l Ledger, reqs []PlaceRequest) ([]string, error) {
	ids := make([]string, 0, len(reqs))
	for _, req := range reqs {
		id, err := l.Place(ctx, req)
		if err != nil {
			return ids, fmt.Errorf("placing hold on %s: %w", req.DocumentID, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ReleaseMany releases each hold in order and returns how many were
// released before the first failure.
func ReleaseMany(ctx context.Context, l Ledger, holdIDs []string, reason string) (int, error) {
	for i, id := range holdIDs {
		if err := l.Release(ctx, id, reason); err != nil {
			return i, fmt.Errorf("releasing hold %s: %w", id, err)
		}
	}
	return len(holdIDs), nil
}
