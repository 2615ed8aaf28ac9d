package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/txn2/dms-client/pkg/dmserr"
	"github.com/txn2/dms-client/pkg/doctype"
	"github.com/txn2/dms-client/pkg/legalhold"
	"github.com/txn2/dms-client/pkg/retention"
)

// ServiceConfig configures a Service.
type ServiceConfig struct {
	// Remote is the authoritative backend. Required.
	Remote Remote

	// Holds answers hold questions for local pre-checks. Required.
	Holds legalhold.Ledger

	// Types resolves retention policy. Required for RetentionStatus.
	Types doctype.Lookup

	// Server reports soft-delete state that document responses leave out.
	// Defaults to Remote when Remote implements RetentionReader.
	Server RetentionReader

	// Cache holds the last acknowledged state. Defaults to a MemoryStore.
	Cache Store

	// Now is the clock used for retention. Defaults to time.Now.
	Now func() time.Time
}

// RetentionReader returns the server's retention view of a document.
type RetentionReader interface {
	RetentionStatus(ctx context.Context, id string) (retention.Status, error)
}

// Service runs lifecycle operations against the Remote and mirrors what
// the Remote acknowledged into a local cache. Nothing is written locally
// before the Remote accepts it. The Remote stays the final arbiter, so the
// cache can be stale until the next fetch.
type Service struct {
	remote Remote
	holds  legalhold.Ledger
	types  doctype.Lookup
	server RetentionReader
	cache  Store
	now    func() time.Time
}

// NewService creates a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Remote == nil {
		return nil, errors.New("document service: remote is required")
	}
	if cfg.Holds == nil {
		return nil, errors.New("document service: legal hold ledger is required")
	}
	if cfg.Cache == nil {
		cfg.Cache = NewMemoryStore()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Server == nil {
		if r, ok := cfg.Remote.(RetentionReader); ok {
			cfg.Server = r
		}
	}
	return &Service{
		remote: cfg.Remote,
		holds:  cfg.Holds,
		types:  cfg.Types,
		server: cfg.Server,
		cache:  cfg.Cache,
		now:    cfg.Now,
	}, nil
}

// Upload creates a document from file.
func (s *Service) Upload(ctx context.Context, req UploadRequest, file File) (Document, error) {
	if err := req.Validate(); err != nil {
		return Document{}, err
	}
	d, err := s.remote.Upload(ctx, req, file)
	if err != nil {
		return Document{}, fmt.Errorf("uploading document: %w", err)
	}
	if err := s.cache.Save(ctx, d); err != nil {
		return d, err
	}
	return d, nil
}

// Get fetches a live document and refreshes the cache. Soft-deleted
// documents report NotFound with ReasonSoftDeleted. Permanently deleted
// documents report NotFound without a network call.
func (s *Service) Get(ctx context.Context, id string) (Document, error) {
	d, err := s.fetch(ctx, id, s.remote.Get)
	if err != nil {
		return Document{}, err
	}
	if d.Status() == StatusSoftDeleted {
		return Document{}, dmserr.New(dmserr.KindNotFound, dmserr.ReasonSoftDeleted)
	}
	return d, nil
}

// GetIncludingDeleted is Get that also returns soft-deleted documents.
func (s *Service) GetIncludingDeleted(ctx context.Context, id string) (Document, error) {
	return s.fetch(ctx, id, s.remote.GetIncludingDeleted)
}

func (s *Service) fetch(ctx context.Context, id string, get func(context.Context, string) (Document, error)) (Document, error) {
	if err := s.knownRemoved(ctx, id); err != nil {
		return Document{}, err
	}
	d, err := get(ctx, id)
	if err != nil {
		return Document{}, err
	}
	d = s.carryDeletion(ctx, d)
	if err := s.cache.Save(ctx, d); err != nil {
		return d, err
	}
	return d, nil
}

// carryDeletion keeps the soft-delete marker of an acknowledged delete when
// the server's document response leaves the deletion fields out.
func (s *Service) carryDeletion(ctx context.Context, d Document) Document {
	if d.DeletedAt != nil {
		return d
	}
	cached, err := s.cache.GetIncludingDeleted(ctx, d.ID)
	if err != nil || cached.DeletedAt == nil {
		return d
	}
	d.DeletedAt = cached.DeletedAt
	d.DeletedBy = cached.DeletedBy
	return d
}

// UpdateMetadata replaces a document's metadata.
func (s *Service) UpdateMetadata(ctx context.Context, id string, metadata map[string]any) (Document, error) {
	if err := s.knownRemoved(ctx, id); err != nil {
		return Document{}, err
	}
	d, err := s.remote.UpdateMetadata(ctx, id, metadata)
	if err != nil {
		return Document{}, fmt.Errorf("updating metadata: %w", err)
	}
	d = s.carryDeletion(ctx, d)
	if err := s.cache.Save(ctx, d); err != nil {
		return d, err
	}
	return d, nil
}

// UploadVersion appends a version. A document known to be deleted is
// rejected before the upload starts.
func (s *Service) UploadVersion(ctx context.Context, id string, file File) error {
	if err := s.requireActive(ctx, id, dmserr.ReasonDeletedNoVersion); err != nil {
		return err
	}
	if err := s.remote.UploadVersion(ctx, id, file); err != nil {
		return fmt.Errorf("uploading version: %w", err)
	}
	s.resync(ctx, id)
	return nil
}

// RestoreVersion appends a copy of an earlier version.
func (s *Service) RestoreVersion(ctx context.Context, id string, version int) error {
	if err := s.requireActive(ctx, id, dmserr.ReasonDeletedNoVersion); err != nil {
		return err
	}
	if err := s.remote.RestoreVersion(ctx, id, version); err != nil {
		return fmt.Errorf("restoring version %d: %w", version, err)
	}
	s.resync(ctx, id)
	return nil
}

// Versions returns a document's version chain. After a permanent delete
// this reports NotFound, never an empty chain.
func (s *Service) Versions(ctx context.Context, id string) ([]Version, error) {
	if err := s.knownRemoved(ctx, id); err != nil {
		return nil, err
	}
	chain, err := s.remote.Versions(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, cerr := s.cache.GetIncludingDeleted(ctx, id); cerr == nil {
		if err := s.cache.SaveVersions(ctx, id, chain); err != nil {
			return chain, err
		}
	}
	return chain, nil
}

// SoftDelete hides a document.
func (s *Service) SoftDelete(ctx context.Context, id, reason string) error {
	if err := s.requireActive(ctx, id, dmserr.ReasonAlreadyDeleted); err != nil {
		return err
	}
	if err := s.remote.SoftDelete(ctx, id, reason); err != nil {
		return fmt.Errorf("soft deleting document: %w", err)
	}
	s.apply(ctx, id, func(d Document) (Document, error) {
		return SoftDelete(d, actor(ctx), s.now())
	})
	return nil
}

// Restore brings a soft-deleted document back.
func (s *Service) Restore(ctx context.Context, id string) error {
	if err := s.knownRemoved(ctx, id); err != nil {
		return err
	}
	if d, err := s.cache.GetIncludingDeleted(ctx, id); err == nil && d.Status() != StatusSoftDeleted {
		return dmserr.New(dmserr.KindPolicyViolation, dmserr.ReasonNotDeleted)
	}
	if err := s.remote.Restore(ctx, id); err != nil {
		return fmt.Errorf("restoring document: %w", err)
	}
	s.apply(ctx, id, Restore)
	return nil
}

// CheckHardDelete reports why id may not be permanently deleted, using
// fresh document and hold state. When the deletion state cannot be
// determined only the hold rule is checked and the server decides the rest.
func (s *Service) CheckHardDelete(ctx context.Context, id string) error {
	d, err := s.GetIncludingDeleted(ctx, id)
	if err != nil {
		return err
	}
	held, err := legalhold.HasActiveLegalHolds(ctx, s.holds, id)
	if err != nil {
		return fmt.Errorf("checking legal holds: %w", err)
	}
	deleted, known := s.deletionState(ctx, d)
	return checkPurge(deleted || !known, held)
}

// deletionState reports whether d is soft-deleted. The server's document
// response omits the deletion fields, so a document without a local marker
// is asked about through the server's retention view.
func (s *Service) deletionState(ctx context.Context, d Document) (deleted, known bool) {
	if d.DeletedAt != nil {
		return true, true
	}
	if s.server == nil {
		return false, true
	}
	st, err := s.server.RetentionStatus(ctx, d.ID)
	if err != nil {
		slog.Debug("deletion state unknown", "document_id", d.ID, "error", err)
		return false, false
	}
	return st.IsSoftDeleted, true
}

// HardDelete permanently deletes a document. Rules that can be checked
// locally fail before the delete request is sent.
func (s *Service) HardDelete(ctx context.Context, id string) error {
	if err := s.CheckHardDelete(ctx, id); err != nil {
		slog.Warn("hard delete refused", "document_id", id, "reason", dmserr.ReasonOf(err))
		return err
	}
	if err := s.remote.HardDelete(ctx, id); err != nil {
		return fmt.Errorf("hard deleting document: %w", err)
	}
	if err := s.cache.Remove(ctx, id); err != nil {
		return err
	}
	slog.Info("document permanently deleted", "document_id", id)
	return nil
}

// RetentionStatus derives the retention view of a document from fresh
// document, type and hold state.
func (s *Service) RetentionStatus(ctx context.Context, id string) (retention.Status, error) {
	if s.types == nil {
		return retention.Status{}, errors.New("document service: document type lookup is not configured")
	}
	d, err := s.GetIncludingDeleted(ctx, id)
	if err != nil {
		return retention.Status{}, err
	}
	dt, err := s.documentType(ctx, d)
	if err != nil {
		return retention.Status{}, fmt.Errorf("resolving document type: %w", err)
	}
	held, err := legalhold.HasActiveLegalHolds(ctx, s.holds, id)
	if err != nil {
		return retention.Status{}, fmt.Errorf("checking legal holds: %w", err)
	}
	deleted, _ := s.deletionState(ctx, d)
	return retention.Evaluate(retention.Input{
		DocumentID:           d.ID,
		DocumentType:         dt.Name,
		DefaultRetentionDays: dt.RetentionDays,
		Anchor:               d.CreatedAt,
		ExpiresAt:            d.RetentionExpiresAt,
		Now:                  s.now(),
		HasActiveLegalHolds:  held,
		IsSoftDeleted:        deleted,
	}), nil
}

// documentType resolves the type of d by id, or by name when the
// document came from the server.
func (s *Service) documentType(ctx context.Context, d Document) (doctype.DocumentType, error) {
	if d.DocumentTypeID != "" {
		return s.types.DocumentType(ctx, d.DocumentTypeID)
	}
	if d.DocumentTypeName != "" {
		return s.types.DocumentTypeByName(ctx, d.DocumentTypeName)
	}
	return doctype.DocumentType{}, dmserr.New(dmserr.KindNotFound, "document has no type")
}

// Cached returns the last acknowledged state of a document without a
// network call.
func (s *Service) Cached(ctx context.Context, id string) (Document, error) {
	return s.cache.GetIncludingDeleted(ctx, id)
}

func (s *Service) knownRemoved(ctx context.Context, id string) error {
	_, err := s.cache.GetIncludingDeleted(ctx, id)
	if err != nil && dmserr.ReasonOf(err) == dmserr.ReasonHardDeleted {
		return err
	}
	return nil
}

// requireActive rejects ids the cache knows are removed or soft-deleted.
func (s *Service) requireActive(ctx context.Context, id, reason string) error {
	d, err := s.cache.GetIncludingDeleted(ctx, id)
	if err != nil {
		if dmserr.ReasonOf(err) == dmserr.ReasonHardDeleted {
			return err
		}
		return nil
	}
	if d.Status() != StatusActive {
		return dmserr.New(dmserr.KindPolicyViolation, reason)
	}
	return nil
}

// apply runs a transition on the cached copy after the remote accepted it.
// A cached copy that disagrees with the remote is dropped.
func (s *Service) apply(ctx context.Context, id string, transition func(Document) (Document, error)) {
	d, err := s.cache.GetIncludingDeleted(ctx, id)
	if err != nil {
		return
	}
	next, err := transition(d)
	if err != nil {
		slog.Debug("dropping stale cache entry", "document_id", id, "error", err)
		_ = s.cache.Forget(ctx, id)
		return
	}
	if err := s.cache.Save(ctx, next); err != nil {
		slog.Warn("cache update failed", "document_id", id, "error", err)
	}
}

// resync refetches a document and its versions after an acknowledged write
// whose response carries no body.
func (s *Service) resync(ctx context.Context, id string) {
	d, err := s.remote.GetIncludingDeleted(ctx, id)
	if err != nil {
		slog.Warn("resync failed, dropping cache entry", "document_id", id, "error", err)
		_ = s.cache.Forget(ctx, id)
		return
	}
	if err := s.cache.Save(ctx, s.carryDeletion(ctx, d)); err != nil {
		slog.Warn("cache update failed", "document_id", id, "error", err)
		return
	}
	if chain, err := s.remote.Versions(ctx, id); err == nil {
		_ = s.cache.SaveVersions(ctx, id, chain)
	}
}
