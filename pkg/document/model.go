package document

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/txn2/dms-client/pkg/auth"
	"github.com/txn2/dms-client/pkg/dmserr"
	"github.com/txn2/dms-client/pkg/legalhold"
)

// Model is an in-memory Remote that enforces every lifecycle rule. The
// acting user is read from the AuthorizationContext on ctx. Blob content is
// hashed but not kept.
type Model struct {
	mu    sync.Mutex
	store Store
	holds legalhold.Ledger
	now   func() time.Time
}

// NewModel creates a model over store, consulting holds before permanent
// deletion. A nil store gets a MemoryStore.
func NewModel(store Store, holds legalhold.Ledger) *Model {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Model{store: store, holds: holds, now: time.Now}
}

// Upload implements Remote.
func (m *Model) Upload(ctx context.Context, req UploadRequest, file File) (Document, error) {
	if err := req.Validate(); err != nil {
		return Document{}, err
	}
	content, err := m.ingest(file, "")
	if err != nil {
		return Document{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.NewString()
	content.BlobPath = blobPath(id, 1)
	d, v := Create(id, req, content, actor(ctx), m.now())
	d.TenantID = auth.FromContext(ctx).TenantID

	if err := m.store.Save(ctx, d); err != nil {
		return Document{}, err
	}
	if err := m.store.AppendVersion(ctx, v); err != nil {
		return Document{}, err
	}
	slog.Info("document created", "document_id", id, "size_bytes", content.SizeBytes)
	return d, nil
}

// Get implements Remote.
func (m *Model) Get(ctx context.Context, id string) (Document, error) {
	return m.store.Get(ctx, id)
}

// GetIncludingDeleted implements Remote.
func (m *Model) GetIncludingDeleted(ctx context.Context, id string) (Document, error) {
	return m.store.GetIncludingDeleted(ctx, id)
}

// UpdateMetadata implements Remote.
func (m *Model) UpdateMetadata(ctx context.Context, id string, metadata map[string]any) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, err := m.store.GetIncludingDeleted(ctx, id)
	if err != nil {
		return Document{}, err
	}
	next := UpdateMetadata(d, metadata, actor(ctx), m.now())
	if err := m.store.Save(ctx, next); err != nil {
		return Document{}, err
	}
	return next, nil
}

// UploadVersion implements Remote.
func (m *Model) UploadVersion(ctx context.Context, id string, file File) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, err := m.store.GetIncludingDeleted(ctx, id)
	if err != nil {
		return err
	}
	content, err := m.ingest(file, blobPath(id, d.CurrentVersion+1))
	if err != nil {
		return err
	}
	next, v, err := AppendVersion(d, content, actor(ctx), m.now())
	if err != nil {
		return err
	}
	return m.commitVersion(ctx, next, v)
}

// Versions implements Remote. Versions are returned newest first, as the
// server does.
func (m *Model) Versions(ctx context.Context, id string) ([]Version, error) {
	chain, err := m.store.Versions(ctx, id)
	if err != nil {
		return nil, err
	}
	slices.Reverse(chain)
	return chain, nil
}

// RestoreVersion implements Remote.
func (m *Model) RestoreVersion(ctx context.Context, id string, version int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, err := m.store.GetIncludingDeleted(ctx, id)
	if err != nil {
		return err
	}
	chain, err := m.store.Versions(ctx, id)
	if err != nil {
		return err
	}
	i := slices.IndexFunc(chain, func(v Version) bool { return v.VersionNumber == version })
	if i < 0 {
		return dmserr.New(dmserr.KindNotFound, fmt.Sprintf("version %d not found", version))
	}
	next, v, err := RestoreVersion(d, chain[i], actor(ctx), m.now())
	if err != nil {
		return err
	}
	return m.commitVersion(ctx, next, v)
}

// SoftDelete implements Remote. The reason is logged only.
func (m *Model) SoftDelete(ctx context.Context, id, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, err := m.store.GetIncludingDeleted(ctx, id)
	if err != nil {
		return err
	}
	next, err := SoftDelete(d, actor(ctx), m.now())
	if err != nil {
		return err
	}
	if err := m.store.Save(ctx, next); err != nil {
		return err
	}
	slog.Info("document soft deleted", "document_id", id, "reason", reason)
	return nil
}

// Restore implements Remote.
func (m *Model) Restore(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, err := m.store.GetIncludingDeleted(ctx, id)
	if err != nil {
		return err
	}
	next, err := Restore(d)
	if err != nil {
		return err
	}
	chain, err := m.store.Versions(ctx, id)
	if err != nil {
		return err
	}
	if current := CurrentOf(chain); current > 0 {
		next.CurrentVersion = current
	}
	return m.store.Save(ctx, next)
}

// HardDelete implements Remote.
func (m *Model) HardDelete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, err := m.store.GetIncludingDeleted(ctx, id)
	if err != nil {
		return err
	}
	held, err := m.held(ctx, id)
	if err != nil {
		return err
	}
	if err := CheckHardDelete(d, held); err != nil {
		slog.Warn("hard delete rejected", "document_id", id, "reason", dmserr.ReasonOf(err))
		return err
	}
	if err := m.store.Remove(ctx, id); err != nil {
		return err
	}
	slog.Info("document permanently deleted", "document_id", id)
	return nil
}

func (m *Model) held(ctx context.Context, id string) (bool, error) {
	if m.holds == nil {
		return false, nil
	}
	return legalhold.HasActiveLegalHolds(ctx, m.holds, id)
}

func (m *Model) commitVersion(ctx context.Context, d Document, v Version) error {
	if err := m.store.Save(ctx, d); err != nil {
		return err
	}
	if err := m.store.AppendVersion(ctx, v); err != nil {
		return err
	}
	slog.Info("document version added", "document_id", d.ID, "version", v.VersionNumber)
	return nil
}

func (*Model) ingest(file File, path string) (Content, error) {
	if file.Body == nil {
		return Content{}, dmserr.New(dmserr.KindValidation, "file is required")
	}
	hash, size, err := HashContent(file.Body)
	if err != nil {
		return Content{}, fmt.Errorf("reading upload: %w", err)
	}
	return Content{BlobPath: path, SizeBytes: size, ContentHash: hash}, nil
}

func blobPath(id string, version int) string {
	return fmt.Sprintf("documents/%s/v%d", id, version)
}

func actor(ctx context.Context) string {
	return auth.FromContext(ctx).Subject
}

// Verify interface compliance.
var _ Remote = (*Model)(nil)
