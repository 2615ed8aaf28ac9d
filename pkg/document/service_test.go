package document

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/dms-client/pkg/dmserr"
	"github.com/txn2/dms-client/pkg/doctype"
	"github.com/txn2/dms-client/pkg/legalhold"
	"github.com/txn2/dms-client/pkg/retention"
)

// countingRemote records calls and can fail them.
type countingRemote struct {
	Remote
	calls map[string]int
	fail  map[string]error
}

func newCountingRemote(r Remote) *countingRemote {
	return &countingRemote{Remote: r, calls: map[string]int{}, fail: map[string]error{}}
}

func (c *countingRemote) hit(name string) error {
	c.calls[name]++
	return c.fail[name]
}

func (c *countingRemote) Get(ctx context.Context, id string) (Document, error) {
	if err := c.hit("Get"); err != nil {
		return Document{}, err
	}
	return c.Remote.Get(ctx, id)
}

func (c *countingRemote) GetIncludingDeleted(ctx context.Context, id string) (Document, error) {
	if err := c.hit("Get"); err != nil {
		return Document{}, err
	}
	return c.Remote.GetIncludingDeleted(ctx, id)
}

func (c *countingRemote) SoftDelete(ctx context.Context, id, reason string) error {
	if err := c.hit("SoftDelete"); err != nil {
		return err
	}
	return c.Remote.SoftDelete(ctx, id, reason)
}

func (c *countingRemote) HardDelete(ctx context.Context, id string) error {
	if err := c.hit("HardDelete"); err != nil {
		return err
	}
	return c.Remote.HardDelete(ctx, id)
}

func (c *countingRemote) Versions(ctx context.Context, id string) ([]Version, error) {
	if err := c.hit("Versions"); err != nil {
		return nil, err
	}
	return c.Remote.Versions(ctx, id)
}

func (c *countingRemote) UploadVersion(ctx context.Context, id string, f File) error {
	if err := c.hit("UploadVersion"); err != nil {
		return err
	}
	return c.Remote.UploadVersion(ctx, id, f)
}

// serverView mimics the server's document responses: soft-deleted
// documents are still returned, without deletion fields, and the type is
// named rather than referenced by id.
type serverView struct {
	Remote
	typeName string
}

func (s serverView) Get(ctx context.Context, id string) (Document, error) {
	return s.GetIncludingDeleted(ctx, id)
}

func (s serverView) GetIncludingDeleted(ctx context.Context, id string) (Document, error) {
	d, err := s.Remote.GetIncludingDeleted(ctx, id)
	d.DeletedAt, d.DeletedBy = nil, nil
	if d.DocumentTypeID != "" {
		d.DocumentTypeID, d.DocumentTypeName = "", s.typeName
	}
	return d, err
}

// retentionFunc answers the server's retention view.
type retentionFunc func(ctx context.Context, id string) (retention.Status, error)

func (f retentionFunc) RetentionStatus(ctx context.Context, id string) (retention.Status, error) {
	return f(ctx, id)
}

type fixture struct {
	svc    *Service
	remote *countingRemote
	holds  *legalhold.MemoryLedger
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	holds := legalhold.NewMemoryLedger()
	remote := newCountingRemote(NewModel(nil, holds))
	f := &fixture{remote: remote, holds: holds, now: time.Now()}

	svc, err := NewService(ServiceConfig{
		Remote: remote,
		Holds:  holds,
		Types:  doctype.Static{"type-1": {ID: "type-1", Name: "invoice", RetentionDays: 30}},
		Now:    func() time.Time { return f.now },
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) upload(t *testing.T) Document {
	t.Helper()
	d, err := f.svc.Upload(userContext(), UploadRequest{DocumentTypeID: "type-1"}, file("content"))
	require.NoError(t, err)
	return d
}

func TestNewService_Validation(t *testing.T) {
	_, err := NewService(ServiceConfig{})
	assert.Error(t, err)
	_, err = NewService(ServiceConfig{Remote: NewModel(nil, nil)})
	assert.Error(t, err)
}

func TestService_HardDeleteRejectedLocallyUnderHold(t *testing.T) {
	ctx := userContext()
	f := newFixture(t)
	d := f.upload(t)

	holdID, err := f.holds.Place(ctx, legalhold.PlaceRequest{DocumentID: d.ID, CaseReference: "C", Reason: "r"})
	require.NoError(t, err)
	require.NoError(t, f.svc.SoftDelete(ctx, d.ID, "retire"))

	err = f.svc.HardDelete(ctx, d.ID)
	require.Error(t, err)
	assert.Equal(t, dmserr.ReasonActiveLegalHold, dmserr.ReasonOf(err))
	assert.Zero(t, f.remote.calls["HardDelete"], "no delete request was sent")

	require.NoError(t, f.holds.Release(ctx, holdID, "closed"))
	require.NoError(t, f.svc.HardDelete(ctx, d.ID))
	assert.Equal(t, 1, f.remote.calls["HardDelete"])

	versionCalls := f.remote.calls["Versions"]
	_, err = f.svc.Versions(ctx, d.ID)
	assert.Equal(t, dmserr.ReasonHardDeleted, dmserr.ReasonOf(err))
	assert.Equal(t, versionCalls, f.remote.calls["Versions"], "known removal answers locally")
}

func TestService_NoLocalChangeWithoutAck(t *testing.T) {
	ctx := userContext()
	f := newFixture(t)
	d := f.upload(t)

	f.remote.fail["SoftDelete"] = dmserr.New(dmserr.KindTransient, "connection reset")
	err := f.svc.SoftDelete(ctx, d.ID, "")
	require.Error(t, err)
	assert.True(t, dmserr.IsRetryable(err))

	cached, err := f.svc.Cached(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, cached.Status())

	delete(f.remote.fail, "SoftDelete")
	require.NoError(t, f.svc.SoftDelete(ctx, d.ID, ""))
	cached, err = f.svc.Cached(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSoftDeleted, cached.Status())
}

func TestService_LocalPreconditions(t *testing.T) {
	ctx := userContext()
	f := newFixture(t)
	d := f.upload(t)

	err := f.svc.Restore(ctx, d.ID)
	assert.Equal(t, dmserr.ReasonNotDeleted, dmserr.ReasonOf(err))

	require.NoError(t, f.svc.SoftDelete(ctx, d.ID, ""))
	calls := f.remote.calls["SoftDelete"]
	err = f.svc.SoftDelete(ctx, d.ID, "")
	assert.Equal(t, dmserr.ReasonAlreadyDeleted, dmserr.ReasonOf(err))
	assert.Equal(t, calls, f.remote.calls["SoftDelete"])

	err = f.svc.UploadVersion(ctx, d.ID, file("v2"))
	assert.Equal(t, dmserr.ReasonDeletedNoVersion, dmserr.ReasonOf(err))
	assert.Zero(t, f.remote.calls["UploadVersion"])

	require.NoError(t, f.svc.Restore(ctx, d.ID))
	require.NoError(t, f.svc.UploadVersion(ctx, d.ID, file("v2")))

	cached, err := f.svc.Cached(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, cached.CurrentVersion, "cache resynced after the upload")
}

func TestService_HardDeleteOfActiveDocument(t *testing.T) {
	f := newFixture(t)
	d := f.upload(t)

	err := f.svc.HardDelete(userContext(), d.ID)
	assert.Equal(t, dmserr.ReasonNotSoftDeleted, dmserr.ReasonOf(err))
	assert.Zero(t, f.remote.calls["HardDelete"])
}

func TestService_CarriesDeletionMarker(t *testing.T) {
	ctx := userContext()
	holds := legalhold.NewMemoryLedger()
	svc, err := NewService(ServiceConfig{Remote: serverView{Remote: NewModel(nil, holds)}, Holds: holds})
	require.NoError(t, err)

	d, err := svc.Upload(ctx, UploadRequest{DocumentTypeID: "type-1"}, file("x"))
	require.NoError(t, err)
	require.NoError(t, svc.SoftDelete(ctx, d.ID, ""))

	_, err = svc.Get(ctx, d.ID)
	assert.ErrorIs(t, err, dmserr.ErrNotFound)
	assert.Equal(t, dmserr.ReasonSoftDeleted, dmserr.ReasonOf(err))

	got, err := svc.GetIncludingDeleted(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSoftDeleted, got.Status())
	require.NoError(t, svc.HardDelete(ctx, d.ID))
}

func TestService_GetExcludesSoftDeleted(t *testing.T) {
	ctx := userContext()
	f := newFixture(t)
	d := f.upload(t)
	require.NoError(t, f.svc.SoftDelete(ctx, d.ID, ""))

	_, err := f.svc.Get(ctx, d.ID)
	assert.Equal(t, dmserr.KindNotFound, dmserr.KindOf(err))
	assert.Equal(t, dmserr.ReasonSoftDeleted, dmserr.ReasonOf(err))

	got, err := f.svc.GetIncludingDeleted(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, d.ID, got.ID)
	assert.Equal(t, StatusSoftDeleted, got.Status())

	require.NoError(t, f.svc.Restore(ctx, d.ID))
	got, err = f.svc.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, got.Status())
}

// newServerFixture builds a Service whose remote answers like the server
// and whose cache starts empty, as in a fresh process. The document is
// uploaded and soft-deleted directly on the model.
func newServerFixture(t *testing.T, reader RetentionReader) (*Service, *countingRemote, *legalhold.MemoryLedger, Document) {
	t.Helper()
	ctx := userContext()
	holds := legalhold.NewMemoryLedger()
	model := NewModel(nil, holds)
	d, err := model.Upload(ctx, UploadRequest{DocumentTypeID: "type-1"}, file("x"))
	require.NoError(t, err)
	require.NoError(t, model.SoftDelete(ctx, d.ID, ""))

	remote := newCountingRemote(serverView{Remote: model, typeName: "invoice"})
	svc, err := NewService(ServiceConfig{
		Remote: remote,
		Holds:  holds,
		Types:  doctype.Static{"type-1": {ID: "type-1", Name: "invoice", RetentionDays: 30}},
		Server: reader,
	})
	require.NoError(t, err)
	return svc, remote, holds, d
}

func TestService_HardDeleteUsesServerDeletionState(t *testing.T) {
	ctx := userContext()
	deleted := retentionFunc(func(_ context.Context, id string) (retention.Status, error) {
		return retention.Status{DocumentID: id, IsSoftDeleted: true}, nil
	})
	live := retentionFunc(func(_ context.Context, id string) (retention.Status, error) {
		return retention.Status{DocumentID: id}, nil
	})
	unreachable := retentionFunc(func(context.Context, string) (retention.Status, error) {
		return retention.Status{}, dmserr.New(dmserr.KindTransient, "server unreachable")
	})

	t.Run("soft-deleted on the server", func(t *testing.T) {
		svc, remote, _, d := newServerFixture(t, deleted)
		require.NoError(t, svc.HardDelete(ctx, d.ID))
		assert.Equal(t, 1, remote.calls["HardDelete"])
	})

	t.Run("live on the server", func(t *testing.T) {
		svc, remote, _, d := newServerFixture(t, live)
		err := svc.HardDelete(ctx, d.ID)
		assert.Equal(t, dmserr.ReasonNotSoftDeleted, dmserr.ReasonOf(err))
		assert.Zero(t, remote.calls["HardDelete"])
	})

	t.Run("unknown state leaves the decision to the server", func(t *testing.T) {
		svc, remote, _, d := newServerFixture(t, unreachable)
		require.NoError(t, svc.HardDelete(ctx, d.ID))
		assert.Equal(t, 1, remote.calls["HardDelete"])
	})

	t.Run("hold still refused locally when state is unknown", func(t *testing.T) {
		svc, remote, holds, d := newServerFixture(t, unreachable)
		_, err := holds.Place(ctx, legalhold.PlaceRequest{DocumentID: d.ID, CaseReference: "C", Reason: "r"})
		require.NoError(t, err)

		err = svc.HardDelete(ctx, d.ID)
		assert.Equal(t, dmserr.ReasonActiveLegalHold, dmserr.ReasonOf(err))
		assert.Zero(t, remote.calls["HardDelete"])
	})
}

func TestService_RetentionStatusByTypeName(t *testing.T) {
	ctx := userContext()
	deleted := retentionFunc(func(_ context.Context, id string) (retention.Status, error) {
		return retention.Status{DocumentID: id, IsSoftDeleted: true}, nil
	})
	svc, _, _, d := newServerFixture(t, deleted)

	s, err := svc.RetentionStatus(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "invoice", s.DocumentType)
	assert.Equal(t, 30, s.DefaultRetentionDays)
	assert.True(t, s.IsSoftDeleted)
	assert.True(t, s.IsEligibleForHardDelete)
}

func TestService_RetentionStatusUsesServerExpiry(t *testing.T) {
	ctx := userContext()
	f := newFixture(t)
	d := f.upload(t)
	expires := d.CreatedAt.Add(5 * 24 * time.Hour)

	svc, err := NewService(ServiceConfig{
		Remote: withExpiry{Remote: f.remote, expires: expires},
		Holds:  f.holds,
		Types:  doctype.Static{"type-1": {ID: "type-1", Name: "invoice", RetentionDays: 30}},
		Now:    func() time.Time { return d.CreatedAt },
	})
	require.NoError(t, err)

	s, err := svc.RetentionStatus(ctx, d.ID)
	require.NoError(t, err)
	require.NotNil(t, s.RetentionExpiresAt)
	assert.True(t, expires.Equal(*s.RetentionExpiresAt))
	require.NotNil(t, s.DaysUntilRetention)
	assert.Equal(t, int64(5), *s.DaysUntilRetention)
}

// withExpiry stamps a server-computed retention expiry on fetched documents.
type withExpiry struct {
	Remote
	expires time.Time
}

func (w withExpiry) GetIncludingDeleted(ctx context.Context, id string) (Document, error) {
	d, err := w.Remote.GetIncludingDeleted(ctx, id)
	d.RetentionExpiresAt = &w.expires
	return d, err
}

func TestService_RetentionStatus(t *testing.T) {
	ctx := userContext()
	f := newFixture(t)
	d := f.upload(t)
	f.now = d.CreatedAt.Add(40 * 24 * time.Hour)

	s, err := f.svc.RetentionStatus(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "invoice", s.DocumentType)
	assert.Equal(t, 30, s.DefaultRetentionDays)
	require.NotNil(t, s.DaysUntilRetention)
	assert.Zero(t, *s.DaysUntilRetention)
	assert.False(t, s.IsEligibleForHardDelete)

	_, err = f.holds.Place(ctx, legalhold.PlaceRequest{DocumentID: d.ID, CaseReference: "C", Reason: "r"})
	require.NoError(t, err)
	require.NoError(t, f.svc.SoftDelete(ctx, d.ID, ""))

	s, err = f.svc.RetentionStatus(ctx, d.ID)
	require.NoError(t, err)
	assert.True(t, s.HasActiveLegalHolds)
	assert.True(t, s.IsSoftDeleted)
	assert.Nil(t, s.DaysUntilRetention)
	assert.False(t, s.IsEligibleForHardDelete)
}

func TestService_RemoteErrorsWrapped(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("boom")
	f.remote.fail["Get"] = boom

	_, err := f.svc.Get(userContext(), "any")
	assert.ErrorIs(t, err, boom)
}
