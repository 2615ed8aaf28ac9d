package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/dms-client/pkg/dmserr"
	"github.com/txn2/dms-client/pkg/doctype"
	"github.com/txn2/dms-client/pkg/document"
)

// Bodies in the shape the server sends. The document response names its
// type and carries no deletion fields.
const (
	serverDocument = `{"id":"doc-1","documentTypeName":"invoice","currentVersion":1,
		"createdAt":"2026-01-01T00:00:00Z","createdBy":"alice","hasActiveLegalHold":false}`
	serverTypes = `[{"id":"t1","name":"invoice","retentionDays":365,"active":true}]`
)

// documentServer fakes the endpoints the lifecycle service reads. status is
// the retention-status body; an empty string answers 503.
type documentServer struct {
	status     string
	holds      string
	hardDelete atomic.Int32
}

func (s *documentServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/documents/doc-1", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, serverDocument)
	})
	mux.HandleFunc("GET /api/v1/documents/doc-1/retention-status", func(w http.ResponseWriter, _ *http.Request) {
		if s.status == "" {
			writeJSON(w, http.StatusServiceUnavailable, `{"errorCode":"INTERNAL_SERVER_ERROR","message":"unavailable"}`)
			return
		}
		writeJSON(w, http.StatusOK, s.status)
	})
	mux.HandleFunc("GET /api/v1/document-types/active", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, serverTypes)
	})
	mux.HandleFunc("GET /api/v1/legal-holds/document/doc-1", func(w http.ResponseWriter, _ *http.Request) {
		holds := s.holds
		if holds == "" {
			holds = `[]`
		}
		writeJSON(w, http.StatusOK, holds)
	})
	mux.HandleFunc("DELETE /api/v1/documents/doc-1/hard", func(w http.ResponseWriter, _ *http.Request) {
		s.hardDelete.Add(1)
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func newDocumentService(t *testing.T, s *documentServer) *document.Service {
	t.Helper()
	srv := httptest.NewServer(s.handler())
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL + "/api/v1/", Credentials: staticToken("tok")})
	require.NoError(t, err)

	svc, err := document.NewService(document.ServiceConfig{
		Remote: c,
		Holds:  c,
		Types:  doctype.NewCatalog(c),
		Now:    func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return svc
}

func TestService_RetentionStatusFromServerShapes(t *testing.T) {
	svc := newDocumentService(t, &documentServer{status: `{"documentId":"doc-1","softDeleted":true}`})

	s, err := svc.RetentionStatus(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "doc-1", s.DocumentID)
	assert.Equal(t, "invoice", s.DocumentType)
	assert.Equal(t, 365, s.DefaultRetentionDays)
	assert.True(t, s.IsSoftDeleted)
	assert.True(t, s.IsEligibleForHardDelete)
	require.NotNil(t, s.RetentionExpiresAt)
	assert.True(t, time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC).Equal(*s.RetentionExpiresAt))
}

func TestService_HardDeleteFromServerShapes(t *testing.T) {
	ctx := context.Background()

	t.Run("soft-deleted on the server is sent", func(t *testing.T) {
		s := &documentServer{status: `{"documentId":"doc-1","softDeleted":true,"eligibleForHardDelete":true}`}
		require.NoError(t, newDocumentService(t, s).HardDelete(ctx, "doc-1"))
		assert.Equal(t, int32(1), s.hardDelete.Load())
	})

	t.Run("unknown deletion state is sent", func(t *testing.T) {
		s := &documentServer{}
		require.NoError(t, newDocumentService(t, s).HardDelete(ctx, "doc-1"))
		assert.Equal(t, int32(1), s.hardDelete.Load())
	})

	t.Run("live on the server is refused locally", func(t *testing.T) {
		s := &documentServer{status: `{"documentId":"doc-1","softDeleted":false}`}
		err := newDocumentService(t, s).HardDelete(ctx, "doc-1")
		assert.ErrorIs(t, err, dmserr.ErrPolicyViolation)
		assert.Equal(t, dmserr.ReasonNotSoftDeleted, dmserr.ReasonOf(err))
		assert.Zero(t, s.hardDelete.Load())
	})

	t.Run("active hold is refused locally", func(t *testing.T) {
		s := &documentServer{
			status: `{"documentId":"doc-1","softDeleted":true}`,
			holds:  `[{"id":"hold-1","documentId":"doc-1","caseReference":"C-1","placedAt":"2026-02-01T00:00:00Z"}]`,
		}
		err := newDocumentService(t, s).HardDelete(ctx, "doc-1")
		assert.Equal(t, dmserr.ReasonActiveLegalHold, dmserr.ReasonOf(err))
		assert.Zero(t, s.hardDelete.Load())
	})
}
