package client

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/dms-client/pkg/dmserr"
)

func TestRetentionCounts(t *testing.T) {
	c := newTestClient(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/admin/retention/count", r.URL.Path)
		writeJSON(w, http.StatusOK, `{"expiredDocuments":12,"activeLegalHolds":3}`)
	})

	counts, err := c.RetentionCounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(12), counts.ExpiredDocuments)
	assert.Equal(t, int64(3), counts.ActiveLegalHolds)
}

func TestProcessRetention(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		c := newTestClient(t, "tok", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/v1/admin/retention/process", r.URL.Path)
			writeJSON(w, http.StatusAccepted, `{"status":"triggered"}`)
		})

		result, err := c.ProcessRetention(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "triggered", result.Status)
		assert.Nil(t, result.ProcessedCount)
	})

	t.Run("requires administrator", func(t *testing.T) {
		c := newTestClient(t, "tok", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusForbidden, `{"errorCode":"ACCESS_DENIED","message":"Access denied"}`)
		})

		_, err := c.ProcessRetention(context.Background())
		assert.ErrorIs(t, err, dmserr.ErrAuthorizationDenied)
	})
}
