package credential

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/dms-client/pkg/dmserr"
)

const (
	credTestToken      = "aaa.bbb.ccc"
	credTestOtherToken = "ddd.eee.fff"
	credTestGoroutines = 10
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	got, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, store.Set(ctx, credTestToken))
	got, err = store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, credTestToken, got)

	require.NoError(t, store.Clear(ctx))
	got, err = store.Get(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFileStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "credential.yaml")
	store := NewFileStore(path)

	got, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Empty(t, got, "missing file reads as signed out")

	require.NoError(t, store.Set(ctx, credTestToken))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(fileMode), info.Mode().Perm())

	reopened := NewFileStore(path)
	got, err = reopened.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, credTestToken, got)

	require.NoError(t, store.Clear(ctx))
	require.NoError(t, store.Clear(ctx), "clearing twice is not an error")
	_, err = os.Stat(path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestFileStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credential.yaml")
	require.NoError(t, os.WriteFile(path, []byte("token: [unterminated"), fileMode))

	_, err := NewFileStore(path).Get(context.Background())
	assert.Error(t, err)
}

func TestHolder_Lifecycle(t *testing.T) {
	ctx := context.Background()
	durable := NewMemoryStore()
	h := NewHolder(durable)

	assert.False(t, h.Snapshot().Present())

	require.NoError(t, h.Login(ctx, "  "+credTestToken+"\n"))
	snap := h.Snapshot()
	assert.Equal(t, credTestToken, snap.Token)
	assert.Equal(t, uint64(1), snap.Version)
	stored, _ := durable.Get(ctx)
	assert.Equal(t, credTestToken, stored)

	require.NoError(t, h.Refresh(ctx, credTestOtherToken))
	assert.Equal(t, credTestOtherToken, h.Token())
	assert.Equal(t, uint64(2), h.Snapshot().Version)

	// The earlier snapshot is unaffected by later writes.
	assert.Equal(t, credTestToken, snap.Token)

	require.NoError(t, h.Logout(ctx))
	assert.False(t, h.Snapshot().Present())
	stored, _ = durable.Get(ctx)
	assert.Empty(t, stored)
}

func TestHolder_LoginRejectsEmpty(t *testing.T) {
	h := NewHolder(nil)
	err := h.Login(context.Background(), "   ")
	assert.ErrorIs(t, err, dmserr.ErrValidation)
}

func TestHolder_RefreshWithoutSession(t *testing.T) {
	h := NewHolder(nil)
	err := h.Refresh(context.Background(), credTestToken)
	assert.ErrorIs(t, err, dmserr.ErrAuthenticationMissing)
	assert.False(t, h.Snapshot().Present())
}

func TestHolder_Load(t *testing.T) {
	ctx := context.Background()
	durable := NewMemoryStore()
	require.NoError(t, durable.Set(ctx, credTestToken))

	h := NewHolder(durable)
	require.NoError(t, h.Load(ctx))
	assert.Equal(t, credTestToken, h.Token())
}

type failingStore struct{ MemoryStore }

func (*failingStore) Clear(context.Context) error { return errors.New("disk full") }

func TestHolder_LogoutClearsMemoryOnStoreFailure(t *testing.T) {
	ctx := context.Background()
	h := NewHolder(&failingStore{})
	require.NoError(t, h.Login(ctx, credTestToken))

	err := h.Logout(ctx)
	assert.Error(t, err)
	assert.False(t, h.Snapshot().Present())
}

func TestHolder_ConcurrentReaders(t *testing.T) {
	ctx := context.Background()
	h := NewHolder(nil)
	require.NoError(t, h.Login(ctx, credTestToken))

	var wg sync.WaitGroup
	for range credTestGoroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap := h.Snapshot()
			assert.Contains(t, []string{credTestToken, credTestOtherToken}, snap.Token)
		}()
	}
	require.NoError(t, h.Refresh(ctx, credTestOtherToken))
	wg.Wait()
}

func TestFingerprint(t *testing.T) {
	assert.Empty(t, Fingerprint(""))
	fp := Fingerprint(credTestToken)
	assert.Len(t, fp, 12)
	assert.Equal(t, fp, Snapshot{Token: credTestToken}.Fingerprint())
}
