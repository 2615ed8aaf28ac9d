package document

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/txn2/dms-client/pkg/dmserr"
)

// Store keeps document records and their version chains.
type Store interface {
	// Get returns a live document. Soft-deleted ids report NotFound with
	// ReasonSoftDeleted and permanently deleted ids with ReasonHardDeleted.
	Get(ctx context.Context, id string) (Document, error)

	// GetIncludingDeleted is Get that also returns soft-deleted documents.
	GetIncludingDeleted(ctx context.Context, id string) (Document, error)

	// List returns live documents, soft-deleted ones only when asked.
	List(ctx context.Context, includeDeleted bool) ([]Document, error)

	// Save inserts or replaces a document.
	Save(ctx context.Context, d Document) error

	// SaveVersions replaces the version chain of a document.
	SaveVersions(ctx context.Context, id string, versions []Version) error

	// AppendVersion adds one version to a chain.
	AppendVersion(ctx context.Context, v Version) error

	// Versions returns the chain ordered by version number. Unknown and
	// permanently deleted ids report NotFound.
	Versions(ctx context.Context, id string) ([]Version, error)

	// Remove permanently deletes a document and its versions.
	Remove(ctx context.Context, id string) error

	// Forget drops any record of id, including a deletion marker.
	Forget(ctx context.Context, id string) error
}

// MemoryStore implements Store in memory. Removed ids are remembered so
// later reads can say the document was permanently deleted.
type MemoryStore struct {
	mu       sync.RWMutex
	docs     map[string]Document
	versions map[string][]Version
	removed  map[string]struct{}
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:     make(map[string]Document),
		versions: make(map[string][]Version),
		removed:  make(map[string]struct{}),
	}
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, id string) (Document, error) {
	d, err := s.GetIncludingDeleted(ctx, id)
	if err != nil {
		return Document{}, err
	}
	if d.Status() == StatusSoftDeleted {
		return Document{}, dmserr.New(dmserr.KindNotFound, dmserr.ReasonSoftDeleted)
	}
	return d, nil
}

// GetIncludingDeleted implements Store.
func (s *MemoryStore) GetIncludingDeleted(_ context.Context, id string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.missing(id); err != nil {
		return Document{}, err
	}
	return s.docs[id].Clone(), nil
}

// List implements Store.
func (s *MemoryStore) List(_ context.Context, includeDeleted bool) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Document, 0, len(s.docs))
	for _, d := range s.docs {
		if d.Status() == StatusSoftDeleted && !includeDeleted {
			continue
		}
		result = append(result, d.Clone())
	}
	slices.SortFunc(result, func(a, b Document) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return result, nil
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, d Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.removed, d.ID)
	s.docs[d.ID] = d.Clone()
	return nil
}

// SaveVersions implements Store.
func (s *MemoryStore) SaveVersions(_ context.Context, id string, versions []Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chain := slices.Clone(versions)
	sortVersions(chain)
	s.versions[id] = chain
	return nil
}

// AppendVersion implements Store.
func (s *MemoryStore) AppendVersion(_ context.Context, v Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.missing(v.DocumentID); err != nil {
		return err
	}
	chain := append(s.versions[v.DocumentID], v)
	sortVersions(chain)
	s.versions[v.DocumentID] = chain
	return nil
}

// Versions implements Store.
func (s *MemoryStore) Versions(_ context.Context, id string) ([]Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.missing(id); err != nil {
		return nil, err
	}
	chain, ok := s.versions[id]
	if !ok {
		return []Version{}, nil
	}
	return slices.Clone(chain), nil
}

// Remove implements Store.
func (s *MemoryStore) Remove(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.docs, id)
	delete(s.versions, id)
	s.removed[id] = struct{}{}
	return nil
}

// Forget implements Store.
func (s *MemoryStore) Forget(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.docs, id)
	delete(s.versions, id)
	delete(s.removed, id)
	return nil
}

// missing must be called with the lock held.
func (s *MemoryStore) missing(id string) error {
	if _, gone := s.removed[id]; gone {
		return dmserr.New(dmserr.KindNotFound, dmserr.ReasonHardDeleted)
	}
	if _, ok := s.docs[id]; !ok {
		return dmserr.New(dmserr.KindNotFound, dmserr.ReasonDocumentNotFound)
	}
	return nil
}

func sortVersions(chain []Version) {
	slices.SortFunc(chain, func(a, b Version) int {
		return cmp.Compare(a.VersionNumber, b.VersionNumber)
	})
}

// Verify interface compliance.
var _ Store = (*MemoryStore)(nil)
