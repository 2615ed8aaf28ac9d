// Package doctype describes document types and their retention policy.
package doctype

import (
	"context"
	"sync"

	"github.com/txn2/dms-client/pkg/dmserr"
)

// DocumentType is a tenant's classification of documents.
type DocumentType struct {
	ID             string         `json:"id"`
	TenantID       string         `json:"tenantId"`
	Name           string         `json:"name"`
	DisplayName    string         `json:"displayName"`
	Description    string         `json:"description"`
	MetadataSchema map[string]any `json:"metadataSchema,omitempty"`
	AllowedGroups  []string       `json:"allowedGroups,omitempty"`
	RetentionDays  int            `json:"retentionDays"`
	Active         bool           `json:"active"`
}

// Lister fetches the tenant's document types.
type Lister interface {
	DocumentTypes(ctx context.Context) ([]DocumentType, error)
}

// Lookup resolves a document type by id or by name. Document responses from
// the server carry only the type's name.
type Lookup interface {
	DocumentType(ctx context.Context, id string) (DocumentType, error)
	DocumentTypeByName(ctx context.Context, name string) (DocumentType, error)
}

// Catalog caches the listing of a Lister and answers lookups from it. A miss
// triggers one reload so newly created types are found.
type Catalog struct {
	source Lister

	mu     sync.RWMutex
	byID   map[string]DocumentType
	byName map[string]DocumentType
}

// NewCatalog creates a catalog over source.
func NewCatalog(source Lister) *Catalog {
	return &Catalog{source: source}
}

// DocumentType returns the type with the given id.
func (c *Catalog) DocumentType(ctx context.Context, id string) (DocumentType, error) {
	return c.lookup(ctx, func() map[string]DocumentType { return c.byID }, id)
}

// DocumentTypeByName returns the type with the given name.
func (c *Catalog) DocumentTypeByName(ctx context.Context, name string) (DocumentType, error) {
	return c.lookup(ctx, func() map[string]DocumentType { return c.byName }, name)
}

// lookup reads key from the index returned by index, reloading once on a
// miss. index is called with the read lock held.
func (c *Catalog) lookup(ctx context.Context, index func() map[string]DocumentType, key string) (DocumentType, error) {
	c.mu.RLock()
	dt, ok := index()[key]
	c.mu.RUnlock()
	if ok {
		return dt, nil
	}

	if err := c.Reload(ctx); err != nil {
		return DocumentType{}, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if dt, ok := index()[key]; ok {
		return dt, nil
	}
	return DocumentType{}, errTypeNotFound
}

var errTypeNotFound = dmserr.New(dmserr.KindNotFound, "document type not found")

// Reload replaces the cached listing.
func (c *Catalog) Reload(ctx context.Context) error {
	types, err := c.source.DocumentTypes(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID = Index(types)
	c.byName = make(map[string]DocumentType, len(types))
	for _, t := range types {
		c.byName[t.Name] = t
	}
	return nil
}

// Index maps types by id.
func Index(types []DocumentType) map[string]DocumentType {
	m := make(map[string]DocumentType, len(types))
	for _, t := range types {
		m[t.ID] = t
	}
	return m
}

// Static is a fixed Lookup, mostly for tests and offline use.
type Static map[string]DocumentType

// DocumentType implements Lookup.
func (s Static) DocumentType(_ context.Context, id string) (DocumentType, error) {
	if dt, ok := s[id]; ok {
		return dt, nil
	}
	return DocumentType{}, errTypeNotFound
}

// DocumentTypeByName implements Lookup.
func (s Static) DocumentTypeByName(_ context.Context, name string) (DocumentType, error) {
	for _, dt := range s {
		if dt.Name == name {
			return dt, nil
		}
	}
	return DocumentType{}, errTypeNotFound
}

// Verify interface compliance.
var (
	_ Lookup = (*Catalog)(nil)
	_ Lookup = Static(nil)
)
