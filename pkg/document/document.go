// Package document models the document lifecycle: upload, versioning, soft
// delete, restore and permanent deletion, and how legal holds and retention
// gate those transitions.
package document

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"maps"
	"time"
)

// Status is a document's lifecycle state.
type Status string

const (
	// StatusActive is a live document.
	StatusActive Status = "active"

	// StatusSoftDeleted is hidden but retained with its history.
	StatusSoftDeleted Status = "soft_deleted"

	// StatusHardDeleted is terminal; the record no longer exists.
	StatusHardDeleted Status = "hard_deleted"
)

// Document is a tenant-owned document record.
type Document struct {
	ID             string         `json:"id"`
	TenantID       string         `json:"tenantId,omitempty"`
	DocumentTypeID string         `json:"documentTypeId,omitempty"`
	CurrentVersion int            `json:"currentVersion"`
	Metadata       map[string]any `json:"metadata"`
	BlobPath       string         `json:"blobPath,omitempty"`
	SizeBytes      int64          `json:"fileSizeBytes"`
	ContentHash    string         `json:"contentHash,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	CreatedBy      string         `json:"createdBy"`
	ModifiedAt     *time.Time     `json:"modifiedAt"`
	ModifiedBy     *string        `json:"modifiedBy"`
	DeletedAt      *time.Time     `json:"deletedAt"`
	DeletedBy      *string        `json:"deletedBy"`

	// Fields the server adds to its document responses.
	DocumentTypeName   string     `json:"documentTypeName,omitempty"`
	HasActiveLegalHold bool       `json:"hasActiveLegalHold,omitempty"`
	RetentionExpiresAt *time.Time `json:"retentionExpiresAt,omitempty"`
}

// Status reports the lifecycle state of a live record.
func (d Document) Status() Status {
	if d.DeletedAt != nil {
		return StatusSoftDeleted
	}
	return StatusActive
}

// Clone returns a copy that shares no mutable state with d.
func (d Document) Clone() Document {
	c := d
	c.Metadata = maps.Clone(d.Metadata)
	c.ModifiedAt = clonePtr(d.ModifiedAt)
	c.ModifiedBy = clonePtr(d.ModifiedBy)
	c.DeletedAt = clonePtr(d.DeletedAt)
	c.DeletedBy = clonePtr(d.DeletedBy)
	c.RetentionExpiresAt = clonePtr(d.RetentionExpiresAt)
	return c
}

// Version is one immutable revision of a document's content.
type Version struct {
	DocumentID    string    `json:"documentId"`
	VersionNumber int       `json:"versionNumber"`
	BlobPath      string    `json:"blobPath"`
	SizeBytes     int64     `json:"fileSizeBytes"`
	ContentHash   string    `json:"contentHash"`
	CreatedBy     string    `json:"createdBy"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Content describes an uploaded blob.
type Content struct {
	BlobPath    string
	SizeBytes   int64
	ContentHash string
}

// HashContent reads r to the end and returns its SHA-256 hex digest and
// length.
func HashContent(r io.Reader) (string, int64, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", n, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
