package document

import (
	"context"
	"io"
	"strings"

	"github.com/txn2/dms-client/pkg/dmserr"
)

// UploadRequest is the JSON part of a document upload.
type UploadRequest struct {
	DocumentTypeID string         `json:"documentTypeId"`
	Metadata       map[string]any `json:"metadata"`
	IdempotencyKey string         `json:"idempotencyKey,omitempty"`
}

// Validate checks the required fields.
func (r UploadRequest) Validate() error {
	if strings.TrimSpace(r.DocumentTypeID) == "" {
		return dmserr.New(dmserr.KindValidation, "documentTypeId is required")
	}
	return nil
}

// File is the binary part of an upload.
type File struct {
	Name        string
	ContentType string
	Body        io.Reader
}

// Remote is the authoritative side of the lifecycle. The REST client
// implements it against the server; Model implements it in memory.
type Remote interface {
	Upload(ctx context.Context, req UploadRequest, file File) (Document, error)
	// Get excludes soft-deleted documents; GetIncludingDeleted does not.
	Get(ctx context.Context, id string) (Document, error)
	GetIncludingDeleted(ctx context.Context, id string) (Document, error)
	UpdateMetadata(ctx context.Context, id string, metadata map[string]any) (Document, error)
	UploadVersion(ctx context.Context, id string, file File) error
	Versions(ctx context.Context, id string) ([]Version, error)
	RestoreVersion(ctx context.Context, id string, version int) error
	SoftDelete(ctx context.Context, id, reason string) error
	Restore(ctx context.Context, id string) error
	HardDelete(ctx context.Context, id string) error
}
