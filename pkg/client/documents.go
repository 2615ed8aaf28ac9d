package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"

	"github.com/txn2/dms-client/pkg/dmserr"
	"github.com/txn2/dms-client/pkg/document"
	"github.com/txn2/dms-client/pkg/paging"
	"github.com/txn2/dms-client/pkg/retention"
	"github.com/txn2/dms-client/pkg/search"
)

// ListOptions selects a page of the document listing.
type ListOptions struct {
	paging.Params
	IncludeDeleted bool
}

// Upload creates a document. When the server omits the content hash the
// locally computed SHA-256 is filled in.
func (c *Client) Upload(ctx context.Context, req document.UploadRequest, file document.File) (document.Document, error) {
	if err := req.Validate(); err != nil {
		return document.Document{}, err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := writeJSONPart(mw, "request", req); err != nil {
		return document.Document{}, err
	}
	hash, size, err := writeFilePart(mw, file)
	if err != nil {
		return document.Document{}, err
	}
	if err := mw.Close(); err != nil {
		return document.Document{}, fmt.Errorf("closing multipart body: %w", err)
	}

	var d document.Document
	err = c.do(ctx, call{
		method:      http.MethodPost,
		tmpl:        documentsPath,
		body:        &buf,
		contentType: mw.FormDataContentType(),
	}, &d)
	if err != nil {
		return document.Document{}, err
	}
	if d.ContentHash == "" {
		d.ContentHash = hash
	}
	if d.SizeBytes == 0 {
		d.SizeBytes = size
	}
	return d, nil
}

// List returns a page of documents.
func (c *Client) List(ctx context.Context, opts ListOptions) (paging.Page[document.Document], error) {
	query := opts.Query()
	if opts.IncludeDeleted {
		query["includeDeleted"] = "true"
	}
	var page paging.Page[document.Document]
	err := c.do(ctx, call{method: http.MethodGet, tmpl: documentsPath, query: query}, &page)
	return page, err
}

// Get fetches one live document. A response that carries a deletion
// marker reports NotFound.
func (c *Client) Get(ctx context.Context, id string) (document.Document, error) {
	d, err := c.GetIncludingDeleted(ctx, id)
	if err != nil {
		return document.Document{}, err
	}
	if d.Status() == document.StatusSoftDeleted {
		return document.Document{}, dmserr.New(dmserr.KindNotFound, dmserr.ReasonSoftDeleted)
	}
	return d, nil
}

// GetIncludingDeleted fetches one document whatever its deletion state.
func (c *Client) GetIncludingDeleted(ctx context.Context, id string) (document.Document, error) {
	var d document.Document
	err := c.do(ctx, call{method: http.MethodGet, tmpl: documentPath, path: map[string]string{"id": id}}, &d)
	return d, err
}

// UpdateMetadata replaces a document's metadata.
func (c *Client) UpdateMetadata(ctx context.Context, id string, metadata map[string]any) (document.Document, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	var d document.Document
	err := c.do(ctx, call{
		method: http.MethodPut,
		tmpl:   documentMetadataPath,
		path:   map[string]string{"id": id},
		json:   map[string]any{"metadata": metadata},
	}, &d)
	return d, err
}

// UploadVersion appends a new version to a document.
func (c *Client) UploadVersion(ctx context.Context, id string, file document.File) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if _, _, err := writeFilePart(mw, file); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("closing multipart body: %w", err)
	}
	return c.do(ctx, call{
		method:      http.MethodPost,
		tmpl:        versionsPath,
		path:        map[string]string{"id": id},
		body:        &buf,
		contentType: mw.FormDataContentType(),
	}, nil)
}

// Versions returns a document's version history, newest first.
func (c *Client) Versions(ctx context.Context, id string) ([]document.Version, error) {
	var versions []document.Version
	err := c.do(ctx, call{method: http.MethodGet, tmpl: versionsPath, path: map[string]string{"id": id}}, &versions)
	if err != nil {
		return nil, err
	}
	if versions == nil {
		versions = []document.Version{}
	}
	return versions, nil
}

// DownloadVersion streams the content of one version into w.
func (c *Client) DownloadVersion(ctx context.Context, id string, version int, w io.Writer) (int64, error) {
	return c.copyTo(ctx, call{
		method: http.MethodGet,
		tmpl:   versionPath,
		path:   map[string]string{"id": id, "version": strconv.Itoa(version)},
	}, w)
}

// RestoreVersion makes a copy of an earlier version the current one.
func (c *Client) RestoreVersion(ctx context.Context, id string, version int) error {
	return c.do(ctx, call{
		method: http.MethodPost,
		tmpl:   versionRestorePath,
		path:   map[string]string{"id": id, "version": strconv.Itoa(version)},
	}, nil)
}

// SoftDelete hides a document. An empty reason is omitted.
func (c *Client) SoftDelete(ctx context.Context, id, reason string) error {
	return c.do(ctx, call{
		method: http.MethodDelete,
		tmpl:   documentDeletePath,
		path:   map[string]string{"id": id},
		query:  map[string]string{"reason": reason},
	}, nil)
}

// Restore un-deletes a soft-deleted document.
func (c *Client) Restore(ctx context.Context, id string) error {
	return c.do(ctx, call{method: http.MethodPost, tmpl: documentRestorePath, path: map[string]string{"id": id}}, nil)
}

// HardDelete permanently removes a document and its versions. The server
// refuses while a legal hold is active.
func (c *Client) HardDelete(ctx context.Context, id string) error {
	return c.do(ctx, call{method: http.MethodDelete, tmpl: documentHardDeletePath, path: map[string]string{"id": id}}, nil)
}

// Download streams the current content into w.
func (c *Client) Download(ctx context.Context, id string, w io.Writer) (int64, error) {
	return c.copyTo(ctx, call{method: http.MethodGet, tmpl: documentDownloadPath, path: map[string]string{"id": id}}, w)
}

// Preview streams the rendered preview into w.
func (c *Client) Preview(ctx context.Context, id string, w io.Writer) (int64, error) {
	return c.copyTo(ctx, call{method: http.MethodGet, tmpl: documentPreviewPath, path: map[string]string{"id": id}}, w)
}

// DownloadURL returns a pre-signed URL for the current content.
func (c *Client) DownloadURL(ctx context.Context, id string) (string, error) {
	var out struct {
		URL string `json:"url"`
	}
	err := c.do(ctx, call{method: http.MethodGet, tmpl: documentDownloadURL, path: map[string]string{"id": id}}, &out)
	return out.URL, err
}

// BulkDownload streams a zip of the selected documents into w.
func (c *Client) BulkDownload(ctx context.Context, ids []string, w io.Writer) (int64, error) {
	return c.copyTo(ctx, call{
		method: http.MethodPost,
		tmpl:   bulkDownloadPath,
		json:   search.BulkDownloadRequest{DocumentIDs: ids},
	}, w)
}

// RetentionStatus fetches the server's view of a document's retention.
func (c *Client) RetentionStatus(ctx context.Context, id string) (retention.Status, error) {
	var s retention.Status
	err := c.do(ctx, call{method: http.MethodGet, tmpl: retentionStatusPath, path: map[string]string{"id": id}}, &s)
	return s, err
}

// SetRetention overrides a document's retention period.
func (c *Client) SetRetention(ctx context.Context, id string, days int) error {
	if err := retention.ValidateRetentionDays(days); err != nil {
		return err
	}
	return c.do(ctx, call{
		method: http.MethodPost,
		tmpl:   retentionSetPath,
		path:   map[string]string{"id": id},
		json:   map[string]int{"retentionDays": days},
	}, nil)
}

func writeJSONPart(mw *multipart.Writer, name string, v any) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q`, name))
	h.Set("Content-Type", "application/json")
	part, err := mw.CreatePart(h)
	if err != nil {
		return fmt.Errorf("creating %s part: %w", name, err)
	}
	if err := json.NewEncoder(part).Encode(v); err != nil {
		return fmt.Errorf("encoding %s part: %w", name, err)
	}
	return nil
}

// writeFilePart copies the file into a "file" part, hashing it on the way.
func writeFilePart(mw *multipart.Writer, file document.File) (string, int64, error) {
	if file.Body == nil {
		return "", 0, dmserr.New(dmserr.KindValidation, "file is required")
	}
	name := file.Name
	if name == "" {
		name = "upload"
	}
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return "", 0, fmt.Errorf("creating file part: %w", err)
	}

	hash, size, err := document.HashContent(io.TeeReader(file.Body, part))
	if err != nil {
		return "", 0, fmt.Errorf("reading file: %w", err)
	}
	return hash, size, nil
}

// Verify interface compliance.
var _ document.Remote = (*Client)(nil)
