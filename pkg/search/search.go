// Package search builds search requests for the document search endpoints.
package search

import (
	"maps"
	"strings"

	"github.com/txn2/dms-client/pkg/document"
	"github.com/txn2/dms-client/pkg/paging"
)

// QueryKey is the metadata key that carries the free-text query.
const QueryKey = "query"

// Request is the body of a structured search.
type Request struct {
	DocumentType   string         `json:"documentType,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	DateFrom       string         `json:"dateFrom,omitempty"`
	DateTo         string         `json:"dateTo,omitempty"`
	IncludeDeleted bool           `json:"includeDeleted,omitempty"`
	Page           *int           `json:"page,omitempty"`
	PageSize       *int           `json:"pageSize,omitempty"`
}

// Compose merges trimmed free text into the filters' metadata under
// QueryKey, replacing any query already there. An empty resulting metadata
// map is returned as nil so it is omitted on the wire. filters is not
// modified.
func Compose(freeText string, filters Request) Request {
	out := filters

	var metadata map[string]any
	if len(filters.Metadata) > 0 {
		metadata = maps.Clone(filters.Metadata)
	}

	if q := strings.TrimSpace(freeText); q != "" {
		if metadata == nil {
			metadata = make(map[string]any, 1)
		}
		metadata[QueryKey] = q
	}

	out.Metadata = metadata
	if out.Page != nil {
		p := *out.Page
		out.Page = &p
	}
	if out.PageSize != nil {
		p := *out.PageSize
		out.PageSize = &p
	}
	return out
}

// WithPage returns r selecting the given page.
func (r Request) WithPage(p paging.Params) Request {
	n := p.Normalize()
	r.Page = &n.Page
	r.PageSize = &n.PageSize
	return r
}

// Result is a page of matching documents.
type Result = paging.Page[document.Document]

// HybridRequest is the body of a hybrid (keyword plus semantic) search.
type HybridRequest struct {
	Query string `json:"query"`
}

// HybridResult is one matching chunk of a document.
type HybridResult struct {
	ChunkID        string  `json:"chunkId"`
	DocumentID     string  `json:"documentId"`
	SequenceNumber int     `json:"sequenceNumber"`
	Content        string  `json:"content"`
	TokenCount     int     `json:"tokenCount"`
	RelevanceScore float64 `json:"relevanceScore"`
	SearchType     string  `json:"searchType"`
	CreatedAt      string  `json:"createdAt"`
}

// BulkDownloadRequest selects documents for a zip download.
type BulkDownloadRequest struct {
	DocumentIDs []string `json:"documentIds"`
}
