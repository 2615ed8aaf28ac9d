// Package paging holds the page envelope shared by the list endpoints.
package paging

import (
	"encoding/json"
	"strconv"
)

const (
	// DefaultPageSize is used when a request leaves the size unset.
	DefaultPageSize = 20

	// MaxPageSize is the largest size the server accepts.
	MaxPageSize = 100
)

// Page is one page of results.
type Page[T any] struct {
	Results    []T   `json:"results"`
	TotalCount int64 `json:"totalCount"`
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	TotalPages int   `json:"totalPages"`
}

// HasNext reports whether another page follows.
func (p Page[T]) HasNext() bool {
	return p.Page+1 < p.TotalPages
}

// wirePage accepts both the search envelope and the Spring Data layout
// (content/totalElements/number/size) used by the audit and type listings.
type wirePage[T any] struct {
	Results       []T   `json:"results"`
	TotalCount    int64 `json:"totalCount"`
	Page          int   `json:"page"`
	PageSize      int   `json:"pageSize"`
	TotalPages    int   `json:"totalPages"`
	Content       []T   `json:"content"`
	TotalElements int64 `json:"totalElements"`
	Number        int   `json:"number"`
	Size          int   `json:"size"`
}

// UnmarshalJSON decodes either page layout.
func (p *Page[T]) UnmarshalJSON(data []byte) error {
	var w wirePage[T]
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.Content != nil && w.Results == nil {
		*p = Page[T]{
			Results:    w.Content,
			TotalCount: w.TotalElements,
			Page:       w.Number,
			PageSize:   w.Size,
			TotalPages: w.TotalPages,
		}
		return nil
	}
	*p = Page[T]{
		Results:    w.Results,
		TotalCount: w.TotalCount,
		Page:       w.Page,
		PageSize:   w.PageSize,
		TotalPages: w.TotalPages,
	}
	return nil
}

// Params selects a page. Page is zero-based.
type Params struct {
	Page     int
	PageSize int
}

// Normalize clamps the params into the accepted range.
func (p Params) Normalize() Params {
	if p.Page < 0 {
		p.Page = 0
	}
	if p.PageSize <= 0 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

// Query returns the params as query-string values. The size is sent both
// as pageSize and as size, the name Spring Data's Pageable binds.
func (p Params) Query() map[string]string {
	n := p.Normalize()
	size := strconv.Itoa(n.PageSize)
	return map[string]string{
		"page":     strconv.Itoa(n.Page),
		"pageSize": size,
		"size":     size,
	}
}
