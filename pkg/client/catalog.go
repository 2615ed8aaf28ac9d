package client

import (
	"context"
	"net/http"

	"github.com/txn2/dms-client/pkg/doctype"
	"github.com/txn2/dms-client/pkg/group"
	"github.com/txn2/dms-client/pkg/paging"
)

// DocumentTypes returns the active document types.
func (c *Client) DocumentTypes(ctx context.Context) ([]doctype.DocumentType, error) {
	var types []doctype.DocumentType
	err := c.do(ctx, call{method: http.MethodGet, tmpl: activeDocumentTypesPath}, &types)
	return types, err
}

// ListDocumentTypes returns a page of all document types, active or not.
func (c *Client) ListDocumentTypes(ctx context.Context, p paging.Params) (paging.Page[doctype.DocumentType], error) {
	var page paging.Page[doctype.DocumentType]
	err := c.do(ctx, call{method: http.MethodGet, tmpl: documentTypesPath, query: p.Query()}, &page)
	return page, err
}

// Groups returns a page of groups.
func (c *Client) Groups(ctx context.Context, p paging.Params) (paging.Page[group.Group], error) {
	var page paging.Page[group.Group]
	err := c.do(ctx, call{method: http.MethodGet, tmpl: groupsPath, query: p.Query()}, &page)
	return page, err
}

// AllGroups follows every page of the group listing.
func (c *Client) AllGroups(ctx context.Context) ([]group.Group, error) {
	var all []group.Group
	p := paging.Params{PageSize: paging.MaxPageSize}
	for {
		page, err := c.Groups(ctx, p)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Results...)
		if !page.HasNext() || len(page.Results) == 0 {
			return all, nil
		}
		p.Page++
	}
}

// Verify interface compliance.
var _ doctype.Lister = (*Client)(nil)
