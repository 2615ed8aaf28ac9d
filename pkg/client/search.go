package client

import (
	"context"
	"io"
	"net/http"

	"github.com/txn2/dms-client/pkg/paging"
	"github.com/txn2/dms-client/pkg/search"
)

// Search runs a structured search. Build req with search.Compose.
func (c *Client) Search(ctx context.Context, req search.Request) (search.Result, error) {
	var result search.Result
	err := c.do(ctx, call{method: http.MethodPost, tmpl: searchPath, json: req}, &result)
	return result, err
}

// SearchBulkDownload streams a zip of the selected search hits into w.
func (c *Client) SearchBulkDownload(ctx context.Context, ids []string, w io.Writer) (int64, error) {
	return c.copyTo(ctx, call{
		method: http.MethodPost,
		tmpl:   searchBulkDownloadPath,
		json:   search.BulkDownloadRequest{DocumentIDs: ids},
	}, w)
}

// HybridSearch runs a keyword plus semantic search over document chunks.
func (c *Client) HybridSearch(ctx context.Context, req search.HybridRequest, p paging.Params) (paging.Page[search.HybridResult], error) {
	var page paging.Page[search.HybridResult]
	if req.Query == "" {
		return page, errRequired("query")
	}
	err := c.do(ctx, call{
		method: http.MethodPost,
		tmpl:   hybridSearchPath,
		query:  p.Query(),
		json:   req,
	}, &page)
	return page, err
}
