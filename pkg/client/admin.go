package client

import (
	"context"
	"net/http"

	"github.com/txn2/dms-client/pkg/retention"
)

// RetentionCounts returns how many documents await purge and how many are
// held.
func (c *Client) RetentionCounts(ctx context.Context) (retention.Counts, error) {
	var counts retention.Counts
	err := c.do(ctx, call{method: http.MethodGet, tmpl: retentionCountPath}, &counts)
	return counts, err
}

// ProcessRetention asks the server to purge expired documents. The server
// runs the purge asynchronously; held documents are always skipped.
func (c *Client) ProcessRetention(ctx context.Context) (retention.CleanupResult, error) {
	var result retention.CleanupResult
	err := c.do(ctx, call{method: http.MethodPost, tmpl: retentionProcessPath, json: struct{}{}}, &result)
	return result, err
}
