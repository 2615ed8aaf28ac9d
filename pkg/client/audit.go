package client

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/txn2/dms-client/pkg/audit"
	"github.com/txn2/dms-client/pkg/dmserr"
	"github.com/txn2/dms-client/pkg/paging"
)

// AuditPageSize is the page size used when audit params leave it unset.
const AuditPageSize = 50

// Export formats accepted by ExportAudit.
const (
	ExportCSV  = "csv"
	ExportJSON = "json"
)

func auditQuery(p paging.Params) map[string]string {
	if p.PageSize <= 0 {
		p.PageSize = AuditPageSize
	}
	return p.Query()
}

func timeRange(start, end *time.Time) map[string]string {
	q := map[string]string{}
	if start != nil {
		q["startTime"] = start.UTC().Format(time.RFC3339)
	}
	if end != nil {
		q["endTime"] = end.UTC().Format(time.RFC3339)
	}
	return q
}

// AuditLogs returns a page of the tenant's audit trail, newest first.
func (c *Client) AuditLogs(ctx context.Context, p paging.Params) (paging.Page[audit.Log], error) {
	var page paging.Page[audit.Log]
	err := c.do(ctx, call{method: http.MethodGet, tmpl: auditLogsPath, query: auditQuery(p)}, &page)
	return page, err
}

// AuditLog returns one audit record.
func (c *Client) AuditLog(ctx context.Context, id string) (audit.Log, error) {
	var l audit.Log
	err := c.do(ctx, call{method: http.MethodGet, tmpl: auditLogPath, path: map[string]string{"id": id}}, &l)
	return l, err
}

// DocumentAuditTrail returns a page of the records about one document.
func (c *Client) DocumentAuditTrail(ctx context.Context, documentID string, p paging.Params) (paging.Page[audit.Log], error) {
	var page paging.Page[audit.Log]
	err := c.do(ctx, call{
		method: http.MethodGet,
		tmpl:   auditDocumentPath,
		path:   map[string]string{"id": documentID},
		query:  auditQuery(p),
	}, &page)
	return page, err
}

// UserAuditTrail returns a page of the records produced by one user.
func (c *Client) UserAuditTrail(ctx context.Context, userID string, p paging.Params) (paging.Page[audit.Log], error) {
	var page paging.Page[audit.Log]
	err := c.do(ctx, call{
		method: http.MethodGet,
		tmpl:   auditUserPath,
		path:   map[string]string{"id": userID},
		query:  auditQuery(p),
	}, &page)
	return page, err
}

// AuditStatistics counts audit records per action. Nil bounds are open.
func (c *Client) AuditStatistics(ctx context.Context, start, end *time.Time) (audit.Statistics, error) {
	stats := audit.Statistics{}
	err := c.do(ctx, call{method: http.MethodGet, tmpl: auditStatisticsPath, query: timeRange(start, end)}, &stats)
	return stats, err
}

// ExportAudit streams the server-side export into w. An empty format
// means CSV.
func (c *Client) ExportAudit(ctx context.Context, format string, start, end *time.Time, w io.Writer) (int64, error) {
	if format == "" {
		format = ExportCSV
	}
	if format != ExportCSV && format != ExportJSON {
		return 0, dmserr.New(dmserr.KindValidation, "unsupported export format "+format)
	}
	q := timeRange(start, end)
	q["format"] = format
	return c.copyTo(ctx, call{method: http.MethodPost, tmpl: auditExportPath, query: q}, w)
}

// EachAuditPage walks the audit trail page by page until fn returns an
// error or the last page is reached. A non-positive limit walks every page.
func (c *Client) EachAuditPage(ctx context.Context, pageSize, limit int, fn func([]audit.Log) error) error {
	p := paging.Params{PageSize: pageSize}
	seen := 0
	for {
		page, err := c.AuditLogs(ctx, p)
		if err != nil {
			return err
		}
		logs := page.Results
		if limit > 0 && seen+len(logs) > limit {
			logs = logs[:limit-seen]
		}
		if len(logs) > 0 {
			if err := fn(logs); err != nil {
				return err
			}
		}
		seen += len(logs)
		if !page.HasNext() || len(page.Results) == 0 || (limit > 0 && seen >= limit) {
			return nil
		}
		p.Page++
	}
}
