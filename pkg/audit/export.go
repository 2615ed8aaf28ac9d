package audit

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// CSVHeader is the fixed column order of an export.
var CSVHeader = []string{
	"id", "timestamp", "tenantId", "action", "entityType", "entityId",
	"userId", "clientIp", "correlationId", "details",
}

// Exporter writes audit records as CSV. Details are sanitized and
// JSON-encoded into a single column.
type Exporter struct {
	w      *csv.Writer
	header bool
	rows   int
}

// NewExporter creates an exporter writing to w.
func NewExporter(w io.Writer) *Exporter {
	return &Exporter{w: csv.NewWriter(w)}
}

// Write appends records, emitting the header before the first one.
func (e *Exporter) Write(logs []Log) error {
	if !e.header {
		if err := e.w.Write(CSVHeader); err != nil {
			return fmt.Errorf("writing csv header: %w", err)
		}
		e.header = true
	}
	for _, l := range logs {
		row, err := csvRow(l)
		if err != nil {
			return err
		}
		if err := e.w.Write(row); err != nil {
			return fmt.Errorf("writing csv row %s: %w", l.ID, err)
		}
		e.rows++
	}
	return nil
}

// Flush writes buffered rows and returns any write error. A header is
// emitted even when no records were written.
func (e *Exporter) Flush() error {
	if !e.header {
		if err := e.Write(nil); err != nil {
			return err
		}
	}
	e.w.Flush()
	if err := e.w.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}
	return nil
}

// Rows returns the number of records written.
func (e *Exporter) Rows() int {
	return e.rows
}

// WriteCSV exports logs to w in one call.
func WriteCSV(w io.Writer, logs []Log) error {
	e := NewExporter(w)
	if err := e.Write(logs); err != nil {
		return err
	}
	return e.Flush()
}

func csvRow(l Log) ([]string, error) {
	details := ""
	if len(l.Details) > 0 {
		data, err := json.Marshal(SanitizeDetails(l.Details))
		if err != nil {
			return nil, fmt.Errorf("encoding details of %s: %w", l.ID, err)
		}
		details = string(data)
	}
	return []string{
		l.ID,
		l.Timestamp.UTC().Format(time.RFC3339),
		l.TenantID,
		l.Action,
		l.EntityType,
		l.EntityID,
		l.UserID,
		l.ClientIP,
		l.CorrelationID,
		details,
	}, nil
}
