// Package audit reads the server's append-only audit trail, exports it and
// optionally archives it into a local database.
package audit

import (
	"context"
	"time"
)

// Log is one audit record. The write side lives on the server; this
// client only reads, exports and archives.
type Log struct {
	ID            string         `json:"id"`
	TenantID      string         `json:"tenantId"`
	Action        string         `json:"action"`
	EntityType    string         `json:"entityType"`
	EntityID      string         `json:"entityId"`
	UserID        string         `json:"userId"`
	ClientIP      string         `json:"clientIp"`
	CorrelationID string         `json:"correlationId"`
	Details       map[string]any `json:"details,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
}

// Statistics counts audit records per action.
type Statistics map[string]int64

// Total returns the sum over all actions.
func (s Statistics) Total() int64 {
	var total int64
	for _, n := range s {
		total += n
	}
	return total
}

// QueryFilter defines criteria for querying archived records.
type QueryFilter struct {
	ID         string
	StartTime  *time.Time
	EndTime    *time.Time
	UserID     string
	EntityID   string
	Action     string
	EntityType string
	Limit      int
	Offset     int
}

// Archive keeps a local copy of fetched audit records.
type Archive interface {
	// Save stores records, skipping ids already archived, and returns how
	// many were new.
	Save(ctx context.Context, logs []Log) (int, error)

	// Query retrieves archived records matching the filter, newest first.
	Query(ctx context.Context, filter QueryFilter) ([]Log, error)

	// Statistics counts archived records per action in a time range.
	Statistics(ctx context.Context, start, end *time.Time) (Statistics, error)

	// Close releases resources.
	Close() error
}
