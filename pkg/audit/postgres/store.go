// Package postgres provides PostgreSQL storage for archived audit logs.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/txn2/dms-client/pkg/audit"
)

const (
	defaultQueryCapacity = 100
	maxQueryCapacity     = 10000
	archiveTable         = "audit_archive"
)

// psq is the PostgreSQL statement builder with dollar placeholders.
var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// archiveColumns lists columns in insert and scan order.
var archiveColumns = []string{
	"id", "tenant_id", "action", "entity_type", "entity_id",
	"user_id", "client_ip", "correlation_id", "details", "timestamp",
}

// Store implements audit.Archive using PostgreSQL.
type Store struct {
	db            *sql.DB
	retentionDays int
}

// Config configures the PostgreSQL archive.
type Config struct {
	// RetentionDays bounds how long archived records are kept by Cleanup.
	// Zero keeps records forever.
	RetentionDays int
}

// New creates a new PostgreSQL archive.
func New(db *sql.DB, cfg Config) *Store {
	return &Store{
		db:            db,
		retentionDays: cfg.RetentionDays,
	}
}

// Save inserts logs in one statement, skipping ids already archived.
func (s *Store) Save(ctx context.Context, logs []audit.Log) (int, error) {
	if len(logs) == 0 {
		return 0, nil
	}

	qb := psq.Insert(archiveTable).Columns(archiveColumns...)
	for _, l := range logs {
		details, err := json.Marshal(audit.SanitizeDetails(l.Details))
		if err != nil {
			details = []byte("{}")
		}
		qb = qb.Values(
			l.ID,
			l.TenantID,
			l.Action,
			l.EntityType,
			l.EntityID,
			l.UserID,
			l.ClientIP,
			l.CorrelationID,
			details,
			l.Timestamp,
		)
	}
	qb = qb.Suffix("ON CONFLICT (id) DO NOTHING")

	query, args, err := qb.ToSql()
	if err != nil {
		return 0, fmt.Errorf("building archive insert: %w", err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("inserting audit archive: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading archive insert count: %w", err)
	}
	return int(n), nil
}

// applyArchiveFilter adds filter conditions to a SELECT builder.
func applyArchiveFilter(qb sq.SelectBuilder, filter audit.QueryFilter) sq.SelectBuilder {
	if filter.ID != "" {
		qb = qb.Where(sq.Eq{"id": filter.ID})
	}
	if filter.StartTime != nil {
		qb = qb.Where(sq.GtOrEq{"timestamp": *filter.StartTime})
	}
	if filter.EndTime != nil {
		qb = qb.Where(sq.LtOrEq{"timestamp": *filter.EndTime})
	}
	if filter.UserID != "" {
		qb = qb.Where(sq.Eq{"user_id": filter.UserID})
	}
	if filter.EntityID != "" {
		qb = qb.Where(sq.Eq{"entity_id": filter.EntityID})
	}
	if filter.Action != "" {
		qb = qb.Where(sq.Eq{"action": filter.Action})
	}
	if filter.EntityType != "" {
		qb = qb.Where(sq.Eq{"entity_type": filter.EntityType})
	}
	return qb
}

// Query retrieves archived logs matching the filter.
func (s *Store) Query(ctx context.Context, filter audit.QueryFilter) ([]audit.Log, error) {
	qb := applyArchiveFilter(psq.Select(archiveColumns...).From(archiveTable), filter)
	qb = qb.OrderBy("timestamp DESC")
	if filter.Limit > 0 {
		qb = qb.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		qb = qb.Offset(uint64(filter.Offset))
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building archive query: %w", err)
	}

	return s.executeQuery(ctx, query, args, filter.Limit)
}

// Count returns the number of archived logs matching the filter.
func (s *Store) Count(ctx context.Context, filter audit.QueryFilter) (int, error) {
	qb := applyArchiveFilter(psq.Select("COUNT(*)").From(archiveTable), filter)

	query, args, err := qb.ToSql()
	if err != nil {
		return 0, fmt.Errorf("building count query: %w", err)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting audit archive: %w", err)
	}
	return count, nil
}

// Statistics counts archived logs per action within [start, end].
func (s *Store) Statistics(ctx context.Context, start, end *time.Time) (audit.Statistics, error) {
	qb := applyArchiveFilter(
		psq.Select("action", "COUNT(*)").From(archiveTable),
		audit.QueryFilter{StartTime: start, EndTime: end},
	).GroupBy("action")

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building statistics query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit statistics: %w", err)
	}
	defer func() { _ = rows.Close() }()

	stats := audit.Statistics{}
	for rows.Next() {
		var action string
		var count int64
		if err := rows.Scan(&action, &count); err != nil {
			return nil, fmt.Errorf("scanning statistics row: %w", err)
		}
		stats[action] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating statistics rows: %w", err)
	}
	return stats, nil
}

func (s *Store) executeQuery(ctx context.Context, query string, args []any, limit int) ([]audit.Log, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit archive: %w", err)
	}
	defer func() { _ = rows.Close() }()

	allocCap := defaultQueryCapacity
	if limit > 0 && limit <= maxQueryCapacity {
		allocCap = limit
	}
	logs := make([]audit.Log, 0, allocCap)

	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit archive rows: %w", err)
	}

	return logs, nil
}

func scanLog(rows *sql.Rows) (audit.Log, error) {
	var l audit.Log
	var details []byte

	err := rows.Scan(
		&l.ID,
		&l.TenantID,
		&l.Action,
		&l.EntityType,
		&l.EntityID,
		&l.UserID,
		&l.ClientIP,
		&l.CorrelationID,
		&details,
		&l.Timestamp,
	)
	if err != nil {
		return l, fmt.Errorf("scanning audit archive row: %w", err)
	}

	if len(details) > 0 {
		_ = json.Unmarshal(details, &l.Details)
	}

	return l, nil
}

// Cleanup removes archived logs older than the retention period. It is a
// no-op when no retention period is configured.
func (s *Store) Cleanup(ctx context.Context) (int64, error) {
	if s.retentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().AddDate(0, 0, -s.retentionDays)
	result, err := s.db.ExecContext(ctx, `DELETE FROM audit_archive WHERE timestamp < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleaning up audit archive: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}

// Ping verifies the archive database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("pinging audit archive: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Verify interface compliance.
var _ audit.Archive = (*Store)(nil)
