// Package retention computes a document's retention status. The status is
// derived on every read from the document type's policy, the document's
// anchor time and its hold state; it is never stored.
package retention

import (
	"encoding/json"
	"math"
	"time"

	"github.com/txn2/dms-client/pkg/dmserr"
)

const (
	// MaxRetentionDays is the largest retention period a type may declare.
	MaxRetentionDays = 36500

	// DefaultWarningDays is the window used by Expiring when none is given.
	DefaultWarningDays = 30

	day = 24 * time.Hour
)

// Status is the derived retention view of one document.
type Status struct {
	DocumentID              string     `json:"documentId"`
	DocumentType            string     `json:"documentType"`
	DefaultRetentionDays    int        `json:"defaultRetentionDays"`
	RetentionExpiresAt      *time.Time `json:"retentionExpiresAt"`
	DaysUntilRetention      *int64     `json:"daysUntilRetention"`
	HasActiveLegalHolds     bool       `json:"hasActiveLegalHolds"`
	IsEligibleForHardDelete bool       `json:"isEligibleForHardDelete"`
	IsSoftDeleted           bool       `json:"isSoftDeleted"`
}

// UnmarshalJSON accepts the boolean flags with or without the "is" prefix;
// the server's serializer drops it from boolean getters.
func (s *Status) UnmarshalJSON(data []byte) error {
	type plain Status
	var wire struct {
		plain
		SoftDeleted           *bool `json:"softDeleted"`
		EligibleForHardDelete *bool `json:"eligibleForHardDelete"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*s = Status(wire.plain)
	if wire.SoftDeleted != nil {
		s.IsSoftDeleted = *wire.SoftDeleted
	}
	if wire.EligibleForHardDelete != nil {
		s.IsEligibleForHardDelete = *wire.EligibleForHardDelete
	}
	return nil
}

// Input carries everything Evaluate needs.
type Input struct {
	DocumentID           string
	DocumentType         string
	DefaultRetentionDays int

	// Anchor is the instant the retention clock started, normally the
	// document's creation time.
	Anchor time.Time

	// ExpiresAt, when set, is an expiry already computed by the server and
	// replaces Anchor plus DefaultRetentionDays.
	ExpiresAt *time.Time

	Now                 time.Time
	HasActiveLegalHolds bool
	IsSoftDeleted       bool
}

// Evaluate derives the retention status. Eligibility for hard delete is
// soft-deleted and not held, regardless of how much retention has elapsed.
// While any hold is active the countdown is suspended and DaysUntilRetention
// is nil. A type with no retention period (zero days) has no expiry.
func Evaluate(in Input) Status {
	s := Status{
		DocumentID:              in.DocumentID,
		DocumentType:            in.DocumentType,
		DefaultRetentionDays:    in.DefaultRetentionDays,
		HasActiveLegalHolds:     in.HasActiveLegalHolds,
		IsSoftDeleted:           in.IsSoftDeleted,
		IsEligibleForHardDelete: in.IsSoftDeleted && !in.HasActiveLegalHolds,
	}

	var expires time.Time
	switch {
	case in.ExpiresAt != nil:
		expires = *in.ExpiresAt
	case in.DefaultRetentionDays <= 0 || in.Anchor.IsZero():
		return s
	default:
		expires = in.Anchor.AddDate(0, 0, in.DefaultRetentionDays)
	}
	s.RetentionExpiresAt = &expires

	if !in.HasActiveLegalHolds {
		days := DaysUntil(expires, in.Now)
		s.DaysUntilRetention = &days
	}
	return s
}

// DaysUntil returns max(0, ceil(expires-now)) in whole days.
func DaysUntil(expires, now time.Time) int64 {
	remaining := expires.Sub(now)
	if remaining <= 0 {
		return 0
	}
	if remaining == math.MaxInt64 {
		// Sub saturates past about 292 years.
		const secondsPerDay = int64(day / time.Second)
		return (expires.Unix() - now.Unix() + secondsPerDay - 1) / secondsPerDay
	}
	return int64(math.Ceil(float64(remaining) / float64(day)))
}

// Expired reports whether the retention period of s has elapsed at now.
// A status without an expiry never expires.
func (s Status) Expired(now time.Time) bool {
	return s.RetentionExpiresAt != nil && !now.Before(*s.RetentionExpiresAt)
}

// ValidateRetentionDays checks a retention period before it is sent.
func ValidateRetentionDays(days int) error {
	if days < 0 || days > MaxRetentionDays {
		return dmserr.New(dmserr.KindValidation, dmserr.ReasonInvalidRetention)
	}
	return nil
}

// Expiring returns the statuses whose retention ends within window of now
// and that are not suspended by a hold. A non-positive window uses
// DefaultWarningDays.
func Expiring(statuses []Status, now time.Time, window time.Duration) []Status {
	if window <= 0 {
		window = DefaultWarningDays * day
	}
	limit := now.Add(window)

	var result []Status
	for _, s := range statuses {
		if s.RetentionExpiresAt == nil || s.HasActiveLegalHolds {
			continue
		}
		if s.RetentionExpiresAt.After(now) && !s.RetentionExpiresAt.After(limit) {
			result = append(result, s)
		}
	}
	return result
}

// Counts is the server's summary of documents awaiting purge.
type Counts struct {
	ExpiredDocuments int64 `json:"expiredDocuments"`
	ActiveLegalHolds int64 `json:"activeLegalHolds"`
}

// CleanupResult acknowledges a retention processing run. The server
// processes asynchronously and usually reports only a status.
type CleanupResult struct {
	ProcessedCount *int64 `json:"processedCount,omitempty"`
	Status         string `json:"status,omitempty"`
}
