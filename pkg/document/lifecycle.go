package document

import (
	"maps"
	"time"

	"github.com/txn2/dms-client/pkg/dmserr"
	"github.com/txn2/dms-client/pkg/retention"
)

// The functions below are the lifecycle transitions. Each takes the current
// record and returns the next one without touching its input.

// Create returns a new active document with version 1.
func Create(id string, in UploadRequest, content Content, by string, at time.Time) (Document, Version) {
	d := Document{
		ID:             id,
		DocumentTypeID: in.DocumentTypeID,
		CurrentVersion: 1,
		Metadata:       maps.Clone(in.Metadata),
		BlobPath:       content.BlobPath,
		SizeBytes:      content.SizeBytes,
		ContentHash:    content.ContentHash,
		CreatedAt:      at,
		CreatedBy:      by,
	}
	v := Version{
		DocumentID:    id,
		VersionNumber: 1,
		BlobPath:      content.BlobPath,
		SizeBytes:     content.SizeBytes,
		ContentHash:   content.ContentHash,
		CreatedBy:     by,
		CreatedAt:     at,
	}
	return d, v
}

// AppendVersion adds the next version. Only active documents take new
// versions.
func AppendVersion(d Document, content Content, by string, at time.Time) (Document, Version, error) {
	if d.Status() != StatusActive {
		return d, Version{}, dmserr.New(dmserr.KindPolicyViolation, dmserr.ReasonDeletedNoVersion)
	}
	next := d.Clone()
	next.CurrentVersion = d.CurrentVersion + 1
	next.BlobPath = content.BlobPath
	next.SizeBytes = content.SizeBytes
	next.ContentHash = content.ContentHash
	next.ModifiedAt = &at
	next.ModifiedBy = &by

	v := Version{
		DocumentID:    d.ID,
		VersionNumber: next.CurrentVersion,
		BlobPath:      content.BlobPath,
		SizeBytes:     content.SizeBytes,
		ContentHash:   content.ContentHash,
		CreatedBy:     by,
		CreatedAt:     at,
	}
	return next, v, nil
}

// RestoreVersion appends a new version whose content is a copy of old.
func RestoreVersion(d Document, old Version, by string, at time.Time) (Document, Version, error) {
	return AppendVersion(d, Content{
		BlobPath:    old.BlobPath,
		SizeBytes:   old.SizeBytes,
		ContentHash: old.ContentHash,
	}, by, at)
}

// SoftDelete hides an active document.
func SoftDelete(d Document, by string, at time.Time) (Document, error) {
	if d.Status() != StatusActive {
		return d, dmserr.New(dmserr.KindPolicyViolation, dmserr.ReasonAlreadyDeleted)
	}
	next := d.Clone()
	next.DeletedAt = &at
	next.DeletedBy = &by
	return next, nil
}

// Restore returns a soft-deleted document to active. The current version
// number is left as it was before deletion.
func Restore(d Document) (Document, error) {
	if d.Status() != StatusSoftDeleted {
		return d, dmserr.New(dmserr.KindPolicyViolation, dmserr.ReasonNotDeleted)
	}
	next := d.Clone()
	next.DeletedAt = nil
	next.DeletedBy = nil
	return next, nil
}

// UpdateMetadata replaces the metadata. It is allowed in any live state and
// leaves the version number alone.
func UpdateMetadata(d Document, metadata map[string]any, by string, at time.Time) Document {
	next := d.Clone()
	next.Metadata = maps.Clone(metadata)
	next.ModifiedAt = &at
	next.ModifiedBy = &by
	return next
}

// CheckHardDelete reports why d may not be permanently deleted, or nil when
// it may. An active hold is checked first and always wins.
func CheckHardDelete(d Document, hasActiveLegalHolds bool) error {
	return checkPurge(d.Status() == StatusSoftDeleted, hasActiveLegalHolds)
}

func checkPurge(softDeleted, hasActiveLegalHolds bool) error {
	s := retention.Evaluate(retention.Input{
		HasActiveLegalHolds: hasActiveLegalHolds,
		IsSoftDeleted:       softDeleted,
	})
	if s.IsEligibleForHardDelete {
		return nil
	}
	if s.HasActiveLegalHolds {
		return dmserr.New(dmserr.KindPolicyViolation, dmserr.ReasonActiveLegalHold)
	}
	return dmserr.New(dmserr.KindPolicyViolation, dmserr.ReasonNotSoftDeleted)
}

// CurrentOf returns the highest version number in versions.
func CurrentOf(versions []Version) int {
	highest := 0
	for _, v := range versions {
		highest = max(highest, v.VersionNumber)
	}
	return highest
}
