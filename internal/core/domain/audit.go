package domain

import "time"

// AuditMetadata carries the write-side provenance every registry record
// retains. CreatedAt and CreatedBy are set exactly once at first persistence;
// UpdatedAt and UpdatedBy are refreshed on every mutation, including soft
// deletion. A record with Deleted set is logically gone but physically kept.
type AuditMetadata struct {
	CreatedAt time.Time
	UpdatedAt time.Time
	CreatedBy string
	UpdatedBy string
	Deleted   bool
}

// Auditable is implemented by any record that embeds AuditMetadata.
type Auditable interface {
	Audit() *AuditMetadata
}

func StampCreated(rec Auditable, actor string, now time.Time) {
	meta := rec.Audit()
	meta.CreatedAt = now
	meta.UpdatedAt = now
	meta.CreatedBy = actor
	meta.UpdatedBy = actor
	meta.Deleted = false
}

func StampUpdated(rec Auditable, actor string, now time.Time) {
	meta := rec.Audit()
	meta.UpdatedAt = now
	meta.UpdatedBy = actor
}

// StampDeleted marks the record logically deleted. The physical row stays.
func StampDeleted(rec Auditable, actor string, now time.Time) {
	meta := rec.Audit()
	meta.Deleted = true
	meta.UpdatedAt = now
	meta.UpdatedBy = actor
}
