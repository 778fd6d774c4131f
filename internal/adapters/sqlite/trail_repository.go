package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/atvirokodosprendimai/civicregistry/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/civicregistry/internal/core/domain"
)

type auditEntryModel struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement"`
	PersonID   uint64    `gorm:"column:person_id;not null"`
	Action     string    `gorm:"column:action;not null"`
	Actor      string    `gorm:"column:actor;not null"`
	BeforeJSON string    `gorm:"column:before_json"`
	AfterJSON  string    `gorm:"column:after_json"`
	OccurredAt time.Time `gorm:"column:occurred_at;not null"`
}

func (auditEntryModel) TableName() string {
	return "persons_audit"
}

// AuditTrailRepository reads the persons_audit table. Rows are only ever
// appended, inside the person mutation's transaction.
type AuditTrailRepository struct {
	db *gormsqlite.DB
}

func NewAuditTrailRepository(db *gormsqlite.DB) *AuditTrailRepository {
	return &AuditTrailRepository{db: db}
}

func (r *AuditTrailRepository) List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, error) {
	var rows []auditEntryModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		query := tx.Model(&auditEntryModel{}).Where("person_id = ?", filter.PersonID)
		if filter.Action != "" {
			query = query.Where("action = ?", filter.Action)
		}
		if filter.AfterID > 0 {
			query = query.Where("id < ?", filter.AfterID)
		}
		return query.Order("id DESC").Limit(filter.Limit).Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}

	result := make([]domain.AuditEntry, 0, len(rows))
	for _, row := range rows {
		result = append(result, domain.AuditEntry{
			ID:         row.ID,
			PersonID:   row.PersonID,
			Action:     row.Action,
			Actor:      row.Actor,
			BeforeJSON: json.RawMessage(row.BeforeJSON),
			AfterJSON:  json.RawMessage(row.AfterJSON),
			OccurredAt: row.OccurredAt,
		})
	}
	return result, nil
}
