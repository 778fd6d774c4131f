package usecase

import (
	"context"

	"github.com/atvirokodosprendimai/civicregistry/internal/core/domain"
	"github.com/atvirokodosprendimai/civicregistry/internal/core/ports"
)

type AuditService struct {
	repo ports.AuditTrailRepository
}

func NewAuditService(repo ports.AuditTrailRepository) *AuditService {
	return &AuditService{repo: repo}
}

// ListForPerson returns the audit trail of one registry entry, newest first.
func (s *AuditService) ListForPerson(ctx context.Context, personID uint64, filter domain.AuditFilter) ([]domain.AuditEntry, error) {
	if personID == 0 {
		return nil, &domain.ValidationError{Field: "person_id", Reason: "must not be zero"}
	}
	filter.PersonID = personID
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	if filter.Limit > 1000 {
		filter.Limit = 1000
	}
	return s.repo.List(ctx, filter)
}
