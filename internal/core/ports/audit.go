package ports

import (
	"context"

	"github.com/atvirokodosprendimai/civicregistry/internal/core/domain"
)

// AuditTrailRepository reads the per-person audit trail. Rows are appended by
// the PersonRepository inside each mutation's transaction.
type AuditTrailRepository interface {
	List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, error)
}

type OutboxRepository interface {
	FetchPending(ctx context.Context, limit int) ([]domain.OutboxEvent, error)
	MarkDispatched(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, attempts int, nextAttemptAt string, errMsg string) error
	MarkDead(ctx context.Context, id int64, attempts int, errMsg string) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event domain.ChangeEnvelope) error
}
