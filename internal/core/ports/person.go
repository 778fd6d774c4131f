package ports

import (
	"context"
	"time"

	"github.com/atvirokodosprendimai/civicregistry/internal/core/domain"
)

// PersonRepository is the storage port for registry entries. There is no
// delete operation: logical deletion goes through Update with the Deleted
// flag stamped, so the physical row is always retained.
//
// Create and Update append an audit-trail row and an outbox change event in
// the same transaction as the mutation; action names the audit action.
// Lookups used for uniqueness checks match non-deleted rows only.
type PersonRepository interface {
	Create(ctx context.Context, person domain.Person, action string) (domain.Person, error)
	Update(ctx context.Context, person domain.Person, action string) (domain.Person, error)

	FindByID(ctx context.Context, id uint64, includeDeleted bool) (domain.Person, error)
	FindByEmail(ctx context.Context, email string) (domain.Person, error)
	FindByNationalID(ctx context.Context, nationalID string) (domain.Person, error)
	FindByTaxID(ctx context.Context, taxID string) (domain.Person, error)

	List(ctx context.Context, filter domain.PersonListFilter) (domain.PersonPage, error)
	Search(ctx context.Context, term string, filter domain.PersonListFilter) (domain.PersonPage, error)
	FindByLastName(ctx context.Context, lastName string) ([]domain.Person, error)
	FindByCity(ctx context.Context, city string) ([]domain.Person, error)
	FindByDateOfBirth(ctx context.Context, dateOfBirth time.Time) ([]domain.Person, error)
	FindByBirthDateRange(ctx context.Context, start, end time.Time) ([]domain.Person, error)
	CountByCity(ctx context.Context, city string) (int64, error)
}
