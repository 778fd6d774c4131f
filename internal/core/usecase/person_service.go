package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/civicregistry/internal/core/domain"
	"github.com/atvirokodosprendimai/civicregistry/internal/core/ports"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// PersonService governs the lifecycle of registry entries: mandatory-field
// validation, uniqueness among live records, audit stamping and soft
// deletion. The acting principal is an explicit argument to every mutation
// and ends up in the record's audit fields; there is no ambient current-user
// state anywhere.
type PersonService struct {
	repo ports.PersonRepository
	now  func() time.Time
}

func NewPersonService(repo ports.PersonRepository) *PersonService {
	return &PersonService{repo: repo, now: time.Now}
}

// Create validates the candidate, checks every uniqueness-constrained field
// against live records and persists with createdAt == updatedAt and
// createdBy == updatedBy == actor. A failed uniqueness check aborts before
// any write.
func (s *PersonService) Create(ctx context.Context, person domain.Person, actor domain.Principal) (domain.Person, error) {
	now := s.now().UTC()
	if err := person.Validate(now); err != nil {
		return domain.Person{}, err
	}

	person.ID = 0
	if err := s.checkUnique(ctx, person, 0); err != nil {
		return domain.Person{}, err
	}

	domain.StampCreated(&person, actor.Email, now)
	return s.repo.Create(ctx, person, domain.ActionCreated)
}

// Replace applies full PUT semantics: every mutable field of the stored
// record takes the candidate's value, so fields absent from the candidate
// become empty rather than staying unchanged. The audit metadata and key are
// carried over from the stored record.
func (s *PersonService) Replace(ctx context.Context, id uint64, candidate domain.Person, actor domain.Principal) (domain.Person, error) {
	existing, err := s.repo.FindByID(ctx, id, false)
	if err != nil {
		return domain.Person{}, err
	}

	now := s.now().UTC()
	if err := candidate.Validate(now); err != nil {
		return domain.Person{}, err
	}

	candidate.ID = existing.ID
	candidate.AuditMetadata = existing.AuditMetadata
	if err := s.checkUnique(ctx, candidate, existing.ID); err != nil {
		return domain.Person{}, err
	}

	domain.StampUpdated(&candidate, actor.Email, now)
	return s.repo.Update(ctx, candidate, domain.ActionReplaced)
}

// Merge applies PATCH semantics: only non-nil patch fields change the stored
// record, and attempts to blank a mandatory field are ignored rather than
// rejected.
func (s *PersonService) Merge(ctx context.Context, id uint64, patch domain.PersonPatch, actor domain.Principal) (domain.Person, error) {
	existing, err := s.repo.FindByID(ctx, id, false)
	if err != nil {
		return domain.Person{}, err
	}

	merged := existing
	patch.Apply(&merged)

	now := s.now().UTC()
	if err := merged.Validate(now); err != nil {
		return domain.Person{}, err
	}
	if err := s.checkUnique(ctx, merged, existing.ID); err != nil {
		return domain.Person{}, err
	}

	domain.StampUpdated(&merged, actor.Email, now)
	return s.repo.Update(ctx, merged, domain.ActionMerged)
}

// SoftDelete flags the record deleted and stamps the actor. The physical row
// is retained; an already-deleted or unknown id yields ErrNotFound.
func (s *PersonService) SoftDelete(ctx context.Context, id uint64, actor domain.Principal) error {
	existing, err := s.repo.FindByID(ctx, id, false)
	if err != nil {
		return err
	}

	domain.StampDeleted(&existing, actor.Email, s.now().UTC())
	_, err = s.repo.Update(ctx, existing, domain.ActionDeleted)
	return err
}

func (s *PersonService) Get(ctx context.Context, id uint64) (domain.Person, error) {
	return s.repo.FindByID(ctx, id, false)
}

func (s *PersonService) GetByEmail(ctx context.Context, email string) (domain.Person, error) {
	if strings.TrimSpace(email) == "" {
		return domain.Person{}, &domain.ValidationError{Field: "email", Reason: "must not be empty"}
	}
	return s.repo.FindByEmail(ctx, email)
}

func (s *PersonService) List(ctx context.Context, filter domain.PersonListFilter) (domain.PersonPage, error) {
	return s.repo.List(ctx, normalizeFilter(filter))
}

func (s *PersonService) Search(ctx context.Context, term string, filter domain.PersonListFilter) (domain.PersonPage, error) {
	if strings.TrimSpace(term) == "" {
		return domain.PersonPage{}, &domain.ValidationError{Field: "q", Reason: "must not be empty"}
	}
	filter.IncludeDeleted = false
	return s.repo.Search(ctx, strings.TrimSpace(term), normalizeFilter(filter))
}

func (s *PersonService) FindByLastName(ctx context.Context, lastName string) ([]domain.Person, error) {
	if strings.TrimSpace(lastName) == "" {
		return nil, &domain.ValidationError{Field: "last_name", Reason: "must not be empty"}
	}
	return s.repo.FindByLastName(ctx, lastName)
}

func (s *PersonService) FindByCity(ctx context.Context, city string) ([]domain.Person, error) {
	if strings.TrimSpace(city) == "" {
		return nil, &domain.ValidationError{Field: "city", Reason: "must not be empty"}
	}
	return s.repo.FindByCity(ctx, city)
}

func (s *PersonService) FindByDateOfBirth(ctx context.Context, dateOfBirth time.Time) ([]domain.Person, error) {
	if dateOfBirth.IsZero() {
		return nil, &domain.ValidationError{Field: "date_of_birth", Reason: "must not be empty"}
	}
	return s.repo.FindByDateOfBirth(ctx, dateOfBirth)
}

func (s *PersonService) FindByBirthDateRange(ctx context.Context, start, end time.Time) ([]domain.Person, error) {
	if start.IsZero() || end.IsZero() {
		return nil, &domain.ValidationError{Field: "date_range", Reason: "start and end must not be empty"}
	}
	if start.After(end) {
		return nil, &domain.ValidationError{Field: "date_range", Reason: "start must not be after end"}
	}
	return s.repo.FindByBirthDateRange(ctx, start, end)
}

func (s *PersonService) CountByCity(ctx context.Context, city string) (int64, error) {
	if strings.TrimSpace(city) == "" {
		return 0, &domain.ValidationError{Field: "city", Reason: "must not be empty"}
	}
	return s.repo.CountByCity(ctx, city)
}

func (s *PersonService) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := s.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *PersonService) ExistsByNationalID(ctx context.Context, nationalID string) (bool, error) {
	if strings.TrimSpace(nationalID) == "" {
		return false, &domain.ValidationError{Field: "national_id_number", Reason: "must not be empty"}
	}
	_, err := s.repo.FindByNationalID(ctx, nationalID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// checkUnique verifies that email, national id number and tax id are held by
// no other live record. A record may always collide with its own stored
// value, so a no-op update passes.
func (s *PersonService) checkUnique(ctx context.Context, person domain.Person, selfID uint64) error {
	checks := []struct {
		field string
		value string
		find  func(context.Context, string) (domain.Person, error)
	}{
		{"email", person.Email, s.repo.FindByEmail},
		{"national_id_number", person.NationalIDNumber, s.repo.FindByNationalID},
		{"tax_id", person.TaxID, s.repo.FindByTaxID},
	}

	for _, check := range checks {
		if check.value == "" {
			continue
		}
		other, err := check.find(ctx, check.value)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if selfID == 0 || other.ID != selfID {
			return &domain.DuplicateError{Field: check.field, Value: check.value}
		}
	}
	return nil
}

func normalizeFilter(filter domain.PersonListFilter) domain.PersonListFilter {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Size <= 0 {
		filter.Size = defaultPageSize
	}
	if filter.Size > maxPageSize {
		filter.Size = maxPageSize
	}
	return filter
}
