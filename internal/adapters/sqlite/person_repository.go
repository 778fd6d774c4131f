package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atvirokodosprendimai/civicregistry/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/civicregistry/internal/core/domain"
)

const changeTopic = "registry.persons"

type personModel struct {
	ID               uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	Title            string    `gorm:"column:title"`
	FirstName        string    `gorm:"column:first_name;not null"`
	MiddleName       string    `gorm:"column:middle_name"`
	LastName         string    `gorm:"column:last_name;not null"`
	MaidenName       string    `gorm:"column:maiden_name"`
	DateOfBirth      time.Time `gorm:"column:date_of_birth;not null"`
	Gender           string    `gorm:"column:gender"`
	Citizenship      string    `gorm:"column:citizenship"`
	Street           string    `gorm:"column:street"`
	HouseNumber      string    `gorm:"column:house_number"`
	PostalCode       string    `gorm:"column:postal_code"`
	City             string    `gorm:"column:city"`
	Country          string    `gorm:"column:country"`
	Email            string    `gorm:"column:email"`
	Phone            string    `gorm:"column:phone"`
	MobilePhone      string    `gorm:"column:mobile_phone"`
	MaritalStatus    string    `gorm:"column:marital_status"`
	BirthPlace       string    `gorm:"column:birth_place"`
	NationalIDNumber string    `gorm:"column:national_id_number"`
	TaxID            string    `gorm:"column:tax_id"`
	CreatedAt        time.Time `gorm:"column:created_at;not null"`
	UpdatedAt        time.Time `gorm:"column:updated_at;not null"`
	CreatedBy        string    `gorm:"column:created_by;not null"`
	UpdatedBy        string    `gorm:"column:updated_by;not null"`
	Deleted          bool      `gorm:"column:deleted;not null"`
}

func (personModel) TableName() string {
	return "persons"
}

// PersonRepository persists registry entries. Soft deletion is an update
// setting the deleted flag; no code path issues a SQL DELETE on persons.
// Every mutation appends an audit-trail row and an outbox change event in
// the same write transaction.
type PersonRepository struct {
	db *gormsqlite.DB
}

func NewPersonRepository(db *gormsqlite.DB) *PersonRepository {
	return &PersonRepository{db: db}
}

func (r *PersonRepository) Create(ctx context.Context, person domain.Person, action string) (domain.Person, error) {
	model := toModel(person)
	model.ID = 0

	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		if err := tx.Create(&model).Error; err != nil {
			return mapUniqueViolation(err, "insert person")
		}
		return appendChange(tx, model, action, nil)
	})
	if err != nil {
		return domain.Person{}, err
	}
	return toPerson(model), nil
}

func (r *PersonRepository) Update(ctx context.Context, person domain.Person, action string) (domain.Person, error) {
	if person.ID == 0 {
		return domain.Person{}, domain.ErrNotFound
	}
	model := toModel(person)

	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		var before personModel
		if err := tx.Where("id = ?", model.ID).First(&before).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("load person: %w", err)
		}

		if err := tx.Save(&model).Error; err != nil {
			return mapUniqueViolation(err, "update person")
		}
		return appendChange(tx, model, action, &before)
	})
	if err != nil {
		return domain.Person{}, err
	}
	return toPerson(model), nil
}

func (r *PersonRepository) FindByID(ctx context.Context, id uint64, includeDeleted bool) (domain.Person, error) {
	return r.findOne(ctx, func(query *gorm.DB) *gorm.DB {
		query = query.Where("id = ?", id)
		if !includeDeleted {
			query = query.Where("deleted = ?", false)
		}
		return query
	}, "find person by id")
}

func (r *PersonRepository) FindByEmail(ctx context.Context, email string) (domain.Person, error) {
	return r.findOne(ctx, func(query *gorm.DB) *gorm.DB {
		return query.Where("email = ? AND deleted = ?", email, false)
	}, "find person by email")
}

func (r *PersonRepository) FindByNationalID(ctx context.Context, nationalID string) (domain.Person, error) {
	return r.findOne(ctx, func(query *gorm.DB) *gorm.DB {
		return query.Where("national_id_number = ? AND deleted = ?", nationalID, false)
	}, "find person by national id")
}

func (r *PersonRepository) FindByTaxID(ctx context.Context, taxID string) (domain.Person, error) {
	return r.findOne(ctx, func(query *gorm.DB) *gorm.DB {
		return query.Where("tax_id = ? AND deleted = ?", taxID, false)
	}, "find person by tax id")
}

func (r *PersonRepository) List(ctx context.Context, filter domain.PersonListFilter) (domain.PersonPage, error) {
	var rows []personModel
	var total int64
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		query := tx.Model(&personModel{})
		if !filter.IncludeDeleted {
			query = query.Where("deleted = ?", false)
		}
		if err := query.Count(&total).Error; err != nil {
			return err
		}
		return query.Order("last_name ASC, first_name ASC, id ASC").
			Offset((filter.Page - 1) * filter.Size).
			Limit(filter.Size).
			Find(&rows).Error
	})
	if err != nil {
		return domain.PersonPage{}, fmt.Errorf("list persons: %w", err)
	}
	return toPage(rows, total, filter), nil
}

func (r *PersonRepository) Search(ctx context.Context, term string, filter domain.PersonListFilter) (domain.PersonPage, error) {
	pattern := "%" + strings.ToLower(term) + "%"
	var rows []personModel
	var total int64
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		query := tx.Model(&personModel{}).
			Where("deleted = ?", false).
			Where(
				"LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(city) LIKE ? OR LOWER(national_id_number) LIKE ?",
				pattern, pattern, pattern, pattern, pattern,
			)
		if err := query.Count(&total).Error; err != nil {
			return err
		}
		return query.Order("last_name ASC, first_name ASC, id ASC").
			Offset((filter.Page - 1) * filter.Size).
			Limit(filter.Size).
			Find(&rows).Error
	})
	if err != nil {
		return domain.PersonPage{}, fmt.Errorf("search persons: %w", err)
	}
	return toPage(rows, total, filter), nil
}

func (r *PersonRepository) FindByLastName(ctx context.Context, lastName string) ([]domain.Person, error) {
	return r.findMany(ctx, "last_name = ?", []any{lastName}, "find persons by last name")
}

func (r *PersonRepository) FindByCity(ctx context.Context, city string) ([]domain.Person, error) {
	return r.findMany(ctx, "city = ?", []any{city}, "find persons by city")
}

func (r *PersonRepository) FindByDateOfBirth(ctx context.Context, dateOfBirth time.Time) ([]domain.Person, error) {
	return r.findMany(ctx, "date_of_birth = ?", []any{dateOfBirth.UTC()}, "find persons by date of birth")
}

func (r *PersonRepository) FindByBirthDateRange(ctx context.Context, start, end time.Time) ([]domain.Person, error) {
	return r.findMany(ctx, "date_of_birth >= ? AND date_of_birth <= ?", []any{start.UTC(), end.UTC()}, "find persons by birth date range")
}

func (r *PersonRepository) CountByCity(ctx context.Context, city string) (int64, error) {
	var count int64
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Model(&personModel{}).
			Where("city = ? AND deleted = ?", city, false).
			Count(&count).Error
	})
	if err != nil {
		return 0, fmt.Errorf("count persons by city: %w", err)
	}
	return count, nil
}

func (r *PersonRepository) findOne(ctx context.Context, scope func(*gorm.DB) *gorm.DB, op string) (domain.Person, error) {
	var model personModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return scope(tx.Model(&personModel{})).First(&model).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Person{}, domain.ErrNotFound
		}
		return domain.Person{}, fmt.Errorf("%s: %w", op, err)
	}
	return toPerson(model), nil
}

func (r *PersonRepository) findMany(ctx context.Context, cond string, args []any, op string) ([]domain.Person, error) {
	var rows []personModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Model(&personModel{}).
			Where(cond, args...).
			Where("deleted = ?", false).
			Order("last_name ASC, first_name ASC, id ASC").
			Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	persons := make([]domain.Person, 0, len(rows))
	for _, row := range rows {
		persons = append(persons, toPerson(row))
	}
	return persons, nil
}

// appendChange writes the audit-trail row and the outbox change event inside
// the mutation's transaction, so a reader never observes a mutated row
// without its trail entry.
func appendChange(tx *gormsqlite.Tx, after personModel, action string, before *personModel) error {
	afterJSON, err := json.Marshal(toPerson(after))
	if err != nil {
		return fmt.Errorf("marshal person snapshot: %w", err)
	}
	var beforeJSON []byte
	if before != nil {
		beforeJSON, err = json.Marshal(toPerson(*before))
		if err != nil {
			return fmt.Errorf("marshal person snapshot: %w", err)
		}
	}

	occurredAt := after.UpdatedAt.UTC()
	trail := auditEntryModel{
		PersonID:   after.ID,
		Action:     action,
		Actor:      after.UpdatedBy,
		BeforeJSON: string(beforeJSON),
		AfterJSON:  string(afterJSON),
		OccurredAt: occurredAt,
	}
	if err := tx.Create(&trail).Error; err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}

	envelope := domain.ChangeEnvelope{
		EventID:    uuid.NewString(),
		EventType:  action,
		PersonID:   after.ID,
		Actor:      after.UpdatedBy,
		OccurredAt: occurredAt,
		Payload:    afterJSON,
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal change envelope: %w", err)
	}

	outbox := outboxEventModel{
		EventID:       envelope.EventID,
		Topic:         changeTopic,
		PayloadJSON:   string(payload),
		Status:        "pending",
		NextAttemptAt: occurredAt,
		CreatedAt:     occurredAt,
	}
	if err := tx.Create(&outbox).Error; err != nil {
		return fmt.Errorf("append outbox event: %w", err)
	}
	return nil
}

// mapUniqueViolation turns sqlite unique-index failures into DuplicateError.
// The service pre-checks uniqueness, so this only fires when two writes race
// between the check and the insert; the index is the last-resort net.
func mapUniqueViolation(err error, op string) error {
	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") {
		return fmt.Errorf("%s: %w", op, err)
	}
	for _, field := range []string{"email", "national_id_number", "tax_id"} {
		if strings.Contains(msg, "persons."+field) {
			return &domain.DuplicateError{Field: field}
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func toModel(p domain.Person) personModel {
	return personModel{
		ID:               p.ID,
		Title:            p.Title,
		FirstName:        p.FirstName,
		MiddleName:       p.MiddleName,
		LastName:         p.LastName,
		MaidenName:       p.MaidenName,
		DateOfBirth:      p.DateOfBirth.UTC(),
		Gender:           string(p.Gender),
		Citizenship:      p.Citizenship,
		Street:           p.Street,
		HouseNumber:      p.HouseNumber,
		PostalCode:       p.PostalCode,
		City:             p.City,
		Country:          p.Country,
		Email:            p.Email,
		Phone:            p.Phone,
		MobilePhone:      p.MobilePhone,
		MaritalStatus:    string(p.MaritalStatus),
		BirthPlace:       p.BirthPlace,
		NationalIDNumber: p.NationalIDNumber,
		TaxID:            p.TaxID,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
		CreatedBy:        p.CreatedBy,
		UpdatedBy:        p.UpdatedBy,
		Deleted:          p.Deleted,
	}
}

func toPerson(m personModel) domain.Person {
	return domain.Person{
		ID:               m.ID,
		Title:            m.Title,
		FirstName:        m.FirstName,
		MiddleName:       m.MiddleName,
		LastName:         m.LastName,
		MaidenName:       m.MaidenName,
		DateOfBirth:      m.DateOfBirth,
		Gender:           domain.Gender(m.Gender),
		Citizenship:      m.Citizenship,
		Street:           m.Street,
		HouseNumber:      m.HouseNumber,
		PostalCode:       m.PostalCode,
		City:             m.City,
		Country:          m.Country,
		Email:            m.Email,
		Phone:            m.Phone,
		MobilePhone:      m.MobilePhone,
		MaritalStatus:    domain.MaritalStatus(m.MaritalStatus),
		BirthPlace:       m.BirthPlace,
		NationalIDNumber: m.NationalIDNumber,
		TaxID:            m.TaxID,
		AuditMetadata: domain.AuditMetadata{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
			CreatedBy: m.CreatedBy,
			UpdatedBy: m.UpdatedBy,
			Deleted:   m.Deleted,
		},
	}
}

func toPage(rows []personModel, total int64, filter domain.PersonListFilter) domain.PersonPage {
	items := make([]domain.Person, 0, len(rows))
	for _, row := range rows {
		items = append(items, toPerson(row))
	}
	return domain.PersonPage{Items: items, Total: total, Page: filter.Page, Size: filter.Size}
}
