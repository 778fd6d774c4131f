package domain

import (
	"fmt"
	"strings"
	"time"
)

type Gender string

const (
	GenderMale    Gender = "MALE"
	GenderFemale  Gender = "FEMALE"
	GenderDiverse Gender = "DIVERSE"
	GenderUnknown Gender = "UNKNOWN"
)

func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderDiverse, GenderUnknown:
		return true
	}
	return false
}

type MaritalStatus string

const (
	MaritalSingle                MaritalStatus = "SINGLE"
	MaritalMarried               MaritalStatus = "MARRIED"
	MaritalDivorced              MaritalStatus = "DIVORCED"
	MaritalWidowed               MaritalStatus = "WIDOWED"
	MaritalRegisteredPartnership MaritalStatus = "REGISTERED_PARTNERSHIP"
)

func (m MaritalStatus) Valid() bool {
	switch m {
	case MaritalSingle, MaritalMarried, MaritalDivorced, MaritalWidowed, MaritalRegisteredPartnership:
		return true
	}
	return false
}

// Person is a natural-person registry entry. First name, last name and date
// of birth are mandatory; email, national id number and tax id are each
// unique among non-deleted records when present.
type Person struct {
	ID uint64

	Title      string
	FirstName  string
	MiddleName string
	LastName   string
	MaidenName string

	DateOfBirth time.Time
	Gender      Gender
	Citizenship string

	Street      string
	HouseNumber string
	PostalCode  string
	City        string
	Country     string

	Email       string
	Phone       string
	MobilePhone string

	MaritalStatus MaritalStatus
	BirthPlace    string

	NationalIDNumber string
	TaxID            string

	AuditMetadata
}

func (p *Person) Audit() *AuditMetadata {
	return &p.AuditMetadata
}

// Validate enforces the mandatory fields and business rules checked before
// every create or full replace. Merge patches revalidate the merged result.
func (p Person) Validate(now time.Time) error {
	if strings.TrimSpace(p.FirstName) == "" {
		return &ValidationError{Field: "first_name", Reason: "must not be empty"}
	}
	if strings.TrimSpace(p.LastName) == "" {
		return &ValidationError{Field: "last_name", Reason: "must not be empty"}
	}
	if p.DateOfBirth.IsZero() {
		return &ValidationError{Field: "date_of_birth", Reason: "must not be empty"}
	}
	if p.DateOfBirth.After(now) {
		return &ValidationError{Field: "date_of_birth", Reason: "must not be in the future"}
	}
	if p.Gender != "" && !p.Gender.Valid() {
		return &ValidationError{Field: "gender", Reason: "unknown value"}
	}
	if p.MaritalStatus != "" && !p.MaritalStatus.Valid() {
		return &ValidationError{Field: "marital_status", Reason: "unknown value"}
	}
	return nil
}

// SameEntity reports whether two records describe the same registry entry.
// Persisted records compare by key; unsaved ones fall back to email, then to
// the national id number.
func (p Person) SameEntity(other Person) bool {
	if p.ID != 0 && other.ID != 0 {
		return p.ID == other.ID
	}
	if p.Email != "" && other.Email != "" {
		return p.Email == other.Email
	}
	if p.NationalIDNumber != "" && other.NationalIDNumber != "" {
		return p.NationalIDNumber == other.NationalIDNumber
	}
	return false
}

func (p Person) Age(at time.Time) int {
	years := at.Year() - p.DateOfBirth.Year()
	if at.Month() < p.DateOfBirth.Month() ||
		(at.Month() == p.DateOfBirth.Month() && at.Day() < p.DateOfBirth.Day()) {
		years--
	}
	return years
}

func (p Person) IsAdult(at time.Time) bool {
	return p.Age(at) >= 18
}

func (p Person) FullName() string {
	parts := make([]string, 0, 4)
	for _, s := range []string{p.Title, p.FirstName, p.MiddleName, p.LastName} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// OfficialName renders "LastName, FirstName" as used in registry documents.
func (p Person) OfficialName() string {
	return p.LastName + ", " + p.FirstName
}

func (p Person) FullAddress() string {
	return fmt.Sprintf("%s %s, %s %s, %s", p.Street, p.HouseNumber, p.PostalCode, p.City, p.Country)
}

// PersonPatch carries a partial update. Nil fields keep the stored value.
// Mandatory fields are never cleared by a patch: a pointer to an empty value
// is ignored for first name, last name and date of birth.
type PersonPatch struct {
	Title      *string
	FirstName  *string
	MiddleName *string
	LastName   *string
	MaidenName *string

	DateOfBirth *time.Time
	Gender      *Gender
	Citizenship *string

	Street      *string
	HouseNumber *string
	PostalCode  *string
	City        *string
	Country     *string

	Email       *string
	Phone       *string
	MobilePhone *string

	MaritalStatus *MaritalStatus
	BirthPlace    *string

	NationalIDNumber *string
	TaxID            *string
}

// Apply merges the patch into p. Absent fields retain their stored value;
// attempts to blank a mandatory field are a deliberate no-op, not an error.
func (patch PersonPatch) Apply(p *Person) {
	if patch.Title != nil {
		p.Title = *patch.Title
	}
	if patch.FirstName != nil && strings.TrimSpace(*patch.FirstName) != "" {
		p.FirstName = *patch.FirstName
	}
	if patch.MiddleName != nil {
		p.MiddleName = *patch.MiddleName
	}
	if patch.LastName != nil && strings.TrimSpace(*patch.LastName) != "" {
		p.LastName = *patch.LastName
	}
	if patch.MaidenName != nil {
		p.MaidenName = *patch.MaidenName
	}
	if patch.DateOfBirth != nil && !patch.DateOfBirth.IsZero() {
		p.DateOfBirth = *patch.DateOfBirth
	}
	if patch.Gender != nil {
		p.Gender = *patch.Gender
	}
	if patch.Citizenship != nil {
		p.Citizenship = *patch.Citizenship
	}
	if patch.Street != nil {
		p.Street = *patch.Street
	}
	if patch.HouseNumber != nil {
		p.HouseNumber = *patch.HouseNumber
	}
	if patch.PostalCode != nil {
		p.PostalCode = *patch.PostalCode
	}
	if patch.City != nil {
		p.City = *patch.City
	}
	if patch.Country != nil {
		p.Country = *patch.Country
	}
	if patch.Email != nil {
		p.Email = *patch.Email
	}
	if patch.Phone != nil {
		p.Phone = *patch.Phone
	}
	if patch.MobilePhone != nil {
		p.MobilePhone = *patch.MobilePhone
	}
	if patch.MaritalStatus != nil {
		p.MaritalStatus = *patch.MaritalStatus
	}
	if patch.BirthPlace != nil {
		p.BirthPlace = *patch.BirthPlace
	}
	if patch.NationalIDNumber != nil {
		p.NationalIDNumber = *patch.NationalIDNumber
	}
	if patch.TaxID != nil {
		p.TaxID = *patch.TaxID
	}
}

// PersonListFilter selects a page of registry entries. IncludeDeleted is the
// administrative escape hatch; default reads exclude soft-deleted rows.
type PersonListFilter struct {
	Page           int
	Size           int
	IncludeDeleted bool
}

type PersonPage struct {
	Items []Person
	Total int64
	Page  int
	Size  int
}
