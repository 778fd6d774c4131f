package domain

import "time"

type Role string

const (
	RoleOfficer Role = "OFFICER"
	RoleAdmin   Role = "ADMIN"
)

func (r Role) Valid() bool {
	return r == RoleOfficer || r == RoleAdmin
}

// User is a registry operator account. The email doubles as the principal
// identifier stamped into audit fields.
type User struct {
	ID           uint64
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Role         Role
	Enabled      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal is the authenticated actor on whose behalf an operation runs.
// It is passed explicitly into every lifecycle operation; there is no
// ambient current-user state.
type Principal struct {
	Email string
	Name  string
	Role  Role
}

func (u User) Principal() Principal {
	return Principal{
		Email: u.Email,
		Name:  u.FirstName + " " + u.LastName,
		Role:  u.Role,
	}
}
