package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrTokenInvalid covers every verification failure: bad signature,
	// expiry, wrong algorithm, subject mismatch. Callers that only need a
	// boolean see one kind.
	ErrTokenInvalid = errors.New("token invalid")

	// ErrTokenMalformed is distinct so that an expired but well-formed token
	// can still reveal its subject.
	ErrTokenMalformed = errors.New("token malformed")
)

// ValidationError reports a missing mandatory field or a business-rule
// violation, such as a birth date in the future.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// DuplicateError reports a uniqueness collision and names the colliding field.
type DuplicateError struct {
	Field string
	Value string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate %s: %q is already registered", e.Field, e.Value)
}
