package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/atvirokodosprendimai/civicregistry/internal/core/domain"
)

func seedUser(email string) domain.User {
	now := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
	return domain.User{
		Email:        email,
		PasswordHash: "$2a$10$notarealhashbutlongenough",
		FirstName:    "Klara",
		LastName:     "Nowak",
		Role:         domain.RoleOfficer,
		Enabled:      true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestUserRepositoryCreateAndFind(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewUserRepository(db)

	created, err := repo.Create(ctx, seedUser("clerk@example.org"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("expected assigned id")
	}

	found, err := repo.FindByEmail(ctx, "clerk@example.org")
	if err != nil {
		t.Fatalf("find by email: %v", err)
	}
	if found.ID != created.ID || found.Role != domain.RoleOfficer || !found.Enabled {
		t.Fatalf("unexpected user: %+v", found)
	}

	if _, err := repo.FindByEmail(ctx, "nobody@example.org"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	exists, err := repo.ExistsByEmail(ctx, "clerk@example.org")
	if err != nil || !exists {
		t.Fatalf("expected exists=true, got %v %v", exists, err)
	}
	exists, err = repo.ExistsByEmail(ctx, "nobody@example.org")
	if err != nil || exists {
		t.Fatalf("expected exists=false, got %v %v", exists, err)
	}
}

func TestUserRepositoryDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewUserRepository(db)

	if _, err := repo.Create(ctx, seedUser("clerk@example.org")); err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err := repo.Create(ctx, seedUser("clerk@example.org"))
	var duplicateErr *domain.DuplicateError
	if !errors.As(err, &duplicateErr) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if duplicateErr.Field != "email" {
		t.Fatalf("expected email collision, got %q", duplicateErr.Field)
	}
}
