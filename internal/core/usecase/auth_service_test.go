package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/atvirokodosprendimai/civicregistry/internal/core/domain"
)

type userRepoStub struct {
	users map[string]domain.User

	createFn func(ctx context.Context, user domain.User) (domain.User, error)
}

func newUserRepoStub() *userRepoStub {
	return &userRepoStub{users: map[string]domain.User{}}
}

func (s *userRepoStub) Create(ctx context.Context, user domain.User) (domain.User, error) {
	if s.createFn != nil {
		return s.createFn(ctx, user)
	}
	user.ID = uint64(len(s.users) + 1)
	s.users[user.Email] = user
	return user, nil
}

func (s *userRepoStub) FindByEmail(_ context.Context, email string) (domain.User, error) {
	user, ok := s.users[email]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return user, nil
}

func (s *userRepoStub) ExistsByEmail(_ context.Context, email string) (bool, error) {
	_, ok := s.users[email]
	return ok, nil
}

func newTestAuthService(repo *userRepoStub) *AuthService {
	tokens := NewTokenService("test-secret", "registry-test", "registry-test-api")
	return NewAuthService(repo, tokens, 15*time.Minute, 7*24*time.Hour)
}

func registerTestUser(t *testing.T, svc *AuthService) domain.User {
	t.Helper()
	user, _, err := svc.Register(context.Background(), RegisterRequest{
		Email:     "Clerk@Example.org",
		Password:  "correct-horse",
		FirstName: "Klara",
		LastName:  "Nowak",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return user
}

func TestAuthServiceRegisterNormalizesAndHashes(t *testing.T) {
	repo := newUserRepoStub()
	svc := newTestAuthService(repo)

	user, pair, err := svc.Register(context.Background(), RegisterRequest{
		Email:     "  Clerk@Example.org ",
		Password:  "correct-horse",
		FirstName: "Klara",
		LastName:  "Nowak",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if user.Email != "clerk@example.org" {
		t.Fatalf("expected normalized email, got %q", user.Email)
	}
	if user.Role != domain.RoleOfficer {
		t.Fatalf("expected officer role on registration, got %q", user.Role)
	}
	if !user.Enabled {
		t.Fatal("expected new account enabled")
	}
	if user.PasswordHash == "correct-horse" || user.PasswordHash == "" {
		t.Fatal("password must be stored as a hash")
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected both tokens issued")
	}
	if pair.AccessToken == pair.RefreshToken {
		t.Fatal("access and refresh tokens must differ")
	}
}

func TestAuthServiceRegisterValidation(t *testing.T) {
	svc := newTestAuthService(newUserRepoStub())

	cases := []struct {
		name string
		req  RegisterRequest
	}{
		{"bad email", RegisterRequest{Email: "nope", Password: "correct-horse", FirstName: "A", LastName: "B"}},
		{"short password", RegisterRequest{Email: "a@b.org", Password: "short", FirstName: "A", LastName: "B"}},
		{"missing first name", RegisterRequest{Email: "a@b.org", Password: "correct-horse", LastName: "B"}},
		{"missing last name", RegisterRequest{Email: "a@b.org", Password: "correct-horse", FirstName: "A"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := svc.Register(context.Background(), tc.req)
			var validationErr *domain.ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestAuthServiceRegisterDuplicateEmail(t *testing.T) {
	repo := newUserRepoStub()
	svc := newTestAuthService(repo)
	registerTestUser(t, svc)

	_, _, err := svc.Register(context.Background(), RegisterRequest{
		Email:     "clerk@example.org",
		Password:  "another-pass",
		FirstName: "Other",
		LastName:  "Person",
	})

	var duplicateErr *domain.DuplicateError
	if !errors.As(err, &duplicateErr) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestAuthServiceLogin(t *testing.T) {
	repo := newUserRepoStub()
	svc := newTestAuthService(repo)
	registerTestUser(t, svc)

	user, pair, err := svc.Login(context.Background(), "CLERK@example.org", "correct-horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.Email != "clerk@example.org" {
		t.Fatalf("unexpected user %q", user.Email)
	}
	if pair.AccessToken == "" {
		t.Fatal("expected access token")
	}
}

func TestAuthServiceLoginFailuresLookIdentical(t *testing.T) {
	repo := newUserRepoStub()
	svc := newTestAuthService(repo)
	registerTestUser(t, svc)

	disabled := repo.users["clerk@example.org"]
	disabled.Email = "disabled@example.org"
	disabled.Enabled = false
	repo.users["disabled@example.org"] = disabled

	cases := []struct {
		name, email, password string
	}{
		{"unknown email", "nobody@example.org", "correct-horse"},
		{"wrong password", "clerk@example.org", "wrong-horse"},
		{"disabled account", "disabled@example.org", "correct-horse"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := svc.Login(context.Background(), tc.email, tc.password)
			if !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("expected ErrInvalidCredentials, got %v", err)
			}
		})
	}
}

func TestAuthServiceIdentify(t *testing.T) {
	repo := newUserRepoStub()
	svc := newTestAuthService(repo)
	registerTestUser(t, svc)

	_, pair, err := svc.Login(context.Background(), "clerk@example.org", "correct-horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	principal, err := svc.Identify(context.Background(), pair.AccessToken)
	if err != nil {
		t.Fatalf("identify: %v", err)
	}
	if principal.Email != "clerk@example.org" {
		t.Fatalf("unexpected principal %q", principal.Email)
	}
	if principal.Role != domain.RoleOfficer {
		t.Fatalf("unexpected role %q", principal.Role)
	}
}

func TestAuthServiceIdentifyRejections(t *testing.T) {
	repo := newUserRepoStub()
	svc := newTestAuthService(repo)
	registerTestUser(t, svc)

	_, pair, err := svc.Login(context.Background(), "clerk@example.org", "correct-horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if _, err := svc.Identify(context.Background(), "garbage"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized for malformed token, got %v", err)
	}

	other := NewTokenService("other-secret", "registry-test", "registry-test-api")
	forged, err := other.Issue(domain.User{Email: "clerk@example.org", Role: domain.RoleAdmin}, time.Hour)
	if err != nil {
		t.Fatalf("issue forged: %v", err)
	}
	if _, err := svc.Identify(context.Background(), forged); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized for forged token, got %v", err)
	}

	disabled := repo.users["clerk@example.org"]
	disabled.Enabled = false
	repo.users["clerk@example.org"] = disabled
	if _, err := svc.Identify(context.Background(), pair.AccessToken); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized for disabled account, got %v", err)
	}
}
