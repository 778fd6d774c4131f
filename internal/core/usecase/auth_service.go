package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/atvirokodosprendimai/civicregistry/internal/core/domain"
	"github.com/atvirokodosprendimai/civicregistry/internal/core/ports"
)

var (
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidCredentials is returned for unknown email, wrong password
	// and disabled accounts alike, so login failures do not reveal which
	// part was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

type AuthService struct {
	users      ports.UserRepository
	tokens     *TokenService
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewAuthService(users ports.UserRepository, tokens *TokenService, accessTTL, refreshTTL time.Duration) *AuthService {
	return &AuthService{
		users:      users,
		tokens:     tokens,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

type RegisterRequest struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

func (r RegisterRequest) Validate() error {
	email := strings.TrimSpace(r.Email)
	if email == "" || !strings.Contains(email, "@") {
		return &domain.ValidationError{Field: "email", Reason: "must be a valid address"}
	}
	if len(r.Password) < 8 {
		return &domain.ValidationError{Field: "password", Reason: "must be at least 8 characters"}
	}
	if strings.TrimSpace(r.FirstName) == "" {
		return &domain.ValidationError{Field: "first_name", Reason: "must not be empty"}
	}
	if strings.TrimSpace(r.LastName) == "" {
		return &domain.ValidationError{Field: "last_name", Reason: "must not be empty"}
	}
	return nil
}

func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (domain.User, TokenPair, error) {
	if err := req.Validate(); err != nil {
		return domain.User{}, TokenPair{}, err
	}

	email := normalizeEmail(req.Email)
	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return domain.User{}, TokenPair{}, err
	}
	if exists {
		return domain.User{}, TokenPair{}, &domain.DuplicateError{Field: "email", Value: email}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, TokenPair{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	user, err := s.users.Create(ctx, domain.User{
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Role:         domain.RoleOfficer,
		Enabled:      true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return domain.User{}, TokenPair{}, err
	}

	pair, err := s.issuePair(user)
	if err != nil {
		return domain.User{}, TokenPair{}, err
	}
	return user, pair, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (domain.User, TokenPair, error) {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, TokenPair{}, ErrInvalidCredentials
		}
		return domain.User{}, TokenPair{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return domain.User{}, TokenPair{}, ErrInvalidCredentials
	}
	if !user.Enabled {
		return domain.User{}, TokenPair{}, ErrInvalidCredentials
	}

	pair, err := s.issuePair(user)
	if err != nil {
		return domain.User{}, TokenPair{}, err
	}
	return user, pair, nil
}

// Identify resolves a bearer token to the acting principal: extract the
// subject, load the account, then fully verify the token against it.
func (s *AuthService) Identify(ctx context.Context, tokenString string) (domain.Principal, error) {
	subject, err := s.tokens.ExtractSubject(tokenString)
	if err != nil {
		return domain.Principal{}, ErrUnauthorized
	}

	user, err := s.users.FindByEmail(ctx, subject)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Principal{}, ErrUnauthorized
		}
		return domain.Principal{}, err
	}
	if !user.Enabled {
		return domain.Principal{}, ErrUnauthorized
	}

	if _, err := s.tokens.Verify(tokenString, user.Email); err != nil {
		return domain.Principal{}, ErrUnauthorized
	}
	return user.Principal(), nil
}

func (s *AuthService) issuePair(user domain.User) (TokenPair, error) {
	access, err := s.tokens.Issue(user, s.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.tokens.Issue(user, s.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
