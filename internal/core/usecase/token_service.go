package usecase

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/atvirokodosprendimai/civicregistry/internal/core/domain"
)

// Claims is the token claim set: the registered claims plus the actor's flat
// role tag.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenService issues and validates HMAC-signed bearer credentials. It holds
// no mutable state beyond the signing secret and the clock, so every
// operation is pure computation and safe for unbounded parallel use. There is
// no revocation list: a token is valid exactly while its signature holds, it
// has not expired and its subject matches.
type TokenService struct {
	secret   []byte
	issuer   string
	audience string
	now      func() time.Time
}

func NewTokenService(secret, issuer, audience string) *TokenService {
	return &TokenService{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		now:      time.Now,
	}
}

// Issue signs a token bound to the user with the given lifetime. Access and
// refresh tokens are two independent calls with different TTLs; the service
// does not track which refresh tokens are outstanding.
func (s *TokenService) Issue(user domain.User, ttl time.Duration) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Email,
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, algorithm, expiry and subject. Every failure mode,
// malformed input included, is the same ErrTokenInvalid outcome; garbage in
// is a normal invalid result, not a panic.
func (s *TokenService) Verify(tokenString, expectedSubject string) (*Claims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, domain.ErrTokenInvalid
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now() }))
	if err != nil || !parsed.Valid {
		return nil, domain.ErrTokenInvalid
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || claims.Subject == "" || claims.Subject != expectedSubject {
		return nil, domain.ErrTokenInvalid
	}
	return claims, nil
}

// ExtractSubject decodes the subject claim without verifying the token, so an
// expired but well-formed token still reveals who it belonged to. Structural
// failures surface as the distinct ErrTokenMalformed.
func (s *TokenService) ExtractSubject(tokenString string) (string, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return "", domain.ErrTokenMalformed
	}
	if claims.Subject == "" {
		return "", domain.ErrTokenMalformed
	}
	return claims.Subject, nil
}
