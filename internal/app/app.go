package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/atvirokodosprendimai/civicregistry/internal/adapters/events"
	"github.com/atvirokodosprendimai/civicregistry/internal/adapters/httpapi"
	sqliteadapter "github.com/atvirokodosprendimai/civicregistry/internal/adapters/sqlite"
	"github.com/atvirokodosprendimai/civicregistry/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/civicregistry/internal/core/domain"
	"github.com/atvirokodosprendimai/civicregistry/internal/core/ports"
	"github.com/atvirokodosprendimai/civicregistry/internal/core/usecase"
	"github.com/atvirokodosprendimai/civicregistry/migrations"
)

type Config struct {
	Addr          string
	DBPath        string
	JWTSecret     string
	Issuer        string
	Audience      string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	AdminEmail    string
	AdminPassword string
	WebhookURL    string
	WebhookSecret string
}

type resourceCloser struct {
	closers []io.Closer
}

func (r resourceCloser) Close() error {
	var firstErr error
	for _, c := range r.closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func NewServer(ctx context.Context, cfg Config) (*http.Server, io.Closer, error) {
	if cfg.JWTSecret == "" {
		return nil, nil, errors.New("jwt secret must not be empty")
	}

	db, err := gormsqlite.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open registry sqlite: %w", err)
	}

	writeSQLDB, err := db.WriteSQLDB()
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("resolve writer sql db: %w", err)
	}

	migrateCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := migrations.Up(migrateCtx, writeSQLDB); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	personRepo := sqliteadapter.NewPersonRepository(db)
	userRepo := sqliteadapter.NewUserRepository(db)
	auditTrailRepo := sqliteadapter.NewAuditTrailRepository(db)
	outboxRepo := sqliteadapter.NewOutboxRepository(db)

	tokenService := usecase.NewTokenService(cfg.JWTSecret, cfg.Issuer, cfg.Audience)
	personService := usecase.NewPersonService(personRepo)
	authService := usecase.NewAuthService(userRepo, tokenService, cfg.AccessTTL, cfg.RefreshTTL)
	auditService := usecase.NewAuditService(auditTrailRepo)

	var publisher ports.EventPublisher
	if cfg.WebhookURL != "" {
		publisher = events.NewWebhookPublisher(cfg.WebhookURL, cfg.WebhookSecret, 0)
	} else {
		publisher = events.NewLogPublisher()
	}
	dispatcher := usecase.NewOutboxDispatcher(outboxRepo, publisher, 2*time.Second, 100)
	dispatcher.Start(context.Background())

	if cfg.AdminEmail != "" {
		bootstrapCtx, bootstrapCancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := bootstrapAdmin(bootstrapCtx, userRepo, cfg.AdminEmail, cfg.AdminPassword)
		bootstrapCancel()
		if err != nil {
			_ = dispatcher.Close()
			_ = db.Close()
			return nil, nil, fmt.Errorf("bootstrap admin user: %w", err)
		}
	}

	handler := httpapi.NewHandler(personService, authService, auditService)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return server, resourceCloser{closers: []io.Closer{dispatcher, db}}, nil
}

// bootstrapAdmin seeds the configured admin account on first start. A
// subsequent start with the same email is a no-op so password rotation goes
// through the API, not the environment.
func bootstrapAdmin(ctx context.Context, users ports.UserRepository, email, password string) error {
	if password == "" {
		return errors.New("admin password must not be empty")
	}
	email = strings.ToLower(strings.TrimSpace(email))

	exists, err := users.ExistsByEmail(ctx, email)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err = users.Create(ctx, domain.User{
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    "Registry",
		LastName:     "Admin",
		Role:         domain.RoleAdmin,
		Enabled:      true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	return err
}
