package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/atvirokodosprendimai/civicregistry/internal/app"
)

func main() {
	cmd := &cli.Command{
		Name:  "civicregistry",
		Usage: "SQLite-backed civil registry API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Value: ":8080",
				Usage: "HTTP listen address",
			},
			&cli.StringFlag{
				Name:  "db-path",
				Value: "./civicregistry.sqlite",
				Usage: "SQLite file path",
			},
			&cli.StringFlag{
				Name:    "jwt-secret",
				Sources: cli.EnvVars("REGISTRY_JWT_SECRET"),
				Usage:   "HMAC signing secret for access and refresh tokens",
			},
			&cli.StringFlag{
				Name:    "jwt-issuer",
				Value:   "civicregistry",
				Sources: cli.EnvVars("REGISTRY_JWT_ISSUER"),
				Usage:   "Issuer claim stamped into tokens",
			},
			&cli.StringFlag{
				Name:    "jwt-audience",
				Value:   "civicregistry-api",
				Sources: cli.EnvVars("REGISTRY_JWT_AUDIENCE"),
				Usage:   "Audience claim stamped into tokens",
			},
			&cli.DurationFlag{
				Name:    "access-ttl",
				Value:   15 * time.Minute,
				Sources: cli.EnvVars("REGISTRY_ACCESS_TTL"),
				Usage:   "Access token lifetime",
			},
			&cli.DurationFlag{
				Name:    "refresh-ttl",
				Value:   7 * 24 * time.Hour,
				Sources: cli.EnvVars("REGISTRY_REFRESH_TTL"),
				Usage:   "Refresh token lifetime",
			},
			&cli.StringFlag{
				Name:    "admin-email",
				Sources: cli.EnvVars("REGISTRY_ADMIN_EMAIL"),
				Usage:   "Optional admin account to seed at startup",
			},
			&cli.StringFlag{
				Name:    "admin-password",
				Sources: cli.EnvVars("REGISTRY_ADMIN_PASSWORD"),
				Usage:   "Password for the seeded admin account",
			},
			&cli.StringFlag{
				Name:    "webhook-url",
				Sources: cli.EnvVars("REGISTRY_WEBHOOK_URL"),
				Usage:   "Change event webhook target URL (enables push delivery to downstream consumers)",
			},
			&cli.StringFlag{
				Name:    "webhook-secret",
				Sources: cli.EnvVars("REGISTRY_WEBHOOK_SECRET"),
				Usage:   "HMAC-SHA256 signing secret for outbound webhook requests",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg := app.Config{
				Addr:          c.String("addr"),
				DBPath:        c.String("db-path"),
				JWTSecret:     c.String("jwt-secret"),
				Issuer:        c.String("jwt-issuer"),
				Audience:      c.String("jwt-audience"),
				AccessTTL:     c.Duration("access-ttl"),
				RefreshTTL:    c.Duration("refresh-ttl"),
				AdminEmail:    c.String("admin-email"),
				AdminPassword: c.String("admin-password"),
				WebhookURL:    c.String("webhook-url"),
				WebhookSecret: c.String("webhook-secret"),
			}

			server, closer, err := app.NewServer(ctx, cfg)
			if err != nil {
				return fmt.Errorf("create server: %w", err)
			}
			defer func() {
				if closeErr := closer.Close(); closeErr != nil {
					log.Printf("close resources: %v", closeErr)
				}
			}()

			errCh := make(chan error, 1)
			go func() {
				log.Printf("listening on %s", cfg.Addr)
				errCh <- server.ListenAndServe()
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			select {
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			case sig := <-sigCh:
				log.Printf("received signal %s", sig)
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			}
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
