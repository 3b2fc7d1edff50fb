package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/monocle-dev/planboard/db"
	"github.com/monocle-dev/planboard/internal/auth"
	"github.com/monocle-dev/planboard/internal/config"
	"github.com/monocle-dev/planboard/internal/realtime"
	"github.com/monocle-dev/planboard/internal/router"
	"github.com/monocle-dev/planboard/internal/services"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 15 * time.Second

func newServeCommand(configPath *string) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:     "serve",
		Args:    cobra.NoArgs,
		Aliases: []string{"start"},
		Short:   "Start the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, closer, err := bootstrap(*configPath)
			if err != nil {
				return err
			}
			defer closer.Close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, log, migrate)
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", false, "run schema migrations before serving (MongoDB indexes are always ensured on connect)")

	return cmd
}

func newRevoker(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (auth.Revoker, func(), error) {
	if cfg.Auth.Revocation != "redis" {
		return auth.NewMemoryRevoker(), func() {}, nil
	}

	revoker, err := auth.NewRedisRevoker(ctx, cfg.Redis.URL, cfg.Redis.DB)
	if err != nil {
		return nil, nil, err
	}

	log.Info("Token revocation backed by Redis")

	return revoker, func() {
		if err := revoker.Close(); err != nil {
			log.WithError(err).Warn("Failed to close Redis client")
		}
	}, nil
}

func serve(ctx context.Context, cfg *config.Config, log *logrus.Logger, migrate bool) error {
	gin.SetMode(cfg.Server.Mode)

	st, err := db.Open(ctx, cfg.Store, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			log.WithError(err).Warn("Failed to close store")
		}
	}()

	if migrate {
		if err := db.MigrateDatabase(ctx, st); err != nil {
			return err
		}
	}

	revoker, closeRevoker, err := newRevoker(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeRevoker()

	tokens, err := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}

	var (
		hub         *realtime.Hub
		broadcaster services.Broadcaster
	)
	if cfg.Realtime.Enabled {
		hub = realtime.NewHub(cfg.Server.AllowedOrigins, log)
		broadcaster = hub
	}

	r := router.NewRouter(router.Deps{
		Config:   cfg.Server,
		Store:    st,
		Auth:     services.NewAuthService(st, tokens, revoker, cfg.Auth.BcryptCost),
		Projects: services.NewProjectService(st, broadcaster),
		Tasks:    services.NewTaskService(st, broadcaster),
		Hub:      hub,
		Log:      log,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
