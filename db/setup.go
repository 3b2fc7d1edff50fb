package db

import (
	"context"
	"fmt"

	"github.com/monocle-dev/planboard/internal/config"
	"github.com/monocle-dev/planboard/internal/store"
	"github.com/monocle-dev/planboard/internal/store/breaker"
	"github.com/monocle-dev/planboard/internal/store/memstore"
	"github.com/monocle-dev/planboard/internal/store/mongostore"
	"github.com/monocle-dev/planboard/internal/store/sqlstore"
	"github.com/sirupsen/logrus"
)

// Open connects the configured backend and wraps it in a circuit breaker when enabled.
func Open(ctx context.Context, cfg *config.Store, log logrus.FieldLogger) (store.Store, error) {
	var (
		st  store.Store
		err error
	)

	switch cfg.Driver {
	case "memory":
		log.Warn("Using in-memory store, data will not survive a restart")
		st = memstore.New()
	case "mongodb":
		st, err = mongostore.Connect(ctx, cfg.URI, cfg.Database, cfg.ConnectTimeout, log)
	case "postgres", "mysql":
		st, err = openSQL(ctx, cfg, log)
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, err
	}

	if cfg.Breaker != nil && cfg.Breaker.Enabled {
		st = breaker.New(st, breaker.Options{
			Name:        cfg.Driver,
			MaxRequests: cfg.Breaker.MaxRequests,
			Timeout:     cfg.Breaker.Timeout,
			Failures:    cfg.Breaker.Failures,
		}, log)
	}

	return st, nil
}

func openSQL(ctx context.Context, cfg *config.Store, log logrus.FieldLogger) (store.Store, error) {
	st, err := sqlstore.Open(cfg.Driver, cfg.URI, log)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	if err := st.Ping(pingCtx); err != nil {
		_ = st.Close(context.Background())
		return nil, fmt.Errorf("failed to ping %s database: %w", cfg.Driver, err)
	}

	log.WithField("driver", cfg.Driver).Info("Connected to database")

	return st, nil
}

// MigrateDatabase creates the tables or indexes the backend relies on.
func MigrateDatabase(ctx context.Context, st store.Store) error {
	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}
