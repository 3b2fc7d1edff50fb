package breaker

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/monocle-dev/planboard/internal/store"
	"github.com/monocle-dev/planboard/internal/store/memstore"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

type flakyStore struct {
	*memstore.Store
	pingErr error
	pings   int
}

func (f *flakyStore) Ping(context.Context) error {
	f.pings++
	return f.pingErr
}

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	inner := &flakyStore{Store: memstore.New(), pingErr: errors.New("connection refused")}
	s := New(inner, Options{Failures: 3, Timeout: time.Minute}, quietLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := s.Ping(ctx); err == nil {
			t.Fatalf("ping %d: expected error", i)
		}
	}

	if s.State() != gobreaker.StateOpen {
		t.Fatalf("State() = %s, want open", s.State())
	}

	err := s.Ping(ctx)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("Ping() with open breaker = %v, want ErrOpenState", err)
	}
	if inner.pings != 3 {
		t.Errorf("inner pinged %d times, want 3", inner.pings)
	}
}

func TestNotFoundDoesNotTrip(t *testing.T) {
	s := New(memstore.New(), Options{Failures: 1, Timeout: time.Minute}, quietLogger())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := s.Projects().FindByID(ctx, store.NewID()); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("FindByID() error = %v, want ErrNotFound", err)
		}
	}

	if s.State() != gobreaker.StateClosed {
		t.Errorf("State() = %s, want closed", s.State())
	}
}

func TestPassesResultsThrough(t *testing.T) {
	mem := memstore.New()
	s := New(mem, Options{}, quietLogger())
	ctx := context.Background()

	if _, err := s.Users().FindByIDs(ctx, nil); err != nil {
		t.Fatalf("FindByIDs(nil) error = %v", err)
	}

	deleted, err := s.Projects().DeleteCascade(ctx, store.NewID())
	if !errors.Is(err, store.ErrNotFound) || deleted != 0 {
		t.Errorf("DeleteCascade(missing) = %d, %v", deleted, err)
	}

	if err := s.Users().Delete(ctx, store.NewID()); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Users().Delete(missing) = %v, want ErrNotFound", err)
	}
	if s.State() != gobreaker.StateClosed {
		t.Errorf("State() = %s, want closed", s.State())
	}
}
