// Package breaker wraps a store.Store with a circuit breaker so a failing
// database is reported quickly instead of stalling every request.
package breaker

import (
	"context"
	"errors"
	"time"

	"github.com/monocle-dev/planboard/internal/models"
	"github.com/monocle-dev/planboard/internal/store"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

type Options struct {
	Name string
	// MaxRequests is the number of trial requests allowed while half-open.
	MaxRequests uint32
	// Timeout is how long the breaker stays open before going half-open.
	Timeout time.Duration
	// Failures is the number of consecutive failures that trips the breaker.
	Failures uint32
}

type Store struct {
	inner store.Store
	cb    *gobreaker.CircuitBreaker
}

func New(inner store.Store, opts Options, log logrus.FieldLogger) *Store {
	if opts.Name == "" {
		opts.Name = "store"
	}
	if opts.MaxRequests == 0 {
		opts.MaxRequests = 1
	}
	if opts.Failures == 0 {
		opts.Failures = 5
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        opts.Name,
		MaxRequests: opts.MaxRequests,
		Timeout:     opts.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.Failures
		},
		IsSuccessful: healthy,
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return &Store{inner: inner, cb: cb}
}

// healthy reports whether err says nothing about the database being down.
func healthy(err error) bool {
	return err == nil ||
		errors.Is(err, store.ErrNotFound) ||
		errors.Is(err, store.ErrDuplicate) ||
		errors.Is(err, context.Canceled)
}

// State exposes the breaker state; the health endpoint reports it.
func (s *Store) State() gobreaker.State {
	return s.cb.State()
}

func call[T any](cb *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	out, err := cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out.(T), nil
}

func run(cb *gobreaker.CircuitBreaker, fn func() error) error {
	_, err := cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	return err
}

func (s *Store) Users() store.UserStore       { return userStore{s.cb, s.inner.Users()} }
func (s *Store) Projects() store.ProjectStore { return projectStore{s.cb, s.inner.Projects()} }
func (s *Store) Tasks() store.TaskStore       { return taskStore{s.cb, s.inner.Tasks()} }

// Migrate bypasses the breaker; it runs once before serving.
func (s *Store) Migrate(ctx context.Context) error { return s.inner.Migrate(ctx) }

func (s *Store) Ping(ctx context.Context) error {
	return run(s.cb, func() error { return s.inner.Ping(ctx) })
}

func (s *Store) Close(ctx context.Context) error { return s.inner.Close(ctx) }

type userStore struct {
	cb    *gobreaker.CircuitBreaker
	inner store.UserStore
}

func (u userStore) Create(ctx context.Context, user *models.User) error {
	return run(u.cb, func() error { return u.inner.Create(ctx, user) })
}

func (u userStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	return call(u.cb, func() (*models.User, error) { return u.inner.FindByID(ctx, id) })
}

func (u userStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return call(u.cb, func() (*models.User, error) { return u.inner.FindByEmail(ctx, email) })
}

func (u userStore) FindByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	return call(u.cb, func() ([]models.User, error) { return u.inner.FindByIDs(ctx, ids) })
}

func (u userStore) Update(ctx context.Context, user *models.User) error {
	return run(u.cb, func() error { return u.inner.Update(ctx, user) })
}

func (u userStore) Delete(ctx context.Context, id string) error {
	return run(u.cb, func() error { return u.inner.Delete(ctx, id) })
}

type projectStore struct {
	cb    *gobreaker.CircuitBreaker
	inner store.ProjectStore
}

func (p projectStore) Create(ctx context.Context, project *models.Project) error {
	return run(p.cb, func() error { return p.inner.Create(ctx, project) })
}

func (p projectStore) FindByID(ctx context.Context, id string) (*models.Project, error) {
	return call(p.cb, func() (*models.Project, error) { return p.inner.FindByID(ctx, id) })
}

func (p projectStore) ListAccessible(ctx context.Context, userID string) ([]models.Project, error) {
	return call(p.cb, func() ([]models.Project, error) { return p.inner.ListAccessible(ctx, userID) })
}

func (p projectStore) Update(ctx context.Context, project *models.Project) error {
	return run(p.cb, func() error { return p.inner.Update(ctx, project) })
}

func (p projectStore) DeleteCascade(ctx context.Context, id string) (int64, error) {
	return call(p.cb, func() (int64, error) { return p.inner.DeleteCascade(ctx, id) })
}

type taskStore struct {
	cb    *gobreaker.CircuitBreaker
	inner store.TaskStore
}

func (t taskStore) Create(ctx context.Context, task *models.Task) error {
	return run(t.cb, func() error { return t.inner.Create(ctx, task) })
}

func (t taskStore) FindByID(ctx context.Context, id string) (*models.Task, error) {
	return call(t.cb, func() (*models.Task, error) { return t.inner.FindByID(ctx, id) })
}

func (t taskStore) ListByProject(ctx context.Context, projectID string) ([]models.Task, error) {
	return call(t.cb, func() ([]models.Task, error) { return t.inner.ListByProject(ctx, projectID) })
}

func (t taskStore) Update(ctx context.Context, task *models.Task) error {
	return run(t.cb, func() error { return t.inner.Update(ctx, task) })
}

func (t taskStore) Delete(ctx context.Context, id string) error {
	return run(t.cb, func() error { return t.inner.Delete(ctx, id) })
}
