// Package memstore keeps every record in process memory. It backs tests and
// the "memory" driver used for local development.
package memstore

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/monocle-dev/planboard/internal/models"
	"github.com/monocle-dev/planboard/internal/store"
)

type Store struct {
	mu       sync.RWMutex
	seq      uint64
	users    map[string]*userRecord
	projects map[string]*projectRecord
	tasks    map[string]*taskRecord
	now      func() time.Time
}

type userRecord struct {
	seq  uint64
	user models.User
}

type projectRecord struct {
	seq     uint64
	project models.Project
}

type taskRecord struct {
	seq  uint64
	task models.Task
}

func New() *Store {
	return &Store{
		users:    make(map[string]*userRecord),
		projects: make(map[string]*projectRecord),
		tasks:    make(map[string]*taskRecord),
		now:      time.Now,
	}
}

func (s *Store) Users() store.UserStore       { return userStore{s} }
func (s *Store) Projects() store.ProjectStore { return projectStore{s} }
func (s *Store) Tasks() store.TaskStore       { return taskStore{s} }

func (s *Store) Migrate(context.Context) error { return nil }
func (s *Store) Ping(context.Context) error    { return nil }
func (s *Store) Close(context.Context) error   { return nil }

// ProjectCount reports how many projects are stored.
func (s *Store) ProjectCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.projects)
}

// TaskCount reports how many tasks are stored.
func (s *Store) TaskCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

func (s *Store) nextSeq() uint64 {
	s.seq++
	return s.seq
}

type userStore struct{ s *Store }

func (u userStore) Create(_ context.Context, user *models.User) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	for _, rec := range u.s.users {
		if strings.EqualFold(rec.user.Email, user.Email) {
			return store.ErrDuplicate
		}
	}

	now := u.s.now()
	user.ID = store.NewID()
	user.CreatedAt = now
	user.UpdatedAt = now
	u.s.users[user.ID] = &userRecord{seq: u.s.nextSeq(), user: *user}

	return nil
}

func (u userStore) FindByID(_ context.Context, id string) (*models.User, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()

	rec, ok := u.s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}

	user := rec.user
	return &user, nil
}

func (u userStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()

	for _, rec := range u.s.users {
		if strings.EqualFold(rec.user.Email, email) {
			user := rec.user
			return &user, nil
		}
	}

	return nil, store.ErrNotFound
}

func (u userStore) FindByIDs(_ context.Context, ids []string) ([]models.User, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()

	users := make([]models.User, 0, len(ids))
	seen := make(map[string]bool, len(ids))

	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		if rec, ok := u.s.users[id]; ok {
			users = append(users, rec.user)
		}
	}

	return users, nil
}

func (u userStore) Update(_ context.Context, user *models.User) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	rec, ok := u.s.users[user.ID]
	if !ok {
		return store.ErrNotFound
	}

	for id, other := range u.s.users {
		if id != user.ID && strings.EqualFold(other.user.Email, user.Email) {
			return store.ErrDuplicate
		}
	}

	user.CreatedAt = rec.user.CreatedAt
	user.UpdatedAt = u.s.now()
	rec.user = *user

	return nil
}

func (u userStore) Delete(_ context.Context, id string) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	if _, ok := u.s.users[id]; !ok {
		return store.ErrNotFound
	}

	for _, rec := range u.s.projects {
		rec.project.MemberIDs = slices.DeleteFunc(rec.project.MemberIDs, func(m string) bool { return m == id })
	}
	for _, rec := range u.s.tasks {
		if rec.task.AssignedTo == id {
			rec.task.AssignedTo = ""
		}
	}
	delete(u.s.users, id)

	return nil
}

type projectStore struct{ s *Store }

func cloneProject(p models.Project) models.Project {
	p.MemberIDs = slices.Clone(p.MemberIDs)
	return p
}

func (p projectStore) Create(_ context.Context, project *models.Project) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()

	now := p.s.now()
	project.ID = store.NewID()
	project.CreatedAt = now
	project.UpdatedAt = now
	p.s.projects[project.ID] = &projectRecord{seq: p.s.nextSeq(), project: cloneProject(*project)}

	return nil
}

func (p projectStore) FindByID(_ context.Context, id string) (*models.Project, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()

	rec, ok := p.s.projects[id]
	if !ok {
		return nil, store.ErrNotFound
	}

	project := cloneProject(rec.project)
	return &project, nil
}

func (p projectStore) ListAccessible(_ context.Context, userID string) ([]models.Project, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()

	var records []*projectRecord
	for _, rec := range p.s.projects {
		if rec.project.IsOwner(userID) || rec.project.HasMember(userID) {
			records = append(records, rec)
		}
	}

	slices.SortFunc(records, func(a, b *projectRecord) int {
		if c := b.project.CreatedAt.Compare(a.project.CreatedAt); c != 0 {
			return c
		}
		return compareSeqDesc(a.seq, b.seq)
	})

	projects := make([]models.Project, 0, len(records))
	for _, rec := range records {
		projects = append(projects, cloneProject(rec.project))
	}

	return projects, nil
}

func (p projectStore) Update(_ context.Context, project *models.Project) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()

	rec, ok := p.s.projects[project.ID]
	if !ok {
		return store.ErrNotFound
	}

	project.CreatedAt = rec.project.CreatedAt
	project.UpdatedAt = p.s.now()
	rec.project = cloneProject(*project)

	return nil
}

func (p projectStore) DeleteCascade(_ context.Context, id string) (int64, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()

	if _, ok := p.s.projects[id]; !ok {
		return 0, store.ErrNotFound
	}

	var deleted int64
	for taskID, rec := range p.s.tasks {
		if rec.task.ProjectID == id {
			delete(p.s.tasks, taskID)
			deleted++
		}
	}
	delete(p.s.projects, id)

	return deleted, nil
}

type taskStore struct{ s *Store }

func cloneTask(t models.Task) models.Task {
	if t.EstimatedHours != nil {
		hours := *t.EstimatedHours
		t.EstimatedHours = &hours
	}
	return t
}

func (t taskStore) Create(_ context.Context, task *models.Task) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	now := t.s.now()
	task.ID = store.NewID()
	task.CreatedAt = now
	task.UpdatedAt = now
	t.s.tasks[task.ID] = &taskRecord{seq: t.s.nextSeq(), task: cloneTask(*task)}

	return nil
}

func (t taskStore) FindByID(_ context.Context, id string) (*models.Task, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	rec, ok := t.s.tasks[id]
	if !ok {
		return nil, store.ErrNotFound
	}

	task := cloneTask(rec.task)
	return &task, nil
}

func (t taskStore) ListByProject(_ context.Context, projectID string) ([]models.Task, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	var records []*taskRecord
	for _, rec := range t.s.tasks {
		if rec.task.ProjectID == projectID {
			records = append(records, rec)
		}
	}

	slices.SortFunc(records, func(a, b *taskRecord) int {
		if c := b.task.CreatedAt.Compare(a.task.CreatedAt); c != 0 {
			return c
		}
		return compareSeqDesc(a.seq, b.seq)
	})

	tasks := make([]models.Task, 0, len(records))
	for _, rec := range records {
		tasks = append(tasks, cloneTask(rec.task))
	}

	return tasks, nil
}

func (t taskStore) Update(_ context.Context, task *models.Task) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	rec, ok := t.s.tasks[task.ID]
	if !ok {
		return store.ErrNotFound
	}

	task.CreatedAt = rec.task.CreatedAt
	task.UpdatedAt = t.s.now()
	rec.task = cloneTask(*task)

	return nil
}

func (t taskStore) Delete(_ context.Context, id string) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	if _, ok := t.s.tasks[id]; !ok {
		return store.ErrNotFound
	}
	delete(t.s.tasks, id)

	return nil
}

func compareSeqDesc(a, b uint64) int {
	switch {
	case a > b:
		return -1
	case a < b:
		return 1
	}
	return 0
}
