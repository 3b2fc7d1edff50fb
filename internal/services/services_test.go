package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/monocle-dev/planboard/internal/access"
	"github.com/monocle-dev/planboard/internal/apperr"
	"github.com/monocle-dev/planboard/internal/auth"
	"github.com/monocle-dev/planboard/internal/models"
	"github.com/monocle-dev/planboard/internal/realtime"
	"github.com/monocle-dev/planboard/internal/store"
	"github.com/monocle-dev/planboard/internal/store/memstore"
	"golang.org/x/crypto/bcrypt"
)

type recorder struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (r *recorder) Broadcast(e realtime.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

type fixture struct {
	store    *memstore.Store
	auth     *AuthService
	projects *ProjectService
	tasks    *TaskService
	events   *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st := memstore.New()
	issuer, err := auth.NewTokenIssuer("test-secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	events := &recorder{}
	return &fixture{
		store:    st,
		auth:     NewAuthService(st, issuer, auth.NewMemoryRevoker(), bcrypt.MinCost),
		projects: NewProjectService(st, events),
		tasks:    NewTaskService(st, events),
		events:   events,
	}
}

func (f *fixture) user(t *testing.T, name string) *models.User {
	t.Helper()

	u := &models.User{Name: name, Email: name + "@example.com", Role: models.RoleMember}
	if err := f.store.Users().Create(context.Background(), u); err != nil {
		t.Fatal(err)
	}
	return u
}

func (f *fixture) project(t *testing.T, owner *models.User, members ...*models.User) *models.ProjectView {
	t.Helper()

	in := ProjectInput{
		Title:       "Website Redesign",
		Description: "Refresh the marketing site",
		StartDate:   "2024-01-01",
		EndDate:     "2024-03-01",
	}
	for _, m := range members {
		in.Members = append(in.Members, m.ID)
	}

	view, err := f.projects.Create(context.Background(), owner.ID, in)
	if err != nil {
		t.Fatalf("Create project: %v", err)
	}
	return view
}

func (f *fixture) task(t *testing.T, creator *models.User, projectID string) *models.TaskView {
	t.Helper()

	view, err := f.tasks.Create(context.Background(), creator.ID, TaskInput{
		Title:       "Draft wireframes",
		Description: "Landing and pricing pages",
		DueDate:     "2024-02-01T17:00:00Z",
		Project:     projectID,
	})
	if err != nil {
		t.Fatalf("Create task: %v", err)
	}
	return view
}

func wantKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	if !apperr.Is(err, kind) {
		t.Fatalf("error = %v, want kind %s", err, kind)
	}
}

func ptr[T any](v T) *T { return &v }

func TestCreateProjectDefaultsAndExpansion(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")

	view := f.project(t, alice, bob, alice, bob)

	if view.Owner.ID != alice.ID || view.Owner.Email != "alice@example.com" {
		t.Errorf("Owner = %+v", view.Owner)
	}
	if len(view.Members) != 1 || view.Members[0].ID != bob.ID || view.Members[0].Name != "bob" {
		t.Errorf("Members = %+v, want only bob", view.Members)
	}
	if view.Status != models.ProjectPlanning || view.Priority != models.PriorityMedium || view.Progress != 0 {
		t.Errorf("defaults = %s/%s/%d", view.Status, view.Priority, view.Progress)
	}
	if !view.StartDate.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("StartDate = %s", view.StartDate)
	}
}

func TestCreateProjectStartDefaultsToNow(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	f.projects.now = func() time.Time { return now }

	view, err := f.projects.Create(context.Background(), alice.ID, ProjectInput{
		Title: "Q3 planning", Description: "Roadmap", EndDate: "2024-06-01",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !view.StartDate.Equal(now) {
		t.Errorf("StartDate = %s, want %s", view.StartDate, now)
	}
}

func TestCreateProjectValidationRunsBeforeWrite(t *testing.T) {
	tests := []struct {
		name  string
		in    ProjectInput
		field string
	}{
		{
			name:  "end before start",
			in:    ProjectInput{Title: "t", Description: "d", StartDate: "2024-03-01", EndDate: "2024-01-01"},
			field: "endDate",
		},
		{
			name:  "end equals start",
			in:    ProjectInput{Title: "t", Description: "d", StartDate: "2024-03-01", EndDate: "2024-03-01"},
			field: "endDate",
		},
		{
			name:  "blank title",
			in:    ProjectInput{Title: "  ", Description: "d", EndDate: "2099-01-01"},
			field: "title",
		},
		{
			name:  "bad status",
			in:    ProjectInput{Title: "t", Description: "d", EndDate: "2099-01-01", Status: "archived"},
			field: "status",
		},
		{
			name:  "progress above 100",
			in:    ProjectInput{Title: "t", Description: "d", EndDate: "2099-01-01", Progress: ptr(150)},
			field: "progress",
		},
		{
			name:  "unknown member",
			in:    ProjectInput{Title: "t", Description: "d", EndDate: "2099-01-01", Members: []string{store.NewID()}},
			field: "members",
		},
		{
			name:  "malformed member",
			in:    ProjectInput{Title: "t", Description: "d", EndDate: "2099-01-01", Members: []string{"bob"}},
			field: "members",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			alice := f.user(t, "alice")

			_, err := f.projects.Create(context.Background(), alice.ID, tt.in)
			wantKind(t, err, apperr.KindValidation)

			var appErr *apperr.Error
			if !errors.As(err, &appErr) || len(appErr.Fields) == 0 || appErr.Fields[0].Field != tt.field {
				t.Errorf("fields = %+v, want %s", appErr, tt.field)
			}

			list, _ := f.store.Projects().ListAccessible(context.Background(), alice.ID)
			if len(list) != 0 {
				t.Errorf("project persisted despite validation failure")
			}
		})
	}
}

func TestProjectReadAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob, carol := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "carol")
	project := f.project(t, alice, bob)

	for _, u := range []*models.User{alice, bob} {
		if _, err := f.projects.Get(ctx, u.ID, project.ID); err != nil {
			t.Errorf("Get() as %s: %v", u.Name, err)
		}
	}

	_, err := f.projects.Get(ctx, carol.ID, project.ID)
	wantKind(t, err, apperr.KindForbidden)

	_, err = f.projects.Get(ctx, carol.ID, store.NewID())
	wantKind(t, err, apperr.KindNotFound)

	_, err = f.projects.Get(ctx, alice.ID, "not-an-id")
	wantKind(t, err, apperr.KindNotFound)

	for _, tc := range []struct {
		user *models.User
		want int
	}{{alice, 1}, {bob, 1}, {carol, 0}} {
		list, err := f.projects.List(ctx, tc.user.ID)
		if err != nil || len(list) != tc.want {
			t.Errorf("List() as %s = %d, %v; want %d", tc.user.Name, len(list), err, tc.want)
		}
	}
}

func TestProjectListNewestFirst(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")

	first := f.project(t, alice)
	second := f.project(t, alice)

	list, err := f.projects.List(context.Background(), alice.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("List() = %d projects, want 2", len(list))
	}
	if list[0].ID != second.ID || list[1].ID != first.ID {
		t.Errorf("List() order = %v", []string{list[0].ID, list[1].ID})
	}
}

func TestProjectUpdateOwnerOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob, carol := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "carol")
	project := f.project(t, alice, bob)

	_, err := f.projects.Update(ctx, bob.ID, project.ID, ProjectPatch{Title: ptr("Hijacked")})
	wantKind(t, err, apperr.KindForbidden)

	_, err = f.projects.Update(ctx, carol.ID, project.ID, ProjectPatch{Title: ptr("Hijacked")})
	wantKind(t, err, apperr.KindForbidden)

	_, err = f.projects.Update(ctx, carol.ID, store.NewID(), ProjectPatch{})
	wantKind(t, err, apperr.KindNotFound)

	updated, err := f.projects.Update(ctx, alice.ID, project.ID, ProjectPatch{
		Status:   ptr("active"),
		Progress: ptr(40),
		Members:  &[]string{bob.ID, carol.ID},
	})
	if err != nil {
		t.Fatalf("Update() as owner: %v", err)
	}

	if updated.Title != "Website Redesign" || updated.Status != models.ProjectActive || updated.Progress != 40 {
		t.Errorf("merged = %+v", updated)
	}
	if len(updated.Members) != 2 || updated.Owner.ID != alice.ID {
		t.Errorf("members = %+v owner = %+v", updated.Members, updated.Owner)
	}
	if !updated.CreatedAt.Equal(project.CreatedAt) {
		t.Errorf("CreatedAt changed: %s -> %s", project.CreatedAt, updated.CreatedAt)
	}

	stored, _ := f.store.Projects().FindByID(ctx, project.ID)
	if stored.Title != "Website Redesign" {
		t.Errorf("rejected update leaked into store: %q", stored.Title)
	}
}

func TestProjectUpdateRevalidatesMergedDates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	project := f.project(t, alice)

	_, err := f.projects.Update(ctx, alice.ID, project.ID, ProjectPatch{EndDate: ptr("2023-12-31")})
	wantKind(t, err, apperr.KindValidation)

	_, err = f.projects.Update(ctx, alice.ID, project.ID, ProjectPatch{Title: ptr("")})
	wantKind(t, err, apperr.KindValidation)

	stored, _ := f.store.Projects().FindByID(ctx, project.ID)
	if !stored.EndDate.Equal(project.EndDate) || stored.Title != project.Title {
		t.Errorf("invalid update was persisted: %+v", stored)
	}
}

func TestProjectDeleteCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	project := f.project(t, alice, bob)
	other := f.project(t, alice)

	f.task(t, alice, project.ID)
	f.task(t, bob, project.ID)
	kept := f.task(t, alice, other.ID)

	_, err := f.projects.Delete(ctx, bob.ID, project.ID)
	wantKind(t, err, apperr.KindForbidden)

	deleted, err := f.projects.Delete(ctx, alice.ID, project.ID)
	if err != nil || deleted != 2 {
		t.Fatalf("Delete() = %d, %v; want 2 tasks removed", deleted, err)
	}

	_, err = f.projects.Get(ctx, alice.ID, project.ID)
	wantKind(t, err, apperr.KindNotFound)

	_, err = f.tasks.ListByProject(ctx, bob.ID, project.ID)
	wantKind(t, err, apperr.KindNotFound)

	if _, err := f.tasks.Get(ctx, alice.ID, kept.ID); err != nil {
		t.Errorf("task of another project was removed: %v", err)
	}

	_, err = f.projects.Delete(ctx, alice.ID, project.ID)
	wantKind(t, err, apperr.KindNotFound)
}

func TestMemberMayMutateTasks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob, carol := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "carol")
	project := f.project(t, alice, bob)

	byOwner := f.task(t, alice, project.ID)
	byMember := f.task(t, bob, project.ID)

	if byMember.CreatedBy.ID != bob.ID || byMember.CreatedBy.Name != "bob" {
		t.Errorf("CreatedBy = %+v", byMember.CreatedBy)
	}

	updated, err := f.tasks.Update(ctx, bob.ID, byOwner.ID, TaskPatch{
		Status:     ptr("in-progress"),
		AssignedTo: Value(bob.ID),
	})
	if err != nil {
		t.Fatalf("member Update() of owner's task: %v", err)
	}
	if updated.Status != models.TaskInProgress || updated.AssignedTo == nil || updated.AssignedTo.ID != bob.ID {
		t.Errorf("updated = %+v", updated)
	}
	if updated.CreatedBy.ID != alice.ID || updated.Project != project.ID {
		t.Errorf("immutable fields changed: %+v", updated)
	}

	_, err = f.tasks.Update(ctx, carol.ID, byOwner.ID, TaskPatch{Title: ptr("nope")})
	wantKind(t, err, apperr.KindForbidden)

	_, err = f.tasks.Get(ctx, carol.ID, byOwner.ID)
	wantKind(t, err, apperr.KindForbidden)

	err = f.tasks.Delete(ctx, carol.ID, byOwner.ID)
	wantKind(t, err, apperr.KindForbidden)

	if err := f.tasks.Delete(ctx, bob.ID, byOwner.ID); err != nil {
		t.Fatalf("member Delete() of owner's task: %v", err)
	}

	list, err := f.tasks.ListByProject(ctx, alice.ID, project.ID)
	if err != nil || len(list) != 1 || list[0].ID != byMember.ID {
		t.Errorf("ListByProject() = %+v, %v", list, err)
	}
}

func TestCreateTaskChecks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, carol := f.user(t, "alice"), f.user(t, "carol")
	project := f.project(t, alice)

	base := TaskInput{Title: "t", Description: "d", DueDate: "2024-02-01", Project: project.ID}

	missing := base
	missing.Project = store.NewID()
	_, err := f.tasks.Create(ctx, alice.ID, missing)
	wantKind(t, err, apperr.KindNotFound)
	if list, _ := f.store.Tasks().ListByProject(ctx, missing.Project); len(list) != 0 {
		t.Error("task persisted for a missing project")
	}

	malformed := base
	malformed.Project = "123"
	_, err = f.tasks.Create(ctx, alice.ID, malformed)
	wantKind(t, err, apperr.KindValidation)

	_, err = f.tasks.Create(ctx, carol.ID, base)
	wantKind(t, err, apperr.KindForbidden)

	badAssignee := base
	badAssignee.AssignedTo = store.NewID()
	_, err = f.tasks.Create(ctx, alice.ID, badAssignee)
	wantKind(t, err, apperr.KindValidation)

	negative := base
	negative.EstimatedHours = ptr(-1.0)
	_, err = f.tasks.Create(ctx, alice.ID, negative)
	wantKind(t, err, apperr.KindValidation)

	if list, _ := f.store.Tasks().ListByProject(ctx, project.ID); len(list) != 0 {
		t.Errorf("rejected tasks were persisted: %d", len(list))
	}

	view, err := f.tasks.Create(ctx, alice.ID, base)
	if err != nil {
		t.Fatal(err)
	}
	if view.Status != models.TaskTodo || view.Priority != models.PriorityMedium || view.AssignedTo != nil {
		t.Errorf("defaults = %+v", view)
	}
}

func TestTaskPatchNulls(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	project := f.project(t, alice)

	view, err := f.tasks.Create(ctx, alice.ID, TaskInput{
		Title: "t", Description: "d", DueDate: "2024-02-01", Project: project.ID,
		AssignedTo: alice.ID, EstimatedHours: ptr(3.5),
	})
	if err != nil {
		t.Fatal(err)
	}

	var keep TaskPatch
	if err := json.Unmarshal([]byte(`{"title":"renamed"}`), &keep); err != nil {
		t.Fatal(err)
	}
	updated, err := f.tasks.Update(ctx, alice.ID, view.ID, keep)
	if err != nil {
		t.Fatal(err)
	}
	if updated.AssignedTo == nil || updated.EstimatedHours == nil || *updated.EstimatedHours != 3.5 {
		t.Errorf("absent fields were cleared: %+v", updated)
	}

	var clear TaskPatch
	if err := json.Unmarshal([]byte(`{"assignedTo":null,"estimatedHours":null,"project":"ignored"}`), &clear); err != nil {
		t.Fatal(err)
	}
	updated, err = f.tasks.Update(ctx, alice.ID, view.ID, clear)
	if err != nil {
		t.Fatal(err)
	}
	if updated.AssignedTo != nil || updated.EstimatedHours != nil || updated.Title != "renamed" {
		t.Errorf("null fields were not cleared: %+v", updated)
	}
	if updated.Project != project.ID {
		t.Errorf("Project = %s, want %s", updated.Project, project.ID)
	}
}

func TestBroadcastsChanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	project := f.project(t, alice)

	task := f.task(t, alice, project.ID)
	if _, err := f.tasks.Update(ctx, alice.ID, task.ID, TaskPatch{Status: ptr("review")}); err != nil {
		t.Fatal(err)
	}
	if err := f.tasks.Delete(ctx, alice.ID, task.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.projects.Delete(ctx, alice.ID, project.ID); err != nil {
		t.Fatal(err)
	}

	want := []string{"task/created", "task/updated", "task/deleted", "project/deleted"}
	if len(f.events.events) != len(want) {
		t.Fatalf("events = %+v", f.events.events)
	}
	for i, e := range f.events.events {
		if e.Resource+"/"+e.Action != want[i] || e.ProjectID != project.ID {
			t.Errorf("event[%d] = %+v, want %s", i, e, want[i])
		}
	}
}

func TestAuthorizeForWebsocket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	project := f.project(t, alice, bob)

	if _, err := f.projects.Authorize(ctx, bob.ID, project.ID, access.Read); err != nil {
		t.Errorf("member read: %v", err)
	}
	_, err := f.projects.Authorize(ctx, bob.ID, project.ID, access.Write)
	wantKind(t, err, apperr.KindForbidden)
}
