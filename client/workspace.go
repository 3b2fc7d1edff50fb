package client

import (
	"context"
	"sync"

	"github.com/monocle-dev/planboard/client/state"
)

// Workspace mirrors the projects and tasks a user is looking at. Every
// mutating call goes to the API first and only a successful response is
// applied locally.
type Workspace struct {
	client *Client

	mu       sync.RWMutex
	projects []Project
	current  *Project
	tasks    []Task
}

func NewWorkspace(c *Client) *Workspace {
	return &Workspace{client: c}
}

func (w *Workspace) applyProject(e state.Event[Project]) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.projects = state.Apply(w.projects, e)
	w.current = state.ApplyCurrent(w.current, e)
}

func (w *Workspace) applyTask(e state.Event[Task]) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tasks = state.Apply(w.tasks, e)
}

func (w *Workspace) Projects() []Project {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]Project(nil), w.projects...)
}

func (w *Workspace) Current() *Project {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.current == nil {
		return nil
	}
	p := *w.current
	return &p
}

func (w *Workspace) Tasks() []Task {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]Task(nil), w.tasks...)
}

func (w *Workspace) FetchProjects(ctx context.Context) error {
	projects, err := w.client.ListProjects(ctx)
	if err != nil {
		return err
	}
	w.applyProject(state.ListReplaced[Project]{Items: projects})
	return nil
}

// FetchProject loads one project and makes it current.
func (w *Workspace) FetchProject(ctx context.Context, id string) (*Project, error) {
	project, err := w.client.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	current := *project
	w.current = &current
	w.mu.Unlock()

	return project, nil
}

func (w *Workspace) CreateProject(ctx context.Context, in ProjectInput) (*Project, error) {
	project, err := w.client.CreateProject(ctx, in)
	if err != nil {
		return nil, err
	}
	w.applyProject(state.Added[Project]{Item: *project})
	return project, nil
}

func (w *Workspace) UpdateProject(ctx context.Context, id string, in ProjectUpdate) (*Project, error) {
	project, err := w.client.UpdateProject(ctx, id, in)
	if err != nil {
		return nil, err
	}
	w.applyProject(state.Replaced[Project]{Item: *project})
	return project, nil
}

// DeleteProject also drops the project's tasks, which the server deletes with it.
func (w *Workspace) DeleteProject(ctx context.Context, id string) error {
	if err := w.client.DeleteProject(ctx, id); err != nil {
		return err
	}
	w.applyProject(state.Removed[Project]{ID: id})

	for _, t := range w.Tasks() {
		if t.Project == id {
			w.applyTask(state.Removed[Task]{ID: t.ID})
		}
	}

	return nil
}

func (w *Workspace) FetchTasks(ctx context.Context, projectID string) error {
	tasks, err := w.client.ListTasks(ctx, projectID)
	if err != nil {
		return err
	}
	w.applyTask(state.ListReplaced[Task]{Items: tasks})
	return nil
}

// FetchAllTasks replaces the task list with the tasks of every accessible project.
func (w *Workspace) FetchAllTasks(ctx context.Context) error {
	tasks, err := w.client.AllTasks(ctx)
	if err != nil {
		return err
	}
	w.applyTask(state.ListReplaced[Task]{Items: tasks})
	return nil
}

func (w *Workspace) CreateTask(ctx context.Context, in TaskInput) (*Task, error) {
	task, err := w.client.CreateTask(ctx, in)
	if err != nil {
		return nil, err
	}
	w.applyTask(state.Added[Task]{Item: *task})
	return task, nil
}

func (w *Workspace) UpdateTask(ctx context.Context, id string, in TaskUpdate) (*Task, error) {
	task, err := w.client.UpdateTask(ctx, id, in)
	if err != nil {
		return nil, err
	}
	w.applyTask(state.Replaced[Task]{Item: *task})
	return task, nil
}

func (w *Workspace) DeleteTask(ctx context.Context, id string) error {
	if err := w.client.DeleteTask(ctx, id); err != nil {
		return err
	}
	w.applyTask(state.Removed[Task]{ID: id})
	return nil
}
