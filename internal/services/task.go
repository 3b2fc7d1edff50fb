package services

import (
	"context"
	"strings"

	"github.com/monocle-dev/planboard/internal/access"
	"github.com/monocle-dev/planboard/internal/apperr"
	"github.com/monocle-dev/planboard/internal/models"
	"github.com/monocle-dev/planboard/internal/realtime"
	"github.com/monocle-dev/planboard/internal/store"
	"github.com/monocle-dev/planboard/internal/validation"
)

const msgTaskNotFound = "Task not found"

type TaskInput struct {
	Title          string   `json:"title" validate:"required,notblank,max=200"`
	Description    string   `json:"description" validate:"required,notblank,max=5000"`
	Status         string   `json:"status" validate:"omitempty,oneof=todo in-progress review completed"`
	Priority       string   `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	DueDate        string   `json:"dueDate" validate:"required,isodate"`
	Project        string   `json:"project" validate:"required,objectid"`
	AssignedTo     string   `json:"assignedTo" validate:"omitempty,objectid"`
	EstimatedHours *float64 `json:"estimatedHours" validate:"omitempty,gte=0"`
}

// TaskPatch carries the fields present in an update request. The parent
// project and the creator cannot be changed. An explicit null clears the
// assignee or the estimate.
type TaskPatch struct {
	Title          *string           `json:"title"`
	Description    *string           `json:"description"`
	Status         *string           `json:"status"`
	Priority       *string           `json:"priority"`
	DueDate        *string           `json:"dueDate"`
	AssignedTo     Nullable[string]  `json:"assignedTo"`
	EstimatedHours Nullable[float64] `json:"estimatedHours"`
}

type TaskService struct {
	store       store.Store
	broadcaster Broadcaster
}

func NewTaskService(st store.Store, broadcaster Broadcaster) *TaskService {
	return &TaskService{store: st, broadcaster: broadcaster}
}

func (s *TaskService) expand(ctx context.Context, task *models.Task) (*models.TaskView, error) {
	refs, err := userRefs(ctx, s.store.Users(), taskUserIDs(task))
	if err != nil {
		return nil, err
	}

	view := taskView(task, refs)
	return &view, nil
}

// parent loads the project a task operation targets and checks read access.
func (s *TaskService) parent(ctx context.Context, userID, projectID string) (*models.Project, error) {
	project, err := loadProject(ctx, s.store, projectID)
	if err != nil {
		return nil, err
	}

	if err := access.AuthorizeTask(userID, project); err != nil {
		return nil, err
	}

	return project, nil
}

// load fetches a task and authorizes against its parent project.
func (s *TaskService) load(ctx context.Context, userID, id string) (*models.Task, error) {
	if !store.ValidID(id) {
		return nil, apperr.NotFound(msgTaskNotFound)
	}

	task, err := s.store.Tasks().FindByID(ctx, id)
	if err != nil {
		return nil, storeError(err, msgTaskNotFound)
	}

	if _, err := s.parent(ctx, userID, task.ProjectID); err != nil {
		return nil, err
	}

	return task, nil
}

func (s *TaskService) ListByProject(ctx context.Context, userID, projectID string) ([]models.TaskView, error) {
	if _, err := s.parent(ctx, userID, projectID); err != nil {
		return nil, err
	}

	tasks, err := s.store.Tasks().ListByProject(ctx, projectID)
	if err != nil {
		return nil, storeError(err, msgTaskNotFound)
	}

	var ids []string
	for i := range tasks {
		ids = append(ids, taskUserIDs(&tasks[i])...)
	}

	refs, err := userRefs(ctx, s.store.Users(), ids)
	if err != nil {
		return nil, err
	}

	views := make([]models.TaskView, 0, len(tasks))
	for i := range tasks {
		views = append(views, taskView(&tasks[i], refs))
	}

	return views, nil
}

func (s *TaskService) Get(ctx context.Context, userID, id string) (*models.TaskView, error) {
	task, err := s.load(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	return s.expand(ctx, task)
}

// validateTask checks in and builds the task. The caller sets the creator.
func validateTask(in TaskInput) (*models.Task, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)

	if fields := validation.Struct(&in); fields != nil {
		return nil, apperr.Validation(fields...)
	}

	due, _ := validation.ParseDate(in.DueDate)

	task := &models.Task{
		Title:          in.Title,
		Description:    in.Description,
		Status:         models.TaskStatus(in.Status),
		Priority:       models.Priority(in.Priority),
		DueDate:        due,
		ProjectID:      in.Project,
		AssignedTo:     in.AssignedTo,
		EstimatedHours: in.EstimatedHours,
	}

	if task.Status == "" {
		task.Status = models.TaskTodo
	}
	if task.Priority == "" {
		task.Priority = models.PriorityMedium
	}

	return task, nil
}

func (s *TaskService) requireAssignee(ctx context.Context, task *models.Task) error {
	if task.AssignedTo == "" {
		return nil
	}
	return requireUsers(ctx, s.store.Users(), "assignedTo", []string{task.AssignedTo})
}

// Create validates the payload before any store access, then requires the
// project to exist and the caller to be able to read it.
func (s *TaskService) Create(ctx context.Context, userID string, in TaskInput) (*models.TaskView, error) {
	task, err := validateTask(in)
	if err != nil {
		return nil, err
	}

	if _, err := s.parent(ctx, userID, task.ProjectID); err != nil {
		return nil, err
	}

	if err := s.requireAssignee(ctx, task); err != nil {
		return nil, err
	}

	task.CreatedBy = userID

	if err := s.store.Tasks().Create(ctx, task); err != nil {
		return nil, storeError(err, msgTaskNotFound)
	}

	notify(s.broadcaster, realtime.Refresh("task", "created", task.ID, task.ProjectID))

	return s.expand(ctx, task)
}

func (p TaskPatch) merged(task *models.Task) TaskInput {
	in := TaskInput{
		Title:          task.Title,
		Description:    task.Description,
		Status:         string(task.Status),
		Priority:       string(task.Priority),
		DueDate:        formatDate(task.DueDate),
		Project:        task.ProjectID,
		AssignedTo:     task.AssignedTo,
		EstimatedHours: task.EstimatedHours,
	}

	if p.Title != nil {
		in.Title = *p.Title
	}
	if p.Description != nil {
		in.Description = *p.Description
	}
	if p.Status != nil {
		in.Status = *p.Status
	}
	if p.Priority != nil {
		in.Priority = *p.Priority
	}
	if p.DueDate != nil {
		in.DueDate = *p.DueDate
	}
	if p.AssignedTo.Set {
		in.AssignedTo = ""
		if p.AssignedTo.Valid {
			in.AssignedTo = p.AssignedTo.Value
		}
	}
	if p.EstimatedHours.Set {
		in.EstimatedHours = nil
		if p.EstimatedHours.Valid {
			hours := p.EstimatedHours.Value
			in.EstimatedHours = &hours
		}
	}

	return in
}

// Update needs only read access to the parent project.
func (s *TaskService) Update(ctx context.Context, userID, id string, patch TaskPatch) (*models.TaskView, error) {
	current, err := s.load(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	task, err := validateTask(patch.merged(current))
	if err != nil {
		return nil, err
	}

	if err := s.requireAssignee(ctx, task); err != nil {
		return nil, err
	}

	task.ID = current.ID
	task.ProjectID = current.ProjectID
	task.CreatedBy = current.CreatedBy
	task.CreatedAt = current.CreatedAt

	if err := s.store.Tasks().Update(ctx, task); err != nil {
		return nil, storeError(err, msgTaskNotFound)
	}

	notify(s.broadcaster, realtime.Refresh("task", "updated", task.ID, task.ProjectID))

	return s.expand(ctx, task)
}

// Delete needs only read access to the parent project.
func (s *TaskService) Delete(ctx context.Context, userID, id string) error {
	task, err := s.load(ctx, userID, id)
	if err != nil {
		return err
	}

	if err := s.store.Tasks().Delete(ctx, task.ID); err != nil {
		return storeError(err, msgTaskNotFound)
	}

	notify(s.broadcaster, realtime.Refresh("task", "deleted", task.ID, task.ProjectID))

	return nil
}
