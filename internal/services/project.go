package services

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/monocle-dev/planboard/internal/access"
	"github.com/monocle-dev/planboard/internal/apperr"
	"github.com/monocle-dev/planboard/internal/models"
	"github.com/monocle-dev/planboard/internal/realtime"
	"github.com/monocle-dev/planboard/internal/store"
	"github.com/monocle-dev/planboard/internal/validation"
)

const (
	msgProjectNotFound = "Project not found"
	msgDateOrder       = "End date must be after start date"
)

// ProjectInput is the full set of writable project fields. Updates are merged
// onto the stored project and then validated with the same rules.
type ProjectInput struct {
	Title       string   `json:"title" validate:"required,notblank,max=200"`
	Description string   `json:"description" validate:"required,notblank,max=5000"`
	Status      string   `json:"status" validate:"omitempty,oneof=planning active on-hold completed"`
	Priority    string   `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	StartDate   string   `json:"startDate" validate:"omitempty,isodate"`
	EndDate     string   `json:"endDate" validate:"required,isodate"`
	Progress    *int     `json:"progress" validate:"omitempty,gte=0,lte=100"`
	Members     []string `json:"members" validate:"omitempty,dive,objectid"`
}

// ProjectPatch carries the fields present in an update request.
type ProjectPatch struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Status      *string   `json:"status"`
	Priority    *string   `json:"priority"`
	StartDate   *string   `json:"startDate"`
	EndDate     *string   `json:"endDate"`
	Progress    *int      `json:"progress"`
	Members     *[]string `json:"members"`
}

type ProjectService struct {
	store       store.Store
	broadcaster Broadcaster
	now         func() time.Time
}

func NewProjectService(st store.Store, broadcaster Broadcaster) *ProjectService {
	return &ProjectService{store: st, broadcaster: broadcaster, now: time.Now}
}

// load fetches a project. Ids that are not object ids cannot exist.
func loadProject(ctx context.Context, st store.Store, id string) (*models.Project, error) {
	if !store.ValidID(id) {
		return nil, apperr.NotFound(msgProjectNotFound)
	}

	project, err := st.Projects().FindByID(ctx, id)
	if err != nil {
		return nil, storeError(err, msgProjectNotFound)
	}

	return project, nil
}

// Authorize loads the project and checks access in that order, so a missing
// project is NotFound even for users who could never see it.
func (s *ProjectService) Authorize(ctx context.Context, userID, id string, mode access.Mode) (*models.Project, error) {
	project, err := loadProject(ctx, s.store, id)
	if err != nil {
		return nil, err
	}

	if err := access.AuthorizeProject(userID, project, mode); err != nil {
		return nil, err
	}

	return project, nil
}

func (s *ProjectService) expand(ctx context.Context, project *models.Project) (*models.ProjectView, error) {
	refs, err := userRefs(ctx, s.store.Users(), projectUserIDs(project))
	if err != nil {
		return nil, err
	}

	view := projectView(project, refs)
	return &view, nil
}

func (s *ProjectService) List(ctx context.Context, userID string) ([]models.ProjectView, error) {
	projects, err := s.store.Projects().ListAccessible(ctx, userID)
	if err != nil {
		return nil, storeError(err, msgProjectNotFound)
	}

	var ids []string
	for i := range projects {
		ids = append(ids, projectUserIDs(&projects[i])...)
	}

	refs, err := userRefs(ctx, s.store.Users(), ids)
	if err != nil {
		return nil, err
	}

	views := make([]models.ProjectView, 0, len(projects))
	for i := range projects {
		views = append(views, projectView(&projects[i], refs))
	}

	return views, nil
}

func (s *ProjectService) Get(ctx context.Context, userID, id string) (*models.ProjectView, error) {
	project, err := s.Authorize(ctx, userID, id, access.Read)
	if err != nil {
		return nil, err
	}

	return s.expand(ctx, project)
}

// apply validates in and copies it onto project. The owner never changes here.
func (s *ProjectService) apply(ctx context.Context, project *models.Project, in ProjectInput) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)

	if fields := validation.Struct(&in); fields != nil {
		return apperr.Validation(fields...)
	}

	start := s.now().UTC()
	if in.StartDate != "" {
		start, _ = validation.ParseDate(in.StartDate)
	}
	end, _ := validation.ParseDate(in.EndDate)

	if !end.After(start) {
		return apperr.FieldInvalid("endDate", msgDateOrder)
	}

	members := dedupe(in.Members)
	members = slices.DeleteFunc(members, func(id string) bool { return id == project.OwnerID })

	if err := requireUsers(ctx, s.store.Users(), "members", members); err != nil {
		return err
	}

	project.Title = in.Title
	project.Description = in.Description
	project.Status = models.ProjectStatus(in.Status)
	if project.Status == "" {
		project.Status = models.ProjectPlanning
	}
	project.Priority = models.Priority(in.Priority)
	if project.Priority == "" {
		project.Priority = models.PriorityMedium
	}
	project.StartDate = start
	project.EndDate = end
	project.Progress = 0
	if in.Progress != nil {
		project.Progress = *in.Progress
	}
	project.MemberIDs = members

	return nil
}

func (s *ProjectService) Create(ctx context.Context, userID string, in ProjectInput) (*models.ProjectView, error) {
	project := &models.Project{OwnerID: userID}

	if err := s.apply(ctx, project, in); err != nil {
		return nil, err
	}

	if err := s.store.Projects().Create(ctx, project); err != nil {
		return nil, storeError(err, msgProjectNotFound)
	}

	return s.expand(ctx, project)
}

func formatDate(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// merged returns the stored project as input with the patch laid over it.
func (p ProjectPatch) merged(project *models.Project) ProjectInput {
	progress := project.Progress
	in := ProjectInput{
		Title:       project.Title,
		Description: project.Description,
		Status:      string(project.Status),
		Priority:    string(project.Priority),
		StartDate:   formatDate(project.StartDate),
		EndDate:     formatDate(project.EndDate),
		Progress:    &progress,
		Members:     slices.Clone(project.MemberIDs),
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
	if p.StartDate != nil {
		in.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		in.EndDate = *p.EndDate
	}
	if p.Progress != nil {
		in.Progress = p.Progress
	}
	if p.Members != nil {
		in.Members = *p.Members
	}

	return in
}

// Update is owner only.
func (s *ProjectService) Update(ctx context.Context, userID, id string, patch ProjectPatch) (*models.ProjectView, error) {
	project, err := s.Authorize(ctx, userID, id, access.Write)
	if err != nil {
		return nil, err
	}

	if err := s.apply(ctx, project, patch.merged(project)); err != nil {
		return nil, err
	}

	if err := s.store.Projects().Update(ctx, project); err != nil {
		return nil, storeError(err, msgProjectNotFound)
	}

	notify(s.broadcaster, realtime.Refresh("project", "updated", project.ID, project.ID))

	return s.expand(ctx, project)
}

// Delete is owner only and removes every task of the project.
func (s *ProjectService) Delete(ctx context.Context, userID, id string) (int64, error) {
	if _, err := s.Authorize(ctx, userID, id, access.Write); err != nil {
		return 0, err
	}

	deleted, err := s.store.Projects().DeleteCascade(ctx, id)
	if err != nil {
		return 0, storeError(err, msgProjectNotFound)
	}

	notify(s.broadcaster, realtime.Refresh("project", "deleted", id, id))

	return deleted, nil
}
