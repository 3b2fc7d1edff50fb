package sqlstore

import (
	"time"

	"github.com/monocle-dev/planboard/internal/models"
)

type userRow struct {
	ID           string `gorm:"primaryKey;size:24"`
	Name         string `gorm:"not null"`
	Email        string `gorm:"size:255;uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Role         string `gorm:"size:16;not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (userRow) TableName() string { return "users" }

type projectRow struct {
	ID          string `gorm:"primaryKey;size:24"`
	Title       string `gorm:"not null"`
	Description string `gorm:"type:text;not null"`
	Status      string `gorm:"size:16;not null"`
	Priority    string `gorm:"size:16;not null"`
	StartDate   time.Time
	EndDate     time.Time
	Progress    int       `gorm:"not null;default:0"`
	OwnerID     string    `gorm:"size:24;not null;index"`
	CreatedAt   time.Time `gorm:"index"`
	UpdatedAt   time.Time

	// Relationships
	Members []projectMemberRow `gorm:"foreignKey:ProjectID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (projectRow) TableName() string { return "projects" }

type projectMemberRow struct {
	ProjectID string `gorm:"primaryKey;size:24"`
	UserID    string `gorm:"primaryKey;size:24;index"`
}

func (projectMemberRow) TableName() string { return "project_members" }

type taskRow struct {
	ID             string `gorm:"primaryKey;size:24"`
	Title          string `gorm:"not null"`
	Description    string `gorm:"type:text;not null"`
	Status         string `gorm:"size:16;not null"`
	Priority       string `gorm:"size:16;not null"`
	DueDate        time.Time
	ProjectID      string  `gorm:"size:24;not null;index"`
	AssignedTo     *string `gorm:"size:24"`
	CreatedBy      string  `gorm:"size:24;not null"`
	EstimatedHours *float64
	CreatedAt      time.Time `gorm:"index"`
	UpdatedAt      time.Time
}

func (taskRow) TableName() string { return "tasks" }

func toUserRow(u *models.User) userRow {
	return userRow{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (r userRow) model() models.User {
	return models.User{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Role:         models.Role(r.Role),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func toProjectRow(p *models.Project) projectRow {
	row := projectRow{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Status:      string(p.Status),
		Priority:    string(p.Priority),
		StartDate:   p.StartDate,
		EndDate:     p.EndDate,
		Progress:    p.Progress,
		OwnerID:     p.OwnerID,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}

	for _, userID := range p.MemberIDs {
		row.Members = append(row.Members, projectMemberRow{ProjectID: p.ID, UserID: userID})
	}

	return row
}

func (r projectRow) model() models.Project {
	project := models.Project{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Status:      models.ProjectStatus(r.Status),
		Priority:    models.Priority(r.Priority),
		StartDate:   r.StartDate,
		EndDate:     r.EndDate,
		Progress:    r.Progress,
		OwnerID:     r.OwnerID,
		MemberIDs:   make([]string, 0, len(r.Members)),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}

	for _, m := range r.Members {
		project.MemberIDs = append(project.MemberIDs, m.UserID)
	}

	return project
}

func toTaskRow(t *models.Task) taskRow {
	row := taskRow{
		ID:             t.ID,
		Title:          t.Title,
		Description:    t.Description,
		Status:         string(t.Status),
		Priority:       string(t.Priority),
		DueDate:        t.DueDate,
		ProjectID:      t.ProjectID,
		CreatedBy:      t.CreatedBy,
		EstimatedHours: t.EstimatedHours,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}

	if t.AssignedTo != "" {
		assignee := t.AssignedTo
		row.AssignedTo = &assignee
	}

	return row
}

func (r taskRow) model() models.Task {
	task := models.Task{
		ID:             r.ID,
		Title:          r.Title,
		Description:    r.Description,
		Status:         models.TaskStatus(r.Status),
		Priority:       models.Priority(r.Priority),
		DueDate:        r.DueDate,
		ProjectID:      r.ProjectID,
		CreatedBy:      r.CreatedBy,
		EstimatedHours: r.EstimatedHours,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}

	if r.AssignedTo != nil {
		task.AssignedTo = *r.AssignedTo
	}

	return task
}
