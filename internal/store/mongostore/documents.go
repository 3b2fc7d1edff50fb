package mongostore

import (
	"time"

	"github.com/monocle-dev/planboard/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type userDocument struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Name         string             `bson:"name"`
	Email        string             `bson:"email"`
	PasswordHash string             `bson:"password_hash"`
	Role         string             `bson:"role"`
	CreatedAt    time.Time          `bson:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at"`
}

type projectDocument struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty"`
	Title       string               `bson:"title"`
	Description string               `bson:"description"`
	Status      string               `bson:"status"`
	Priority    string               `bson:"priority"`
	StartDate   time.Time            `bson:"start_date"`
	EndDate     time.Time            `bson:"end_date"`
	Progress    int                  `bson:"progress"`
	Owner       primitive.ObjectID   `bson:"owner"`
	Members     []primitive.ObjectID `bson:"members"`
	CreatedAt   time.Time            `bson:"created_at"`
	UpdatedAt   time.Time            `bson:"updated_at"`
}

type taskDocument struct {
	ID             primitive.ObjectID  `bson:"_id,omitempty"`
	Title          string              `bson:"title"`
	Description    string              `bson:"description"`
	Status         string              `bson:"status"`
	Priority       string              `bson:"priority"`
	DueDate        time.Time           `bson:"due_date"`
	Project        primitive.ObjectID  `bson:"project"`
	AssignedTo     *primitive.ObjectID `bson:"assigned_to,omitempty"`
	CreatedBy      primitive.ObjectID  `bson:"created_by"`
	EstimatedHours *float64            `bson:"estimated_hours,omitempty"`
	CreatedAt      time.Time           `bson:"created_at"`
	UpdatedAt      time.Time           `bson:"updated_at"`
}

// objectID converts a hex id. Callers validate ids before they reach the store,
// so an unparsable id simply matches nothing.
func objectID(id string) primitive.ObjectID {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID
	}
	return oid
}

func objectIDs(ids []string) []primitive.ObjectID {
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}
	return oids
}

func hexIDs(oids []primitive.ObjectID) []string {
	ids := make([]string, 0, len(oids))
	for _, oid := range oids {
		ids = append(ids, oid.Hex())
	}
	return ids
}

func toUserDocument(u *models.User) userDocument {
	return userDocument{
		ID:           objectID(u.ID),
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (d userDocument) model() models.User {
	return models.User{
		ID:           d.ID.Hex(),
		Name:         d.Name,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		Role:         models.Role(d.Role),
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

func toProjectDocument(p *models.Project) projectDocument {
	return projectDocument{
		ID:          objectID(p.ID),
		Title:       p.Title,
		Description: p.Description,
		Status:      string(p.Status),
		Priority:    string(p.Priority),
		StartDate:   p.StartDate,
		EndDate:     p.EndDate,
		Progress:    p.Progress,
		Owner:       objectID(p.OwnerID),
		Members:     objectIDs(p.MemberIDs),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func (d projectDocument) model() models.Project {
	return models.Project{
		ID:          d.ID.Hex(),
		Title:       d.Title,
		Description: d.Description,
		Status:      models.ProjectStatus(d.Status),
		Priority:    models.Priority(d.Priority),
		StartDate:   d.StartDate,
		EndDate:     d.EndDate,
		Progress:    d.Progress,
		OwnerID:     d.Owner.Hex(),
		MemberIDs:   hexIDs(d.Members),
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func toTaskDocument(t *models.Task) taskDocument {
	doc := taskDocument{
		ID:             objectID(t.ID),
		Title:          t.Title,
		Description:    t.Description,
		Status:         string(t.Status),
		Priority:       string(t.Priority),
		DueDate:        t.DueDate,
		Project:        objectID(t.ProjectID),
		CreatedBy:      objectID(t.CreatedBy),
		EstimatedHours: t.EstimatedHours,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}

	if t.AssignedTo != "" {
		assignee := objectID(t.AssignedTo)
		doc.AssignedTo = &assignee
	}

	return doc
}

func (d taskDocument) model() models.Task {
	task := models.Task{
		ID:             d.ID.Hex(),
		Title:          d.Title,
		Description:    d.Description,
		Status:         models.TaskStatus(d.Status),
		Priority:       models.Priority(d.Priority),
		DueDate:        d.DueDate,
		ProjectID:      d.Project.Hex(),
		CreatedBy:      d.CreatedBy.Hex(),
		EstimatedHours: d.EstimatedHours,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}

	if d.AssignedTo != nil {
		task.AssignedTo = d.AssignedTo.Hex()
	}

	return task
}
