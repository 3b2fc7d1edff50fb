package client

import "time"

type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type UserRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Project struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	Priority    string    `json:"priority"`
	StartDate   time.Time `json:"startDate"`
	EndDate     time.Time `json:"endDate"`
	Progress    int       `json:"progress"`
	Owner       UserRef   `json:"owner"`
	Members     []UserRef `json:"members"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (p Project) Key() string { return p.ID }

type Task struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Status         string    `json:"status"`
	Priority       string    `json:"priority"`
	DueDate        time.Time `json:"dueDate"`
	Project        string    `json:"project"`
	AssignedTo     *UserRef  `json:"assignedTo"`
	CreatedBy      UserRef   `json:"createdBy"`
	EstimatedHours *float64  `json:"estimatedHours,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func (t Task) Key() string { return t.ID }

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

// ProfileUpdate changes the signed-in user. Nil fields are left alone.
type ProfileUpdate struct {
	Name            *string `json:"name,omitempty"`
	Email           *string `json:"email,omitempty"`
	CurrentPassword string  `json:"currentPassword,omitempty"`
	NewPassword     string  `json:"newPassword,omitempty"`
}

type ProjectInput struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status,omitempty"`
	Priority    string     `json:"priority,omitempty"`
	StartDate   *time.Time `json:"startDate,omitempty"`
	EndDate     time.Time  `json:"endDate"`
	Progress    *int       `json:"progress,omitempty"`
	Members     []string   `json:"members,omitempty"`
}

// ProjectUpdate sends only the non-nil fields.
type ProjectUpdate struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Status      *string    `json:"status,omitempty"`
	Priority    *string    `json:"priority,omitempty"`
	StartDate   *time.Time `json:"startDate,omitempty"`
	EndDate     *time.Time `json:"endDate,omitempty"`
	Progress    *int       `json:"progress,omitempty"`
	Members     *[]string  `json:"members,omitempty"`
}

type TaskInput struct {
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Status         string    `json:"status,omitempty"`
	Priority       string    `json:"priority,omitempty"`
	DueDate        time.Time `json:"dueDate"`
	Project        string    `json:"project"`
	AssignedTo     string    `json:"assignedTo,omitempty"`
	EstimatedHours *float64  `json:"estimatedHours,omitempty"`
}

// TaskUpdate sends only the non-nil fields. A pointer to "" in AssignedTo
// unassigns the task; ClearEstimate removes the estimate.
type TaskUpdate struct {
	Title          *string
	Description    *string
	Status         *string
	Priority       *string
	DueDate        *time.Time
	AssignedTo     *string
	EstimatedHours *float64
	ClearEstimate  bool
}

func (u TaskUpdate) body() map[string]any {
	body := make(map[string]any)

	if u.Title != nil {
		body["title"] = *u.Title
	}
	if u.Description != nil {
		body["description"] = *u.Description
	}
	if u.Status != nil {
		body["status"] = *u.Status
	}
	if u.Priority != nil {
		body["priority"] = *u.Priority
	}
	if u.DueDate != nil {
		body["dueDate"] = u.DueDate.UTC().Format(time.RFC3339Nano)
	}
	if u.AssignedTo != nil {
		if *u.AssignedTo == "" {
			body["assignedTo"] = nil
		} else {
			body["assignedTo"] = *u.AssignedTo
		}
	}
	switch {
	case u.ClearEstimate:
		body["estimatedHours"] = nil
	case u.EstimatedHours != nil:
		body["estimatedHours"] = *u.EstimatedHours
	}

	return body
}
