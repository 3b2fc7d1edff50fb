package models

import "time"

type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in-progress"
	TaskReview     TaskStatus = "review"
	TaskCompleted  TaskStatus = "completed"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskTodo, TaskInProgress, TaskReview, TaskCompleted:
		return true
	}
	return false
}

type Task struct {
	ID             string
	Title          string
	Description    string
	Status         TaskStatus
	Priority       Priority
	DueDate        time.Time
	ProjectID      string
	AssignedTo     string // empty when unassigned
	CreatedBy      string
	EstimatedHours *float64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TaskView is the wire representation with assignee and creator expanded.
type TaskView struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Status         TaskStatus `json:"status"`
	Priority       Priority   `json:"priority"`
	DueDate        time.Time  `json:"dueDate"`
	Project        string     `json:"project"`
	AssignedTo     *UserRef   `json:"assignedTo"`
	CreatedBy      UserRef    `json:"createdBy"`
	EstimatedHours *float64   `json:"estimatedHours,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}
