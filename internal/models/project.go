package models

import (
	"slices"
	"time"
)

type ProjectStatus string

const (
	ProjectPlanning  ProjectStatus = "planning"
	ProjectActive    ProjectStatus = "active"
	ProjectOnHold    ProjectStatus = "on-hold"
	ProjectCompleted ProjectStatus = "completed"
)

func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectPlanning, ProjectActive, ProjectOnHold, ProjectCompleted:
		return true
	}
	return false
}

// Priority is shared by projects and tasks.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

type Project struct {
	ID          string
	Title       string
	Description string
	Status      ProjectStatus
	Priority    Priority
	StartDate   time.Time
	EndDate     time.Time
	Progress    int
	OwnerID     string
	MemberIDs   []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (p *Project) IsOwner(userID string) bool {
	return userID != "" && p.OwnerID == userID
}

func (p *Project) HasMember(userID string) bool {
	return userID != "" && slices.Contains(p.MemberIDs, userID)
}

// ProjectView is the wire representation with owner and members expanded.
type ProjectView struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Status      ProjectStatus `json:"status"`
	Priority    Priority      `json:"priority"`
	StartDate   time.Time     `json:"startDate"`
	EndDate     time.Time     `json:"endDate"`
	Progress    int           `json:"progress"`
	Owner       UserRef       `json:"owner"`
	Members     []UserRef     `json:"members"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}
