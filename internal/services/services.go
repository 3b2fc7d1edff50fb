// Package services holds the request level rules: input validation, existence
// checks, authorization and reference expansion. Handlers stay thin.
package services

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/monocle-dev/planboard/internal/apperr"
	"github.com/monocle-dev/planboard/internal/models"
	"github.com/monocle-dev/planboard/internal/realtime"
	"github.com/monocle-dev/planboard/internal/store"
)

// Broadcaster receives change notifications. A nil Broadcaster is allowed.
type Broadcaster interface {
	Broadcast(event realtime.Event)
}

func notify(b Broadcaster, event realtime.Event) {
	if b != nil {
		b.Broadcast(event)
	}
}

// storeError maps store.ErrNotFound to a NotFound error with message and
// everything else to StoreUnavailable.
func storeError(err error, notFound string) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound(notFound)
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperr.StoreUnavailable(err)
}

// Nullable distinguishes an absent JSON field from an explicit null.
type Nullable[T any] struct {
	Set   bool
	Valid bool
	Value T
}

func (n *Nullable[T]) UnmarshalJSON(data []byte) error {
	n.Set = true
	if string(data) == "null" {
		n.Valid = false
		return nil
	}
	if err := json.Unmarshal(data, &n.Value); err != nil {
		return err
	}
	n.Valid = true
	return nil
}

func Value[T any](v T) Nullable[T] {
	return Nullable[T]{Set: true, Valid: true, Value: v}
}

func Null[T any]() Nullable[T] {
	return Nullable[T]{Set: true}
}

// userRefs loads the users behind ids in one store call.
func userRefs(ctx context.Context, users store.UserStore, ids []string) (map[string]models.UserRef, error) {
	refs := make(map[string]models.UserRef, len(ids))
	if len(ids) == 0 {
		return refs, nil
	}

	found, err := users.FindByIDs(ctx, dedupe(ids))
	if err != nil {
		return nil, storeError(err, "User not found")
	}

	for _, u := range found {
		refs[u.ID] = u.Ref()
	}

	return refs, nil
}

// ref returns the expanded reference or a bare id when the user no longer exists.
func ref(refs map[string]models.UserRef, id string) models.UserRef {
	if r, ok := refs[id]; ok {
		return r
	}
	return models.UserRef{ID: id}
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func projectView(p *models.Project, refs map[string]models.UserRef) models.ProjectView {
	view := models.ProjectView{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Status:      p.Status,
		Priority:    p.Priority,
		StartDate:   p.StartDate,
		EndDate:     p.EndDate,
		Progress:    p.Progress,
		Owner:       ref(refs, p.OwnerID),
		Members:     make([]models.UserRef, 0, len(p.MemberIDs)),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}

	for _, id := range p.MemberIDs {
		view.Members = append(view.Members, ref(refs, id))
	}

	return view
}

func projectUserIDs(p *models.Project) []string {
	return append([]string{p.OwnerID}, p.MemberIDs...)
}

func taskView(t *models.Task, refs map[string]models.UserRef) models.TaskView {
	view := models.TaskView{
		ID:             t.ID,
		Title:          t.Title,
		Description:    t.Description,
		Status:         t.Status,
		Priority:       t.Priority,
		DueDate:        t.DueDate,
		Project:        t.ProjectID,
		CreatedBy:      ref(refs, t.CreatedBy),
		EstimatedHours: t.EstimatedHours,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}

	if t.AssignedTo != "" {
		assignee := ref(refs, t.AssignedTo)
		view.AssignedTo = &assignee
	}

	return view
}

func taskUserIDs(t *models.Task) []string {
	ids := []string{t.CreatedBy}
	if t.AssignedTo != "" {
		ids = append(ids, t.AssignedTo)
	}
	return ids
}

// requireUsers returns a field error naming the first id that has no user.
func requireUsers(ctx context.Context, users store.UserStore, field string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	refs, err := userRefs(ctx, users, ids)
	if err != nil {
		return err
	}

	for _, id := range ids {
		if _, ok := refs[id]; !ok {
			return apperr.FieldInvalid(field, "Unknown user: "+id)
		}
	}

	return nil
}
