// Package access decides who may read or write projects and their tasks.
//
// Project reads are open to the owner and every member. Project writes
// (update, delete) belong to the owner alone. Every task operation,
// including create, update and delete, only needs read access to the
// parent project, so any member may change any task of a project they
// belong to. That asymmetry is part of the product contract.
package access

import (
	"github.com/monocle-dev/planboard/internal/apperr"
	"github.com/monocle-dev/planboard/internal/models"
)

type Mode int

const (
	Read Mode = iota
	Write
)

func (m Mode) String() string {
	if m == Write {
		return "write"
	}
	return "read"
}

// CanAccessProject is the single access predicate.
func CanAccessProject(userID string, project *models.Project, mode Mode) bool {
	if project == nil || userID == "" {
		return false
	}

	if project.IsOwner(userID) {
		return true
	}

	if mode == Write {
		return false
	}

	return project.HasMember(userID)
}

// AuthorizeProject returns a Forbidden error when the predicate denies access.
// The caller must have established that the project exists.
func AuthorizeProject(userID string, project *models.Project, mode Mode) error {
	if !CanAccessProject(userID, project, mode) {
		return apperr.Forbidden("Access denied")
	}
	return nil
}

// AuthorizeTask gates any task operation on read access to the parent project.
func AuthorizeTask(userID string, parent *models.Project) error {
	return AuthorizeProject(userID, parent, Read)
}
