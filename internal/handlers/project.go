package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/monocle-dev/planboard/internal/services"
	"github.com/sirupsen/logrus"
)

type ProjectHandler struct {
	projects *services.ProjectService
	log      logrus.FieldLogger
}

func NewProjectHandler(projects *services.ProjectService, log logrus.FieldLogger) *ProjectHandler {
	return &ProjectHandler{projects: projects, log: log}
}

func (h *ProjectHandler) CreateProject(ctx *gin.Context) {
	userID, ok := currentUserID(ctx, h.log)
	if !ok {
		return
	}

	var body services.ProjectInput

	if !bindJSON(ctx, h.log, &body) {
		return
	}

	project, err := h.projects.Create(ctx.Request.Context(), userID, body)
	if err != nil {
		respondError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusCreated, project)
}

func (h *ProjectHandler) ListProjects(ctx *gin.Context) {
	userID, ok := currentUserID(ctx, h.log)
	if !ok {
		return
	}

	projects, err := h.projects.List(ctx.Request.Context(), userID)
	if err != nil {
		respondError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusOK, projects)
}

func (h *ProjectHandler) GetProject(ctx *gin.Context) {
	userID, ok := currentUserID(ctx, h.log)
	if !ok {
		return
	}

	project, err := h.projects.Get(ctx.Request.Context(), userID, ctx.Param("id"))
	if err != nil {
		respondError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusOK, project)
}

func (h *ProjectHandler) UpdateProject(ctx *gin.Context) {
	userID, ok := currentUserID(ctx, h.log)
	if !ok {
		return
	}

	var body services.ProjectPatch

	if !bindJSON(ctx, h.log, &body) {
		return
	}

	project, err := h.projects.Update(ctx.Request.Context(), userID, ctx.Param("id"), body)
	if err != nil {
		respondError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusOK, project)
}

func (h *ProjectHandler) DeleteProject(ctx *gin.Context) {
	userID, ok := currentUserID(ctx, h.log)
	if !ok {
		return
	}

	projectID := ctx.Param("id")

	deleted, err := h.projects.Delete(ctx.Request.Context(), userID, projectID)
	if err != nil {
		respondError(ctx, h.log, err)
		return
	}

	h.log.WithFields(logrus.Fields{
		"project_id":    projectID,
		"tasks_deleted": deleted,
	}).Info("Project deleted")

	ctx.JSON(http.StatusOK, gin.H{"message": "Project deleted successfully"})
}
