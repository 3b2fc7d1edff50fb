package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/monocle-dev/planboard/internal/services"
	"github.com/sirupsen/logrus"
)

type TaskHandler struct {
	tasks *services.TaskService
	log   logrus.FieldLogger
}

func NewTaskHandler(tasks *services.TaskService, log logrus.FieldLogger) *TaskHandler {
	return &TaskHandler{tasks: tasks, log: log}
}

func (h *TaskHandler) ListProjectTasks(ctx *gin.Context) {
	userID, ok := currentUserID(ctx, h.log)
	if !ok {
		return
	}

	tasks, err := h.tasks.ListByProject(ctx.Request.Context(), userID, ctx.Param("projectId"))
	if err != nil {
		respondError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusOK, tasks)
}

func (h *TaskHandler) GetTask(ctx *gin.Context) {
	userID, ok := currentUserID(ctx, h.log)
	if !ok {
		return
	}

	task, err := h.tasks.Get(ctx.Request.Context(), userID, ctx.Param("id"))
	if err != nil {
		respondError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusOK, task)
}

func (h *TaskHandler) CreateTask(ctx *gin.Context) {
	userID, ok := currentUserID(ctx, h.log)
	if !ok {
		return
	}

	var body services.TaskInput

	if !bindJSON(ctx, h.log, &body) {
		return
	}

	task, err := h.tasks.Create(ctx.Request.Context(), userID, body)
	if err != nil {
		respondError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusCreated, task)
}

func (h *TaskHandler) UpdateTask(ctx *gin.Context) {
	userID, ok := currentUserID(ctx, h.log)
	if !ok {
		return
	}

	var body services.TaskPatch

	if !bindJSON(ctx, h.log, &body) {
		return
	}

	task, err := h.tasks.Update(ctx.Request.Context(), userID, ctx.Param("id"), body)
	if err != nil {
		respondError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusOK, task)
}

func (h *TaskHandler) DeleteTask(ctx *gin.Context) {
	userID, ok := currentUserID(ctx, h.log)
	if !ok {
		return
	}

	if err := h.tasks.Delete(ctx.Request.Context(), userID, ctx.Param("id")); err != nil {
		respondError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Task deleted successfully"})
}
