package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/monocle-dev/planboard/internal/access"
	"github.com/monocle-dev/planboard/internal/realtime"
	"github.com/monocle-dev/planboard/internal/services"
	"github.com/sirupsen/logrus"
)

type WebSocketHandler struct {
	projects *services.ProjectService
	hub      *realtime.Hub
	log      logrus.FieldLogger
}

func NewWebSocketHandler(projects *services.ProjectService, hub *realtime.Hub, log logrus.FieldLogger) *WebSocketHandler {
	return &WebSocketHandler{projects: projects, hub: hub, log: log}
}

// Subscribe upgrades the connection once the caller may read the project.
func (h *WebSocketHandler) Subscribe(ctx *gin.Context) {
	userID, ok := currentUserID(ctx, h.log)
	if !ok {
		return
	}

	project, err := h.projects.Authorize(ctx.Request.Context(), userID, ctx.Param("id"), access.Read)
	if err != nil {
		respondError(ctx, h.log, err)
		return
	}

	// Serve has already written the handshake response on failure.
	if err := h.hub.Serve(ctx.Writer, ctx.Request, project.ID); err != nil {
		h.log.WithError(err).WithField("project_id", project.ID).Warn("WebSocket upgrade failed")
	}
}
