package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/monocle-dev/planboard/internal/apperr"
	"github.com/monocle-dev/planboard/internal/services"
	"github.com/monocle-dev/planboard/internal/utils"
	"github.com/sirupsen/logrus"
)

type AuthHandler struct {
	auth *services.AuthService
	log  logrus.FieldLogger
}

func NewAuthHandler(auth *services.AuthService, log logrus.FieldLogger) *AuthHandler {
	return &AuthHandler{auth: auth, log: log}
}

func (h *AuthHandler) Register(ctx *gin.Context) {
	var body services.RegisterInput

	if !bindJSON(ctx, h.log, &body) {
		return
	}

	result, err := h.auth.Register(ctx.Request.Context(), body)
	if err != nil {
		respondError(ctx, h.log, err)
		return
	}

	h.log.WithField("user_id", result.User.ID).Info("User registered")

	ctx.JSON(http.StatusCreated, result)
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var body services.LoginInput

	if !bindJSON(ctx, h.log, &body) {
		return
	}

	result, err := h.auth.Login(ctx.Request.Context(), body)
	if err != nil {
		respondError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusOK, result)
}

func (h *AuthHandler) Me(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		respondError(ctx, h.log, apperr.Unauthenticated("User not authenticated"))
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"user": currentUser})
}

func (h *AuthHandler) Logout(ctx *gin.Context) {
	claims, err := utils.GetClaims(ctx)
	if err != nil {
		respondError(ctx, h.log, apperr.Unauthenticated("User not authenticated"))
		return
	}

	if err := h.auth.Logout(ctx.Request.Context(), claims); err != nil {
		respondError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

func (h *AuthHandler) UpdateMe(ctx *gin.Context) {
	userID, ok := currentUserID(ctx, h.log)
	if !ok {
		return
	}

	var body services.ProfileInput

	if !bindJSON(ctx, h.log, &body) {
		return
	}

	user, err := h.auth.UpdateProfile(ctx.Request.Context(), userID, body)
	if err != nil {
		respondError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "User updated successfully", "user": user})
}

func (h *AuthHandler) DeleteMe(ctx *gin.Context) {
	claims, err := utils.GetClaims(ctx)
	if err != nil {
		respondError(ctx, h.log, apperr.Unauthenticated("User not authenticated"))
		return
	}

	var body services.DeleteAccountInput

	if !bindJSON(ctx, h.log, &body) {
		return
	}

	projects, err := h.auth.DeleteAccount(ctx.Request.Context(), claims, body)
	if err != nil {
		respondError(ctx, h.log, err)
		return
	}

	h.log.WithFields(logrus.Fields{
		"user_id":          claims.Subject,
		"projects_deleted": projects,
	}).Info("User deleted")

	ctx.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}
