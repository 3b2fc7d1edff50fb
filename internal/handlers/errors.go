package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/monocle-dev/planboard/internal/apperr"
	"github.com/monocle-dev/planboard/internal/utils"
	"github.com/sirupsen/logrus"
)

// respondError writes err as {"errors": [...]} for validation failures and
// {"error": message} otherwise. Causes of 5xx responses are logged, never sent.
func respondError(ctx *gin.Context, log logrus.FieldLogger, err error) {
	var appErr *apperr.Error
	isAppErr := errors.As(err, &appErr)

	if isAppErr && appErr.Kind == apperr.KindValidation {
		ctx.JSON(http.StatusBadRequest, gin.H{"errors": appErr.Fields})
		return
	}

	status := apperr.HTTPStatus(err)
	message := "Internal server error"

	if status >= http.StatusInternalServerError {
		log.WithError(err).WithFields(logrus.Fields{
			"request_id": utils.GetRequestID(ctx),
			"path":       ctx.Request.URL.Path,
		}).Error("Request failed")
	} else if isAppErr {
		message = appErr.Message
	}

	ctx.JSON(status, gin.H{"error": message})
}

// bindJSON decodes the request body. A malformed body is a validation failure on "body".
func bindJSON(ctx *gin.Context, log logrus.FieldLogger, obj any) bool {
	if err := ctx.ShouldBindJSON(obj); err != nil {
		log.WithError(err).WithField("request_id", utils.GetRequestID(ctx)).Debug("Failed to bind JSON")
		respondError(ctx, log, apperr.FieldInvalid("body", "Invalid request body"))
		return false
	}
	return true
}

// currentUserID is only called behind the auth middleware.
func currentUserID(ctx *gin.Context, log logrus.FieldLogger) (string, bool) {
	userID, err := utils.GetCurrentUserID(ctx)
	if err != nil {
		respondError(ctx, log, apperr.Unauthenticated("User not authenticated"))
		return "", false
	}
	return userID, true
}
