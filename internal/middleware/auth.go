package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/monocle-dev/planboard/internal/apperr"
	"github.com/monocle-dev/planboard/internal/auth"
	"github.com/monocle-dev/planboard/internal/models"
	"github.com/monocle-dev/planboard/internal/types"
	"github.com/sirupsen/logrus"
)

type AuthenticatedUser struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
}

// Authenticator resolves a bearer token to a user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, *auth.Claims, error)
}

func abort(ctx *gin.Context, err error, log logrus.FieldLogger) {
	var appErr *apperr.Error
	message := "Internal server error"
	if errors.As(err, &appErr) {
		message = appErr.Message
	}

	if apperr.KindOf(err) == apperr.KindStoreUnavailable || apperr.KindOf(err) == apperr.KindInternal {
		log.WithError(err).WithField("request_id", ctx.GetString(types.ContextRequestIDKey)).Error("Authentication failed")
	}

	ctx.AbortWithStatusJSON(apperr.HTTPStatus(err), gin.H{"error": message})
}

func AuthMiddleware(authenticator Authenticator, log logrus.FieldLogger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		authHeader := ctx.GetHeader("Authorization")

		// Browsers cannot set headers on websocket handshakes.
		if authHeader == "" && websocketUpgrade(ctx) {
			if token := ctx.Query("token"); token != "" {
				authHeader = "Bearer " + token
			}
		}

		if authHeader == "" {
			abort(ctx, apperr.Unauthenticated("Authorization token is required"), log)
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)

		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			abort(ctx, apperr.Unauthenticated("Authorization header format must be Bearer {token}"), log)
			return
		}

		user, claims, err := authenticator.Authenticate(ctx.Request.Context(), strings.TrimSpace(parts[1]))
		if err != nil {
			abort(ctx, err, log)
			return
		}

		ctx.Set(types.ContextUserKey, AuthenticatedUser{
			ID:    user.ID,
			Name:  user.Name,
			Email: user.Email,
			Role:  user.Role,
		})
		ctx.Set(types.ContextClaimsKey, claims)
		ctx.Next()
	}
}

func websocketUpgrade(ctx *gin.Context) bool {
	return strings.EqualFold(ctx.GetHeader("Upgrade"), "websocket")
}
