package utils

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/monocle-dev/planboard/internal/auth"
	"github.com/monocle-dev/planboard/internal/middleware"
	"github.com/monocle-dev/planboard/internal/types"
)

func GetCurrentUser(ctx *gin.Context) (middleware.AuthenticatedUser, error) {
	user, exists := ctx.Get(types.ContextUserKey)

	if !exists {
		return middleware.AuthenticatedUser{}, fmt.Errorf("User not authenticated")
	}

	authenticatedUser, ok := user.(middleware.AuthenticatedUser)

	if !ok {
		return middleware.AuthenticatedUser{}, fmt.Errorf("Invalid user type in context")
	}

	return authenticatedUser, nil
}

func GetCurrentUserID(ctx *gin.Context) (string, error) {
	user, err := GetCurrentUser(ctx)

	if err != nil {
		return "", err
	}

	return user.ID, nil
}

// GetClaims returns the verified token claims of the current request.
func GetClaims(ctx *gin.Context) (*auth.Claims, error) {
	value, exists := ctx.Get(types.ContextClaimsKey)
	if !exists {
		return nil, fmt.Errorf("User not authenticated")
	}

	claims, ok := value.(*auth.Claims)
	if !ok {
		return nil, fmt.Errorf("Invalid claims type in context")
	}

	return claims, nil
}

func GetRequestID(ctx *gin.Context) string {
	return ctx.GetString(types.ContextRequestIDKey)
}
