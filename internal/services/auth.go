package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/monocle-dev/planboard/internal/apperr"
	"github.com/monocle-dev/planboard/internal/auth"
	"github.com/monocle-dev/planboard/internal/models"
	"github.com/monocle-dev/planboard/internal/store"
	"github.com/monocle-dev/planboard/internal/validation"
)

type RegisterInput struct {
	Name     string `json:"name" validate:"required,notblank,max=100"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Role     string `json:"role" validate:"omitempty,oneof=member manager admin"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ProfileInput changes the current user's profile. Absent fields are kept.
// A new password is only accepted together with the current one.
type ProfileInput struct {
	Name            *string `json:"name" validate:"omitnil,notblank,max=100"`
	Email           *string `json:"email" validate:"omitnil,email,max=255"`
	CurrentPassword string  `json:"currentPassword"`
	NewPassword     string  `json:"newPassword" validate:"omitempty,min=8,max=72"`
}

type DeleteAccountInput struct {
	Password string `json:"password" validate:"required"`
}

// AuthResult is returned by register and login.
type AuthResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

type AuthService struct {
	users      store.UserStore
	projects   store.ProjectStore
	tokens     *auth.TokenIssuer
	revoker    auth.Revoker
	bcryptCost int
}

func NewAuthService(st store.Store, tokens *auth.TokenIssuer, revoker auth.Revoker, bcryptCost int) *AuthService {
	return &AuthService{
		users:      st.Users(),
		projects:   st.Projects(),
		tokens:     tokens,
		revoker:    revoker,
		bcryptCost: bcryptCost,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Email = normalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)

	if fields := validation.Struct(&in); fields != nil {
		return nil, apperr.Validation(fields...)
	}

	_, err := s.users.FindByEmail(ctx, in.Email)
	if err == nil {
		return nil, apperr.FieldInvalid("email", "Email already exists")
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, storeError(err, "User not found")
	}

	passwordHash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	role := models.Role(in.Role)
	if role == "" {
		role = models.RoleMember
	}

	user := &models.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: passwordHash,
		Role:         role,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.FieldInvalid("email", "Email already exists")
		}
		return nil, storeError(err, "User not found")
	}

	return s.issue(user)
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	in.Email = normalizeEmail(in.Email)

	if fields := validation.Struct(&in); fields != nil {
		return nil, apperr.Validation(fields...)
	}

	user, err := s.users.FindByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.FieldInvalid("email", "Invalid email or password")
		}
		return nil, storeError(err, "User not found")
	}

	if !auth.CheckPassword(user.PasswordHash, in.Password) {
		return nil, apperr.FieldInvalid("email", "Invalid email or password")
	}

	return s.issue(user)
}

func (s *AuthService) issue(user *models.User) (*AuthResult, error) {
	token, _, err := s.tokens.Generate(user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: user}, nil
}

// Authenticate resolves a bearer token to its user. Every failure other than
// a store outage is Unauthenticated.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.User, *auth.Claims, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, nil, apperr.Unauthenticated("Invalid or expired token")
	}

	revoked, err := s.revoker.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, nil, apperr.StoreUnavailable(err)
	}
	if revoked {
		return nil, nil, apperr.Unauthenticated("Token has been revoked")
	}

	user, err := s.users.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, apperr.Unauthenticated("User not found")
		}
		return nil, nil, apperr.StoreUnavailable(err)
	}

	return user, claims, nil
}

// Logout revokes the presented token until it would expire.
func (s *AuthService) Logout(ctx context.Context, claims *auth.Claims) error {
	until := time.Now()
	if claims.ExpiresAt != nil {
		until = claims.ExpiresAt.Time
	}

	if err := s.revoker.Revoke(ctx, claims.ID, until); err != nil {
		return apperr.StoreUnavailable(err)
	}
	return nil
}

// UpdateProfile applies in to the user and returns the stored result.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (*models.User, error) {
	if in.Name != nil {
		*in.Name = strings.TrimSpace(*in.Name)
	}
	if in.Email != nil {
		*in.Email = normalizeEmail(*in.Email)
	}

	if fields := validation.Struct(&in); fields != nil {
		return nil, apperr.Validation(fields...)
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, storeError(err, "User not found")
	}

	if in.Name != nil {
		user.Name = *in.Name
	}

	if in.Email != nil && *in.Email != user.Email {
		existing, err := s.users.FindByEmail(ctx, *in.Email)
		if err == nil && existing.ID != user.ID {
			return nil, apperr.FieldInvalid("email", "Email already exists")
		}
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, storeError(err, "User not found")
		}
		user.Email = *in.Email
	}

	if in.NewPassword != "" {
		if in.CurrentPassword == "" {
			return nil, apperr.FieldInvalid("currentPassword", "Current password is required to set a new password")
		}
		if !auth.CheckPassword(user.PasswordHash, in.CurrentPassword) {
			return nil, apperr.FieldInvalid("currentPassword", "Current password is incorrect")
		}

		passwordHash, err := auth.HashPassword(in.NewPassword, s.bcryptCost)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = passwordHash
	}

	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.FieldInvalid("email", "Email already exists")
		}
		return nil, storeError(err, "User not found")
	}

	return user, nil
}

// DeleteAccount removes the user after checking the password. Projects the
// user owns are deleted with their tasks; memberships and task assignments
// elsewhere are dropped. The presented token is revoked last.
func (s *AuthService) DeleteAccount(ctx context.Context, claims *auth.Claims, in DeleteAccountInput) (projectsDeleted int, err error) {
	if fields := validation.Struct(&in); fields != nil {
		return 0, apperr.Validation(fields...)
	}

	user, err := s.users.FindByID(ctx, claims.Subject)
	if err != nil {
		return 0, storeError(err, "User not found")
	}

	if !auth.CheckPassword(user.PasswordHash, in.Password) {
		return 0, apperr.FieldInvalid("password", "Incorrect password")
	}

	projects, err := s.projects.ListAccessible(ctx, user.ID)
	if err != nil {
		return 0, apperr.StoreUnavailable(err)
	}

	for _, p := range projects {
		if !p.IsOwner(user.ID) {
			continue
		}
		if _, err := s.projects.DeleteCascade(ctx, p.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return projectsDeleted, apperr.StoreUnavailable(err)
		}
		projectsDeleted++
	}

	if err := s.users.Delete(ctx, user.ID); err != nil {
		return projectsDeleted, storeError(err, "User not found")
	}

	return projectsDeleted, s.Logout(ctx, claims)
}
