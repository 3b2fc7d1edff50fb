package services

import (
	"context"
	"errors"
	"testing"

	"github.com/monocle-dev/planboard/internal/apperr"
	"github.com/monocle-dev/planboard/internal/auth"
	"github.com/monocle-dev/planboard/internal/models"
)

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.auth.Register(ctx, RegisterInput{
		Name:     " Alice ",
		Email:    "  Alice@Example.COM ",
		Password: "s3cret-pass",
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if result.Token == "" || result.User.Email != "alice@example.com" || result.User.Name != "Alice" {
		t.Errorf("Register() = %+v", result)
	}
	if result.User.Role != models.RoleMember {
		t.Errorf("Role = %s, want member", result.User.Role)
	}
	if result.User.PasswordHash == "s3cret-pass" {
		t.Error("password stored in clear text")
	}

	login, err := f.auth.Login(ctx, LoginInput{Email: "ALICE@example.com", Password: "s3cret-pass"})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if login.User.ID != result.User.ID {
		t.Errorf("Login() user = %s, want %s", login.User.ID, result.User.ID)
	}

	user, claims, err := f.auth.Authenticate(ctx, login.Token)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if user.ID != result.User.ID || claims.Subject != user.ID {
		t.Errorf("Authenticate() = %+v, %+v", user, claims)
	}
}

func TestRegisterRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.auth.Register(ctx, RegisterInput{Name: "A", Email: "a@example.com", Password: "password1"}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		in    RegisterInput
		field string
	}{
		{"duplicate email", RegisterInput{Name: "B", Email: "A@example.com", Password: "password1"}, "email"},
		{"short password", RegisterInput{Name: "B", Email: "b@example.com", Password: "short"}, "password"},
		{"bad email", RegisterInput{Name: "B", Email: "b-at-example", Password: "password1"}, "email"},
		{"missing name", RegisterInput{Email: "c@example.com", Password: "password1"}, "name"},
		{"unknown role", RegisterInput{Name: "B", Email: "d@example.com", Password: "password1", Role: "root"}, "role"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.auth.Register(ctx, tt.in)
			wantKind(t, err, apperr.KindValidation)

			var appErr *apperr.Error
			if !errors.As(err, &appErr) || appErr.Fields[0].Field != tt.field {
				t.Errorf("error = %v, want field %s", err, tt.field)
			}
		})
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.auth.Register(ctx, RegisterInput{Name: "A", Email: "a@example.com", Password: "password1"}); err != nil {
		t.Fatal(err)
	}

	_, err := f.auth.Login(ctx, LoginInput{Email: "a@example.com", Password: "password2"})
	wantKind(t, err, apperr.KindValidation)

	_, err = f.auth.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "password1"})
	wantKind(t, err, apperr.KindValidation)
}

func TestAuthenticateRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.auth.Register(ctx, RegisterInput{Name: "A", Email: "a@example.com", Password: "password1"})
	if err != nil {
		t.Fatal(err)
	}

	_, _, err = f.auth.Authenticate(ctx, "garbage")
	wantKind(t, err, apperr.KindUnauthenticated)

	_, claims, err := f.auth.Authenticate(ctx, result.Token)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.auth.Logout(ctx, claims); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}

	_, _, err = f.auth.Authenticate(ctx, result.Token)
	wantKind(t, err, apperr.KindUnauthenticated)

	ghost := &models.User{ID: "0123456789abcdef01234567", Email: "ghost@example.com"}
	token, _, err := f.auth.tokens.Generate(ghost)
	if err != nil {
		t.Fatal(err)
	}
	_, _, err = f.auth.Authenticate(ctx, token)
	wantKind(t, err, apperr.KindUnauthenticated)
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	alice, err := f.auth.Register(ctx, RegisterInput{Name: "Alice", Email: "alice@example.com", Password: "password1"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.auth.Register(ctx, RegisterInput{Name: "Bob", Email: "bob@example.com", Password: "password1"}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		in    ProfileInput
		field string
	}{
		{"taken email", ProfileInput{Email: ptr(" BOB@example.com ")}, "email"},
		{"bad email", ProfileInput{Email: ptr("not-an-email")}, "email"},
		{"blank name", ProfileInput{Name: ptr("   ")}, "name"},
		{"short new password", ProfileInput{CurrentPassword: "password1", NewPassword: "short"}, "newPassword"},
		{"missing current password", ProfileInput{NewPassword: "password2"}, "currentPassword"},
		{"wrong current password", ProfileInput{CurrentPassword: "password9", NewPassword: "password2"}, "currentPassword"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.auth.UpdateProfile(ctx, alice.User.ID, tt.in)
			wantKind(t, err, apperr.KindValidation)

			var appErr *apperr.Error
			if !errors.As(err, &appErr) || appErr.Fields[0].Field != tt.field {
				t.Errorf("error = %v, want field %s", err, tt.field)
			}
		})
	}

	stored, _ := f.store.Users().FindByID(ctx, alice.User.ID)
	if stored.Email != "alice@example.com" || stored.Name != "Alice" {
		t.Fatalf("rejected update was persisted: %+v", stored)
	}

	updated, err := f.auth.UpdateProfile(ctx, alice.User.ID, ProfileInput{
		Name:            ptr(" Alice Smith "),
		Email:           ptr("Alice.Smith@Example.com"),
		CurrentPassword: "password1",
		NewPassword:     "password2",
	})
	if err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}
	if updated.Name != "Alice Smith" || updated.Email != "alice.smith@example.com" {
		t.Errorf("UpdateProfile() = %+v", updated)
	}

	if _, err := f.auth.Login(ctx, LoginInput{Email: "alice.smith@example.com", Password: "password1"}); err == nil {
		t.Error("old password still accepted")
	}
	if _, err := f.auth.Login(ctx, LoginInput{Email: "alice.smith@example.com", Password: "password2"}); err != nil {
		t.Errorf("Login() with new password: %v", err)
	}

	_, err = f.auth.UpdateProfile(ctx, "0123456789abcdef01234567", ProfileInput{Name: ptr("Ghost")})
	wantKind(t, err, apperr.KindNotFound)
}

func TestDeleteAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.auth.Register(ctx, RegisterInput{Name: "alice", Email: "alice@example.com", Password: "password1"})
	if err != nil {
		t.Fatal(err)
	}
	alice := result.User
	bob := f.user(t, "bob")

	owned := f.project(t, alice, bob)
	f.task(t, bob, owned.ID)

	shared := f.project(t, bob, alice)
	assigned, err := f.tasks.Create(ctx, bob.ID, TaskInput{
		Title: "Review copy", Description: "Pricing page", DueDate: "2024-02-01",
		Project: shared.ID, AssignedTo: alice.ID,
	})
	if err != nil {
		t.Fatal(err)
	}

	_, claims, err := f.auth.Authenticate(ctx, result.Token)
	if err != nil {
		t.Fatal(err)
	}

	_, err = f.auth.DeleteAccount(ctx, claims, DeleteAccountInput{Password: "wrong-pass"})
	wantKind(t, err, apperr.KindValidation)

	_, err = f.auth.DeleteAccount(ctx, claims, DeleteAccountInput{})
	wantKind(t, err, apperr.KindValidation)

	deleted, err := f.auth.DeleteAccount(ctx, claims, DeleteAccountInput{Password: "password1"})
	if err != nil {
		t.Fatalf("DeleteAccount() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("DeleteAccount() removed %d projects, want 1", deleted)
	}

	if _, err := f.store.Projects().FindByID(ctx, owned.ID); err == nil {
		t.Error("owned project survived account deletion")
	}
	if f.store.TaskCount() != 1 {
		t.Errorf("TaskCount() = %d, want 1", f.store.TaskCount())
	}

	view, err := f.projects.Get(ctx, bob.ID, shared.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(view.Members) != 0 {
		t.Errorf("Members = %+v, want alice removed", view.Members)
	}

	task, err := f.tasks.Get(ctx, bob.ID, assigned.ID)
	if err != nil {
		t.Fatal(err)
	}
	if task.AssignedTo != nil {
		t.Errorf("AssignedTo = %+v, want unassigned", task.AssignedTo)
	}

	_, _, err = f.auth.Authenticate(ctx, result.Token)
	wantKind(t, err, apperr.KindUnauthenticated)
}

func TestDeleteAccountUnknownUser(t *testing.T) {
	f := newFixture(t)

	claims := &auth.Claims{}
	claims.Subject = "0123456789abcdef01234567"

	_, err := f.auth.DeleteAccount(context.Background(), claims, DeleteAccountInput{Password: "password1"})
	wantKind(t, err, apperr.KindNotFound)
}
