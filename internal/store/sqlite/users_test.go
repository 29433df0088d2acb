package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/devicedock/devicedock-server/internal/store"
)

func TestCreateAndGetUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user := makeTestUser("user-1", "Alice@Example.com")

	if err := s.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	got, err := s.GetUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}

	if got.ID != user.ID {
		t.Errorf("ID: got %q, want %q", got.ID, user.ID)
	}
	if got.Email != user.Email {
		t.Errorf("Email: got %q, want %q", got.Email, user.Email)
	}
	if got.PasswordHash != user.PasswordHash {
		t.Errorf("PasswordHash: got %q, want %q", got.PasswordHash, user.PasswordHash)
	}
	if got.DisplayName != "Test User" {
		t.Errorf("DisplayName: got %q, want %q", got.DisplayName, "Test User")
	}
	if got.CreatedAt.Unix() != user.CreatedAt.Unix() {
		t.Errorf("CreatedAt: got %v, want %v", got.CreatedAt, user.CreatedAt)
	}
}

func TestGetUser_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetUser(context.Background(), "user-missing")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGetUserByEmail_CaseInsensitive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateUser(t, s, "user-1", "Alice@Example.com")

	got, err := s.GetUserByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if got.ID != "user-1" {
		t.Errorf("ID: got %q, want user-1", got.ID)
	}

	// Original casing is preserved.
	if got.Email != "Alice@Example.com" {
		t.Errorf("Email: got %q, want original casing", got.Email)
	}
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateUser(t, s, "user-1", "alice@example.com")

	dup := makeTestUser("user-2", "ALICE@example.com")
	err := s.CreateUser(ctx, dup)
	if !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestUpdateUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user := mustCreateUser(t, s, "user-1", "alice@example.com")

	user.DisplayName = "Alice"
	user.PasswordHash = "$argon2id$newhash"
	user.Touch()
	if err := s.UpdateUser(ctx, user); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}

	got, err := s.GetUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.DisplayName != "Alice" {
		t.Errorf("DisplayName: got %q, want Alice", got.DisplayName)
	}
	if got.PasswordHash != "$argon2id$newhash" {
		t.Errorf("PasswordHash not updated")
	}
}

func TestUpdateUser_NotFound(t *testing.T) {
	s := newTestStore(t)

	ghost := makeTestUser("user-ghost", "ghost@example.com")
	err := s.UpdateUser(context.Background(), ghost)
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
