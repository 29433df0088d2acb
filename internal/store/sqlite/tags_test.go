package sqlite

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/devicedock/devicedock-server/internal/domain"
	"github.com/devicedock/devicedock-server/internal/store"
)

// makeTestTag creates a domain.Tag with sensible defaults for testing.
func makeTestTag(id, name string) *domain.Tag {
	now := time.Now()
	return &domain.Tag{
		ID:        id,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCreateAndGetTag(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tag := makeTestTag("tag-1", "outdoor")

	if err := s.CreateTag(ctx, tag); err != nil {
		t.Fatalf("CreateTag: %v", err)
	}

	got, err := s.GetTagByID(ctx, "tag-1")
	if err != nil {
		t.Fatalf("GetTagByID: %v", err)
	}

	if got.ID != tag.ID {
		t.Errorf("ID: got %q, want %q", got.ID, tag.ID)
	}
	if got.Name != tag.Name {
		t.Errorf("Name: got %q, want %q", got.Name, tag.Name)
	}

	// Timestamps should round-trip through RFC3339Nano.
	if got.CreatedAt.Unix() != tag.CreatedAt.Unix() {
		t.Errorf("CreatedAt: got %v, want %v", got.CreatedAt, tag.CreatedAt)
	}
}

func TestCreateTag_DuplicateName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateTag(ctx, makeTestTag("tag-1", "outdoor")); err != nil {
		t.Fatalf("CreateTag: %v", err)
	}

	err := s.CreateTag(ctx, makeTestTag("tag-2", "outdoor"))
	if !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestGetTagByName_CaseSensitive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateTag(ctx, makeTestTag("tag-1", "Outdoor")); err != nil {
		t.Fatalf("CreateTag: %v", err)
	}

	if _, err := s.GetTagByName(ctx, "Outdoor"); err != nil {
		t.Errorf("exact match should succeed: %v", err)
	}

	_, err := s.GetTagByName(ctx, "outdoor")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("lowercase lookup should miss, got %v", err)
	}
}

func TestFindOrCreateTagByName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tag1, created, err := s.FindOrCreateTagByName(ctx, "solar")
	if err != nil {
		t.Fatalf("FindOrCreateTagByName: %v", err)
	}
	if !created {
		t.Error("first call should create")
	}

	tag2, created, err := s.FindOrCreateTagByName(ctx, "solar")
	if err != nil {
		t.Fatalf("FindOrCreateTagByName (second): %v", err)
	}
	if created {
		t.Error("second call should find, not create")
	}
	if tag1.ID != tag2.ID {
		t.Errorf("IDs differ: %q vs %q", tag1.ID, tag2.ID)
	}
}

func TestFindOrCreateTagByName_Concurrent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const workers = 8
	ids := make([]string, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(n int) {
			defer wg.Done()
			tag, _, err := s.FindOrCreateTagByName(ctx, "raced")
			if err != nil {
				t.Errorf("worker %d: %v", n, err)
				return
			}
			ids[n] = tag.ID
		}(i)
	}
	wg.Wait()

	// Every worker must resolve to the same single row.
	for i := 1; i < workers; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("worker %d got %q, worker 0 got %q", i, ids[i], ids[0])
		}
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM tags WHERE name = 'raced'`).Scan(&count); err != nil {
		t.Fatalf("count tags: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 tag row, got %d", count)
	}
}

func TestAttachDeviceTag_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateUser(t, s, "user-1", "alice@example.com")
	mustCreateDevice(t, s, "dev-1", "user-1", "Station")

	tag, _, err := s.FindOrCreateTagByName(ctx, "outdoor")
	if err != nil {
		t.Fatalf("FindOrCreateTagByName: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := s.AttachDeviceTag(ctx, "dev-1", tag.ID); err != nil {
			t.Fatalf("AttachDeviceTag (attempt %d): %v", i, err)
		}
	}

	tags, err := s.GetDeviceTags(ctx, "dev-1")
	if err != nil {
		t.Fatalf("GetDeviceTags: %v", err)
	}
	if len(tags) != 1 {
		t.Errorf("expected 1 attached tag, got %d", len(tags))
	}
}

func TestDetachDeviceTag(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateUser(t, s, "user-1", "alice@example.com")
	mustCreateDevice(t, s, "dev-1", "user-1", "Station")
	attachTagByName(t, s, "dev-1", "outdoor")

	tag, err := s.GetTagByName(ctx, "outdoor")
	if err != nil {
		t.Fatalf("GetTagByName: %v", err)
	}

	if err := s.DetachDeviceTag(ctx, "dev-1", tag.ID); err != nil {
		t.Fatalf("DetachDeviceTag: %v", err)
	}

	tags, err := s.GetDeviceTags(ctx, "dev-1")
	if err != nil {
		t.Fatalf("GetDeviceTags: %v", err)
	}
	if len(tags) != 0 {
		t.Errorf("expected no attached tags, got %d", len(tags))
	}

	// Detaching again is a no-op, and the tag row survives.
	if err := s.DetachDeviceTag(ctx, "dev-1", tag.ID); err != nil {
		t.Errorf("second detach should be a no-op: %v", err)
	}
	if _, err := s.GetTagByID(ctx, tag.ID); err != nil {
		t.Errorf("tag row should survive detach: %v", err)
	}
}

func TestListTags_CountsAndAssignedOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateUser(t, s, "user-1", "alice@example.com")
	mustCreateUser(t, s, "user-2", "bob@example.com")
	mustCreateDevice(t, s, "dev-a1", "user-1", "A1")
	mustCreateDevice(t, s, "dev-a2", "user-1", "A2")
	mustCreateDevice(t, s, "dev-b1", "user-2", "B1")

	// "outdoor" on two of alice's devices and one of bob's.
	attachTagByName(t, s, "dev-a1", "outdoor")
	attachTagByName(t, s, "dev-a2", "outdoor")
	attachTagByName(t, s, "dev-b1", "outdoor")
	// "solar" only on bob's device.
	attachTagByName(t, s, "dev-b1", "solar")
	// "unused" attached to nothing.
	if _, _, err := s.FindOrCreateTagByName(ctx, "unused"); err != nil {
		t.Fatalf("FindOrCreateTagByName: %v", err)
	}

	all, err := s.ListTags(ctx, "user-1", false)
	if err != nil {
		t.Fatalf("ListTags: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 tags, got %d", len(all))
	}
	counts := map[string]int{}
	for _, tag := range all {
		counts[tag.Name] = tag.DeviceCount
	}
	if counts["outdoor"] != 2 {
		t.Errorf("outdoor count for user-1: got %d, want 2", counts["outdoor"])
	}
	if counts["solar"] != 0 {
		t.Errorf("solar count for user-1: got %d, want 0", counts["solar"])
	}

	assigned, err := s.ListTags(ctx, "user-1", true)
	if err != nil {
		t.Fatalf("ListTags assignedOnly: %v", err)
	}
	if len(assigned) != 1 || assigned[0].Name != "outdoor" {
		t.Errorf("assignedOnly: got %v, want [outdoor]", assigned)
	}
}
