package adapters

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/satriahrh/voicejournal/domain/entities"
	"github.com/satriahrh/voicejournal/domain/repositories"
)

func TestMemoryJournalRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryJournalRepository()

	for _, content := range []string{"first entry", "second entry", "third entry"} {
		entry := &entities.JournalEntry{UserID: "alice", Content: content}
		if err := repo.Create(ctx, entry); err != nil {
			t.Fatalf("Failed to create entry: %v", err)
		}
		if entry.ID == "" {
			t.Error("Expected ID to be generated")
		}
	}

	if err := repo.Create(ctx, &entities.JournalEntry{UserID: "alice", Content: "hi"}); err == nil {
		t.Error("Expected error for too-short content")
	}

	count, err := repo.CountByUserID(ctx, "alice")
	if err != nil {
		t.Fatalf("Failed to count entries: %v", err)
	}
	if count != 3 {
		t.Errorf("Expected 3 entries, got %d", count)
	}

	count, _ = repo.CountByUserID(ctx, "bob")
	if count != 0 {
		t.Errorf("Expected 0 entries for bob, got %d", count)
	}

	entries, err := repo.ListByUserID(ctx, "alice", 2)
	if err != nil {
		t.Fatalf("Failed to list entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].Content != "third entry" {
		t.Errorf("Expected newest entry first, got %s", entries[0].Content)
	}
}

func TestMemoryJournalRepositoryGetUpdateDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryJournalRepository()

	entry := &entities.JournalEntry{UserID: "alice", Content: "walked the dog", Tags: []string{"pets"}}
	if err := repo.Create(ctx, entry); err != nil {
		t.Fatalf("Failed to create entry: %v", err)
	}
	entry.Tags[0] = "mutated"

	got, err := repo.Get(ctx, entry.ID)
	if err != nil {
		t.Fatalf("Failed to get entry: %v", err)
	}
	if got.Content != "walked the dog" || got.Tags[0] != "pets" {
		t.Errorf("Stored entry shares state with the caller: %+v", got)
	}

	got.Content = "walked the dog in the rain"
	got.Mood = "calm"
	got.UserID = "mallory"
	if err := repo.Update(ctx, got); err != nil {
		t.Fatalf("Failed to update entry: %v", err)
	}
	updated, _ := repo.Get(ctx, entry.ID)
	if updated.Content != "walked the dog in the rain" || updated.Mood != "calm" {
		t.Errorf("Update not applied: %+v", updated)
	}
	if updated.UserID != "alice" || !updated.CreatedAt.Equal(entry.CreatedAt) {
		t.Errorf("Update changed owner or creation time: %+v", updated)
	}
	entries, _ := repo.ListByUserID(ctx, "alice", 0)
	if len(entries) != 1 || entries[0].Mood != "calm" {
		t.Errorf("Listing does not reflect the update: %+v", entries)
	}

	got.Content = "hi"
	if err := repo.Update(ctx, got); err == nil {
		t.Error("Expected error for too-short content")
	}

	if err := repo.Delete(ctx, entry.ID); err != nil {
		t.Fatalf("Failed to delete entry: %v", err)
	}
	if count, _ := repo.CountByUserID(ctx, "alice"); count != 0 {
		t.Errorf("Expected 0 entries after delete, got %d", count)
	}

	for name, err := range map[string]error{
		"get":    func() error { _, err := repo.Get(ctx, entry.ID); return err }(),
		"update": repo.Update(ctx, &entities.JournalEntry{ID: entry.ID, UserID: "alice", Content: "walked the dog"}),
		"delete": repo.Delete(ctx, entry.ID),
	} {
		if !errors.Is(err, repositories.ErrNotFound) {
			t.Errorf("%s: expected ErrNotFound, got %v", name, err)
		}
	}
}

func TestMemorySessionRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySessionRepository()

	if _, err := repo.Get(ctx, "alice", "session_missing"); !errors.Is(err, repositories.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	session := entities.NewSession("alice", "session_1")
	session.AddMessage(entities.MessageRoleUser, "hello")
	if err := repo.Save(ctx, session); err != nil {
		t.Fatalf("Failed to save session: %v", err)
	}

	// Mutating the caller's copy must not affect the stored session
	session.AddMessage(entities.MessageRoleAssistant, "hi there")

	stored, err := repo.Get(ctx, "alice", "session_1")
	if err != nil {
		t.Fatalf("Failed to get session: %v", err)
	}
	if len(stored.Messages) != 1 {
		t.Errorf("Expected 1 stored message, got %d", len(stored.Messages))
	}

	if _, err := repo.Get(ctx, "bob", "session_1"); !errors.Is(err, repositories.ErrNotFound) {
		t.Errorf("Sessions must be scoped by user, got %v", err)
	}

	if err := repo.Delete(ctx, "alice", "session_1"); err != nil {
		t.Fatalf("Failed to delete session: %v", err)
	}
	if err := repo.Delete(ctx, "alice", "session_1"); !errors.Is(err, repositories.ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second delete, got %v", err)
	}
}

func TestMemorySessionRepositoryExpireSessions(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySessionRepository()

	active := entities.NewSession("alice", "session_active")
	stale := entities.NewSession("alice", "session_stale")
	stale.ExpiresAt = time.Now().Add(-time.Hour)
	terminated := entities.NewSession("bob", "session_done")
	terminated.Terminate()

	for _, s := range []*entities.Session{active, stale, terminated} {
		if err := repo.Save(ctx, s); err != nil {
			t.Fatalf("Failed to save session: %v", err)
		}
	}

	expired, err := repo.ExpireSessions(ctx)
	if err != nil {
		t.Fatalf("Failed to expire sessions: %v", err)
	}
	if expired != 2 {
		t.Errorf("Expected 2 expired sessions, got %d", expired)
	}

	if _, err := repo.Get(ctx, "alice", "session_active"); err != nil {
		t.Errorf("Active session should survive: %v", err)
	}
}
