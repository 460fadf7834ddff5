package mongo

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/voicejournal/domain/entities"
	"github.com/satriahrh/voicejournal/domain/repositories"
)

// newTestClient connects to the database named by MONGODB_URI.
// This test requires a running MongoDB instance (skipped if MONGODB_URI is not set)
func newTestClient(t *testing.T) *Client {
	mongoURI := os.Getenv("MONGODB_URI")
	if mongoURI == "" {
		t.Skip("Skipping MongoDB integration test - MONGODB_URI not set")
	}

	ctx := context.Background()
	client, err := NewClient(ctx, Config{URI: mongoURI, Database: "voice_journal_test"}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	t.Cleanup(func() {
		client.Database.Drop(ctx)
		client.Close(ctx)
	})
	return client
}

func TestJournalRepository_Integration(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	repo, err := NewJournalRepository(ctx, client.Database, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}

	base := time.Now().Add(-time.Hour)
	for i, content := range []string{"walked the dog", "finished the report"} {
		entry := &entities.JournalEntry{
			UserID:    "alice",
			Content:   content,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.Create(ctx, entry); err != nil {
			t.Fatalf("Failed to create entry: %v", err)
		}
	}

	count, err := repo.CountByUserID(ctx, "alice")
	if err != nil {
		t.Fatalf("Failed to count entries: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 entries, got %d", count)
	}

	entries, err := repo.ListByUserID(ctx, "alice", 10)
	if err != nil {
		t.Fatalf("Failed to list entries: %v", err)
	}
	if len(entries) != 2 || entries[0].Content != "finished the report" {
		t.Errorf("Expected newest entry first, got %+v", entries)
	}

	entry := entries[0]
	entry.Mood = "proud"
	entry.Tags = []string{"work"}
	if err := repo.Update(ctx, entry); err != nil {
		t.Fatalf("Failed to update entry: %v", err)
	}
	got, err := repo.Get(ctx, entry.ID)
	if err != nil {
		t.Fatalf("Failed to get entry: %v", err)
	}
	if got.Mood != "proud" || len(got.Tags) != 1 || got.UserID != "alice" {
		t.Errorf("Unexpected updated entry %+v", got)
	}

	if err := repo.Delete(ctx, entry.ID); err != nil {
		t.Fatalf("Failed to delete entry: %v", err)
	}
	if _, err := repo.Get(ctx, entry.ID); !errors.Is(err, repositories.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
	if err := repo.Delete(ctx, entry.ID); !errors.Is(err, repositories.ErrNotFound) {
		t.Errorf("Expected ErrNotFound deleting twice, got %v", err)
	}
	if err := repo.Update(ctx, entry); !errors.Is(err, repositories.ErrNotFound) {
		t.Errorf("Expected ErrNotFound updating a deleted entry, got %v", err)
	}
}

func TestSessionRepository_Integration(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	repo, err := NewSessionRepository(ctx, client.Database, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}

	session := entities.NewSession("alice", "session_mongo")
	session.AddMessage(entities.MessageRoleUser, "hello")
	if err := repo.Save(ctx, session); err != nil {
		t.Fatalf("Failed to save session: %v", err)
	}

	session.SetMode(entities.ModeLog)
	if err := repo.Save(ctx, session); err != nil {
		t.Fatalf("Failed to update session: %v", err)
	}

	stored, err := repo.Get(ctx, "alice", "session_mongo")
	if err != nil {
		t.Fatalf("Failed to get session: %v", err)
	}
	if stored.Mode != entities.ModeLog || len(stored.Messages) != 1 {
		t.Errorf("Unexpected stored session %+v", stored)
	}

	if err := repo.Delete(ctx, "alice", "session_mongo"); err != nil {
		t.Fatalf("Failed to delete session: %v", err)
	}
	if _, err := repo.Get(ctx, "alice", "session_mongo"); !errors.Is(err, repositories.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
