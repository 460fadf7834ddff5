package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/voicejournal/adapters"
	"github.com/satriahrh/voicejournal/domain/entities"
	"github.com/satriahrh/voicejournal/domain/repositories"
)

func TestSessionCleanupService_RunCleanup(t *testing.T) {
	ctx := context.Background()
	repo := adapters.NewMemorySessionRepository()

	stale := entities.NewSession("alice", "session_stale")
	stale.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, repo.Save(ctx, stale))
	require.NoError(t, repo.Save(ctx, entities.NewSession("alice", "session_live")))

	service := NewSessionCleanupService(repo, time.Hour, zaptest.NewLogger(t))
	assert.Equal(t, 1, service.RunCleanup())

	_, err := repo.Get(ctx, "alice", "session_stale")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	_, err = repo.Get(ctx, "alice", "session_live")
	assert.NoError(t, err)
}

func TestSessionCleanupService_Periodic(t *testing.T) {
	ctx := context.Background()
	repo := adapters.NewMemorySessionRepository()

	stale := entities.NewSession("alice", "session_stale")
	stale.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, repo.Save(ctx, stale))

	service := NewSessionCleanupService(repo, 10*time.Millisecond, zaptest.NewLogger(t))
	service.Start()
	defer service.Stop()

	assert.Eventually(t, func() bool {
		_, err := repo.Get(ctx, "alice", "session_stale")
		return errors.Is(err, repositories.ErrNotFound)
	}, time.Second, 5*time.Millisecond)
}
