package usecase

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/voicejournal/domain/repositories"
)

const (
	defaultCleanupInterval = 30 * time.Minute
	cleanupTimeout         = 5 * time.Minute
)

// SessionCleanupService periodically removes expired agent sessions
type SessionCleanupService struct {
	sessionRepo  repositories.SessionRepository
	interval     time.Duration
	initialDelay time.Duration
	logger       *zap.Logger
	stopChan     chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
}

// NewSessionCleanupService creates a new session cleanup service. A zero
// interval uses the default of 30 minutes.
func NewSessionCleanupService(sessionRepo repositories.SessionRepository, interval time.Duration, logger *zap.Logger) *SessionCleanupService {
	if interval <= 0 {
		interval = defaultCleanupInterval
	}
	initialDelay := time.Minute
	if interval < initialDelay {
		initialDelay = interval
	}
	return &SessionCleanupService{
		sessionRepo:  sessionRepo,
		interval:     interval,
		initialDelay: initialDelay,
		logger:       logger,
		stopChan:     make(chan struct{}),
	}
}

// Start begins the background cleanup process
func (s *SessionCleanupService) Start() {
	s.wg.Add(1)
	go s.cleanupLoop()
	s.logger.Info("Session cleanup service started", zap.Duration("interval", s.interval))
}

// Stop gracefully stops the cleanup service
func (s *SessionCleanupService) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()
	s.logger.Info("Session cleanup service stopped")
}

func (s *SessionCleanupService) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Initial cleanup shortly after start
	initialTimer := time.NewTimer(s.initialDelay)
	defer initialTimer.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-initialTimer.C:
			s.RunCleanup()
		case <-ticker.C:
			s.RunCleanup()
		}
	}
}

// RunCleanup expires sessions once and returns how many were removed
func (s *SessionCleanupService) RunCleanup() int {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	s.logger.Debug("Starting session cleanup")

	removed, err := s.sessionRepo.ExpireSessions(ctx)
	if err != nil {
		s.logger.Error("Failed to expire sessions", zap.Error(err))
		return 0
	}

	s.logger.Info("Session cleanup completed", zap.Int("removed", removed))
	return removed
}
