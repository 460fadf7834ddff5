package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/satriahrh/voicejournal/domain/entities"
	"github.com/satriahrh/voicejournal/domain/repositories"
)

// SessionRepository implements repositories.SessionRepository on the sessions collection
type SessionRepository struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

var _ repositories.SessionRepository = (*SessionRepository)(nil)

// NewSessionRepository creates a new MongoDB session repository
func NewSessionRepository(ctx context.Context, db *mongo.Database, logger *zap.Logger) (*SessionRepository, error) {
	collection := db.Collection("sessions")

	_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "session_id", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{
			// Lets MongoDB drop sessions on its own once they expire
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session indexes: %w", err)
	}

	return &SessionRepository{
		collection: collection,
		logger:     logger,
	}, nil
}

func sessionFilter(userID, sessionID string) bson.M {
	return bson.M{"user_id": userID, "session_id": sessionID}
}

// Get implements repositories.SessionRepository
func (r *SessionRepository) Get(ctx context.Context, userID, sessionID string) (*entities.Session, error) {
	if sessionID == "" {
		return nil, errors.New("session ID cannot be empty")
	}

	var session entities.Session
	err := r.collection.FindOne(ctx, sessionFilter(userID, sessionID)).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session %s: %w", sessionID, err)
	}
	return &session, nil
}

// Save implements repositories.SessionRepository
func (r *SessionRepository) Save(ctx context.Context, session *entities.Session) error {
	if session == nil {
		return errors.New("session cannot be nil")
	}
	if err := session.Validate(); err != nil {
		return err
	}

	_, err := r.collection.ReplaceOne(ctx,
		sessionFilter(session.UserID, session.ID),
		session,
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", session.ID, err)
	}

	r.logger.Debug("Session saved", zap.String("sessionID", session.ID))
	return nil
}

// Delete implements repositories.SessionRepository
func (r *SessionRepository) Delete(ctx context.Context, userID, sessionID string) error {
	result, err := r.collection.DeleteOne(ctx, sessionFilter(userID, sessionID))
	if err != nil {
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	if result.DeletedCount == 0 {
		return repositories.ErrNotFound
	}

	r.logger.Info("Session deleted", zap.String("sessionID", sessionID))
	return nil
}

// ExpireSessions implements repositories.SessionRepository
func (r *SessionRepository) ExpireSessions(ctx context.Context) (int, error) {
	filter := bson.M{
		"$or": bson.A{
			bson.M{"expires_at": bson.M{"$lt": time.Now()}},
			bson.M{"status": bson.M{"$ne": entities.SessionStatusActive}},
		},
	}

	result, err := r.collection.DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to expire sessions: %w", err)
	}
	return int(result.DeletedCount), nil
}
