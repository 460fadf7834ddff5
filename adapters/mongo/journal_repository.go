package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/satriahrh/voicejournal/domain/entities"
	"github.com/satriahrh/voicejournal/domain/repositories"
)

// JournalRepository implements repositories.JournalRepository on the journal_entries collection
type JournalRepository struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

var _ repositories.JournalRepository = (*JournalRepository)(nil)

// NewJournalRepository creates a new MongoDB journal repository
func NewJournalRepository(ctx context.Context, db *mongo.Database, logger *zap.Logger) (*JournalRepository, error) {
	collection := db.Collection("journal_entries")

	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "user_id", Value: 1},
			{Key: "created_at", Value: -1},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create journal indexes: %w", err)
	}

	return &JournalRepository{
		collection: collection,
		logger:     logger,
	}, nil
}

// Create implements repositories.JournalRepository
func (r *JournalRepository) Create(ctx context.Context, entry *entities.JournalEntry) error {
	if entry == nil {
		return errors.New("entry cannot be nil")
	}
	if err := entry.Validate(); err != nil {
		return err
	}

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	if _, err := r.collection.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("failed to create journal entry: %w", err)
	}

	r.logger.Debug("Journal entry created",
		zap.String("entryID", entry.ID),
		zap.String("userID", entry.UserID))
	return nil
}

// CountByUserID implements repositories.JournalRepository
func (r *JournalRepository) CountByUserID(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, errors.New("user ID cannot be empty")
	}

	count, err := r.collection.CountDocuments(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, fmt.Errorf("failed to count journal entries for user %s: %w", userID, err)
	}
	return int(count), nil
}

// ListByUserID implements repositories.JournalRepository
func (r *JournalRepository) ListByUserID(ctx context.Context, userID string, limit int) ([]*entities.JournalEntry, error) {
	if userID == "" {
		return nil, errors.New("user ID cannot be empty")
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list journal entries for user %s: %w", userID, err)
	}
	defer cursor.Close(ctx)

	entries := make([]*entities.JournalEntry, 0)
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode journal entries: %w", err)
	}
	return entries, nil
}

// Get implements repositories.JournalRepository
func (r *JournalRepository) Get(ctx context.Context, id string) (*entities.JournalEntry, error) {
	var entry entities.JournalEntry
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&entry)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repositories.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get journal entry %s: %w", id, err)
	}
	return &entry, nil
}

// Update implements repositories.JournalRepository. Owner and creation time are kept.
func (r *JournalRepository) Update(ctx context.Context, entry *entities.JournalEntry) error {
	if entry == nil {
		return errors.New("entry cannot be nil")
	}
	if err := entry.Validate(); err != nil {
		return err
	}

	update := bson.M{"$set": bson.M{
		"content":          entry.Content,
		"language_code":    entry.LanguageCode,
		"mood":             entry.Mood,
		"tags":             entry.Tags,
		"duration_seconds": entry.DurationSeconds,
		"updated_at":       entry.UpdatedAt,
	}}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": entry.ID}, update)
	if err != nil {
		return fmt.Errorf("failed to update journal entry %s: %w", entry.ID, err)
	}
	if result.MatchedCount == 0 {
		return repositories.ErrNotFound
	}

	r.logger.Debug("Journal entry updated", zap.String("entryID", entry.ID))
	return nil
}

// Delete implements repositories.JournalRepository
func (r *JournalRepository) Delete(ctx context.Context, id string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete journal entry %s: %w", id, err)
	}
	if result.DeletedCount == 0 {
		return repositories.ErrNotFound
	}

	r.logger.Debug("Journal entry deleted", zap.String("entryID", id))
	return nil
}
