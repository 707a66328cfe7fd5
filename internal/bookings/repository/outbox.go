package repository

import (
	"context"
	"fmt"
	"time"

	"atenda/pkg/config"
	"atenda/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	OutboxCollectionName = "Outbox_events"
)

// OutboxRepository appends side-effect rows inside booking transactions and
// gives the dispatcher its drain surface.
type OutboxRepository interface {
	Append(ctx context.Context, events []model.OutboxEvent) error
	FindDue(ctx context.Context, now time.Time, limit int) ([]model.OutboxEvent, error)
	MarkSent(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id string, attempts int, nextAttemptAt time.Time, lastError string) error
	MarkDead(ctx context.Context, id string, attempts int, lastError string) error
	DeleteByBookingKey(ctx context.Context, tenantID, key string) error
}

type mongoOutboxRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoOutboxRepository(cfg *config.Config) OutboxRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoOutboxRepository{
		cfg:        cfg,
		collection: db.Collection(OutboxCollectionName),
	}
}

func (r *mongoOutboxRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoOutboxRepository) Append(ctx context.Context, events []model.OutboxEvent) error {
	if len(events) == 0 {
		return nil
	}

	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	docs := make([]any, 0, len(events))
	for i := range events {
		events[i].Status = model.OutboxPending
		events[i].CreatedAt = now
		events[i].NextAttemptAt = now
		docs = append(docs, events[i])
	}

	if _, err := r.collection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to append outbox events: %w", err)
	}
	return nil
}

// FindDue returns pending rows whose next attempt is due, oldest first.
func (r *mongoOutboxRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]model.OutboxEvent, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"status":          model.OutboxPending,
		"next_attempt_at": bson.M{"$lte": now},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find due outbox events: %w", err)
	}
	defer cursor.Close(ctx)

	var events []model.OutboxEvent
	if err = cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("failed to decode outbox events: %w", err)
	}
	return events, nil
}

func (r *mongoOutboxRepository) MarkSent(ctx context.Context, id string, at time.Time) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"status":  model.OutboxSent,
			"sent_at": at,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to mark outbox event sent: %w", err)
	}
	return nil
}

func (r *mongoOutboxRepository) MarkFailed(ctx context.Context, id string, attempts int, nextAttemptAt time.Time, lastError string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"attempts":        attempts,
			"next_attempt_at": nextAttemptAt,
			"last_error":      lastError,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to mark outbox event failed: %w", err)
	}
	return nil
}

func (r *mongoOutboxRepository) MarkDead(ctx context.Context, id string, attempts int, lastError string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"status":     model.OutboxDead,
			"attempts":   attempts,
			"last_error": lastError,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to mark outbox event dead: %w", err)
	}
	return nil
}

// DeleteByBookingKey removes undelivered rows for a hard-deleted booking.
// Sent rows stay for audit.
func (r *mongoOutboxRepository) DeleteByBookingKey(ctx context.Context, tenantID, key string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	_, err := r.collection.DeleteMany(ctx, bson.M{
		"tenant_id": tenantID,
		"key":       key,
		"status":    model.OutboxPending,
	})
	if err != nil {
		return fmt.Errorf("failed to delete outbox events by key: %w", err)
	}
	return nil
}
