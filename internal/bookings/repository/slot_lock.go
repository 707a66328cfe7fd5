package repository

import (
	"context"
	"fmt"
	"time"

	bookingserrors "atenda/internal/bookings/errors"
	"atenda/pkg/config"
	"atenda/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	SlotLockCollectionName  = "Slot_locks"
	SlotClaimCollectionName = "Slot_claims"
)

// SlotLockRepository provides operations for advisory slot locks and the
// per-quantum claims that act as the storage-level overlap exclusion.
type SlotLockRepository interface {
	Acquire(ctx context.Context, lock *model.SlotLock) error
	Release(ctx context.Context, lockID string) error
	InsertClaims(ctx context.Context, claims []model.SlotClaim) error
	DeleteClaimsByBooking(ctx context.Context, tenantID, bookingID string) error
}

type mongoSlotLockRepository struct {
	locks  *mongo.Collection
	claims *mongo.Collection
}

func NewSlotLockRepository(cfg *config.Config) SlotLockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoSlotLockRepository{
		locks:  db.Collection(SlotLockCollectionName),
		claims: db.Collection(SlotClaimCollectionName),
	}
}

// Acquire inserts the lock document. A duplicate key error means another
// command currently holds the slot; callers translate it to a conflict.
func (r *mongoSlotLockRepository) Acquire(ctx context.Context, lock *model.SlotLock) error {
	lock.CreatedAt = time.Now()

	_, err := r.locks.InsertOne(ctx, lock)
	return err
}

// Release removes an advisory lock.
func (r *mongoSlotLockRepository) Release(ctx context.Context, lockID string) error {
	_, err := r.locks.DeleteOne(ctx, bson.M{"_id": lockID})
	return err
}

// InsertClaims writes one document per occupied quantum. The unique _id
// rejects claims that collide with another active booking.
func (r *mongoSlotLockRepository) InsertClaims(ctx context.Context, claims []model.SlotClaim) error {
	if len(claims) == 0 {
		return nil
	}

	docs := make([]any, 0, len(claims))
	now := time.Now()
	for i := range claims {
		claims[i].CreatedAt = now
		docs = append(docs, claims[i])
	}

	// Ordered inserts stop on the first duplicate so a partial write inside
	// a transaction is rolled back with the rest.
	_, err := r.claims.InsertMany(ctx, docs)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return bookingserrors.ErrSlotTaken
		}
		return fmt.Errorf("failed to insert slot claims: %w", err)
	}
	return nil
}

func (r *mongoSlotLockRepository) DeleteClaimsByBooking(ctx context.Context, tenantID, bookingID string) error {
	_, err := r.claims.DeleteMany(ctx, bson.M{"tenant_id": tenantID, "booking_id": bookingID})
	if err != nil {
		return fmt.Errorf("failed to delete slot claims: %w", err)
	}
	return nil
}
