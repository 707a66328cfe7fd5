package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "atenda/internal/bookings/errors"
	"atenda/pkg/config"
	mongotx "atenda/pkg/db/mongo"
	"atenda/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Bookings"
)

type mongoBookingRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	FindByID(ctx context.Context, tenantID, id string) (*model.Booking, error)
	FindByTenant(ctx context.Context, tenantID string, status model.BookingStatus, date string, limit int, offset int64) ([]*model.Booking, error)
	CountByTenant(ctx context.Context, tenantID string, status model.BookingStatus, date string) (int64, error)
	FindActiveByDate(ctx context.Context, tenantID, date string, staffIDs []string) ([]*model.Booking, error)
	Update(ctx context.Context, tenantID, id string, booking *model.Booking) error
	Delete(ctx context.Context, tenantID, id string) error
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

func NewMongoBookingRepository(cfg *config.Config) BookingRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout wraps the context with a timeout if not already in a transaction.
// When inside a transaction (SessionContext), returns the original context
// unchanged with a no-op cancel function, as wrapping a SessionContext would
// break transaction semantics.
func (r *mongoBookingRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		return context.WithTimeout(ctx, timeout)
	}

	remaining := time.Until(deadline)
	if remaining < timeout {
		return context.WithTimeout(ctx, remaining)
	}

	return context.WithTimeout(ctx, timeout)
}

func (r *mongoBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	booking.CreatedAt = now
	booking.UpdatedAt = now
	if _, err := r.collection.InsertOne(ctx, booking); err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

func (r *mongoBookingRepository) FindByID(ctx context.Context, tenantID, id string) (*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{"_id": id, "tenant_id": tenantID}

	var booking model.Booking
	err := r.collection.FindOne(ctx, filter).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}

	return &booking, nil
}

func (r *mongoBookingRepository) FindByTenant(ctx context.Context, tenantID string, status model.BookingStatus, date string, limit int, offset int64) ([]*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "date", Value: 1}, {Key: "start_time", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, r.buildListFilter(tenantID, status, date), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []*model.Booking
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}

	return bookings, nil
}

func (r *mongoBookingRepository) CountByTenant(ctx context.Context, tenantID string, status model.BookingStatus, date string) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, r.buildListFilter(tenantID, status, date))
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}

func (r *mongoBookingRepository) buildListFilter(tenantID string, status model.BookingStatus, date string) bson.M {
	filter := bson.M{"tenant_id": tenantID}
	if status != "" {
		filter["status"] = status
	}
	if date != "" {
		filter["date"] = date
	}
	return filter
}

// FindActiveByDate returns the bookings that claim time windows on the given
// date for any of the given staff members. Only confirmed and completed
// bookings claim their windows.
// buildActiveByDateFilter matches active bookings that involve any of the
// given staff, whether the assignment sits on the booking or only on an
// hourly line. An empty staff list matches every active booking for the date.
func buildActiveByDateFilter(tenantID, date string, staffIDs []string) bson.M {
	filter := bson.M{
		"tenant_id": tenantID,
		"date":      date,
		"status":    bson.M{"$in": []model.BookingStatus{model.StatusConfirmed, model.StatusCompleted}},
	}
	if len(staffIDs) > 0 {
		filter["$or"] = []bson.M{
			{"staff.staff_id": bson.M{"$in": staffIDs}},
			{"lines.staff_id": bson.M{"$in": staffIDs}},
		}
	}
	return filter
}

func (r *mongoBookingRepository) FindActiveByDate(ctx context.Context, tenantID, date string, staffIDs []string) ([]*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	cursor, err := r.collection.Find(ctx, buildActiveByDateFilter(tenantID, date, staffIDs), options.Find().SetSort(bson.D{{Key: "start_time", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to find active bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []*model.Booking
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode active bookings: %w", err)
	}

	return bookings, nil
}

func (r *mongoBookingRepository) Update(ctx context.Context, tenantID, id string, booking *model.Booking) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{"_id": id, "tenant_id": tenantID}
	update := bson.M{
		"$set": bson.M{
			"date":         booking.Date,
			"start_time":   booking.StartTime,
			"duration_min": booking.DurationMin,
			"status":       booking.Status,
			"pricing_mode": booking.PricingMode,
			"location":     booking.Location,
			"address":      booking.Address,
			"city":         booking.City,
			"postal_code":  booking.PostalCode,
			"lines":        booking.Lines,
			"staff":        booking.Staff,
			"totals":       booking.Totals,
			"discount":     booking.Discount,
			"notes":        booking.Notes,
			"updated_at":   time.Now().UTC().Truncate(time.Millisecond),
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}

	if result.MatchedCount == 0 {
		return bookingserrors.ErrNotFound
	}

	return nil
}

func (r *mongoBookingRepository) Delete(ctx context.Context, tenantID, id string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{"_id": id, "tenant_id": tenantID}
	result, err := r.collection.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}

	if result.DeletedCount == 0 {
		return bookingserrors.ErrNotFound
	}

	return nil
}

func (r *mongoBookingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
