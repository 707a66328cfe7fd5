package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "atenda/internal/bookings/errors"
	"atenda/pkg/config"
	"atenda/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	InvoiceCollectionName = "Invoices"
	LedgerCollectionName  = "Ledger_entries"
)

// InvoiceRepository persists invoices and their ledger entries. Every write
// here happens inside the transaction that also moves the owning booking.
type InvoiceRepository interface {
	Create(ctx context.Context, invoice *model.Invoice) error
	FindByBookingID(ctx context.Context, tenantID, bookingID string) (*model.Invoice, error)
	FindByTenant(ctx context.Context, tenantID string, status model.InvoiceStatus, limit int, offset int64) ([]*model.Invoice, error)
	CountByTenant(ctx context.Context, tenantID string, status model.InvoiceStatus) (int64, error)
	Update(ctx context.Context, invoice *model.Invoice) error
	Delete(ctx context.Context, tenantID, id string) error
	DeleteByBookingID(ctx context.Context, tenantID, bookingID string) error

	CreateLedgerEntries(ctx context.Context, entries []model.LedgerEntry) error
	FindLedgerByInvoiceID(ctx context.Context, tenantID, invoiceID string) ([]model.LedgerEntry, error)
	DeleteLedgerEntries(ctx context.Context, tenantID string, ids []string) error
	DeleteLedgerByBookingID(ctx context.Context, tenantID, bookingID string) error
}

type mongoInvoiceRepository struct {
	cfg      *config.Config
	invoices *mongo.Collection
	ledger   *mongo.Collection
}

func NewMongoInvoiceRepository(cfg *config.Config) InvoiceRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoInvoiceRepository{
		cfg:      cfg,
		invoices: db.Collection(InvoiceCollectionName),
		ledger:   db.Collection(LedgerCollectionName),
	}
}

func (r *mongoInvoiceRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoInvoiceRepository) Create(ctx context.Context, invoice *model.Invoice) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	invoice.CreatedAt = now
	invoice.UpdatedAt = now
	if _, err := r.invoices.InsertOne(ctx, invoice); err != nil {
		return fmt.Errorf("failed to create invoice: %w", err)
	}
	return nil
}

func (r *mongoInvoiceRepository) FindByBookingID(ctx context.Context, tenantID, bookingID string) (*model.Invoice, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{"tenant_id": tenantID, "booking_id": bookingID}

	var invoice model.Invoice
	err := r.invoices.FindOne(ctx, filter).Decode(&invoice)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("failed to find invoice: %w", err)
	}

	return &invoice, nil
}

func (r *mongoInvoiceRepository) buildListFilter(tenantID string, status model.InvoiceStatus) bson.M {
	filter := bson.M{"tenant_id": tenantID}
	if status != "" {
		filter["status"] = status
	}
	return filter
}

func (r *mongoInvoiceRepository) FindByTenant(ctx context.Context, tenantID string, status model.InvoiceStatus, limit int, offset int64) ([]*model.Invoice, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "issued_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.invoices.Find(ctx, r.buildListFilter(tenantID, status), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find invoices: %w", err)
	}
	defer cursor.Close(ctx)

	var invoices []*model.Invoice
	if err = cursor.All(ctx, &invoices); err != nil {
		return nil, fmt.Errorf("failed to decode invoices: %w", err)
	}

	return invoices, nil
}

func (r *mongoInvoiceRepository) CountByTenant(ctx context.Context, tenantID string, status model.InvoiceStatus) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.invoices.CountDocuments(ctx, r.buildListFilter(tenantID, status))
	if err != nil {
		return 0, fmt.Errorf("failed to count invoices: %w", err)
	}
	return count, nil
}

func (r *mongoInvoiceRepository) Update(ctx context.Context, invoice *model.Invoice) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{"_id": invoice.ID, "tenant_id": invoice.TenantID}
	update := bson.M{
		"$set": bson.M{
			"status":            invoice.Status,
			"amount_before_tax": invoice.AmountBeforeTax,
			"tax_amount":        invoice.TaxAmount,
			"amount_after_tax":  invoice.AmountAfterTax,
			"issued_at":         invoice.IssuedAt,
			"due_date":          invoice.DueDate,
			"paid_at":           invoice.PaidAt,
			"payment_method":    invoice.PaymentMethod,
			"updated_at":        time.Now().UTC().Truncate(time.Millisecond),
		},
	}

	result, err := r.invoices.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update invoice: %w", err)
	}
	if result.MatchedCount == 0 {
		return bookingserrors.ErrInvoiceNotFound
	}
	return nil
}

func (r *mongoInvoiceRepository) Delete(ctx context.Context, tenantID, id string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.invoices.DeleteOne(ctx, bson.M{"_id": id, "tenant_id": tenantID})
	if err != nil {
		return fmt.Errorf("failed to delete invoice: %w", err)
	}
	if result.DeletedCount == 0 {
		return bookingserrors.ErrInvoiceNotFound
	}
	return nil
}

func (r *mongoInvoiceRepository) DeleteByBookingID(ctx context.Context, tenantID, bookingID string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	_, err := r.invoices.DeleteMany(ctx, bson.M{"tenant_id": tenantID, "booking_id": bookingID})
	if err != nil {
		return fmt.Errorf("failed to delete invoices by booking: %w", err)
	}
	return nil
}

func (r *mongoInvoiceRepository) CreateLedgerEntries(ctx context.Context, entries []model.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}

	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	docs := make([]any, 0, len(entries))
	for _, e := range entries {
		docs = append(docs, e)
	}
	if _, err := r.ledger.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to create ledger entries: %w", err)
	}
	return nil
}

func (r *mongoInvoiceRepository) FindLedgerByInvoiceID(ctx context.Context, tenantID, invoiceID string) ([]model.LedgerEntry, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{"tenant_id": tenantID, "invoice_id": invoiceID}
	cursor, err := r.ledger.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "posted_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to find ledger entries: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []model.LedgerEntry
	if err = cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode ledger entries: %w", err)
	}
	return entries, nil
}

func (r *mongoInvoiceRepository) DeleteLedgerEntries(ctx context.Context, tenantID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	_, err := r.ledger.DeleteMany(ctx, bson.M{"tenant_id": tenantID, "_id": bson.M{"$in": ids}})
	if err != nil {
		return fmt.Errorf("failed to delete ledger entries: %w", err)
	}
	return nil
}

func (r *mongoInvoiceRepository) DeleteLedgerByBookingID(ctx context.Context, tenantID, bookingID string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	_, err := r.ledger.DeleteMany(ctx, bson.M{"tenant_id": tenantID, "booking_id": bookingID})
	if err != nil {
		return fmt.Errorf("failed to delete ledger entries by booking: %w", err)
	}
	return nil
}
