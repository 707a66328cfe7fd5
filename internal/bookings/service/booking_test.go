package service

import (
	"context"
	"io"
	"testing"
	"time"

	bookingserrors "atenda/internal/bookings/errors"
	"atenda/internal/bookings/validator"
	"atenda/internal/scheduling"
	"atenda/pkg/config"
	mongotx "atenda/pkg/db/mongo"
	apperrors "atenda/pkg/errors"
	"atenda/pkg/logger"
	"atenda/pkg/model"

	"go.mongodb.org/mongo-driver/mongo"
)

// --- Mocks ---

type mockBookingRepo struct {
	CreateFunc           func(ctx context.Context, booking *model.Booking) error
	FindByIDFunc         func(ctx context.Context, tenantID, id string) (*model.Booking, error)
	FindByTenantFunc     func(ctx context.Context, tenantID string, status model.BookingStatus, date string, limit int, offset int64) ([]*model.Booking, error)
	CountByTenantFunc    func(ctx context.Context, tenantID string, status model.BookingStatus, date string) (int64, error)
	FindActiveByDateFunc func(ctx context.Context, tenantID, date string, staffIDs []string) ([]*model.Booking, error)
	UpdateFunc           func(ctx context.Context, tenantID, id string, booking *model.Booking) error
	DeleteFunc           func(ctx context.Context, tenantID, id string) error
}

func (m *mockBookingRepo) Create(ctx context.Context, booking *model.Booking) error {
	if m.CreateFunc == nil {
		return nil
	}
	return m.CreateFunc(ctx, booking)
}

func (m *mockBookingRepo) FindByID(ctx context.Context, tenantID, id string) (*model.Booking, error) {
	return m.FindByIDFunc(ctx, tenantID, id)
}

func (m *mockBookingRepo) FindByTenant(ctx context.Context, tenantID string, status model.BookingStatus, date string, limit int, offset int64) ([]*model.Booking, error) {
	return m.FindByTenantFunc(ctx, tenantID, status, date, limit, offset)
}

func (m *mockBookingRepo) CountByTenant(ctx context.Context, tenantID string, status model.BookingStatus, date string) (int64, error) {
	return m.CountByTenantFunc(ctx, tenantID, status, date)
}

func (m *mockBookingRepo) FindActiveByDate(ctx context.Context, tenantID, date string, staffIDs []string) ([]*model.Booking, error) {
	if m.FindActiveByDateFunc == nil {
		return nil, nil
	}
	return m.FindActiveByDateFunc(ctx, tenantID, date, staffIDs)
}

func (m *mockBookingRepo) Update(ctx context.Context, tenantID, id string, booking *model.Booking) error {
	if m.UpdateFunc == nil {
		return nil
	}
	return m.UpdateFunc(ctx, tenantID, id, booking)
}

func (m *mockBookingRepo) Delete(ctx context.Context, tenantID, id string) error {
	if m.DeleteFunc == nil {
		return nil
	}
	return m.DeleteFunc(ctx, tenantID, id)
}

func (m *mockBookingRepo) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(nil)
}

type mockLockRepo struct {
	acquired []string
	released []string
	claims   []model.SlotClaim
	cleared  []string

	AcquireFunc      func(ctx context.Context, lock *model.SlotLock) error
	InsertClaimsFunc func(ctx context.Context, claims []model.SlotClaim) error
}

func (m *mockLockRepo) Acquire(ctx context.Context, lock *model.SlotLock) error {
	if m.AcquireFunc != nil {
		if err := m.AcquireFunc(ctx, lock); err != nil {
			return err
		}
	}
	m.acquired = append(m.acquired, lock.ID)
	return nil
}

func (m *mockLockRepo) Release(ctx context.Context, lockID string) error {
	m.released = append(m.released, lockID)
	return nil
}

func (m *mockLockRepo) InsertClaims(ctx context.Context, claims []model.SlotClaim) error {
	if m.InsertClaimsFunc != nil {
		if err := m.InsertClaimsFunc(ctx, claims); err != nil {
			return err
		}
	}
	m.claims = append(m.claims, claims...)
	return nil
}

func (m *mockLockRepo) DeleteClaimsByBooking(ctx context.Context, tenantID, bookingID string) error {
	m.cleared = append(m.cleared, bookingID)
	return nil
}

type mockInvoiceRepo struct {
	invoice *model.Invoice
	entries []model.LedgerEntry

	created        *model.Invoice
	updated        *model.Invoice
	deletedID      string
	entriesCreated []model.LedgerEntry
	entriesDeleted []string
}

func (m *mockInvoiceRepo) Create(ctx context.Context, invoice *model.Invoice) error {
	m.created = invoice
	return nil
}

func (m *mockInvoiceRepo) FindByBookingID(ctx context.Context, tenantID, bookingID string) (*model.Invoice, error) {
	if m.invoice == nil {
		return nil, bookingserrors.ErrInvoiceNotFound
	}
	return m.invoice, nil
}

func (m *mockInvoiceRepo) FindByTenant(ctx context.Context, tenantID string, status model.InvoiceStatus, limit int, offset int64) ([]*model.Invoice, error) {
	if m.invoice == nil {
		return nil, nil
	}
	if status != "" && m.invoice.Status != status {
		return nil, nil
	}
	return []*model.Invoice{m.invoice}, nil
}

func (m *mockInvoiceRepo) CountByTenant(ctx context.Context, tenantID string, status model.InvoiceStatus) (int64, error) {
	if m.invoice == nil {
		return 0, nil
	}
	if status != "" && m.invoice.Status != status {
		return 0, nil
	}
	return 1, nil
}

func (m *mockInvoiceRepo) Update(ctx context.Context, invoice *model.Invoice) error {
	m.updated = invoice
	return nil
}

func (m *mockInvoiceRepo) Delete(ctx context.Context, tenantID, id string) error {
	m.deletedID = id
	return nil
}

func (m *mockInvoiceRepo) DeleteByBookingID(ctx context.Context, tenantID, bookingID string) error {
	return nil
}

func (m *mockInvoiceRepo) CreateLedgerEntries(ctx context.Context, entries []model.LedgerEntry) error {
	m.entriesCreated = append(m.entriesCreated, entries...)
	return nil
}

func (m *mockInvoiceRepo) FindLedgerByInvoiceID(ctx context.Context, tenantID, invoiceID string) ([]model.LedgerEntry, error) {
	return m.entries, nil
}

func (m *mockInvoiceRepo) DeleteLedgerEntries(ctx context.Context, tenantID string, ids []string) error {
	m.entriesDeleted = append(m.entriesDeleted, ids...)
	return nil
}

func (m *mockInvoiceRepo) DeleteLedgerByBookingID(ctx context.Context, tenantID, bookingID string) error {
	return nil
}

type mockOutboxRepo struct {
	appended []model.OutboxEvent
}

func (m *mockOutboxRepo) Append(ctx context.Context, events []model.OutboxEvent) error {
	m.appended = append(m.appended, events...)
	return nil
}

func (m *mockOutboxRepo) FindDue(ctx context.Context, now time.Time, limit int) ([]model.OutboxEvent, error) {
	return nil, nil
}

func (m *mockOutboxRepo) MarkSent(ctx context.Context, id string, at time.Time) error { return nil }

func (m *mockOutboxRepo) MarkFailed(ctx context.Context, id string, attempts int, nextAttemptAt time.Time, lastError string) error {
	return nil
}

func (m *mockOutboxRepo) MarkDead(ctx context.Context, id string, attempts int, lastError string) error {
	return nil
}

func (m *mockOutboxRepo) DeleteByBookingKey(ctx context.Context, tenantID, key string) error {
	return nil
}

// --- Fixtures ---

type fixture struct {
	repo    *mockBookingRepo
	locks   *mockLockRepo
	inv     *mockInvoiceRepo
	outbox  *mockOutboxRepo
	service BookingService
}

func newFixture() *fixture {
	log := logger.New(logger.Config{Output: io.Discard})
	cfg := &config.Config{
		SlotStepMin:    15,
		MaxSuggestions: 5,
		WorkdayStart:   "09:00",
		WorkdayEnd:     "18:00",
		SlotLockTTL:    10 * time.Second,
		TaxRatePercent: 20,
		InvoiceDueDays: 30,
		Log:            log,
	}

	f := &fixture{
		repo:   &mockBookingRepo{},
		locks:  &mockLockRepo{},
		inv:    &mockInvoiceRepo{},
		outbox: &mockOutboxRepo{},
	}
	f.service = NewBookingService(f.repo, f.locks, f.inv, f.outbox, validator.NewBookingValidator(log), cfg)
	return f
}

func newBooking(status model.BookingStatus) *model.Booking {
	return &model.Booking{
		ID:          "bkg-1",
		TenantID:    "ten-1",
		ClientID:    "cli-1",
		Date:        "2026-03-10",
		StartTime:   "10:00",
		DurationMin: 60,
		Status:      status,
		PricingMode: model.PricingFixed,
		Location:    model.LocationOnSite,
		Channel:     model.ChannelStaff,
		Lines: []model.BookingLine{
			{ServiceID: "svc-1", ServiceName: "Haircut", Quantity: 1, DurationMin: 60, UnitPrice: 5000},
		},
		Staff: []model.StaffAssignment{
			{StaffID: "stf-1", Role: model.StaffRolePrimary},
		},
	}
}

func eventTypes(events []model.OutboxEvent) map[string]int {
	out := map[string]int{}
	for _, ev := range events {
		out[ev.EventType]++
	}
	return out
}

// --- Tests ---

func TestCreate_Defaults(t *testing.T) {
	f := newFixture()

	b := newBooking("")
	b.ID = ""
	b.Status = ""
	b.Channel = ""

	if err := f.service.Create(context.Background(), b); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if b.Channel != model.ChannelSelfService {
		t.Errorf("channel = %q, want %q", b.Channel, model.ChannelSelfService)
	}
	if b.Status != model.StatusRequested {
		t.Errorf("status = %q, want %q", b.Status, model.StatusRequested)
	}
	if b.ID == "" {
		t.Error("booking ID not assigned")
	}
	if b.Totals.AmountAfterTax != 6000 {
		t.Errorf("amount after tax = %d, want 6000 (5000 + 20%% tax)", b.Totals.AmountAfterTax)
	}
}

func TestCreate_AcquiresAndReleasesLocks(t *testing.T) {
	f := newFixture()

	b := newBooking(model.StatusRequested)
	b.ID = ""
	if err := f.service.Create(context.Background(), b); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if len(f.locks.acquired) != 1 {
		t.Fatalf("acquired %d locks, want 1", len(f.locks.acquired))
	}
	want := "slot_lock_ten-1_stf-1_2026-03-10"
	if f.locks.acquired[0] != want {
		t.Errorf("lock ID = %q, want %q", f.locks.acquired[0], want)
	}
	if len(f.locks.released) != 1 || f.locks.released[0] != want {
		t.Errorf("released = %v, want [%s]", f.locks.released, want)
	}
}

func TestCreate_RequestedBookingClaimsNothing(t *testing.T) {
	f := newFixture()

	b := newBooking(model.StatusRequested)
	b.ID = ""
	if err := f.service.Create(context.Background(), b); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if len(f.locks.claims) != 0 {
		t.Errorf("claims = %d, want 0 for a requested booking", len(f.locks.claims))
	}
}

func TestCreate_StaffConfirmedBookingClaimsQuanta(t *testing.T) {
	f := newFixture()

	b := newBooking(model.StatusConfirmed)
	b.ID = ""
	if err := f.service.Create(context.Background(), b); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// 10:00-11:00 on a 15-minute grid claims 600, 615, 630, 645.
	if len(f.locks.claims) != 4 {
		t.Fatalf("claims = %d, want 4", len(f.locks.claims))
	}
	if f.locks.claims[0].SlotMin != 600 || f.locks.claims[3].SlotMin != 645 {
		t.Errorf("claim quanta = %d..%d, want 600..645", f.locks.claims[0].SlotMin, f.locks.claims[3].SlotMin)
	}
}

func TestCreate_OffGridStartRejected(t *testing.T) {
	f := newFixture()

	b := newBooking(model.StatusConfirmed)
	b.ID = ""
	b.StartTime = "10:05"

	err := f.service.Create(context.Background(), b)
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		t.Fatalf("Create() error = %v, want AppError", err)
	}
	if appErr.Code != apperrors.CodeValidation {
		t.Errorf("code = %q, want %q", appErr.Code, apperrors.CodeValidation)
	}
	if len(f.locks.acquired) != 0 || len(f.locks.claims) != 0 {
		t.Errorf("locks = %v claims = %v, want none for a rejected booking", f.locks.acquired, f.locks.claims)
	}
}

func TestCreate_AdjacentWindowDoesNotShareQuanta(t *testing.T) {
	f := newFixture()

	// 09:30-10:00, directly before the new 10:00-11:00 window.
	existing := newBooking(model.StatusConfirmed)
	existing.ID = "bkg-other"
	existing.StartTime = "09:30"
	existing.DurationMin = 30
	f.repo.FindActiveByDateFunc = func(ctx context.Context, tenantID, date string, staffIDs []string) ([]*model.Booking, error) {
		return []*model.Booking{existing}, nil
	}

	b := newBooking(model.StatusConfirmed)
	b.ID = ""
	if err := f.service.Create(context.Background(), b); err != nil {
		t.Fatalf("Create() error = %v, adjacent windows must not conflict", err)
	}

	for _, claim := range f.locks.claims {
		if claim.SlotMin < 600 {
			t.Errorf("claim quantum %d reaches into the neighboring 09:30-10:00 window", claim.SlotMin)
		}
	}
}

func TestCreate_SelfServiceCannotStartActive(t *testing.T) {
	f := newFixture()

	b := newBooking(model.StatusConfirmed)
	b.ID = ""
	b.Channel = model.ChannelSelfService

	err := f.service.Create(context.Background(), b)
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		t.Fatalf("Create() error = %v, want AppError", err)
	}
	if appErr.Code != apperrors.CodeInvalidInput {
		t.Errorf("code = %q, want %q", appErr.Code, apperrors.CodeInvalidInput)
	}
}

func TestCreate_ConflictReturnsSuggestions(t *testing.T) {
	f := newFixture()

	existing := newBooking(model.StatusConfirmed)
	existing.ID = "bkg-other"
	f.repo.FindActiveByDateFunc = func(ctx context.Context, tenantID, date string, staffIDs []string) ([]*model.Booking, error) {
		return []*model.Booking{existing}, nil
	}

	b := newBooking(model.StatusConfirmed)
	b.ID = ""
	b.StartTime = "10:30"

	err := f.service.Create(context.Background(), b)
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		t.Fatalf("Create() error = %v, want AppError", err)
	}
	if appErr.Code != apperrors.CodeConflict {
		t.Fatalf("code = %q, want %q", appErr.Code, apperrors.CodeConflict)
	}
	suggestions, ok := appErr.Details["suggestions"].([]map[string]string)
	if !ok || len(suggestions) == 0 {
		t.Fatalf("suggestions = %v, want non-empty list", appErr.Details["suggestions"])
	}
	if suggestions[0]["start_time"] != "11:00" {
		t.Errorf("first suggestion = %q, want 11:00", suggestions[0]["start_time"])
	}
}

func TestCreate_AppendsCreatedEvents(t *testing.T) {
	f := newFixture()

	b := newBooking(model.StatusRequested)
	b.ID = ""
	if err := f.service.Create(context.Background(), b); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if got := eventTypes(f.outbox.appended)[model.EventBookingCreated]; got != 2 {
		t.Errorf("booking_created events = %d, want 2 (workflow + notification)", got)
	}
}

func TestCreate_LockHeldByAnotherRequest(t *testing.T) {
	f := newFixture()
	f.locks.AcquireFunc = func(ctx context.Context, lock *model.SlotLock) error {
		return mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000}}}
	}

	b := newBooking(model.StatusRequested)
	b.ID = ""
	err := f.service.Create(context.Background(), b)
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		t.Fatalf("Create() error = %v, want AppError", err)
	}
	if appErr.Code != apperrors.CodeConflict {
		t.Errorf("code = %q, want %q", appErr.Code, apperrors.CodeConflict)
	}
}

func TestReschedule_TerminalRejected(t *testing.T) {
	f := newFixture()
	f.repo.FindByIDFunc = func(ctx context.Context, tenantID, id string) (*model.Booking, error) {
		return newBooking(model.StatusCancelled), nil
	}

	_, err := f.service.Reschedule(context.Background(), "ten-1", "bkg-1", &RescheduleRequest{
		Date:      "2026-03-11",
		StartTime: "10:00",
	})
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		t.Fatalf("Reschedule() error = %v, want AppError", err)
	}
	if got := appErr.Details["reason"]; got != apperrors.ReasonTerminalStatus {
		t.Errorf("reason = %v, want %q", got, apperrors.ReasonTerminalStatus)
	}
}

func TestReschedule_MovesWindowAndReclaims(t *testing.T) {
	f := newFixture()
	f.repo.FindByIDFunc = func(ctx context.Context, tenantID, id string) (*model.Booking, error) {
		return newBooking(model.StatusConfirmed), nil
	}

	var updated *model.Booking
	f.repo.UpdateFunc = func(ctx context.Context, tenantID, id string, booking *model.Booking) error {
		updated = booking
		return nil
	}

	moved, err := f.service.Reschedule(context.Background(), "ten-1", "bkg-1", &RescheduleRequest{
		Date:      "2026-03-11",
		StartTime: "14:00",
	})
	if err != nil {
		t.Fatalf("Reschedule() error = %v", err)
	}

	if moved.Date != "2026-03-11" || moved.StartTime != "14:00" {
		t.Errorf("moved to %s %s, want 2026-03-11 14:00", moved.Date, moved.StartTime)
	}
	if moved.DurationMin != 60 {
		t.Errorf("duration = %d, want unchanged 60", moved.DurationMin)
	}
	if updated == nil {
		t.Fatal("booking not persisted")
	}
	if len(f.locks.cleared) != 1 || f.locks.cleared[0] != "bkg-1" {
		t.Errorf("old claims cleared = %v, want [bkg-1]", f.locks.cleared)
	}
	if len(f.locks.claims) != 4 {
		t.Errorf("new claims = %d, want 4", len(f.locks.claims))
	}
	if got := eventTypes(f.outbox.appended)[model.EventBookingRescheduled]; got != 2 {
		t.Errorf("rescheduled events = %d, want 2", got)
	}
}

func TestReschedule_IgnoresOwnBooking(t *testing.T) {
	f := newFixture()
	current := newBooking(model.StatusConfirmed)
	f.repo.FindByIDFunc = func(ctx context.Context, tenantID, id string) (*model.Booking, error) {
		return current, nil
	}
	f.repo.FindActiveByDateFunc = func(ctx context.Context, tenantID, date string, staffIDs []string) ([]*model.Booking, error) {
		return []*model.Booking{current}, nil
	}

	// Moving half an hour forward overlaps the booking's own old window,
	// which must not count as a conflict.
	_, err := f.service.Reschedule(context.Background(), "ten-1", "bkg-1", &RescheduleRequest{
		Date:      "2026-03-10",
		StartTime: "10:30",
	})
	if err != nil {
		t.Fatalf("Reschedule() error = %v, want nil", err)
	}
}

func TestChangeStatus_ConfirmClaimsSlots(t *testing.T) {
	f := newFixture()
	f.repo.FindByIDFunc = func(ctx context.Context, tenantID, id string) (*model.Booking, error) {
		return newBooking(model.StatusRequested), nil
	}

	b, err := f.service.ChangeStatus(context.Background(), "ten-1", "bkg-1", &StatusChangeRequest{Status: model.StatusConfirmed})
	if err != nil {
		t.Fatalf("ChangeStatus() error = %v", err)
	}
	if b.Status != model.StatusConfirmed {
		t.Errorf("status = %q, want confirmed", b.Status)
	}
	if len(f.locks.acquired) != 1 {
		t.Errorf("locks acquired = %d, want 1", len(f.locks.acquired))
	}
	if len(f.locks.claims) != 4 {
		t.Errorf("claims = %d, want 4", len(f.locks.claims))
	}
	if got := eventTypes(f.outbox.appended)[model.EventBookingConfirmed]; got != 2 {
		t.Errorf("confirmed events = %d, want 2", got)
	}
}

func TestChangeStatus_ConfirmIsIdempotent(t *testing.T) {
	f := newFixture()
	f.repo.FindByIDFunc = func(ctx context.Context, tenantID, id string) (*model.Booking, error) {
		return newBooking(model.StatusConfirmed), nil
	}

	b, err := f.service.ChangeStatus(context.Background(), "ten-1", "bkg-1", &StatusChangeRequest{Status: model.StatusConfirmed})
	if err != nil {
		t.Fatalf("ChangeStatus() error = %v", err)
	}
	if b.Status != model.StatusConfirmed {
		t.Errorf("status = %q, want confirmed", b.Status)
	}
	if len(f.outbox.appended) != 0 {
		t.Errorf("outbox events = %d, want 0 on a no-op confirm", len(f.outbox.appended))
	}
	if len(f.locks.claims) != 0 {
		t.Errorf("claims = %d, want 0 on a no-op confirm", len(f.locks.claims))
	}
}

func TestChangeStatus_CompleteGeneratesInvoice(t *testing.T) {
	f := newFixture()
	booking := newBooking(model.StatusConfirmed)
	booking.Totals = model.Totals{AmountBeforeTax: 19800, TaxAmount: 3960, AmountAfterTax: 23760}
	f.repo.FindByIDFunc = func(ctx context.Context, tenantID, id string) (*model.Booking, error) {
		return booking, nil
	}

	b, err := f.service.ChangeStatus(context.Background(), "ten-1", "bkg-1", &StatusChangeRequest{Status: model.StatusCompleted})
	if err != nil {
		t.Fatalf("ChangeStatus() error = %v", err)
	}
	if b.Status != model.StatusCompleted {
		t.Errorf("status = %q, want completed", b.Status)
	}
	if f.inv.created == nil {
		t.Fatal("invoice not created")
	}
	if f.inv.created.Status != model.InvoiceGenerated {
		t.Errorf("invoice status = %q, want generated", f.inv.created.Status)
	}
	if f.inv.created.Number == "" || f.inv.created.ID == "" {
		t.Errorf("invoice identity not assigned: id=%q number=%q", f.inv.created.ID, f.inv.created.Number)
	}
	if len(f.inv.entriesCreated) != 1 || f.inv.entriesCreated[0].Kind != model.LedgerReceivable {
		t.Fatalf("ledger entries = %v, want one receivable", f.inv.entriesCreated)
	}
	if f.inv.entriesCreated[0].Amount != 23760 {
		t.Errorf("receivable amount = %d, want 23760", f.inv.entriesCreated[0].Amount)
	}
}

func TestChangeStatus_CompleteWithoutStaffRejected(t *testing.T) {
	f := newFixture()
	booking := newBooking(model.StatusConfirmed)
	booking.Staff = nil
	f.repo.FindByIDFunc = func(ctx context.Context, tenantID, id string) (*model.Booking, error) {
		return booking, nil
	}

	_, err := f.service.ChangeStatus(context.Background(), "ten-1", "bkg-1", &StatusChangeRequest{Status: model.StatusCompleted})
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		t.Fatalf("ChangeStatus() error = %v, want AppError", err)
	}
	if got := appErr.Details["reason"]; got != apperrors.ReasonStaffRequired {
		t.Errorf("reason = %v, want %q", got, apperrors.ReasonStaffRequired)
	}
	if f.inv.created != nil {
		t.Error("invoice must not be created on a rejected completion")
	}
}

func TestChangeStatus_RevertPaidInvoice(t *testing.T) {
	f := newFixture()
	f.repo.FindByIDFunc = func(ctx context.Context, tenantID, id string) (*model.Booking, error) {
		return newBooking(model.StatusCompleted), nil
	}
	paidAt := time.Now()
	f.inv.invoice = &model.Invoice{
		ID:             "inv-1",
		TenantID:       "ten-1",
		BookingID:      "bkg-1",
		Status:         model.InvoicePaid,
		AmountAfterTax: 23760,
		PaidAt:         &paidAt,
		PaymentMethod:  "card",
	}
	f.inv.entries = []model.LedgerEntry{
		{ID: "led-1", Kind: model.LedgerReceivable, Amount: 23760},
		{ID: "led-2", Kind: model.LedgerSettlement, Amount: 23760},
	}

	b, err := f.service.ChangeStatus(context.Background(), "ten-1", "bkg-1", &StatusChangeRequest{Status: model.StatusConfirmed})
	if err != nil {
		t.Fatalf("ChangeStatus() error = %v", err)
	}
	if b.Status != model.StatusConfirmed {
		t.Errorf("status = %q, want confirmed", b.Status)
	}
	if f.inv.updated == nil {
		t.Fatal("invoice not updated")
	}
	if f.inv.updated.Status != model.InvoiceGenerated {
		t.Errorf("invoice status = %q, want generated", f.inv.updated.Status)
	}
	if f.inv.updated.PaidAt != nil {
		t.Error("paid_at not cleared")
	}
	if len(f.inv.entriesDeleted) != 1 || f.inv.entriesDeleted[0] != "led-2" {
		t.Errorf("deleted entries = %v, want only the settlement led-2", f.inv.entriesDeleted)
	}
}

func TestCancel_PaidInvoiceBlocksCancellation(t *testing.T) {
	f := newFixture()
	f.repo.FindByIDFunc = func(ctx context.Context, tenantID, id string) (*model.Booking, error) {
		return newBooking(model.StatusConfirmed), nil
	}
	f.inv.invoice = &model.Invoice{ID: "inv-1", Status: model.InvoicePaid}

	_, err := f.service.Cancel(context.Background(), "ten-1", "bkg-1", "client request")
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		t.Fatalf("Cancel() error = %v, want AppError", err)
	}
	if got := appErr.Details["reason"]; got != apperrors.ReasonInvoicePaid {
		t.Errorf("reason = %v, want %q", got, apperrors.ReasonInvoicePaid)
	}
}

func TestCancel_ReleasesClaimsAndCancelsInvoice(t *testing.T) {
	f := newFixture()
	f.repo.FindByIDFunc = func(ctx context.Context, tenantID, id string) (*model.Booking, error) {
		return newBooking(model.StatusConfirmed), nil
	}
	f.inv.invoice = &model.Invoice{ID: "inv-1", TenantID: "ten-1", Status: model.InvoiceGenerated}

	b, err := f.service.Cancel(context.Background(), "ten-1", "bkg-1", "client request")
	if err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if b.Status != model.StatusCancelled {
		t.Errorf("status = %q, want cancelled", b.Status)
	}
	if len(f.locks.cleared) != 1 {
		t.Errorf("claims cleared = %v, want one booking", f.locks.cleared)
	}
	if f.inv.updated == nil || f.inv.updated.Status != model.InvoiceCancelled {
		t.Errorf("invoice = %+v, want cancelled", f.inv.updated)
	}
	if got := eventTypes(f.outbox.appended)[model.EventBookingCancelled]; got != 2 {
		t.Errorf("cancelled events = %d, want 2", got)
	}
}

func TestCancel_CompletedBookingWithUnpaidInvoice(t *testing.T) {
	f := newFixture()
	f.repo.FindByIDFunc = func(ctx context.Context, tenantID, id string) (*model.Booking, error) {
		return newBooking(model.StatusCompleted), nil
	}
	f.inv.invoice = &model.Invoice{ID: "inv-1", TenantID: "ten-1", Status: model.InvoiceGenerated}

	b, err := f.service.Cancel(context.Background(), "ten-1", "bkg-1", "client request")
	if err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if b.Status != model.StatusCancelled {
		t.Errorf("status = %q, want cancelled", b.Status)
	}
	if len(f.locks.cleared) != 1 {
		t.Errorf("claims cleared = %v, want one booking", f.locks.cleared)
	}
	if f.inv.updated == nil || f.inv.updated.Status != model.InvoiceCancelled {
		t.Errorf("invoice = %+v, want cancelled", f.inv.updated)
	}
}

func TestHardDelete_OnlyTerminal(t *testing.T) {
	f := newFixture()
	f.repo.FindByIDFunc = func(ctx context.Context, tenantID, id string) (*model.Booking, error) {
		return newBooking(model.StatusConfirmed), nil
	}

	err := f.service.HardDelete(context.Background(), "ten-1", "bkg-1")
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		t.Fatalf("HardDelete() error = %v, want AppError", err)
	}
	if appErr.Code != apperrors.CodeStateTransition {
		t.Errorf("code = %q, want %q", appErr.Code, apperrors.CodeStateTransition)
	}
}

func TestHardDelete_PurgesDerivedState(t *testing.T) {
	f := newFixture()
	f.repo.FindByIDFunc = func(ctx context.Context, tenantID, id string) (*model.Booking, error) {
		return newBooking(model.StatusCancelled), nil
	}

	var deleted string
	f.repo.DeleteFunc = func(ctx context.Context, tenantID, id string) error {
		deleted = id
		return nil
	}

	if err := f.service.HardDelete(context.Background(), "ten-1", "bkg-1"); err != nil {
		t.Fatalf("HardDelete() error = %v", err)
	}
	if deleted != "bkg-1" {
		t.Errorf("deleted = %q, want bkg-1", deleted)
	}
	if len(f.locks.cleared) != 1 {
		t.Errorf("claims cleared = %v, want one booking", f.locks.cleared)
	}
}

func TestAvailability(t *testing.T) {
	f := newFixture()
	busy := newBooking(model.StatusConfirmed)
	f.repo.FindActiveByDateFunc = func(ctx context.Context, tenantID, date string, staffIDs []string) ([]*model.Booking, error) {
		return []*model.Booking{busy}, nil
	}

	windows, err := f.service.Availability(context.Background(), "ten-1", &AvailabilityQuery{
		StaffID:     "stf-1",
		Date:        "2026-03-10",
		DurationMin: 60,
	})
	if err != nil {
		t.Fatalf("Availability() error = %v", err)
	}
	if len(windows) != 5 {
		t.Fatalf("windows = %d, want the suggestion cap of 5", len(windows))
	}
	if windows[0].StartTime() != "09:00" {
		t.Errorf("first window = %s, want 09:00", windows[0].StartTime())
	}
}

func TestAvailability_RequiresDate(t *testing.T) {
	f := newFixture()

	_, err := f.service.Availability(context.Background(), "ten-1", &AvailabilityQuery{DurationMin: 60})
	if err == nil {
		t.Fatal("Availability() error = nil, want invalid input")
	}
}

func TestAvailability_NoStaffFilterUsesWholeTeam(t *testing.T) {
	f := newFixture()
	first := newBooking(model.StatusConfirmed)
	second := newBooking(model.StatusConfirmed)
	second.ID = "bkg-2"
	second.StartTime = "14:00"
	second.Staff = []model.StaffAssignment{{StaffID: "stf-2", Role: model.StaffRolePrimary}}
	f.repo.FindActiveByDateFunc = func(ctx context.Context, tenantID, date string, staffIDs []string) ([]*model.Booking, error) {
		if len(staffIDs) != 0 {
			t.Errorf("staffIDs = %v, want none for a team-wide query", staffIDs)
		}
		return []*model.Booking{first, second}, nil
	}

	windows, err := f.service.Availability(context.Background(), "ten-1", &AvailabilityQuery{
		Date:        "2026-03-10",
		DurationMin: 60,
	})
	if err != nil {
		t.Fatalf("Availability() error = %v", err)
	}
	for _, w := range windows {
		if w.Overlaps(scheduling.Window{Start: 600, End: 660}) || w.Overlaps(scheduling.Window{Start: 840, End: 900}) {
			t.Errorf("window %s-%s overlaps a busy slot of the team", w.StartTime(), w.EndTime())
		}
	}
}

func TestMarkInvoicePaid(t *testing.T) {
	f := newFixture()
	f.repo.FindByIDFunc = func(ctx context.Context, tenantID, id string) (*model.Booking, error) {
		return newBooking(model.StatusCompleted), nil
	}
	f.inv.invoice = &model.Invoice{
		ID:             "inv-1",
		TenantID:       "ten-1",
		BookingID:      "bkg-1",
		Status:         model.InvoiceGenerated,
		AmountAfterTax: 23760,
	}
	f.inv.entries = []model.LedgerEntry{
		{ID: "led-1", Kind: model.LedgerReceivable, Amount: 23760},
	}

	paid, err := f.service.MarkInvoicePaid(context.Background(), "ten-1", "bkg-1", "card")
	if err != nil {
		t.Fatalf("MarkInvoicePaid() error = %v", err)
	}
	if paid.Status != model.InvoicePaid {
		t.Errorf("status = %q, want paid", paid.Status)
	}
	if len(f.inv.entriesCreated) != 1 || f.inv.entriesCreated[0].Kind != model.LedgerSettlement {
		t.Fatalf("ledger entries = %v, want one settlement", f.inv.entriesCreated)
	}
	if got := eventTypes(f.outbox.appended)[model.EventInvoicePaid]; got != 1 {
		t.Errorf("invoice_paid events = %d, want 1", got)
	}
}

func TestMarkInvoicePaid_NoInvoice(t *testing.T) {
	f := newFixture()
	f.repo.FindByIDFunc = func(ctx context.Context, tenantID, id string) (*model.Booking, error) {
		return newBooking(model.StatusCompleted), nil
	}

	_, err := f.service.MarkInvoicePaid(context.Background(), "ten-1", "bkg-1", "card")
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		t.Fatalf("MarkInvoicePaid() error = %v, want AppError", err)
	}
	if appErr.Code != apperrors.CodeNotFound {
		t.Errorf("code = %q, want %q", appErr.Code, apperrors.CodeNotFound)
	}
}

func TestGetByID_EmptyID(t *testing.T) {
	f := newFixture()

	_, err := f.service.GetByID(context.Background(), "ten-1", "")
	if err == nil {
		t.Fatal("GetByID() error = nil, want invalid input")
	}
}

func TestList(t *testing.T) {
	f := newFixture()
	f.repo.FindByTenantFunc = func(ctx context.Context, tenantID string, status model.BookingStatus, date string, limit int, offset int64) ([]*model.Booking, error) {
		return []*model.Booking{newBooking(model.StatusConfirmed)}, nil
	}
	f.repo.CountByTenantFunc = func(ctx context.Context, tenantID string, status model.BookingStatus, date string) (int64, error) {
		return 42, nil
	}

	bookings, total, err := f.service.List(context.Background(), "ten-1", "", "", 50, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(bookings) != 1 || total != 42 {
		t.Errorf("got %d bookings / total %d, want 1 / 42", len(bookings), total)
	}
}

func TestListInvoices_FiltersByStatus(t *testing.T) {
	f := newFixture()
	f.inv.invoice = &model.Invoice{ID: "inv-1", TenantID: "ten-1", Status: model.InvoiceGenerated}

	invoices, total, err := f.service.ListInvoices(context.Background(), "ten-1", model.InvoiceGenerated, 50, 0)
	if err != nil {
		t.Fatalf("ListInvoices() error = %v", err)
	}
	if len(invoices) != 1 || total != 1 {
		t.Errorf("got %d invoices / total %d, want 1 / 1", len(invoices), total)
	}

	invoices, total, err = f.service.ListInvoices(context.Background(), "ten-1", model.InvoicePaid, 50, 0)
	if err != nil {
		t.Fatalf("ListInvoices() error = %v", err)
	}
	if len(invoices) != 0 || total != 0 {
		t.Errorf("got %d invoices / total %d, want 0 / 0", len(invoices), total)
	}
}
