package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	bookingserrors "atenda/internal/bookings/errors"
	"atenda/internal/bookings/repository"
	"atenda/internal/bookings/validator"
	"atenda/internal/lifecycle"
	"atenda/internal/pricing"
	"atenda/internal/scheduling"
	"atenda/pkg/config"
	apperrors "atenda/pkg/errors"
	"atenda/pkg/metrics"
	"atenda/pkg/model"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
)

// RescheduleRequest moves a booking to a new window. Hourly line sub-windows
// shift by the same offset as the booking start.
type RescheduleRequest struct {
	Date        string `json:"date"`
	StartTime   string `json:"start_time"`
	DurationMin int    `json:"duration_min"`
}

// StatusChangeRequest asks for a target status; the lifecycle table decides
// whether the move is legal from the current state.
type StatusChangeRequest struct {
	Status model.BookingStatus `json:"status"`
	Reason string              `json:"reason,omitempty"`
}

// AvailabilityQuery asks for free windows of a given duration for one staff
// member on one date.
type AvailabilityQuery struct {
	StaffID     string
	Date        string
	DurationMin int
	From        string
}

type BookingService interface {
	Create(ctx context.Context, booking *model.Booking) error
	GetByID(ctx context.Context, tenantID, id string) (*model.Booking, error)
	List(ctx context.Context, tenantID string, status model.BookingStatus, date string, limit int, offset int64) ([]*model.Booking, int64, error)
	Reschedule(ctx context.Context, tenantID, id string, req *RescheduleRequest) (*model.Booking, error)
	ChangeStatus(ctx context.Context, tenantID, id string, req *StatusChangeRequest) (*model.Booking, error)
	Cancel(ctx context.Context, tenantID, id, reason string) (*model.Booking, error)
	HardDelete(ctx context.Context, tenantID, id string) error
	Availability(ctx context.Context, tenantID string, q *AvailabilityQuery) ([]scheduling.Window, error)
	GetInvoice(ctx context.Context, tenantID, bookingID string) (*model.Invoice, []model.LedgerEntry, error)
	ListInvoices(ctx context.Context, tenantID string, status model.InvoiceStatus, limit int, offset int64) ([]*model.Invoice, int64, error)
	MarkInvoicePaid(ctx context.Context, tenantID, bookingID, method string) (*model.Invoice, error)
}

type bookingService struct {
	repo        repository.BookingRepository
	lockRepo    repository.SlotLockRepository
	invoiceRepo repository.InvoiceRepository
	outboxRepo  repository.OutboxRepository
	validator   *validator.BookingValidator
	checker     *scheduling.Checker
	invoiceSync *lifecycle.Synchronizer
	cfg         *config.Config
}

func NewBookingService(
	repo repository.BookingRepository,
	lockRepo repository.SlotLockRepository,
	invoiceRepo repository.InvoiceRepository,
	outboxRepo repository.OutboxRepository,
	validator *validator.BookingValidator,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:        repo,
		lockRepo:    lockRepo,
		invoiceRepo: invoiceRepo,
		outboxRepo:  outboxRepo,
		validator:   validator,
		checker:     scheduling.NewChecker(cfg.SlotStepMin, cfg.MaxSuggestions),
		invoiceSync: lifecycle.NewSynchronizer(cfg.InvoiceDueDays),
		cfg:         cfg,
	}
}

func (s *bookingService) Create(ctx context.Context, booking *model.Booking) error {
	s.applyDefaults(booking)

	if booking.Channel == model.ChannelSelfService && booking.Status.IsActive() {
		metrics.IncCommand("create", "rejected")
		return apperrors.InvalidInput("self-service bookings cannot start in an active status")
	}

	if err := s.validate(booking); err != nil {
		metrics.IncCommand("create", "rejected")
		return err
	}
	if err := s.price(booking); err != nil {
		metrics.IncCommand("create", "rejected")
		return err
	}

	booking.ID = uuid.NewString()

	// Advisory locks serialize commands per (tenant, staff, date) across the
	// check-then-write sequence.
	lockIDs, err := s.acquireSlotLocks(ctx, booking)
	if err != nil {
		metrics.IncCommand("create", "conflict")
		return err
	}
	defer s.releaseSlotLocks(ctx, lockIDs)

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.verifySlotFree(sessCtx, booking, ""); err != nil {
			return err
		}
		if err := s.repo.Create(sessCtx, booking); err != nil {
			return apperrors.Internal("Failed to create booking", err)
		}
		if booking.Status.IsActive() {
			if err := s.insertClaims(sessCtx, booking); err != nil {
				return err
			}
		}
		return s.appendBookingEvents(sessCtx, booking, model.EventBookingCreated, "", true)
	})
	if err != nil {
		s.cfg.Log.Error("Failed to create booking", "error", err)
		metrics.IncCommand("create", outcomeOf(err))
		return err
	}

	s.cfg.Log.Info("Booking created successfully",
		"id", booking.ID,
		"tenant_id", booking.TenantID,
		"date", booking.Date,
		"start_time", booking.StartTime,
		"status", booking.Status,
	)
	metrics.IncCommand("create", "ok")
	return nil
}

func (s *bookingService) GetByID(ctx context.Context, tenantID, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		return nil, apperrors.Internal("Failed to retrieve booking", err)
	}

	return booking, nil
}

func (s *bookingService) List(ctx context.Context, tenantID string, status model.BookingStatus, date string, limit int, offset int64) ([]*model.Booking, int64, error) {
	var count int64
	var bookings []*model.Booking
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.CountByTenant(ctx, tenantID, status, date)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count bookings", "tenant_id", tenantID, "error", errCount)
			errCount = apperrors.Internal("Failed to count bookings", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		bookings, errFind = s.repo.FindByTenant(ctx, tenantID, status, date, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list bookings", "tenant_id", tenantID, "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve bookings", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return bookings, count, nil
}

func (s *bookingService) Reschedule(ctx context.Context, tenantID, id string, req *RescheduleRequest) (*model.Booking, error) {
	booking, err := s.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if booking.Status.IsTerminal() {
		metrics.IncCommand("reschedule", "rejected")
		return nil, apperrors.StateTransition(
			fmt.Sprintf("cannot reschedule a booking in terminal status %q", booking.Status),
			apperrors.ReasonTerminalStatus,
		)
	}

	if req.DurationMin == 0 {
		req.DurationMin = booking.DurationMin
	}
	if err := s.validator.ValidateReschedule(req.Date, req.StartTime, req.DurationMin); err != nil {
		metrics.IncCommand("reschedule", "rejected")
		return nil, apperrors.Validation("Invalid reschedule input", map[string]any{"error": err.Error()})
	}

	moved := s.applyReschedule(booking, req)
	if err := s.validate(moved); err != nil {
		metrics.IncCommand("reschedule", "rejected")
		return nil, err
	}
	if err := s.price(moved); err != nil {
		metrics.IncCommand("reschedule", "rejected")
		return nil, err
	}

	lockIDs, err := s.acquireSlotLocks(ctx, moved)
	if err != nil {
		metrics.IncCommand("reschedule", "conflict")
		return nil, err
	}
	defer s.releaseSlotLocks(ctx, lockIDs)

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.verifySlotFree(sessCtx, moved, moved.ID); err != nil {
			return err
		}
		if err := s.repo.Update(sessCtx, tenantID, moved.ID, moved); err != nil {
			return apperrors.Internal("Failed to update booking", err)
		}
		if moved.Status.IsActive() {
			if err := s.lockRepo.DeleteClaimsByBooking(sessCtx, tenantID, moved.ID); err != nil {
				return apperrors.Internal("Failed to release slot claims", err)
			}
			if err := s.insertClaims(sessCtx, moved); err != nil {
				return err
			}
		}
		return s.appendBookingEvents(sessCtx, moved, model.EventBookingRescheduled, "", true)
	})
	if err != nil {
		s.cfg.Log.Error("Failed to reschedule booking", "id", id, "error", err)
		metrics.IncCommand("reschedule", outcomeOf(err))
		return nil, err
	}

	s.cfg.Log.Info("Booking rescheduled",
		"id", id,
		"date", moved.Date,
		"start_time", moved.StartTime,
	)
	metrics.IncCommand("reschedule", "ok")
	return moved, nil
}

func (s *bookingService) ChangeStatus(ctx context.Context, tenantID, id string, req *StatusChangeRequest) (*model.Booking, error) {
	booking, err := s.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	event, err := lifecycle.EventForTarget(booking.Status, req.Status)
	if err != nil {
		metrics.IncCommand("change_status", "rejected")
		return nil, err
	}

	outcome, err := lifecycle.Apply(booking, event)
	if err != nil {
		metrics.IncCommand("change_status", "rejected")
		return nil, err
	}

	if outcome.To == booking.Status && len(outcome.Effects) == 0 {
		return booking, nil
	}

	wasActive := booking.Status.IsActive()
	becomesActive := outcome.To.IsActive()

	// Confirming claims the window, so the slot must be re-checked under the
	// advisory lock; the snapshot taken at request time may be stale.
	var lockIDs []string
	if !wasActive && becomesActive {
		lockIDs, err = s.acquireSlotLocks(ctx, booking)
		if err != nil {
			metrics.IncCommand("change_status", "conflict")
			return nil, err
		}
		defer s.releaseSlotLocks(ctx, lockIDs)
	}

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if event == lifecycle.EventCancel {
			if err := s.guardCancelUnpaid(sessCtx, booking); err != nil {
				return err
			}
		}
		if !wasActive && becomesActive {
			if err := s.verifySlotFree(sessCtx, booking, booking.ID); err != nil {
				return err
			}
			if err := s.insertClaims(sessCtx, booking); err != nil {
				return err
			}
		}
		if wasActive && !becomesActive {
			if err := s.lockRepo.DeleteClaimsByBooking(sessCtx, tenantID, booking.ID); err != nil {
				return apperrors.Internal("Failed to release slot claims", err)
			}
		}

		booking.Status = outcome.To
		if err := s.repo.Update(sessCtx, tenantID, booking.ID, booking); err != nil {
			return apperrors.Internal("Failed to update booking status", err)
		}

		for _, effect := range outcome.Effects {
			switch effect {
			case lifecycle.EffectInvoiceGenerate, lifecycle.EffectInvoiceRevert, lifecycle.EffectInvoiceCancel:
				if err := s.applyInvoiceEffect(sessCtx, booking, effect); err != nil {
					return err
				}
			}
		}

		eventType := lifecycle.NotificationEventType(event)
		notify := hasLifecycleEffect(outcome.Effects, lifecycle.EffectNotifyClient)
		if hasLifecycleEffect(outcome.Effects, lifecycle.EffectFireWorkflow) {
			if err := s.appendBookingEvents(sessCtx, booking, eventType, req.Reason, notify); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to change booking status", "id", id, "target", req.Status, "error", err)
		metrics.IncCommand("change_status", outcomeOf(err))
		return nil, err
	}

	s.cfg.Log.Info("Booking status changed",
		"id", id,
		"status", booking.Status,
		"event", event,
	)
	metrics.IncCommand("change_status", "ok")
	return booking, nil
}

func (s *bookingService) Cancel(ctx context.Context, tenantID, id, reason string) (*model.Booking, error) {
	return s.ChangeStatus(ctx, tenantID, id, &StatusChangeRequest{
		Status: model.StatusCancelled,
		Reason: reason,
	})
}

// HardDelete purges a terminal booking and everything derived from it. The
// normal lifecycle never deletes; this is the data-removal escape hatch.
func (s *bookingService) HardDelete(ctx context.Context, tenantID, id string) error {
	booking, err := s.GetByID(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if !booking.Status.IsTerminal() {
		metrics.IncCommand("hard_delete", "rejected")
		return apperrors.StateTransition(
			fmt.Sprintf("only cancelled or no-show bookings can be hard-deleted, status is %q", booking.Status),
			apperrors.ReasonIllegalTransition,
		)
	}

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.repo.Delete(sessCtx, tenantID, id); err != nil {
			if errors.Is(err, bookingserrors.ErrNotFound) {
				return apperrors.NotFoundWithID("Booking", id)
			}
			return apperrors.Internal("Failed to delete booking", err)
		}
		if err := s.lockRepo.DeleteClaimsByBooking(sessCtx, tenantID, id); err != nil {
			return apperrors.Internal("Failed to delete slot claims", err)
		}
		if err := s.invoiceRepo.DeleteLedgerByBookingID(sessCtx, tenantID, id); err != nil {
			return apperrors.Internal("Failed to delete ledger entries", err)
		}
		if err := s.invoiceRepo.DeleteByBookingID(sessCtx, tenantID, id); err != nil {
			return apperrors.Internal("Failed to delete invoice", err)
		}
		if err := s.outboxRepo.DeleteByBookingKey(sessCtx, tenantID, id); err != nil {
			return apperrors.Internal("Failed to delete outbox events", err)
		}
		return nil
	})
	if err != nil {
		metrics.IncCommand("hard_delete", outcomeOf(err))
		return err
	}

	s.cfg.Log.Info("Booking hard-deleted", "id", id, "tenant_id", tenantID)
	metrics.IncCommand("hard_delete", "ok")
	return nil
}

func (s *bookingService) Availability(ctx context.Context, tenantID string, q *AvailabilityQuery) ([]scheduling.Window, error) {
	if q.Date == "" {
		return nil, apperrors.InvalidInput("date is required")
	}
	if q.DurationMin <= 0 {
		return nil, apperrors.InvalidInput("duration must be positive")
	}

	// Without a staff filter, every active booking for the date counts as
	// busy, so the returned windows are free for the whole team.
	var staffIDs []string
	if q.StaffID != "" {
		staffIDs = []string{q.StaffID}
	}

	active, err := s.repo.FindActiveByDate(ctx, tenantID, q.Date, staffIDs)
	if err != nil {
		return nil, apperrors.Internal("Failed to load active bookings", err)
	}

	var busy []scheduling.Busy
	for _, b := range active {
		for _, entry := range scheduling.BusyFromBooking(b) {
			if q.StaffID == "" || entry.StaffID == q.StaffID {
				busy = append(busy, entry)
			}
		}
	}

	hours := s.workdayWindow()
	from := hours.Start
	if q.From != "" {
		from = model.MinutesOfDay(q.From)
	}

	return s.checker.FreeWindows(q.DurationMin, from, busy, hours), nil
}

func (s *bookingService) GetInvoice(ctx context.Context, tenantID, bookingID string) (*model.Invoice, []model.LedgerEntry, error) {
	if _, err := s.GetByID(ctx, tenantID, bookingID); err != nil {
		return nil, nil, err
	}

	invoice, err := s.invoiceRepo.FindByBookingID(ctx, tenantID, bookingID)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrInvoiceNotFound) {
			return nil, nil, apperrors.NotFound("Invoice")
		}
		return nil, nil, apperrors.Internal("Failed to retrieve invoice", err)
	}

	entries, err := s.invoiceRepo.FindLedgerByInvoiceID(ctx, tenantID, invoice.ID)
	if err != nil {
		return nil, nil, apperrors.Internal("Failed to retrieve ledger entries", err)
	}

	return invoice, entries, nil
}

func (s *bookingService) ListInvoices(ctx context.Context, tenantID string, status model.InvoiceStatus, limit int, offset int64) ([]*model.Invoice, int64, error) {
	var count int64
	var invoices []*model.Invoice
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.invoiceRepo.CountByTenant(ctx, tenantID, status)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count invoices", "tenant_id", tenantID, "error", errCount)
			errCount = apperrors.Internal("Failed to count invoices", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		invoices, errFind = s.invoiceRepo.FindByTenant(ctx, tenantID, status, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list invoices", "tenant_id", tenantID, "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve invoices", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return invoices, count, nil
}

func (s *bookingService) MarkInvoicePaid(ctx context.Context, tenantID, bookingID, method string) (*model.Invoice, error) {
	booking, err := s.GetByID(ctx, tenantID, bookingID)
	if err != nil {
		return nil, err
	}

	var paid *model.Invoice
	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		invoice, entries, err := s.loadInvoiceState(sessCtx, tenantID, bookingID)
		if err != nil {
			return err
		}

		res, err := s.invoiceSync.MarkPaid(invoice, entries, method, time.Now().UTC())
		if err != nil {
			return err
		}
		if err := s.applySyncResult(sessCtx, tenantID, res); err != nil {
			return err
		}
		if res.Invoice != nil {
			paid = res.Invoice
		} else {
			paid = invoice
		}

		if res.InvoiceOp == lifecycle.InvoiceOpNone {
			return nil
		}
		payload, err := json.Marshal(model.BookingEventPayload{
			BookingID: booking.ID,
			TenantID:  tenantID,
			ClientID:  booking.ClientID,
			Status:    booking.Status,
			Date:      booking.Date,
			StartTime: booking.StartTime,
		})
		if err != nil {
			return apperrors.Internal("Failed to encode event payload", err)
		}
		return s.outboxRepo.Append(sessCtx, []model.OutboxEvent{{
			ID:        uuid.NewString(),
			TenantID:  tenantID,
			Kind:      model.OutboxNotification,
			EventType: model.EventInvoicePaid,
			Key:       booking.ID,
			Payload:   payload,
		}})
	})
	if err != nil {
		s.cfg.Log.Error("Failed to mark invoice paid", "booking_id", bookingID, "error", err)
		metrics.IncCommand("mark_paid", outcomeOf(err))
		return nil, err
	}

	s.cfg.Log.Info("Invoice marked paid", "booking_id", bookingID, "invoice_id", paid.ID)
	metrics.IncCommand("mark_paid", "ok")
	return paid, nil
}

// --- Helpers ---

func (s *bookingService) applyDefaults(b *model.Booking) {
	if b.Channel == "" {
		b.Channel = model.ChannelSelfService
	}
	if b.Status == "" {
		if b.Channel == model.ChannelStaff {
			b.Status = model.StatusPending
		} else {
			b.Status = model.StatusRequested
		}
	}
	if b.DurationMin == 0 {
		b.DurationMin = b.TotalDurationMin()
	}
	for i := range b.Lines {
		if b.Lines[i].Quantity == 0 {
			b.Lines[i].Quantity = 1
		}
	}
}

func (s *bookingService) validate(booking *model.Booking) error {
	if err := s.validator.Validate(booking); err != nil {
		s.cfg.Log.Warn("Booking validation failed", "error", err)
		return apperrors.Validation("Booking validation failed", map[string]any{"error": err.Error()})
	}
	return s.checkGridAlignment(booking)
}

// checkGridAlignment requires every claimed window to start on the slot
// quantum grid. Claims are keyed per quantum, so an off-grid start would
// share a quantum with a disjoint neighbor and read as a conflict.
func (s *bookingService) checkGridAlignment(b *model.Booking) error {
	step := s.cfg.SlotStepMin
	if model.MinutesOfDay(b.StartTime)%step != 0 {
		return apperrors.Validation(
			fmt.Sprintf("start time must fall on the %d-minute booking grid", step),
			map[string]any{"start_time": b.StartTime},
		)
	}
	if b.PricingMode == model.PricingHourly {
		for i, line := range b.Lines {
			if line.StartTime != "" && model.MinutesOfDay(line.StartTime)%step != 0 {
				return apperrors.Validation(
					fmt.Sprintf("line start time must fall on the %d-minute booking grid", step),
					map[string]any{"line": i, "start_time": line.StartTime},
				)
			}
		}
	}
	return nil
}

// price recomputes the monetary totals from the lines. The incoming
// Totals.TravelFee is the only caller-supplied monetary field; everything
// else is derived.
func (s *bookingService) price(b *model.Booking) error {
	res, err := pricing.Compute(pricing.Input{
		Lines:          b.Lines,
		Mode:           b.PricingMode,
		Location:       b.Location,
		TravelFee:      b.Totals.TravelFee,
		Discount:       b.Discount,
		TaxRatePercent: s.cfg.TaxRatePercent,
	})
	if err != nil {
		return err
	}

	for i := range b.Lines {
		b.Lines[i].LineTotal = res.LineTotals[i]
	}
	b.Totals = model.Totals{
		AmountBeforeTax: res.AmountBeforeTax,
		TaxAmount:       res.TaxAmount,
		AmountAfterTax:  res.AmountAfterTax,
		DiscountAmount:  res.DiscountAmount,
		TravelFee:       res.TravelFee,
	}

	for _, w := range res.Warnings {
		s.cfg.Log.Warn("Pricing adjustment", "booking_id", b.ID, "warning", w)
	}
	return nil
}

func (s *bookingService) applyReschedule(b *model.Booking, req *RescheduleRequest) *model.Booking {
	moved := *b
	moved.Lines = append([]model.BookingLine(nil), b.Lines...)
	moved.Staff = append([]model.StaffAssignment(nil), b.Staff...)

	delta := model.MinutesOfDay(req.StartTime) - model.MinutesOfDay(b.StartTime)
	for i := range moved.Lines {
		ln := &moved.Lines[i]
		if ln.StartTime != "" && ln.EndTime != "" {
			ln.StartTime = model.FormatMinutes(model.MinutesOfDay(ln.StartTime) + delta)
			ln.EndTime = model.FormatMinutes(model.MinutesOfDay(ln.EndTime) + delta)
		}
	}

	moved.Date = req.Date
	moved.StartTime = req.StartTime
	moved.DurationMin = req.DurationMin
	return &moved
}

// checkRequests expands the proposed booking into per-resource conflict
// checks: per line sub-window in hourly mode, the whole window otherwise.
func checkRequests(b *model.Booking, excludeID string) []scheduling.CheckRequest {
	whole := scheduling.Window{
		Start: model.MinutesOfDay(b.StartTime),
		End:   model.MinutesOfDay(b.StartTime) + b.DurationMin,
	}

	var out []scheduling.CheckRequest
	if b.PricingMode == model.PricingHourly {
		for _, ln := range b.Lines {
			if ln.StaffID == "" || ln.StartTime == "" || ln.EndTime == "" {
				continue
			}
			start := model.MinutesOfDay(ln.StartTime)
			out = append(out, scheduling.CheckRequest{
				StaffID:          ln.StaffID,
				Window:           scheduling.Window{Start: start, End: start + model.SpanMinutes(ln.StartTime, ln.EndTime)},
				ExcludeBookingID: excludeID,
			})
		}
		if len(out) > 0 {
			return out
		}
	}

	for _, sa := range b.Staff {
		out = append(out, scheduling.CheckRequest{
			StaffID:          sa.StaffID,
			Window:           whole,
			ExcludeBookingID: excludeID,
		})
	}
	return out
}

// verifySlotFree re-reads the active bookings for the date inside the
// transaction and rejects the command when any assignment overlaps one of
// them. The conflict error carries alternative free windows.
func (s *bookingService) verifySlotFree(ctx context.Context, b *model.Booking, excludeID string) error {
	requests := checkRequests(b, excludeID)
	if len(requests) == 0 {
		return nil
	}

	active, err := s.repo.FindActiveByDate(ctx, b.TenantID, b.Date, staffIDsOf(b))
	if err != nil {
		return apperrors.Internal("Failed to check existing bookings", err)
	}

	var busy []scheduling.Busy
	for _, other := range active {
		busy = append(busy, scheduling.BusyFromBooking(other)...)
	}

	hours := s.workdayWindow()
	for _, req := range requests {
		result := s.checker.Check(req, busy, hours)
		if result.Conflict {
			metrics.IncConflict()
			suggestions := make([]map[string]string, 0, len(result.Suggestions))
			for _, w := range result.Suggestions {
				suggestions = append(suggestions, map[string]string{
					"start_time": w.StartTime(),
					"end_time":   w.EndTime(),
				})
			}
			return apperrors.ConflictWithSuggestions(
				fmt.Sprintf("Staff member %s is already booked from %s to %s", req.StaffID, req.Window.StartTime(), req.Window.EndTime()),
				suggestions,
			)
		}
	}
	return nil
}

// insertClaims writes one claim per quantum each assignment occupies. The
// quantum grid guarantees any overlapping active booking shares at least one
// claimed quantum, so the unique index rejects it even if the advisory lock
// was bypassed.
func (s *bookingService) insertClaims(ctx context.Context, b *model.Booking) error {
	step := s.cfg.SlotStepMin
	var claims []model.SlotClaim
	for _, req := range checkRequests(b, "") {
		start := req.Window.Start - (req.Window.Start % step)
		for m := start; m < req.Window.End; m += step {
			claims = append(claims, model.SlotClaim{
				ID:        fmt.Sprintf("%s_%s_%s_%d", b.TenantID, req.StaffID, b.Date, m),
				TenantID:  b.TenantID,
				StaffID:   req.StaffID,
				Date:      b.Date,
				SlotMin:   m,
				BookingID: b.ID,
			})
		}
	}

	if err := s.lockRepo.InsertClaims(ctx, claims); err != nil {
		if errors.Is(err, bookingserrors.ErrSlotTaken) {
			metrics.IncConflict()
			return apperrors.Conflict("Another booking already claims part of this time window")
		}
		return apperrors.Internal("Failed to claim slots", err)
	}
	return nil
}

func (s *bookingService) guardCancelUnpaid(ctx context.Context, b *model.Booking) error {
	invoice, err := s.invoiceRepo.FindByBookingID(ctx, b.TenantID, b.ID)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrInvoiceNotFound) {
			return nil
		}
		return apperrors.Internal("Failed to check invoice state", err)
	}
	if invoice.Status == model.InvoicePaid {
		return apperrors.StateTransition(
			"cannot cancel a booking whose invoice is paid; revert the completion first",
			apperrors.ReasonInvoicePaid,
		)
	}
	return nil
}

func (s *bookingService) loadInvoiceState(ctx context.Context, tenantID, bookingID string) (*model.Invoice, []model.LedgerEntry, error) {
	invoice, err := s.invoiceRepo.FindByBookingID(ctx, tenantID, bookingID)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrInvoiceNotFound) {
			return nil, nil, nil
		}
		return nil, nil, apperrors.Internal("Failed to load invoice", err)
	}

	entries, err := s.invoiceRepo.FindLedgerByInvoiceID(ctx, tenantID, invoice.ID)
	if err != nil {
		return nil, nil, apperrors.Internal("Failed to load ledger entries", err)
	}
	return invoice, entries, nil
}

func (s *bookingService) applyInvoiceEffect(ctx context.Context, b *model.Booking, effect lifecycle.Effect) error {
	invoice, entries, err := s.loadInvoiceState(ctx, b.TenantID, b.ID)
	if err != nil {
		return err
	}

	res, err := s.invoiceSync.Sync(effect, b, invoice, entries, time.Now().UTC())
	if err != nil {
		return err
	}
	return s.applySyncResult(ctx, b.TenantID, res)
}

func (s *bookingService) applySyncResult(ctx context.Context, tenantID string, res *lifecycle.SyncResult) error {
	switch res.InvoiceOp {
	case lifecycle.InvoiceOpCreate:
		res.Invoice.ID = uuid.NewString()
		res.Invoice.Number = nextInvoiceNumber()
		if err := s.invoiceRepo.Create(ctx, res.Invoice); err != nil {
			return apperrors.Internal("Failed to create invoice", err)
		}
		for i := range res.LedgerCreates {
			res.LedgerCreates[i].InvoiceID = res.Invoice.ID
		}
	case lifecycle.InvoiceOpUpdate:
		if err := s.invoiceRepo.Update(ctx, res.Invoice); err != nil {
			return apperrors.Internal("Failed to update invoice", err)
		}
	case lifecycle.InvoiceOpDelete:
		if err := s.invoiceRepo.Delete(ctx, tenantID, res.Invoice.ID); err != nil {
			return apperrors.Internal("Failed to delete invoice", err)
		}
	}

	for i := range res.LedgerCreates {
		res.LedgerCreates[i].ID = uuid.NewString()
	}
	if err := s.invoiceRepo.CreateLedgerEntries(ctx, res.LedgerCreates); err != nil {
		return apperrors.Internal("Failed to create ledger entries", err)
	}
	if err := s.invoiceRepo.DeleteLedgerEntries(ctx, tenantID, res.LedgerDeleteIDs); err != nil {
		return apperrors.Internal("Failed to delete ledger entries", err)
	}
	return nil
}

func (s *bookingService) appendBookingEvents(ctx context.Context, b *model.Booking, eventType, reason string, notify bool) error {
	payload, err := json.Marshal(model.BookingEventPayload{
		BookingID: b.ID,
		TenantID:  b.TenantID,
		ClientID:  b.ClientID,
		Status:    b.Status,
		Date:      b.Date,
		StartTime: b.StartTime,
		Reason:    reason,
	})
	if err != nil {
		return apperrors.Internal("Failed to encode event payload", err)
	}

	events := []model.OutboxEvent{{
		ID:        uuid.NewString(),
		TenantID:  b.TenantID,
		Kind:      model.OutboxWorkflow,
		EventType: eventType,
		Key:       b.ID,
		Payload:   payload,
	}}
	if notify {
		events = append(events, model.OutboxEvent{
			ID:        uuid.NewString(),
			TenantID:  b.TenantID,
			Kind:      model.OutboxNotification,
			EventType: eventType,
			Key:       b.ID,
			Payload:   payload,
		})
	}

	if err := s.outboxRepo.Append(ctx, events); err != nil {
		return apperrors.Internal("Failed to append outbox events", err)
	}
	return nil
}

func (s *bookingService) acquireSlotLocks(ctx context.Context, b *model.Booking) ([]string, error) {
	var acquired []string
	for _, staffID := range staffIDsOf(b) {
		lockID := fmt.Sprintf("slot_lock_%s_%s_%s", b.TenantID, staffID, b.Date)
		lock := &model.SlotLock{
			ID:        lockID,
			ExpiresAt: time.Now().Add(s.cfg.SlotLockTTL),
		}

		if err := s.lockRepo.Acquire(ctx, lock); err != nil {
			s.releaseSlotLocks(ctx, acquired)
			if mongo.IsDuplicateKeyError(err) {
				return nil, apperrors.Conflict("This time slot is currently being booked by another request. Please try again.")
			}
			return nil, apperrors.Internal("Failed to acquire slot lock", err)
		}
		acquired = append(acquired, lockID)
	}
	return acquired, nil
}

func (s *bookingService) releaseSlotLocks(ctx context.Context, lockIDs []string) {
	for _, lockID := range lockIDs {
		if err := s.lockRepo.Release(ctx, lockID); err != nil {
			s.cfg.Log.Warn("Failed to release slot lock", "lock_id", lockID, "error", err)
		}
	}
}

func (s *bookingService) workdayWindow() scheduling.Window {
	return scheduling.Window{
		Start: model.MinutesOfDay(s.cfg.WorkdayStart),
		End:   model.MinutesOfDay(s.cfg.WorkdayEnd),
	}
}

func staffIDsOf(b *model.Booking) []string {
	seen := map[string]bool{}
	var ids []string
	for _, sa := range b.Staff {
		if !seen[sa.StaffID] {
			seen[sa.StaffID] = true
			ids = append(ids, sa.StaffID)
		}
	}
	for _, ln := range b.Lines {
		if ln.StaffID != "" && !seen[ln.StaffID] {
			seen[ln.StaffID] = true
			ids = append(ids, ln.StaffID)
		}
	}
	return ids
}

func nextInvoiceNumber() string {
	return "INV-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
}

func hasLifecycleEffect(effects []lifecycle.Effect, want lifecycle.Effect) bool {
	for _, e := range effects {
		if e == want {
			return true
		}
	}
	return false
}

func outcomeOf(err error) string {
	if appErr, ok := apperrors.AsAppError(err); ok {
		switch appErr.Code {
		case apperrors.CodeConflict:
			return "conflict"
		case apperrors.CodeValidation, apperrors.CodeInvalidInput, apperrors.CodeStateTransition:
			return "rejected"
		}
	}
	return "error"
}
