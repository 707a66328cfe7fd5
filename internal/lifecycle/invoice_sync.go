package lifecycle

import (
	"fmt"
	"time"

	apperrors "atenda/pkg/errors"
	"atenda/pkg/model"
)

// InvoiceOp tells the caller what to do with the invoice document itself.
type InvoiceOp string

const (
	InvoiceOpNone   InvoiceOp = "none"
	InvoiceOpCreate InvoiceOp = "create"
	InvoiceOpUpdate InvoiceOp = "update"
	InvoiceOpDelete InvoiceOp = "delete"
)

// SyncResult describes the financial writes a transition requires. Documents
// returned for create carry no ID or number; the caller assigns both before
// persisting, and applies everything inside the transaction that also moves
// the booking.
type SyncResult struct {
	InvoiceOp       InvoiceOp
	Invoice         *model.Invoice
	LedgerCreates   []model.LedgerEntry
	LedgerDeleteIDs []string
}

// Synchronizer derives invoice and ledger changes from booking transitions.
// It is pure and idempotent: applying the same effect to the same state twice
// yields no second write.
type Synchronizer struct {
	DueDays int
}

func NewSynchronizer(dueDays int) *Synchronizer {
	return &Synchronizer{DueDays: dueDays}
}

// Sync resolves one invoice effect against the current invoice and its ledger
// entries. entries must be the existing entries of current, or empty when
// current is nil.
func (s *Synchronizer) Sync(effect Effect, b *model.Booking, current *model.Invoice, entries []model.LedgerEntry, now time.Time) (*SyncResult, error) {
	switch effect {
	case EffectInvoiceGenerate:
		return s.generate(b, current, entries, now), nil
	case EffectInvoiceRevert:
		return s.revert(current, entries), nil
	case EffectInvoiceCancel:
		return s.cancel(current), nil
	default:
		return nil, apperrors.Internal(fmt.Sprintf("unknown invoice effect %q", effect), nil)
	}
}

func (s *Synchronizer) generate(b *model.Booking, current *model.Invoice, entries []model.LedgerEntry, now time.Time) *SyncResult {
	res := &SyncResult{InvoiceOp: InvoiceOpNone}

	if current == nil {
		inv := &model.Invoice{
			TenantID:        b.TenantID,
			BookingID:       b.ID,
			Status:          model.InvoiceGenerated,
			AmountBeforeTax: b.Totals.AmountBeforeTax,
			TaxAmount:       b.Totals.TaxAmount,
			AmountAfterTax:  b.Totals.AmountAfterTax,
			IssuedAt:        now,
			DueDate:         now.AddDate(0, 0, s.DueDays),
		}
		res.InvoiceOp = InvoiceOpCreate
		res.Invoice = inv
		res.LedgerCreates = append(res.LedgerCreates, model.LedgerEntry{
			TenantID:  b.TenantID,
			BookingID: b.ID,
			Kind:      model.LedgerReceivable,
			Amount:    b.Totals.AmountAfterTax,
			PostedAt:  now,
		})
		return res
	}

	if current.Status == model.InvoiceDraft || current.Status == model.InvoiceCancelled {
		upd := *current
		upd.Status = model.InvoiceGenerated
		upd.AmountBeforeTax = b.Totals.AmountBeforeTax
		upd.TaxAmount = b.Totals.TaxAmount
		upd.AmountAfterTax = b.Totals.AmountAfterTax
		upd.IssuedAt = now
		upd.DueDate = now.AddDate(0, 0, s.DueDays)
		res.InvoiceOp = InvoiceOpUpdate
		res.Invoice = &upd
	}

	if !hasKind(entries, model.LedgerReceivable) {
		res.LedgerCreates = append(res.LedgerCreates, model.LedgerEntry{
			TenantID:  current.TenantID,
			InvoiceID: current.ID,
			BookingID: current.BookingID,
			Kind:      model.LedgerReceivable,
			Amount:    b.Totals.AmountAfterTax,
			PostedAt:  now,
		})
	}
	return res
}

// revert undoes the financial side of completion. A paid invoice returns to
// generated with its payment fields cleared and its settlements removed; the
// receivable stays because the service was still rendered until the booking
// itself is cancelled.
func (s *Synchronizer) revert(current *model.Invoice, entries []model.LedgerEntry) *SyncResult {
	res := &SyncResult{InvoiceOp: InvoiceOpNone}
	if current == nil {
		return res
	}

	if current.Status == model.InvoicePaid {
		upd := *current
		upd.Status = model.InvoiceGenerated
		upd.PaidAt = nil
		upd.PaymentMethod = ""
		res.InvoiceOp = InvoiceOpUpdate
		res.Invoice = &upd
	}

	for _, e := range entries {
		if e.Kind == model.LedgerSettlement {
			res.LedgerDeleteIDs = append(res.LedgerDeleteIDs, e.ID)
		}
	}
	return res
}

func (s *Synchronizer) cancel(current *model.Invoice) *SyncResult {
	res := &SyncResult{InvoiceOp: InvoiceOpNone}
	if current == nil {
		return res
	}

	switch current.Status {
	case model.InvoiceDraft:
		// Drafts carry no postings, so they can simply disappear.
		res.InvoiceOp = InvoiceOpDelete
		res.Invoice = current
	case model.InvoiceGenerated:
		upd := *current
		upd.Status = model.InvoiceCancelled
		res.InvoiceOp = InvoiceOpUpdate
		res.Invoice = &upd
	}
	// Paid and already-cancelled invoices are left untouched; cancelling a
	// booking whose invoice was paid is blocked upstream.
	return res
}

// MarkPaid settles a generated invoice. It rejects terminal invoices and is a
// no-op when the invoice is already paid.
func (s *Synchronizer) MarkPaid(current *model.Invoice, entries []model.LedgerEntry, method string, now time.Time) (*SyncResult, error) {
	if current == nil {
		return nil, apperrors.NotFound("invoice")
	}

	res := &SyncResult{InvoiceOp: InvoiceOpNone}
	switch current.Status {
	case model.InvoicePaid:
		return res, nil
	case model.InvoiceGenerated:
	default:
		return nil, apperrors.StateTransition(
			fmt.Sprintf("invoice in status %q cannot be paid", current.Status),
			apperrors.ReasonIllegalTransition,
		)
	}

	upd := *current
	upd.Status = model.InvoicePaid
	upd.PaidAt = &now
	upd.PaymentMethod = method
	res.InvoiceOp = InvoiceOpUpdate
	res.Invoice = &upd

	if !hasKind(entries, model.LedgerSettlement) {
		res.LedgerCreates = append(res.LedgerCreates, model.LedgerEntry{
			TenantID:  current.TenantID,
			InvoiceID: current.ID,
			BookingID: current.BookingID,
			Kind:      model.LedgerSettlement,
			Amount:    current.AmountAfterTax,
			PostedAt:  now,
		})
	}
	return res, nil
}

func hasKind(entries []model.LedgerEntry, kind model.LedgerKind) bool {
	for _, e := range entries {
		if e.Kind == kind {
			return true
		}
	}
	return false
}
