package model

import "time"

type InvoiceStatus string

const (
	InvoiceDraft     InvoiceStatus = "draft"
	InvoiceGenerated InvoiceStatus = "generated"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceCancelled InvoiceStatus = "cancelled"
)

// Invoice is derived from exactly one booking. Its lifecycle is driven
// entirely by booking status transitions; it has no state authority of its own.
type Invoice struct {
	ID              string        `json:"id,omitempty" bson:"_id,omitempty"`
	TenantID        string        `json:"tenant_id" bson:"tenant_id"`
	BookingID       string        `json:"booking_id" bson:"booking_id"`
	Number          string        `json:"number" bson:"number"`
	Status          InvoiceStatus `json:"status" bson:"status"`
	AmountBeforeTax int64         `json:"amount_before_tax" bson:"amount_before_tax"`
	TaxAmount       int64         `json:"tax_amount" bson:"tax_amount"`
	AmountAfterTax  int64         `json:"amount_after_tax" bson:"amount_after_tax"`
	IssuedAt        time.Time     `json:"issued_at" bson:"issued_at"`
	DueDate         time.Time     `json:"due_date" bson:"due_date"`
	PaidAt          *time.Time    `json:"paid_at,omitempty" bson:"paid_at,omitempty"`
	PaymentMethod   string        `json:"payment_method,omitempty" bson:"payment_method,omitempty"`
	CreatedAt       time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at" bson:"updated_at"`
}

type LedgerKind string

const (
	LedgerReceivable LedgerKind = "receivable"
	LedgerSettlement LedgerKind = "settlement"
)

// LedgerEntry is an accounting posting tied to an invoice: a receivable on
// generation, a settlement on payment. Entries are created and deleted only
// as a consequence of invoice lifecycle changes.
type LedgerEntry struct {
	ID        string     `json:"id,omitempty" bson:"_id,omitempty"`
	TenantID  string     `json:"tenant_id" bson:"tenant_id"`
	InvoiceID string     `json:"invoice_id" bson:"invoice_id"`
	BookingID string     `json:"booking_id" bson:"booking_id"`
	Kind      LedgerKind `json:"kind" bson:"kind"`
	Amount    int64      `json:"amount" bson:"amount"`
	PostedAt  time.Time  `json:"posted_at" bson:"posted_at"`
}
