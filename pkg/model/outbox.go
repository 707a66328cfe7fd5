package model

import "time"

type OutboxStatus string

const (
	OutboxPending OutboxStatus = "pending"
	OutboxSent    OutboxStatus = "sent"
	OutboxDead    OutboxStatus = "dead"
)

type OutboxKind string

const (
	OutboxNotification OutboxKind = "notification"
	OutboxWorkflow     OutboxKind = "workflow"
)

// Event types appended to the outbox by booking commands.
const (
	EventBookingCreated     = "booking_created"
	EventBookingConfirmed   = "booking_confirmed"
	EventBookingRescheduled = "booking_rescheduled"
	EventBookingCancelled   = "booking_cancelled"
	EventBookingCompleted   = "booking_completed"
	EventBookingNoShow      = "booking_no_show"
	EventBookingReverted    = "booking_reverted"
	EventInvoicePaid        = "invoice_paid"
)

// OutboxEvent is a pending best-effort side effect. Rows are appended in the
// same transaction as the state change that caused them and drained
// asynchronously by the dispatcher.
type OutboxEvent struct {
	ID            string       `json:"id,omitempty" bson:"_id,omitempty"`
	TenantID      string       `json:"tenant_id" bson:"tenant_id"`
	Kind          OutboxKind   `json:"kind" bson:"kind"`
	EventType     string       `json:"event_type" bson:"event_type"`
	Key           string       `json:"key" bson:"key"`
	Payload       []byte       `json:"payload" bson:"payload"`
	Status        OutboxStatus `json:"status" bson:"status"`
	Attempts      int          `json:"attempts" bson:"attempts"`
	NextAttemptAt time.Time    `json:"next_attempt_at" bson:"next_attempt_at"`
	LastError     string       `json:"last_error,omitempty" bson:"last_error,omitempty"`
	CreatedAt     time.Time    `json:"created_at" bson:"created_at"`
	SentAt        *time.Time   `json:"sent_at,omitempty" bson:"sent_at,omitempty"`
}

// BookingEventPayload is the booking snapshot serialized into outbox events.
type BookingEventPayload struct {
	BookingID string        `json:"booking_id"`
	TenantID  string        `json:"tenant_id"`
	ClientID  string        `json:"client_id"`
	Status    BookingStatus `json:"status"`
	Date      string        `json:"date"`
	StartTime string        `json:"start_time"`
	Reason    string        `json:"reason,omitempty"`
}
