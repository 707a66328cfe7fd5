package model

import "time"

// SlotLock is an advisory lock that serializes booking commands per
// (tenant, resource, date) across the check-then-write sequence. A duplicate
// key on insert means another command holds the slot.
type SlotLock struct {
	ID        string    `bson:"_id" json:"id"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// SlotClaim is the storage-level overlap exclusion: one document per
// quarter-hour quantum an active booking occupies for a resource. The unique
// _id rejects a second active booking over the same quantum even when the
// advisory lock is bypassed.
type SlotClaim struct {
	ID        string    `bson:"_id" json:"id"`
	TenantID  string    `bson:"tenant_id" json:"tenant_id"`
	StaffID   string    `bson:"staff_id" json:"staff_id"`
	Date      string    `bson:"date" json:"date"`
	SlotMin   int       `bson:"slot_min" json:"slot_min"`
	BookingID string    `bson:"booking_id" json:"booking_id"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
