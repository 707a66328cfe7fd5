package model

import (
	"time"
)

type BookingStatus string

const (
	StatusRequested      BookingStatus = "requested"
	StatusPending        BookingStatus = "pending"
	StatusPendingPayment BookingStatus = "pending_payment"
	StatusConfirmed      BookingStatus = "confirmed"
	StatusCancelled      BookingStatus = "cancelled"
	StatusCompleted      BookingStatus = "completed"
	StatusNoShow         BookingStatus = "no_show"
)

// IsActive reports whether the booking claims its time window. Only active
// bookings participate in slot conflict checks.
func (s BookingStatus) IsActive() bool {
	return s == StatusConfirmed || s == StatusCompleted
}

// IsTerminal reports whether the lifecycle has ended. Terminal bookings only
// accept the exceptional hard-delete flow.
func (s BookingStatus) IsTerminal() bool {
	return s == StatusCancelled || s == StatusNoShow
}

type LocationMode string

const (
	LocationOnSite          LocationMode = "on_site"
	LocationCustomerAddress LocationMode = "customer_address"
)

type PricingMode string

const (
	PricingFixed  PricingMode = "fixed"
	PricingHourly PricingMode = "hourly"
)

type DiscountType string

const (
	DiscountNone    DiscountType = "none"
	DiscountPercent DiscountType = "percent"
	DiscountFixed   DiscountType = "fixed"
)

type CreationChannel string

const (
	ChannelSelfService CreationChannel = "self_service"
	ChannelStaff       CreationChannel = "staff"
)

const (
	StaffRolePrimary   = "primary"
	StaffRoleSecondary = "secondary"
)

// Discount describes the discount applied to a booking. Value is a whole
// percentage for percent discounts and a minor-unit amount for fixed ones.
type Discount struct {
	Type   DiscountType `json:"type" bson:"type" validate:"required,oneof=none percent fixed"`
	Value  int64        `json:"value" bson:"value" validate:"min=0"`
	Reason string       `json:"reason,omitempty" bson:"reason,omitempty" validate:"omitempty,max=200"`
}

// BookingLine is one service within a booking. In hourly mode StartTime and
// EndTime carry the explicit sub-window the assigned staff member works;
// an EndTime before StartTime wraps past midnight.
type BookingLine struct {
	ServiceID   string `json:"service_id" bson:"service_id" validate:"required"`
	ServiceName string `json:"service_name" bson:"service_name" validate:"required,min=1,max=150"`
	Quantity    int    `json:"quantity" bson:"quantity" validate:"required,min=1,max=100"`
	DurationMin int    `json:"duration_min" bson:"duration_min" validate:"min=0,max=1440"`
	UnitPrice   int64  `json:"unit_price" bson:"unit_price" validate:"min=0"`
	LineTotal   int64  `json:"line_total" bson:"line_total"`
	StaffID     string `json:"staff_id,omitempty" bson:"staff_id,omitempty"`
	StartTime   string `json:"start_time,omitempty" bson:"start_time,omitempty" validate:"omitempty,time_of_day"`
	EndTime     string `json:"end_time,omitempty" bson:"end_time,omitempty" validate:"omitempty,time_of_day"`
}

// StaffAssignment links a booking to a staff resource. The role tag is
// display-only; every assignment is checked for slot conflicts.
type StaffAssignment struct {
	StaffID string `json:"staff_id" bson:"staff_id" validate:"required"`
	Role    string `json:"role" bson:"role" validate:"required,oneof=primary secondary"`
}

// Totals holds the computed monetary breakdown in integer minor units.
type Totals struct {
	AmountBeforeTax int64 `json:"amount_before_tax" bson:"amount_before_tax"`
	TaxAmount       int64 `json:"tax_amount" bson:"tax_amount"`
	AmountAfterTax  int64 `json:"amount_after_tax" bson:"amount_after_tax"`
	DiscountAmount  int64 `json:"discount_amount" bson:"discount_amount"`
	TravelFee       int64 `json:"travel_fee" bson:"travel_fee"`
}

type Booking struct {
	ID          string            `json:"id,omitempty" bson:"_id,omitempty"`
	TenantID    string            `json:"tenant_id" bson:"tenant_id" validate:"required"`
	ClientID    string            `json:"client_id" bson:"client_id" validate:"required"`
	Date        string            `json:"date" bson:"date" validate:"required,datetime=2006-01-02"`
	StartTime   string            `json:"start_time" bson:"start_time" validate:"required,time_of_day"`
	DurationMin int               `json:"duration_min" bson:"duration_min" validate:"required,min=5,max=1440"`
	Status      BookingStatus     `json:"status" bson:"status" validate:"required,oneof=requested pending pending_payment confirmed cancelled completed no_show"`
	PricingMode PricingMode       `json:"pricing_mode" bson:"pricing_mode" validate:"required,oneof=fixed hourly"`
	Location    LocationMode      `json:"location" bson:"location" validate:"required,oneof=on_site customer_address"`
	Address     string            `json:"address,omitempty" bson:"address,omitempty" validate:"omitempty,max=300"`
	City        string            `json:"city,omitempty" bson:"city,omitempty" validate:"omitempty,max=80"`
	PostalCode  string            `json:"postal_code,omitempty" bson:"postal_code,omitempty" validate:"omitempty,max=20"`
	Lines       []BookingLine     `json:"lines" bson:"lines" validate:"required,min=1,max=50,dive"`
	Staff       []StaffAssignment `json:"staff" bson:"staff" validate:"omitempty,max=20,dive"`
	Totals      Totals            `json:"totals" bson:"totals"`
	Discount    *Discount         `json:"discount,omitempty" bson:"discount,omitempty"`
	Notes       string            `json:"notes,omitempty" bson:"notes,omitempty" validate:"omitempty,max=2000"`
	Channel     CreationChannel   `json:"channel" bson:"channel" validate:"required,oneof=self_service staff"`
	CreatedAt   time.Time         `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at" bson:"updated_at"`
}

// EndTimeMin returns the booking window end in minutes from midnight.
func (b *Booking) EndTimeMin() int {
	return MinutesOfDay(b.StartTime) + b.DurationMin
}

// TotalDurationMin derives the booking duration from its lines: the longest
// line in fixed mode, the covering span of sub-windows in hourly mode.
func (b *Booking) TotalDurationMin() int {
	total := 0
	for _, ln := range b.Lines {
		d := ln.DurationMin
		if b.PricingMode == PricingHourly && ln.StartTime != "" && ln.EndTime != "" {
			d = SpanMinutes(ln.StartTime, ln.EndTime)
		}
		if d > total {
			total = d
		}
	}
	return total
}

// MinutesOfDay converts an "HH:MM" time-of-day string to minutes from
// midnight. Malformed input returns 0; the validator rejects it upstream.
func MinutesOfDay(s string) int {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0
	}
	return t.Hour()*60 + t.Minute()
}

// SpanMinutes returns the length of the [start, end) window, wrapping past
// midnight when end is not after start.
func SpanMinutes(start, end string) int {
	s := MinutesOfDay(start)
	e := MinutesOfDay(end)
	if e <= s {
		e += 24 * 60
	}
	return e - s
}

// FormatMinutes renders minutes-from-midnight back to "HH:MM", normalizing
// overnight values into the next day.
func FormatMinutes(m int) string {
	m = ((m % (24 * 60)) + 24*60) % (24 * 60)
	return time.Date(0, 1, 1, m/60, m%60, 0, 0, time.UTC).Format("15:04")
}
