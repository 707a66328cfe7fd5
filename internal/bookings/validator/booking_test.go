package validator

import (
	"io"
	"strings"
	"testing"

	"atenda/pkg/logger"
	"atenda/pkg/model"
)

func newTestValidator() *BookingValidator {
	return NewBookingValidator(logger.New(logger.Config{Output: io.Discard}))
}

func validBooking() *model.Booking {
	return &model.Booking{
		TenantID:    "ten-1",
		ClientID:    "cli-1",
		Date:        "2026-03-10",
		StartTime:   "10:00",
		DurationMin: 60,
		Status:      model.StatusRequested,
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

func TestValidate_ValidBooking(t *testing.T) {
	if err := newTestValidator().Validate(validBooking()); err != nil {
		t.Fatalf("Validate() error = %v, want nil", err)
	}
}

func TestValidate_RequiredFields(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		name   string
		mutate func(b *model.Booking)
		field  string
	}{
		{"missing tenant", func(b *model.Booking) { b.TenantID = "" }, "TenantID"},
		{"missing client", func(b *model.Booking) { b.ClientID = "" }, "ClientID"},
		{"bad date", func(b *model.Booking) { b.Date = "10/03/2026" }, "Date"},
		{"bad start time", func(b *model.Booking) { b.StartTime = "25:00" }, "StartTime"},
		{"bad status", func(b *model.Booking) { b.Status = "archived" }, "Status"},
		{"no lines", func(b *model.Booking) { b.Lines = nil }, "Lines"},
		{"zero duration", func(b *model.Booking) { b.DurationMin = 0 }, "DurationMin"},
		{"bad channel", func(b *model.Booking) { b.Channel = "api" }, "Channel"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := validBooking()
			tt.mutate(b)
			err := v.Validate(b)
			if err == nil {
				t.Fatal("Validate() error = nil, want validation error")
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error %q does not mention field %s", err.Error(), tt.field)
			}
		})
	}
}

func TestValidate_CustomerAddressRequiresAddress(t *testing.T) {
	b := validBooking()
	b.Location = model.LocationCustomerAddress
	b.Address = ""

	err := newTestValidator().Validate(b)
	if err == nil {
		t.Fatal("Validate() error = nil, want address error")
	}
	if !strings.Contains(err.Error(), "Address") {
		t.Errorf("error %q does not mention Address", err.Error())
	}

	b.Address = "12 Main St"
	if err := newTestValidator().Validate(b); err != nil {
		t.Errorf("Validate() with address error = %v, want nil", err)
	}
}

func TestValidate_PercentDiscountCapped(t *testing.T) {
	b := validBooking()
	b.Discount = &model.Discount{Type: model.DiscountPercent, Value: 150}

	if err := newTestValidator().Validate(b); err == nil {
		t.Fatal("Validate() error = nil, want discount error")
	}
}

func TestValidate_HourlyLinesNeedExplicitWindows(t *testing.T) {
	b := validBooking()
	b.PricingMode = model.PricingHourly
	b.Lines[0].StartTime = ""
	b.Lines[0].EndTime = ""

	err := newTestValidator().Validate(b)
	if err == nil {
		t.Fatal("Validate() error = nil, want hourly window error")
	}
	if !strings.Contains(err.Error(), "explicit start_time and end_time") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidate_HourlyLineOutsideBookingWindow(t *testing.T) {
	b := validBooking()
	b.PricingMode = model.PricingHourly
	b.Lines[0].StartTime = "09:30"
	b.Lines[0].EndTime = "10:30"

	err := newTestValidator().Validate(b)
	if err == nil {
		t.Fatal("Validate() error = nil, want window error")
	}
	if !strings.Contains(err.Error(), "outside the booking window") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateReschedule(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		name     string
		date     string
		start    string
		duration int
		wantErr  bool
	}{
		{"valid", "2026-03-10", "14:00", 60, false},
		{"bad date", "tomorrow", "14:00", 60, true},
		{"bad time", "2026-03-10", "9am", 60, true},
		{"duration too short", "2026-03-10", "14:00", 0, true},
		{"duration too long", "2026-03-10", "14:00", 2000, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateReschedule(tt.date, tt.start, tt.duration)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateReschedule() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
