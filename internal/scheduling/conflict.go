package scheduling

import (
	"sort"

	"atenda/pkg/model"
)

// Window is a half-open [Start, End) interval in minutes from midnight.
// Overnight windows extend past 1440 instead of wrapping.
type Window struct {
	Start int `json:"start_min"`
	End   int `json:"end_min"`
}

// Overlaps reports whether two half-open windows intersect.
func (w Window) Overlaps(o Window) bool {
	return w.Start < o.End && o.Start < w.End
}

func (w Window) Duration() int {
	return w.End - w.Start
}

// StartTime renders the window start as "HH:MM".
func (w Window) StartTime() string {
	return model.FormatMinutes(w.Start)
}

// EndTime renders the window end as "HH:MM".
func (w Window) EndTime() string {
	return model.FormatMinutes(w.End)
}

// Busy is one occupied sub-window of a staff resource, taken from an active
// booking. Hourly bookings contribute one entry per line sub-window, so
// conflicts are checked per (resource, sub-window) pair rather than per
// booking.
type Busy struct {
	BookingID string
	StaffID   string
	Window    Window
}

// CheckRequest is a proposed allocation of one staff resource.
type CheckRequest struct {
	StaffID string
	Window  Window
	// ExcludeBookingID ignores the caller's own booking when rescheduling.
	ExcludeBookingID string
}

// Result reports the outcome of a conflict check. Suggestions hold up to the
// checker's cap of alternative free windows of the requested duration.
type Result struct {
	Conflict             bool
	ConflictingBookingID string
	Suggestions          []Window
}

// Checker decides slot conflicts against a supplied snapshot of existing
// bookings. It is pure: it performs no reads or writes of its own.
type Checker struct {
	StepMin        int
	MaxSuggestions int
}

func NewChecker(stepMin, maxSuggestions int) *Checker {
	if stepMin <= 0 {
		stepMin = 15
	}
	return &Checker{StepMin: stepMin, MaxSuggestions: maxSuggestions}
}

// Check tests the proposed window against the busy snapshot. On conflict it
// scans forward from the requested start for alternative windows inside the
// resource's working hours.
func (c *Checker) Check(req CheckRequest, busy []Busy, hours Window) Result {
	relevant := filterBusy(busy, req.StaffID, req.ExcludeBookingID)

	for _, b := range relevant {
		if req.Window.Overlaps(b.Window) {
			return Result{
				Conflict:             true,
				ConflictingBookingID: b.BookingID,
				Suggestions:          c.FreeWindows(req.Window.Duration(), req.Window.Start, relevant, hours),
			}
		}
	}

	return Result{}
}

// FreeWindows scans forward from `from` in StepMin increments, returning up
// to MaxSuggestions free windows of the requested duration that fit within
// working hours. An empty result means no availability left in the day.
func (c *Checker) FreeWindows(durationMin, from int, busy []Busy, hours Window) []Window {
	suggestions := []Window{}
	if durationMin <= 0 || c.MaxSuggestions == 0 {
		return suggestions
	}

	start := from
	if start < hours.Start {
		start = hours.Start
	}
	// Align to the scan grid.
	if rem := (start - hours.Start) % c.StepMin; rem != 0 {
		start += c.StepMin - rem
	}

	for ; start+durationMin <= hours.End; start += c.StepMin {
		candidate := Window{Start: start, End: start + durationMin}
		if !overlapsAny(candidate, busy) {
			suggestions = append(suggestions, candidate)
			if len(suggestions) >= c.MaxSuggestions {
				break
			}
		}
	}

	return suggestions
}

// BusyFromBooking expands an active booking into per-resource busy entries.
// In hourly mode each line with an explicit sub-window claims only that
// sub-window for its assigned staff member; everything else claims the whole
// booking window for every assignment.
func BusyFromBooking(b *model.Booking) []Busy {
	if !b.Status.IsActive() {
		return nil
	}

	whole := Window{
		Start: model.MinutesOfDay(b.StartTime),
		End:   model.MinutesOfDay(b.StartTime) + b.DurationMin,
	}

	var out []Busy
	if b.PricingMode == model.PricingHourly {
		for _, ln := range b.Lines {
			if ln.StaffID == "" || ln.StartTime == "" || ln.EndTime == "" {
				continue
			}
			start := model.MinutesOfDay(ln.StartTime)
			out = append(out, Busy{
				BookingID: b.ID,
				StaffID:   ln.StaffID,
				Window:    Window{Start: start, End: start + model.SpanMinutes(ln.StartTime, ln.EndTime)},
			})
		}
		if len(out) > 0 {
			return out
		}
	}

	for _, sa := range b.Staff {
		out = append(out, Busy{
			BookingID: b.ID,
			StaffID:   sa.StaffID,
			Window:    whole,
		})
	}
	return out
}

func filterBusy(busy []Busy, staffID, excludeBookingID string) []Busy {
	out := make([]Busy, 0, len(busy))
	for _, b := range busy {
		if b.StaffID != staffID {
			continue
		}
		if excludeBookingID != "" && b.BookingID == excludeBookingID {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Window.Start < out[j].Window.Start })
	return out
}

func overlapsAny(w Window, busy []Busy) bool {
	for _, b := range busy {
		if w.Overlaps(b.Window) {
			return true
		}
	}
	return false
}
