package pricing

import (
	"fmt"

	apperrors "atenda/pkg/errors"
	"atenda/pkg/model"
)

// Input carries everything needed to price a booking. All monetary values
// are integer minor units; UnitPrice is the hourly rate in hourly mode.
type Input struct {
	Lines          []model.BookingLine
	Mode           model.PricingMode
	Location       model.LocationMode
	TravelFee      int64
	Discount       *model.Discount
	TaxRatePercent int
}

// Result is the computed monetary breakdown. Warnings carry non-fatal
// pricing adjustments (e.g. a discount clamped to the subtotal).
type Result struct {
	LineTotals      []int64
	Subtotal        int64
	DiscountAmount  int64
	AmountBeforeTax int64
	TaxAmount       int64
	AmountAfterTax  int64
	TravelFee       int64
	Warnings        []string
}

// Compute prices a booking from its lines. It is pure: no I/O, no clock.
// Rounding is half-up at every intermediate step so recomputing a stored
// booking always reproduces its persisted totals exactly.
func Compute(in Input) (*Result, error) {
	if len(in.Lines) == 0 {
		return nil, apperrors.Validation("booking must have at least one line", nil)
	}
	if in.TaxRatePercent < 0 {
		return nil, apperrors.Validation("tax rate cannot be negative", map[string]any{
			"tax_rate_percent": in.TaxRatePercent,
		})
	}
	if in.TravelFee < 0 {
		return nil, apperrors.Validation("travel fee cannot be negative", nil)
	}

	res := &Result{LineTotals: make([]int64, len(in.Lines))}

	for i, ln := range in.Lines {
		total, err := lineTotal(ln, in.Mode, i)
		if err != nil {
			return nil, err
		}
		res.LineTotals[i] = total
		res.Subtotal += total
	}

	// Travel fee applies only when the service happens at the customer's
	// address.
	if in.Location == model.LocationCustomerAddress {
		res.TravelFee = in.TravelFee
		res.Subtotal += in.TravelFee
	}

	discount, warnings, err := discountAmount(in.Discount, res.Subtotal)
	if err != nil {
		return nil, err
	}
	res.DiscountAmount = discount
	res.Warnings = warnings

	res.AmountBeforeTax = res.Subtotal - res.DiscountAmount
	res.TaxAmount = roundHalfUp(res.AmountBeforeTax*int64(in.TaxRatePercent), 100)
	res.AmountAfterTax = res.AmountBeforeTax + res.TaxAmount

	return res, nil
}

func lineTotal(ln model.BookingLine, mode model.PricingMode, idx int) (int64, error) {
	if ln.ServiceID == "" {
		return 0, apperrors.Validation("line references an unknown service", map[string]any{
			"line": idx,
		})
	}
	if ln.Quantity <= 0 {
		return 0, apperrors.Validation("line quantity must be positive", map[string]any{
			"line":     idx,
			"quantity": ln.Quantity,
		})
	}
	if ln.UnitPrice < 0 {
		return 0, apperrors.Validation("line unit price cannot be negative", map[string]any{
			"line": idx,
		})
	}

	switch mode {
	case model.PricingFixed:
		return ln.UnitPrice * int64(ln.Quantity), nil

	case model.PricingHourly:
		if ln.StartTime == "" || ln.EndTime == "" {
			return 0, apperrors.Validation("hourly line requires explicit start and end times", map[string]any{
				"line": idx,
			})
		}
		durMin := model.SpanMinutes(ln.StartTime, ln.EndTime)
		if durMin <= 0 {
			return 0, apperrors.Validation("hourly line duration must be positive", map[string]any{
				"line": idx,
			})
		}
		// UnitPrice is the hourly rate; round the per-unit amount before
		// multiplying by quantity to match stored totals.
		perUnit := roundHalfUp(ln.UnitPrice*int64(durMin), 60)
		return perUnit * int64(ln.Quantity), nil

	default:
		return 0, apperrors.Validation(fmt.Sprintf("unknown pricing mode %q", mode), nil)
	}
}

func discountAmount(d *model.Discount, subtotal int64) (int64, []string, error) {
	if d == nil || d.Type == model.DiscountNone {
		return 0, nil, nil
	}
	if d.Value < 0 {
		return 0, nil, apperrors.Validation("discount value cannot be negative", nil)
	}

	switch d.Type {
	case model.DiscountPercent:
		amount := roundHalfUp(subtotal*d.Value, 100)
		if amount > subtotal {
			return subtotal, []string{"percentage discount exceeds subtotal, clamped"}, nil
		}
		return amount, nil, nil

	case model.DiscountFixed:
		if d.Value > subtotal {
			return subtotal, []string{"fixed discount exceeds subtotal, clamped"}, nil
		}
		return d.Value, nil, nil

	default:
		return 0, nil, apperrors.Validation(fmt.Sprintf("unknown discount type %q", d.Type), nil)
	}
}

// roundHalfUp divides n by d rounding half away from zero. Inputs are
// non-negative everywhere this is called.
func roundHalfUp(n, d int64) int64 {
	return (n + d/2) / d
}
