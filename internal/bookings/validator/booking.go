package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"atenda/pkg/logger"
	"atenda/pkg/model"

	"github.com/go-playground/validator/v10"
)

var (
	timeOfDayRegex = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

type BookingValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewBookingValidator(log *logger.Logger) *BookingValidator {
	v := validator.New()

	if err := v.RegisterValidation("time_of_day", validateTimeOfDay); err != nil {
		log.Fatal("Failed to register 'time_of_day' validator",
			"error", err,
		)
	}

	log.Info("Booking validator initialized successfully")

	return &BookingValidator{
		validate: v,
		logger:   log,
	}
}

func validateTimeOfDay(fl validator.FieldLevel) bool {
	return timeOfDayRegex.MatchString(fl.Field().String())
}

func (v *BookingValidator) Validate(booking *model.Booking) error {
	if err := v.validate.Struct(booking); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}

	if booking.Location == model.LocationCustomerAddress && booking.Address == "" {
		return ValidationErrors{
			ValidationError{
				Field:   "Address",
				Message: "address is required when the location is customer_address",
			},
		}
	}

	if booking.Discount != nil && booking.Discount.Type == model.DiscountPercent && booking.Discount.Value > 100 {
		return ValidationErrors{
			ValidationError{
				Field:   "Discount",
				Message: fmt.Sprintf("percent discount must be at most 100, got %d", booking.Discount.Value),
			},
		}
	}

	if booking.PricingMode == model.PricingHourly {
		if errs := v.validateHourlyLines(booking); len(errs) > 0 {
			return errs
		}
	}

	return nil
}

// validateHourlyLines enforces hourly-mode requirements: every line carries an
// explicit sub-window and the sub-window stays inside the booking window.
func (v *BookingValidator) validateHourlyLines(booking *model.Booking) ValidationErrors {
	var errs ValidationErrors

	start := model.MinutesOfDay(booking.StartTime)
	end := start + booking.DurationMin

	for i, ln := range booking.Lines {
		field := fmt.Sprintf("Lines[%d]", i)
		if ln.StartTime == "" || ln.EndTime == "" {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "hourly pricing requires explicit start_time and end_time on every line",
			})
			continue
		}

		ls := model.MinutesOfDay(ln.StartTime)
		le := ls + model.SpanMinutes(ln.StartTime, ln.EndTime)
		if ls < start || le > end {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("line window %s-%s falls outside the booking window", ln.StartTime, ln.EndTime),
			})
		}
	}

	return errs
}

// ValidateReschedule checks the fields a reschedule may change.
func (v *BookingValidator) ValidateReschedule(date, startTime string, durationMin int) error {
	var errs ValidationErrors

	if err := v.validate.Var(date, "required,datetime=2006-01-02"); err != nil {
		errs = append(errs, ValidationError{
			Field:   "Date",
			Message: "date must be in YYYY-MM-DD format",
		})
	}
	if !timeOfDayRegex.MatchString(startTime) {
		errs = append(errs, ValidationError{
			Field:   "StartTime",
			Message: "start_time must be in HH:MM format",
		})
	}
	if durationMin < 5 || durationMin > 1440 {
		errs = append(errs, ValidationError{
			Field:   "DurationMin",
			Message: fmt.Sprintf("duration must be between 5 and 1440 minutes, got %d", durationMin),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (v *BookingValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
		case "datetime":
			message = fmt.Sprintf("%s must match the %s format", err.Field(), err.Param())
		case "time_of_day":
			message = fmt.Sprintf("%s must be a HH:MM time of day", err.Field())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
