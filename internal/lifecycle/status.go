package lifecycle

import (
	"fmt"

	apperrors "atenda/pkg/errors"
	"atenda/pkg/model"
)

// Event is a lifecycle command applied to a booking.
type Event string

const (
	EventConfirm  Event = "confirm"
	EventComplete Event = "complete"
	EventRevert   Event = "revert"
	EventCancel   Event = "cancel"
	EventNoShow   Event = "mark_no_show"
)

// Effect is one required consequence of a transition. Invoice effects are
// applied synchronously inside the same unit of work; notify and workflow
// effects become outbox rows drained best-effort.
type Effect string

const (
	EffectInvoiceGenerate Effect = "invoice_generate"
	EffectInvoiceRevert   Effect = "invoice_revert"
	EffectInvoiceCancel   Effect = "invoice_cancel"
	EffectNotifyClient    Effect = "notify_client"
	EffectFireWorkflow    Effect = "fire_workflow"
)

// Outcome is the target status and the ordered effect set of a legal
// transition.
type Outcome struct {
	To      model.BookingStatus
	Effects []Effect
}

type transitionKey struct {
	From  model.BookingStatus
	Event Event
}

// transitions is the entire lifecycle in one table: (state, event) ->
// (new state, effects). Any pair absent here is illegal.
var transitions = map[transitionKey]Outcome{
	{model.StatusRequested, EventConfirm}:      {model.StatusConfirmed, []Effect{EffectNotifyClient, EffectFireWorkflow}},
	{model.StatusPending, EventConfirm}:        {model.StatusConfirmed, []Effect{EffectNotifyClient, EffectFireWorkflow}},
	{model.StatusPendingPayment, EventConfirm}: {model.StatusConfirmed, []Effect{EffectNotifyClient, EffectFireWorkflow}},
	{model.StatusConfirmed, EventConfirm}:      {model.StatusConfirmed, nil},

	{model.StatusConfirmed, EventComplete}: {model.StatusCompleted, []Effect{EffectInvoiceGenerate, EffectFireWorkflow}},

	{model.StatusCompleted, EventRevert}: {model.StatusConfirmed, []Effect{EffectInvoiceRevert, EffectFireWorkflow}},

	{model.StatusRequested, EventCancel}:      {model.StatusCancelled, []Effect{EffectInvoiceCancel, EffectNotifyClient, EffectFireWorkflow}},
	{model.StatusPending, EventCancel}:        {model.StatusCancelled, []Effect{EffectInvoiceCancel, EffectNotifyClient, EffectFireWorkflow}},
	{model.StatusPendingPayment, EventCancel}: {model.StatusCancelled, []Effect{EffectInvoiceCancel, EffectNotifyClient, EffectFireWorkflow}},
	{model.StatusConfirmed, EventCancel}:      {model.StatusCancelled, []Effect{EffectInvoiceCancel, EffectNotifyClient, EffectFireWorkflow}},
	{model.StatusCompleted, EventCancel}:      {model.StatusCancelled, []Effect{EffectInvoiceCancel, EffectNotifyClient, EffectFireWorkflow}},

	{model.StatusConfirmed, EventNoShow}: {model.StatusNoShow, []Effect{EffectInvoiceCancel, EffectFireWorkflow}},
}

// EventForTarget maps a requested target status onto the lifecycle event
// that reaches it from the current status.
func EventForTarget(current, target model.BookingStatus) (Event, error) {
	switch target {
	case model.StatusConfirmed:
		if current == model.StatusCompleted {
			return EventRevert, nil
		}
		return EventConfirm, nil
	case model.StatusCompleted:
		return EventComplete, nil
	case model.StatusCancelled:
		return EventCancel, nil
	case model.StatusNoShow:
		return EventNoShow, nil
	default:
		return "", apperrors.StateTransition(
			fmt.Sprintf("status %q cannot be requested directly", target),
			apperrors.ReasonIllegalTransition,
		)
	}
}

// Apply resolves the transition for a booking and event. It checks the
// preconditions that depend only on the aggregate itself; the slot re-check
// on confirm needs a busy snapshot and stays with the caller.
func Apply(b *model.Booking, ev Event) (Outcome, error) {
	outcome, ok := transitions[transitionKey{b.Status, ev}]
	if !ok {
		if b.Status.IsTerminal() {
			return Outcome{}, apperrors.StateTransition(
				fmt.Sprintf("booking in terminal status %q accepts no further transitions", b.Status),
				apperrors.ReasonTerminalStatus,
			)
		}
		return Outcome{}, apperrors.StateTransition(
			fmt.Sprintf("cannot apply %q to a booking in status %q", ev, b.Status),
			apperrors.ReasonIllegalTransition,
		)
	}

	// A completed booking feeds payroll and accounting downstream, so
	// completing without any assigned staff member is a hard error.
	if ev == EventComplete && len(b.Staff) == 0 {
		return Outcome{}, apperrors.StateTransition(
			"cannot complete a booking without staff assignments",
			apperrors.ReasonStaffRequired,
		)
	}

	return outcome, nil
}

// NotificationEventType maps a transition to the outbox event type consumed
// by notification and workflow listeners.
func NotificationEventType(ev Event) string {
	switch ev {
	case EventConfirm:
		return model.EventBookingConfirmed
	case EventComplete:
		return model.EventBookingCompleted
	case EventRevert:
		return model.EventBookingReverted
	case EventCancel:
		return model.EventBookingCancelled
	case EventNoShow:
		return model.EventBookingNoShow
	default:
		return ""
	}
}
