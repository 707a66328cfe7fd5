package outbox

import (
	"context"
	"time"

	"atenda/pkg/kafka"
	"atenda/pkg/logger"
	"atenda/pkg/metrics"
	"atenda/pkg/model"
)

// Store is the persistence surface the dispatcher drains. Implementations
// must return due rows oldest first so events for the same booking keep
// their relative order.
type Store interface {
	FindDue(ctx context.Context, now time.Time, limit int) ([]model.OutboxEvent, error)
	MarkSent(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id string, attempts int, nextAttemptAt time.Time, lastError string) error
	MarkDead(ctx context.Context, id string, attempts int, lastError string) error
}

// Publisher publishes one message to a topic.
type Publisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

// Stats summarizes one drain pass.
type Stats struct {
	Sent    int
	Retried int
	Dead    int
}

// Dispatcher polls pending outbox rows and publishes them to Kafka, routing
// by kind: notifications and workflow events go to separate topics. Delivery
// is at-least-once; a row is only marked sent after the broker accepted it.
type Dispatcher struct {
	store        Store
	publishers   map[model.OutboxKind]Publisher
	policy       RetryPolicy
	pollInterval time.Duration
	batchSize    int
	log          *logger.Logger
}

func NewDispatcher(store Store, publishers map[model.OutboxKind]Publisher, policy RetryPolicy, pollInterval time.Duration, batchSize int, log *logger.Logger) *Dispatcher {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Dispatcher{
		store:        store,
		publishers:   publishers,
		policy:       policy,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		log:          log,
	}
}

// Run drains the outbox until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	d.log.Info("outbox dispatcher started",
		"poll_interval", d.pollInterval,
		"batch_size", d.batchSize,
	)

	for {
		select {
		case <-ctx.Done():
			d.log.Info("outbox dispatcher stopping")
			return ctx.Err()
		case <-ticker.C:
			stats, err := d.DrainOnce(ctx)
			if err != nil {
				d.log.Error("outbox drain failed", "error", err)
				continue
			}
			if stats.Sent > 0 || stats.Retried > 0 || stats.Dead > 0 {
				d.log.Info("outbox drained",
					"sent", stats.Sent,
					"retried", stats.Retried,
					"dead", stats.Dead,
				)
			}
		}
	}
}

// DrainOnce processes one batch of due rows.
func (d *Dispatcher) DrainOnce(ctx context.Context) (Stats, error) {
	var stats Stats

	now := time.Now()
	events, err := d.store.FindDue(ctx, now, d.batchSize)
	if err != nil {
		return stats, err
	}

	for _, ev := range events {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		switch d.dispatch(ctx, ev) {
		case resultSent:
			stats.Sent++
		case resultRetried:
			stats.Retried++
		case resultDead:
			stats.Dead++
		}
	}
	return stats, nil
}

type dispatchResult int

const (
	resultSent dispatchResult = iota
	resultRetried
	resultDead
)

func (d *Dispatcher) dispatch(ctx context.Context, ev model.OutboxEvent) dispatchResult {
	pub, ok := d.publishers[ev.Kind]
	if !ok {
		// Unknown kind means a newer writer than this dispatcher; park the
		// row instead of losing it.
		d.log.Error("no publisher for outbox kind", "event_id", ev.ID, "kind", ev.Kind)
		return d.fail(ctx, ev, "no publisher for kind "+string(ev.Kind))
	}

	msg, err := kafka.NewMessage().
		WithKey(ev.Key).
		WithRawValue(ev.Payload).
		WithEventType(ev.EventType).
		WithHeader(kafka.HeaderTenantID, ev.TenantID).
		WithHeader(kafka.HeaderSource, "atenda-bookings").
		WithHeader(kafka.HeaderSchemaVersion, "1").
		Build()
	if err != nil {
		d.log.Error("outbox row cannot form a message", "event_id", ev.ID, "error", err)
		return d.kill(ctx, ev, err.Error())
	}

	if err := pub.Publish(ctx, msg); err != nil {
		d.log.Warn("outbox publish failed",
			"event_id", ev.ID,
			"event_type", ev.EventType,
			"attempt", ev.Attempts+1,
			"error", err,
		)
		return d.fail(ctx, ev, err.Error())
	}

	if err := d.store.MarkSent(ctx, ev.ID, time.Now()); err != nil {
		// The publish succeeded; the row will be re-sent next pass, which
		// downstream consumers must tolerate anyway.
		d.log.Error("failed to mark outbox row sent", "event_id", ev.ID, "error", err)
	}
	metrics.IncOutbox("sent")
	return resultSent
}

func (d *Dispatcher) fail(ctx context.Context, ev model.OutboxEvent, reason string) dispatchResult {
	attempts := ev.Attempts + 1
	if d.policy.Exhausted(attempts) {
		return d.kill(ctx, ev, reason)
	}

	next := time.Now().Add(d.policy.NextDelay(attempts))
	if err := d.store.MarkFailed(ctx, ev.ID, attempts, next, reason); err != nil {
		d.log.Error("failed to schedule outbox retry", "event_id", ev.ID, "error", err)
	}
	metrics.IncOutbox("retried")
	return resultRetried
}

func (d *Dispatcher) kill(ctx context.Context, ev model.OutboxEvent, reason string) dispatchResult {
	if err := d.store.MarkDead(ctx, ev.ID, ev.Attempts+1, reason); err != nil {
		d.log.Error("failed to mark outbox row dead", "event_id", ev.ID, "error", err)
	}
	d.log.Error("outbox row moved to dead",
		"event_id", ev.ID,
		"event_type", ev.EventType,
		"attempts", ev.Attempts+1,
		"reason", reason,
	)
	metrics.IncOutbox("dead")
	return resultDead
}
