// Package events converts raw provider event payloads into local state
// mutations. Dispatch is a static type-string lookup; processing is an
// idempotent upsert keyed by the object the payload references.
package events

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"billsync/internal/metrics"
	"billsync/internal/model"
	"billsync/internal/store"
)

type Dispatcher struct {
	Store    store.Store
	Registry *Registry
}

func NewDispatcher(st store.Store) *Dispatcher {
	return &Dispatcher{Store: st, Registry: DefaultRegistry()}
}

// Process reconciles one raw event payload under the given account scope
// (empty = default account). It returns the local event record on success
// and propagates every failure to the caller; it never swallows errors.
// Re-processing the same event ID is safe: the mutation re-applies
// deterministically and the event record insert is a no-op.
func (d *Dispatcher) Process(ctx context.Context, payload []byte, account string) (model.EventRecord, error) {
	start := time.Now()
	ev, err := model.ParseEvent(payload)
	if err != nil {
		metrics.EventsProcessed.WithLabelValues("unknown", "failed").Inc()
		return model.EventRecord{}, err
	}
	scope := account
	if scope == "" {
		scope = ev.Account
	}

	rec := model.EventRecord{
		ID:        uuid.New().String(),
		EventID:   ev.ID,
		EventType: ev.Type,
		Account:   scope,
		Outcome:   model.OutcomeApplied,
	}

	h, ok := d.Registry.Lookup(ev.Type)
	if !ok {
		// Unsupported types are an explicit, non-fatal outcome: logged,
		// recorded as skipped, never an error.
		log.Printf("events: skipping unsupported type %s (event %s)", ev.Type, ev.ID)
		rec.Outcome = model.OutcomeSkipped
	} else {
		kind, objID, err := h(ctx, d.Store, ev, scope)
		if err != nil {
			metrics.EventsProcessed.WithLabelValues(ev.Type, "failed").Inc()
			return model.EventRecord{}, err
		}
		rec.ObjectKind = kind
		rec.ObjectID = objID
	}

	if _, err := d.Store.RecordEvent(ctx, rec); err != nil {
		metrics.EventsProcessed.WithLabelValues(ev.Type, "failed").Inc()
		return model.EventRecord{}, err
	}
	metrics.EventsProcessed.WithLabelValues(ev.Type, rec.Outcome).Inc()
	metrics.ReconcileDuration.Observe(time.Since(start).Seconds())
	return rec, nil
}
