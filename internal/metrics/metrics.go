package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the service
	Registry = prometheus.NewRegistry()

	// TriggersReceived counts inbound webhook deliveries by endpoint and outcome
	// (missing_header, test, invalid, processed, failed)
	TriggersReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "billsync_webhook_triggers_total", Help: "Inbound webhook deliveries by endpoint type and outcome."},
		[]string{"endpoint", "outcome"},
	)
	// EventsProcessed counts reconciled events by type and outcome
	// (applied, skipped, failed)
	EventsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "billsync_events_processed_total", Help: "Events reconciled by event type and outcome."},
		[]string{"event_type", "outcome"},
	)
	// ReconcileDuration records per-event reconciliation durations in seconds
	ReconcileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "billsync_reconcile_duration_seconds", Help: "Per-event reconciliation duration in seconds.", Buckets: prometheus.DefBuckets},
	)
	// SyncRuns counts batch sync invocations by result
	SyncRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "billsync_sync_runs_total", Help: "Batch sync runs by result."},
		[]string{"result"},
	)
)

// RegisterDefault registers collectors on the service registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(TriggersReceived)
		Registry.MustRegister(EventsProcessed)
		Registry.MustRegister(ReconcileDuration)
		Registry.MustRegister(SyncRuns)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
