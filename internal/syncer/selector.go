package syncer

import (
	"fmt"

	"billsync/internal/stripe"
)

// Selector picks which provider events a sync run fetches. Exactly one
// variant is in effect per run; the CLI builds it from mutually exclusive
// flags so invalid combinations cannot be represented.
type Selector interface {
	describe() string
	isSelector()
}

// ByIDs fetches an explicit list of event IDs, one retrieve each. Only
// valid against a single account scope.
type ByIDs struct{ IDs []string }

// FailedOnly lists only events whose webhook delivery previously failed.
type FailedOnly struct{}

// TypeFilter lists events whose type matches the pattern; a trailing *
// wildcard segment is allowed ("invoice.*").
type TypeFilter struct{ Pattern string }

// All lists every event the provider still retains.
type All struct{}

func (ByIDs) isSelector()      {}
func (FailedOnly) isSelector() {}
func (TypeFilter) isSelector() {}
func (All) isSelector()        {}

func (s ByIDs) describe() string      { return fmt.Sprintf("Processing specific events %v", s.IDs) }
func (FailedOnly) describe() string   { return "Processing all failed events" }
func (s TypeFilter) describe() string { return "Processing all events that match " + s.Pattern }
func (All) describe() string          { return "Processing all available events" }

func (s FailedOnly) filter() stripe.EventFilter {
	f := false
	return stripe.EventFilter{DeliverySuccess: &f}
}

func (s TypeFilter) filter() stripe.EventFilter {
	return stripe.EventFilter{Type: s.Pattern}
}

// ConfigurationError is an invalid combination of sync selectors, surfaced
// before any network or store access.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}
