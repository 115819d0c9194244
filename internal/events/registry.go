package events

import (
	"context"
	"sort"
	"strings"

	"billsync/internal/model"
	"billsync/internal/store"
)

// HandlerFunc applies one event to local state. It returns the kind and id
// of the object it touched. Handlers must be idempotent: applying the same
// event N times must leave the store as if applied once.
type HandlerFunc func(ctx context.Context, st store.Store, ev *model.Event, scope string) (kind, objectID string, err error)

// Registry maps dot-namespaced event types to handlers. Entries are either
// exact ("account.updated") or a wildcard with a trailing * segment
// ("invoice.*"). Lookup prefers exact matches, then the longest wildcard.
type Registry struct {
	exact    map[string]HandlerFunc
	wildcard map[string]HandlerFunc // prefix (without "*") -> handler
}

func NewRegistry() *Registry {
	return &Registry{exact: map[string]HandlerFunc{}, wildcard: map[string]HandlerFunc{}}
}

func (r *Registry) Register(pattern string, h HandlerFunc) {
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		r.wildcard[prefix] = h
		return
	}
	r.exact[pattern] = h
}

// Lookup resolves the handler for an event type, or false if the type is
// unsupported.
func (r *Registry) Lookup(eventType string) (HandlerFunc, bool) {
	if h, ok := r.exact[eventType]; ok {
		return h, true
	}
	prefixes := make([]string, 0, len(r.wildcard))
	for p := range r.wildcard {
		prefixes = append(prefixes, p)
	}
	// longest prefix wins so "customer.subscription.*" beats "customer.*"
	sort.Slice(prefixes, func(i, j int) bool { return len(prefixes[i]) > len(prefixes[j]) })
	for _, p := range prefixes {
		if strings.HasPrefix(eventType, p) {
			return r.wildcard[p], true
		}
	}
	return nil, false
}
