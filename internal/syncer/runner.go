// Package syncer drives batch reconciliation of provider events across the
// default account and any connected accounts. Processing is sequential and
// in-order within a scope: later events can depend on state from earlier
// ones. Individual event failures are counted and reported, never fatal.
package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"billsync/internal/metrics"
	"billsync/internal/model"
	"billsync/internal/stripe"
)

// Iterator is a single-pass sequence of raw event payloads. Re-iterating is
// not supported; the remote cursor is consumed as pages are fetched.
type Iterator interface {
	Next(ctx context.Context) bool
	Event() json.RawMessage
	Err() error
}

// Source fetches events from the provider.
type Source interface {
	RetrieveEvent(ctx context.Context, id, account string) (json.RawMessage, error)
	ListEvents(ctx context.Context, f stripe.EventFilter, account string) Iterator
}

// ClientSource adapts *stripe.Client to the Source interface.
type ClientSource struct{ Client *stripe.Client }

func (s ClientSource) RetrieveEvent(ctx context.Context, id, account string) (json.RawMessage, error) {
	return s.Client.RetrieveEvent(ctx, id, account)
}

func (s ClientSource) ListEvents(ctx context.Context, f stripe.EventFilter, account string) Iterator {
	return s.Client.ListEvents(ctx, f, account)
}

// AccountLister enumerates known connected accounts, normally the store.
type AccountLister interface {
	ListAccounts(ctx context.Context) ([]model.Account, error)
}

// Processor reconciles one raw payload; normally *events.Dispatcher.
type Processor interface {
	Process(ctx context.Context, payload []byte, account string) (model.EventRecord, error)
}

type Options struct {
	Selector Selector
	// AccountIDs restricts the run to specific connected accounts. Empty
	// with NoConnect unset means auto-discover from the store.
	AccountIDs []string
	NoConnect  bool
}

type Outcome struct {
	Processed int
	Total     int
}

type Runner struct {
	Source    Source
	Accounts  AccountLister
	Processor Processor
	Out       io.Writer
	// Verbosity gates the per-event trace lines; summary output is always
	// emitted when Out is set.
	Verbosity int
}

// scopeListing pairs one account scope with its lazy event sequence. The
// default account always sorts first; order among connected accounts is not
// significant.
type scopeListing struct {
	account string
	events  Iterator
}

// Run validates the options, resolves account scopes, and processes every
// listed event. Configuration errors abort before any fetch; per-event
// failures are traced and counted but never stop the run.
func (r *Runner) Run(ctx context.Context, opts Options) (Outcome, error) {
	if opts.Selector == nil {
		opts.Selector = All{}
	}
	if opts.NoConnect && len(opts.AccountIDs) > 0 {
		return Outcome{}, &ConfigurationError{Reason: "account IDs cannot be combined with no-connect"}
	}

	accounts := opts.AccountIDs
	if len(accounts) == 0 && !opts.NoConnect {
		known, err := r.Accounts.ListAccounts(ctx)
		if err != nil {
			return Outcome{}, fmt.Errorf("list accounts: %w", err)
		}
		for _, a := range known {
			accounts = append(accounts, a.ID)
		}
	}

	if ids, ok := opts.Selector.(ByIDs); ok && len(accounts) > 1 {
		return Outcome{}, &ConfigurationError{Reason: fmt.Sprintf(
			"event IDs %v cannot be synced against %d account scopes; sync one account at a time or pass no-connect", ids.IDs, len(accounts))}
	}

	r.output(opts.Selector.describe())

	listings := r.listings(ctx, opts.Selector, accounts)
	out := r.processAll(ctx, listings)

	if out.Total == 0 {
		r.output("  (no results)")
	} else {
		r.output(fmt.Sprintf("  Processed %d out of %d Events", out.Processed, out.Total))
	}
	if out.Processed == out.Total {
		metrics.SyncRuns.WithLabelValues("ok").Inc()
	} else {
		metrics.SyncRuns.WithLabelValues("partial").Inc()
	}
	return out, nil
}

func (r *Runner) listings(ctx context.Context, sel Selector, accounts []string) []scopeListing {
	if ids, ok := sel.(ByIDs); ok {
		scope := model.DefaultAccount
		if len(accounts) == 1 {
			scope = accounts[0]
		}
		return []scopeListing{{account: scope, events: &retrieveIterator{
			source: r.Source, ids: ids.IDs, account: scope,
		}}}
	}

	var filter stripe.EventFilter
	switch s := sel.(type) {
	case FailedOnly:
		filter = s.filter()
	case TypeFilter:
		filter = s.filter()
	}

	out := []scopeListing{{account: model.DefaultAccount, events: r.Source.ListEvents(ctx, filter, model.DefaultAccount)}}
	for _, acct := range accounts {
		out = append(out, scopeListing{account: acct, events: r.Source.ListEvents(ctx, filter, acct)})
	}
	return out
}

func (r *Runner) processAll(ctx context.Context, listings []scopeListing) Outcome {
	var out Outcome
	for _, l := range listings {
		if l.account == model.DefaultAccount {
			r.verbose("  Processing events for our own account.")
		} else {
			r.verbose("  Processing events for " + l.account)
		}
		for l.events.Next(ctx) {
			out.Total++
			payload := l.events.Event()
			rec, err := r.Processor.Process(ctx, payload, l.account)
			if err != nil {
				r.verbose("    Failed processing Event " + payloadID(payload))
				r.output("  " + err.Error())
				continue
			}
			out.Processed++
			r.verbose("    Synced Event " + rec.EventID)
		}
		if err := l.events.Err(); err != nil {
			r.output("  " + err.Error())
		}
	}
	return out
}

func (r *Runner) output(msg string) {
	if r.Out != nil {
		fmt.Fprintln(r.Out, msg)
	}
}

func (r *Runner) verbose(msg string) {
	if r.Verbosity >= 1 && r.Out != nil {
		fmt.Fprintln(r.Out, msg)
	}
}

func payloadID(payload []byte) string {
	var v struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(payload, &v); err != nil || v.ID == "" {
		return "(unknown)"
	}
	return v.ID
}

// retrieveIterator fetches an explicit ID list one event at a time, lazily.
type retrieveIterator struct {
	source  Source
	ids     []string
	account string

	pos     int
	current json.RawMessage
	err     error
}

func (it *retrieveIterator) Next(ctx context.Context) bool {
	if it.err != nil || it.pos >= len(it.ids) {
		return false
	}
	raw, err := it.source.RetrieveEvent(ctx, it.ids[it.pos], it.account)
	if err != nil {
		it.err = fmt.Errorf("retrieve event %s: %w", it.ids[it.pos], err)
		return false
	}
	it.pos++
	it.current = raw
	return true
}

func (it *retrieveIterator) Event() json.RawMessage { return it.current }
func (it *retrieveIterator) Err() error             { return it.err }
