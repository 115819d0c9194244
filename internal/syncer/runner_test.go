package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"billsync/internal/model"
	"billsync/internal/stripe"
)

type sliceIterator struct {
	events []json.RawMessage
	pos    int
}

func (it *sliceIterator) Next(ctx context.Context) bool {
	if it.pos >= len(it.events) {
		return false
	}
	it.pos++
	return true
}

func (it *sliceIterator) Event() json.RawMessage { return it.events[it.pos-1] }
func (it *sliceIterator) Err() error             { return nil }

type fakeSource struct {
	byScope    map[string][]json.RawMessage
	listCalls  int
	lastFilter stripe.EventFilter
	retrieved  []string
}

func (s *fakeSource) RetrieveEvent(ctx context.Context, id, account string) (json.RawMessage, error) {
	s.retrieved = append(s.retrieved, id)
	return rawEvent(id, "invoice.paid"), nil
}

func (s *fakeSource) ListEvents(ctx context.Context, f stripe.EventFilter, account string) Iterator {
	s.listCalls++
	s.lastFilter = f
	return &sliceIterator{events: s.byScope[account]}
}

type fakeAccounts struct{ ids []string }

func (a fakeAccounts) ListAccounts(ctx context.Context) ([]model.Account, error) {
	out := make([]model.Account, len(a.ids))
	for i, id := range a.ids {
		out[i] = model.Account{ID: id}
	}
	return out, nil
}

type fakeProcessor struct {
	failIDs map[string]bool
	seen    []string // "scope/eventID" in processing order
}

func (p *fakeProcessor) Process(ctx context.Context, payload []byte, account string) (model.EventRecord, error) {
	var v struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(payload, &v)
	p.seen = append(p.seen, account+"/"+v.ID)
	if p.failIDs[v.ID] {
		return model.EventRecord{}, errors.New("boom: " + v.ID)
	}
	return model.EventRecord{EventID: v.ID, Outcome: model.OutcomeApplied}, nil
}

func rawEvent(id, typ string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"id":%q,"type":%q,"data":{"object":{}}}`, id, typ))
}

func rawEvents(ids ...string) []json.RawMessage {
	out := make([]json.RawMessage, len(ids))
	for i, id := range ids {
		out[i] = rawEvent(id, "invoice.paid")
	}
	return out
}

func TestRunAccounting(t *testing.T) {
	src := &fakeSource{byScope: map[string][]json.RawMessage{
		"":       rawEvents("evt_1", "evt_2", "evt_3"),
		"acct_a": nil,
		"acct_b": rawEvents("evt_4", "evt_5"),
	}}
	proc := &fakeProcessor{failIDs: map[string]bool{"evt_2": true}}
	var buf bytes.Buffer
	r := &Runner{Source: src, Accounts: fakeAccounts{ids: []string{"acct_a", "acct_b"}}, Processor: proc, Out: &buf, Verbosity: 1}

	out, err := r.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.Processed != 4 || out.Total != 5 {
		t.Fatalf("got processed=%d total=%d, want 4/5", out.Processed, out.Total)
	}
	got := buf.String()
	for _, want := range []string{
		"Processing all available events",
		"  Processing events for our own account.",
		"    Synced Event evt_1",
		"    Failed processing Event evt_2",
		"  Processing events for acct_b",
		"  Processed 4 out of 5 Events",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("output missing %q:\n%s", want, got)
		}
	}
}

func TestRunDefaultScopeFirst(t *testing.T) {
	src := &fakeSource{byScope: map[string][]json.RawMessage{
		"":       rawEvents("evt_1"),
		"acct_a": rawEvents("evt_2"),
	}}
	proc := &fakeProcessor{}
	r := &Runner{Source: src, Accounts: fakeAccounts{ids: []string{"acct_a"}}, Processor: proc}

	if _, err := r.Run(context.Background(), Options{}); err != nil {
		t.Fatal(err)
	}
	want := []string{"/evt_1", "acct_a/evt_2"}
	if len(proc.seen) != len(want) {
		t.Fatalf("seen %v", proc.seen)
	}
	for i := range want {
		if proc.seen[i] != want[i] {
			t.Fatalf("order %v, want %v", proc.seen, want)
		}
	}
}

func TestRunNoResults(t *testing.T) {
	src := &fakeSource{byScope: map[string][]json.RawMessage{}}
	var buf bytes.Buffer
	r := &Runner{Source: src, Accounts: fakeAccounts{}, Processor: &fakeProcessor{}, Out: &buf}

	out, err := r.Run(context.Background(), Options{Selector: FailedOnly{}})
	if err != nil {
		t.Fatal(err)
	}
	if out.Total != 0 {
		t.Fatalf("total = %d", out.Total)
	}
	if !strings.Contains(buf.String(), "  (no results)") {
		t.Fatalf("missing no-results notice:\n%s", buf.String())
	}
	if src.lastFilter.DeliverySuccess == nil || *src.lastFilter.DeliverySuccess {
		t.Fatal("failed-only selector must request delivery_success=false")
	}
}

func TestRunByIDsMultipleAccountsRejected(t *testing.T) {
	src := &fakeSource{}
	r := &Runner{Source: src, Accounts: fakeAccounts{ids: []string{"acct_a", "acct_b"}}, Processor: &fakeProcessor{}}

	_, err := r.Run(context.Background(), Options{Selector: ByIDs{IDs: []string{"evt_1"}}})
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("want ConfigurationError, got %v", err)
	}
	if src.listCalls != 0 || len(src.retrieved) != 0 {
		t.Fatal("configuration errors must abort before any fetch")
	}
}

func TestRunNoConnectWithAccountIDsRejected(t *testing.T) {
	r := &Runner{Source: &fakeSource{}, Accounts: fakeAccounts{}, Processor: &fakeProcessor{}}
	_, err := r.Run(context.Background(), Options{AccountIDs: []string{"acct_a"}, NoConnect: true})
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("want ConfigurationError, got %v", err)
	}
}

func TestRunByIDsRetrievesEach(t *testing.T) {
	src := &fakeSource{}
	proc := &fakeProcessor{}
	r := &Runner{Source: src, Accounts: fakeAccounts{}, Processor: proc}

	out, err := r.Run(context.Background(), Options{Selector: ByIDs{IDs: []string{"evt_1", "evt_2"}}, NoConnect: true})
	if err != nil {
		t.Fatal(err)
	}
	if out.Processed != 2 || out.Total != 2 {
		t.Fatalf("got %+v", out)
	}
	if len(src.retrieved) != 2 || src.retrieved[0] != "evt_1" || src.retrieved[1] != "evt_2" {
		t.Fatalf("retrieved %v", src.retrieved)
	}
	if src.listCalls != 0 {
		t.Fatal("explicit IDs must not trigger a list")
	}
}

func TestRunByIDsSingleAccountScope(t *testing.T) {
	src := &fakeSource{}
	proc := &fakeProcessor{}
	r := &Runner{Source: src, Accounts: fakeAccounts{}, Processor: proc}

	if _, err := r.Run(context.Background(), Options{Selector: ByIDs{IDs: []string{"evt_9"}}, AccountIDs: []string{"acct_z"}}); err != nil {
		t.Fatal(err)
	}
	if len(proc.seen) != 1 || proc.seen[0] != "acct_z/evt_9" {
		t.Fatalf("seen %v", proc.seen)
	}
}

func TestRunReplayConverges(t *testing.T) {
	proc := &fakeProcessor{}
	mk := func() *fakeSource {
		return &fakeSource{byScope: map[string][]json.RawMessage{"": rawEvents("evt_1", "evt_2")}}
	}
	r := &Runner{Source: mk(), Accounts: fakeAccounts{}, Processor: proc}
	first, err := r.Run(context.Background(), Options{NoConnect: true})
	if err != nil {
		t.Fatal(err)
	}
	r.Source = mk()
	second, err := r.Run(context.Background(), Options{NoConnect: true})
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Fatalf("replay outcome diverged: %+v vs %+v", first, second)
	}
}
