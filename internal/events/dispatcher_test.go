package events

import (
	"context"
	"encoding/json"
	"testing"

	"billsync/internal/model"
	"billsync/internal/store"
)

func eventPayload(t *testing.T, id, typ string, obj map[string]any) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"id":   id,
		"type": typ,
		"data": map[string]any{"object": obj},
	})
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestProcessUpsertsObject(t *testing.T) {
	st := store.NewMemory()
	d := NewDispatcher(st)
	payload := eventPayload(t, "evt_1", "invoice.paid", map[string]any{"id": "in_1", "object": "invoice", "status": "paid"})

	rec, err := d.Process(context.Background(), payload, "")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if rec.Outcome != model.OutcomeApplied || rec.ObjectKind != "invoice" || rec.ObjectID != "in_1" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	obj, err := st.GetObject(context.Background(), "", "invoice", "in_1")
	if err != nil {
		t.Fatalf("object not persisted: %v", err)
	}
	var got map[string]any
	_ = json.Unmarshal(obj.Payload, &got)
	if got["status"] != "paid" {
		t.Fatalf("payload not stored: %v", got)
	}
}

func TestProcessIsIdempotent(t *testing.T) {
	st := store.NewMemory()
	d := NewDispatcher(st)
	payload := eventPayload(t, "evt_1", "customer.updated", map[string]any{"id": "cus_1", "object": "customer", "email": "a@b.c"})

	if _, err := d.Process(context.Background(), payload, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Process(context.Background(), payload, ""); err != nil {
		t.Fatal(err)
	}
	objs, _, err := st.ListObjects(context.Background(), "", "customer", "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(objs) != 1 {
		t.Fatalf("expected exactly one customer after replay, got %d", len(objs))
	}
	recs, _, err := st.ListEventRecords(context.Background(), "", "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected one event record, got %d", len(recs))
	}
}

func TestProcessScopesToAccount(t *testing.T) {
	st := store.NewMemory()
	d := NewDispatcher(st)
	payload := eventPayload(t, "evt_2", "customer.created", map[string]any{"id": "cus_1", "object": "customer"})

	if _, err := d.Process(context.Background(), payload, "acct_7"); err != nil {
		t.Fatal(err)
	}
	if _, err := st.GetObject(context.Background(), "acct_7", "customer", "cus_1"); err != nil {
		t.Fatalf("object missing in account scope: %v", err)
	}
	if _, err := st.GetObject(context.Background(), "", "customer", "cus_1"); err != store.ErrNotFound {
		t.Fatal("object must not leak into the default scope")
	}
}

func TestProcessUsesPayloadAccount(t *testing.T) {
	st := store.NewMemory()
	d := NewDispatcher(st)
	b, _ := json.Marshal(map[string]any{
		"id":      "evt_3",
		"type":    "customer.created",
		"account": "acct_9",
		"data":    map[string]any{"object": map[string]any{"id": "cus_2", "object": "customer"}},
	})
	rec, err := d.Process(context.Background(), b, "")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Account != "acct_9" {
		t.Fatalf("expected payload account scope, got %q", rec.Account)
	}
}

func TestProcessUnsupportedTypeIsSkipped(t *testing.T) {
	st := store.NewMemory()
	d := NewDispatcher(st)
	payload := eventPayload(t, "evt_4", "radar.early_fraud_warning.created", map[string]any{"id": "issfr_1"})

	rec, err := d.Process(context.Background(), payload, "")
	if err != nil {
		t.Fatalf("unsupported type must not fail: %v", err)
	}
	if rec.Outcome != model.OutcomeSkipped {
		t.Fatalf("expected skipped outcome, got %q", rec.Outcome)
	}
}

func TestProcessMalformedPayload(t *testing.T) {
	d := NewDispatcher(store.NewMemory())
	for _, payload := range [][]byte{
		[]byte(`not json`),
		[]byte(`{"type":"invoice.paid"}`),
		[]byte(`{"id":"evt_5"}`),
	} {
		if _, err := d.Process(context.Background(), payload, ""); err == nil {
			t.Fatalf("expected error for payload %s", payload)
		}
	}
}

func TestProcessDeleteIsIdempotent(t *testing.T) {
	st := store.NewMemory()
	d := NewDispatcher(st)
	create := eventPayload(t, "evt_6", "customer.created", map[string]any{"id": "cus_3", "object": "customer"})
	del := eventPayload(t, "evt_7", "customer.deleted", map[string]any{"id": "cus_3", "object": "customer"})

	if _, err := d.Process(context.Background(), create, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Process(context.Background(), del, ""); err != nil {
		t.Fatal(err)
	}
	// replaying the delete is a no-op, not an error
	if _, err := d.Process(context.Background(), del, ""); err != nil {
		t.Fatalf("delete replay: %v", err)
	}
	if _, err := st.GetObject(context.Background(), "", "customer", "cus_3"); err != store.ErrNotFound {
		t.Fatal("customer should be gone")
	}
}

func TestProcessOutOfOrderReplayConverges(t *testing.T) {
	ctx := context.Background()
	create := eventPayload(t, "evt_c", "customer.created", map[string]any{"id": "cus_9", "object": "customer"})
	del := eventPayload(t, "evt_d", "customer.deleted", map[string]any{"id": "cus_9", "object": "customer"})

	// reference run: provider order (create, then delete) leaves no customer
	ref := store.NewMemory()
	refD := NewDispatcher(ref)
	for _, p := range [][]byte{create, del} {
		if _, err := refD.Process(ctx, p, ""); err != nil {
			t.Fatal(err)
		}
	}

	// reversed delivery: delete arrives before create
	st := store.NewMemory()
	d := NewDispatcher(st)
	if _, err := d.Process(ctx, del, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Process(ctx, create, ""); err != nil {
		t.Fatal(err)
	}
	// the interleaving left a customer behind that the in-order run would not have
	if _, err := st.GetObject(ctx, "", "customer", "cus_9"); err != nil {
		t.Fatalf("intermediate state: %v", err)
	}

	// replaying in listing order repairs the divergence
	for _, p := range [][]byte{create, del} {
		if _, err := d.Process(ctx, p, ""); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := st.GetObject(ctx, "", "customer", "cus_9"); err != store.ErrNotFound {
		t.Fatal("replay in listing order must converge on the in-order state")
	}
	if _, err := ref.GetObject(ctx, "", "customer", "cus_9"); err != store.ErrNotFound {
		t.Fatal("reference run should have deleted the customer")
	}
	recs, _, err := st.ListEventRecords(ctx, "", "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("replay must not grow the event log, got %d records", len(recs))
	}
}

func TestRegistryWildcardPrecedence(t *testing.T) {
	r := NewRegistry()
	var hit string
	r.Register("customer.*", func(ctx context.Context, st store.Store, ev *model.Event, scope string) (string, string, error) {
		hit = "customer.*"
		return "", "", nil
	})
	r.Register("customer.subscription.*", func(ctx context.Context, st store.Store, ev *model.Event, scope string) (string, string, error) {
		hit = "customer.subscription.*"
		return "", "", nil
	})
	h, ok := r.Lookup("customer.subscription.updated")
	if !ok {
		t.Fatal("lookup failed")
	}
	_, _, _ = h(context.Background(), nil, &model.Event{}, "")
	if hit != "customer.subscription.*" {
		t.Fatalf("longest wildcard should win, got %q", hit)
	}
	if _, ok := r.Lookup("balance.available"); ok {
		t.Fatal("unregistered type must not resolve")
	}
}
