//go:build postgres_integration

package store

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"billsync/internal/model"
)

func TestPostgresMigrateAndRoundTrip(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}
	p, err := NewPostgres(dsn)
	if err != nil {
		t.Fatalf("NewPostgres: %v", err)
	}
	if err := p.MigrateDir("../../db/migrations"); err != nil {
		t.Fatalf("MigrateDir: %v", err)
	}
	ctx := context.Background()

	tr, err := p.CreateTrigger(ctx, model.WebhookEventTrigger{EndpointType: model.EndpointAccount, Body: []byte(`{}`)})
	if err != nil {
		t.Fatalf("CreateTrigger: %v", err)
	}
	if _, err := p.GetTrigger(ctx, tr.ID); err != nil {
		t.Fatalf("GetTrigger: %v", err)
	}

	created, err := p.RecordEvent(ctx, model.EventRecord{EventID: "evt_it_1", Outcome: model.OutcomeApplied})
	if err != nil || !created {
		t.Fatalf("RecordEvent: created=%v err=%v", created, err)
	}
	created, err = p.RecordEvent(ctx, model.EventRecord{EventID: "evt_it_1", Outcome: model.OutcomeApplied})
	if err != nil || created {
		t.Fatalf("RecordEvent dup: created=%v err=%v", created, err)
	}

	obj := model.BillingObject{Kind: "customer", ObjectID: "cus_it_1", Payload: json.RawMessage(`{"email":"a@b.c"}`)}
	if _, err := p.UpsertObject(ctx, obj); err != nil {
		t.Fatalf("UpsertObject: %v", err)
	}
	obj.Payload = json.RawMessage(`{"email":"new@b.c"}`)
	if _, err := p.UpsertObject(ctx, obj); err != nil {
		t.Fatalf("UpsertObject replay: %v", err)
	}
	got, err := p.GetObject(ctx, "", "customer", "cus_it_1")
	if err != nil {
		t.Fatalf("GetObject: %v", err)
	}
	if string(got.Payload) != `{"email":"new@b.c"}` {
		t.Fatalf("upsert did not replace: %s", got.Payload)
	}
	if err := p.DeleteObject(ctx, "", "customer", "cus_it_1"); err != nil {
		t.Fatalf("DeleteObject: %v", err)
	}
}
