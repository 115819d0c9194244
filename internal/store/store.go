package store

import (
	"context"
	"errors"

	"billsync/internal/model"
)

// Store is the persistence interface shared by the webhook path and the
// batch sync path. Both write into the same store and must tolerate
// interleaving; upserts are atomic at the store level.
type Store interface {
	// Webhook triggers (append-only audit trail)
	CreateTrigger(ctx context.Context, t model.WebhookEventTrigger) (model.WebhookEventTrigger, error)
	UpdateTrigger(ctx context.Context, t model.WebhookEventTrigger) error
	GetTrigger(ctx context.Context, id string) (model.WebhookEventTrigger, error)
	ListTriggers(ctx context.Context, cursor string, limit int) ([]model.WebhookEventTrigger, string, error)

	// Event records. RecordEvent is idempotent on (account, event id):
	// a duplicate insert is a no-op and reports created=false.
	RecordEvent(ctx context.Context, rec model.EventRecord) (created bool, err error)
	ListEventRecords(ctx context.Context, account, cursor string, limit int) ([]model.EventRecord, string, error)

	// Billing objects, keyed by (account, kind, object id). UpsertObject is
	// the uniform reconciliation primitive: applying the same payload twice
	// yields the same row.
	UpsertObject(ctx context.Context, obj model.BillingObject) (model.BillingObject, error)
	GetObject(ctx context.Context, account, kind, objectID string) (model.BillingObject, error)
	ListObjects(ctx context.Context, account, kind, cursor string, limit int) ([]model.BillingObject, string, error)
	DeleteObject(ctx context.Context, account, kind, objectID string) error

	// Connected accounts
	UpsertAccount(ctx context.Context, acct model.Account) error
	ListAccounts(ctx context.Context) ([]model.Account, error)
}

var ErrNotFound = errors.New("not found")
