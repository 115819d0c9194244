package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"billsync/internal/model"
	"billsync/internal/store"
)

// DefaultRegistry wires the handlers for the provider object types we
// materialize locally. Anything else falls through to the dispatcher's
// unsupported-type path.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("customer.*", upsertObject)
	r.Register("customer.deleted", deleteObject)
	r.Register("customer.subscription.*", upsertObject)
	r.Register("customer.subscription.deleted", upsertObject) // kept as a canceled row, not removed
	r.Register("invoice.*", upsertObject)
	r.Register("invoice.deleted", deleteObject)
	r.Register("invoiceitem.*", upsertObject)
	r.Register("payment_intent.*", upsertObject)
	r.Register("payment_method.*", upsertObject)
	r.Register("charge.*", upsertObject)
	r.Register("product.*", upsertObject)
	r.Register("product.deleted", deleteObject)
	r.Register("price.*", upsertObject)
	r.Register("price.deleted", deleteObject)
	r.Register("plan.*", upsertObject)
	r.Register("plan.deleted", deleteObject)
	r.Register("coupon.*", upsertObject)
	r.Register("coupon.deleted", deleteObject)
	r.Register("account.updated", upsertAccount)
	r.Register("account.application.*", upsertAccount)
	return r
}

// objectKind reads the "object" field of data.object, falling back to the
// first segment of the event type.
func objectKind(ev *model.Event) string {
	var obj struct {
		Object string `json:"object"`
	}
	_ = json.Unmarshal(ev.Data.Object, &obj)
	if obj.Object != "" {
		return obj.Object
	}
	kind, _, _ := strings.Cut(ev.Type, ".")
	return kind
}

func upsertObject(ctx context.Context, st store.Store, ev *model.Event, scope string) (string, string, error) {
	id := ev.ObjectID()
	if id == "" {
		return "", "", fmt.Errorf("event %s carries no object id", ev.ID)
	}
	kind := objectKind(ev)
	_, err := st.UpsertObject(ctx, model.BillingObject{
		Account:  scope,
		Kind:     kind,
		ObjectID: id,
		Payload:  ev.Data.Object,
		EventID:  ev.ID,
	})
	return kind, id, err
}

func deleteObject(ctx context.Context, st store.Store, ev *model.Event, scope string) (string, string, error) {
	id := ev.ObjectID()
	if id == "" {
		return "", "", fmt.Errorf("event %s carries no object id", ev.ID)
	}
	kind := objectKind(ev)
	err := st.DeleteObject(ctx, scope, kind, id)
	if err == store.ErrNotFound {
		// already gone; deletion is idempotent
		err = nil
	}
	return kind, id, err
}

func upsertAccount(ctx context.Context, st store.Store, ev *model.Event, scope string) (string, string, error) {
	id := ev.ObjectID()
	if id == "" {
		return "", "", fmt.Errorf("event %s carries no account id", ev.ID)
	}
	var acct struct {
		BusinessProfile struct {
			Name string `json:"name"`
		} `json:"business_profile"`
	}
	_ = json.Unmarshal(ev.Data.Object, &acct)
	err := st.UpsertAccount(ctx, model.Account{
		ID:      id,
		Name:    acct.BusinessProfile.Name,
		Payload: ev.Data.Object,
	})
	return "account", id, err
}
