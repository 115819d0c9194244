package webhooks

import (
	"encoding/json"
	"net/http"

	"billsync/internal/model"
)

// TestEventID is the fixed event id the provider sends on unsigned
// connectivity-check deliveries.
const TestEventID = "evt_00000000000000"

// NewTriggerFromRequest builds the audit trigger row for one inbound POST.
// The body has already been read; headers are serialized for later replay.
func NewTriggerFromRequest(r *http.Request, body []byte, endpointType string) model.WebhookEventTrigger {
	headers := map[string]string{}
	for name := range r.Header {
		headers[name] = r.Header.Get(name)
	}
	hdrJSON, _ := json.Marshal(headers)

	t := model.WebhookEventTrigger{
		EndpointType: endpointType,
		RemoteIP:     r.RemoteAddr,
		Headers:      string(hdrJSON),
		Body:         body,
	}
	if ev, err := model.ParseEvent(body); err == nil {
		t.EventID = ev.ID
		t.EventType = ev.Type
		t.Account = ev.Account
		t.IsTestEvent = ev.ID == TestEventID
	}
	return t
}
