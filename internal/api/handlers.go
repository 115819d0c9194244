package api

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"billsync/internal/metrics"
	"billsync/internal/model"
	"billsync/internal/store"
	"billsync/internal/webhooks"
)

const testEventResponse = "Test webhook successfully received!"

// WebhookHandler returns the handler for one webhook endpoint variant. The
// two variants differ only by the endpoint_type recorded on the trigger and
// the signing secret used.
func (s *Server) WebhookHandler(endpointType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Unreadable body", err.Error(), r.URL.Path)
			return
		}
		defer func() { _ = r.Body.Close() }()

		sigHeader := r.Header.Get(webhooks.SignatureHeader)
		if sigHeader == "" {
			// No signature, no trigger row: don't fill the store with
			// unauthenticated noise.
			metrics.TriggersReceived.WithLabelValues(endpointType, "missing_header").Inc()
			writeProblem(w, http.StatusBadRequest, "Missing signature", "", r.URL.Path)
			return
		}

		trigger, err := s.Store.CreateTrigger(r.Context(), webhooks.NewTriggerFromRequest(r, body, endpointType))
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Trigger record failed", err.Error(), r.URL.Path)
			return
		}

		if trigger.IsTestEvent {
			// Test events carry no real signing material; acknowledge and stop.
			metrics.TriggersReceived.WithLabelValues(endpointType, "test").Inc()
			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, testEventResponse)
			return
		}

		secret := s.Cfg.SecretFor(endpointType)
		verr := webhooks.VerifySignature(secret, body, sigHeader, s.Cfg.Tolerance(), time.Now())
		trigger.Valid = verr == nil
		if err := s.Store.UpdateTrigger(r.Context(), trigger); err != nil {
			writeProblem(w, http.StatusInternalServerError, "Trigger update failed", err.Error(), r.URL.Path)
			return
		}
		if verr != nil {
			metrics.TriggersReceived.WithLabelValues(endpointType, "invalid").Inc()
			writeProblem(w, http.StatusBadRequest, "Invalid signature", "", r.URL.Path)
			return
		}

		rec, perr := s.Dispatcher.Process(r.Context(), body, trigger.Account)
		if perr != nil {
			trigger.Exception = perr.Error()
			_ = s.Store.UpdateTrigger(r.Context(), trigger)
			metrics.TriggersReceived.WithLabelValues(endpointType, "failed").Inc()
			log.Printf("webhook: processing failed for event %s: %v", trigger.EventID, perr)
			// 500 so the provider redelivers; re-processing is idempotent.
			writeProblem(w, http.StatusInternalServerError, "Processing failed", perr.Error(), r.URL.Path)
			return
		}
		trigger.Processed = true
		_ = s.Store.UpdateTrigger(r.Context(), trigger)
		metrics.TriggersReceived.WithLabelValues(endpointType, "processed").Inc()
		s.publish(rec)

		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, trigger.ID)
	}
}

func (s *Server) publish(rec model.EventRecord) {
	evt := Notice{Type: rec.EventType, Data: map[string]any{
		"eventId":    rec.EventID,
		"account":    rec.Account,
		"outcome":    rec.Outcome,
		"objectKind": rec.ObjectKind,
		"objectId":   rec.ObjectID,
	}}
	s.Broker.Publish(scopeKey(rec.Account), evt)
	s.Broker.Publish(allScopes, evt)
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	// The store is wired at startup; nothing async to wait for.
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// TriggersHandler handles GET /v1/admin/triggers
func (s *Server) TriggersHandler(w http.ResponseWriter, r *http.Request) {
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	cursor := r.URL.Query().Get("cursor")
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		fmt.Sscanf(v, "%d", &limit)
	}
	items, next, err := s.Store.ListTriggers(r.Context(), cursor, limit)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List triggers failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
}

// TriggerByIDHandler handles /v1/admin/triggers/{id} and
// /v1/admin/triggers/{id}/replay
func (s *Server) TriggerByIDHandler(w http.ResponseWriter, r *http.Request) {
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/v1/admin/triggers/")
	if id, ok := strings.CutSuffix(rest, "/replay"); ok && r.Method == http.MethodPost {
		s.replayTrigger(w, r, id)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	t, err := s.Store.GetTrigger(r.Context(), rest)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
			return
		}
		writeProblem(w, http.StatusInternalServerError, "Get trigger failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// replayTrigger re-runs reconciliation for a stored trigger. Safe to call
// repeatedly: processing converges to the same state.
func (s *Server) replayTrigger(w http.ResponseWriter, r *http.Request, id string) {
	t, err := s.Store.GetTrigger(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
			return
		}
		writeProblem(w, http.StatusInternalServerError, "Get trigger failed", err.Error(), r.URL.Path)
		return
	}
	if !t.Valid || t.IsTestEvent {
		writeProblem(w, http.StatusConflict, "Not replayable", "trigger is not a valid event delivery", r.URL.Path)
		return
	}
	rec, err := s.Dispatcher.Process(r.Context(), t.Body, t.Account)
	if err != nil {
		t.Exception = err.Error()
		_ = s.Store.UpdateTrigger(r.Context(), t)
		writeProblem(w, http.StatusInternalServerError, "Replay failed", err.Error(), r.URL.Path)
		return
	}
	t.Processed = true
	t.Exception = ""
	_ = s.Store.UpdateTrigger(r.Context(), t)
	s.publish(rec)
	writeJSON(w, http.StatusOK, rec)
}

// EventRecordsHandler handles GET /v1/admin/events
func (s *Server) EventRecordsHandler(w http.ResponseWriter, r *http.Request) {
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		fmt.Sscanf(v, "%d", &limit)
	}
	items, next, err := s.Store.ListEventRecords(r.Context(), r.URL.Query().Get("account"), r.URL.Query().Get("cursor"), limit)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List events failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
}

// ObjectsHandler handles GET /v1/admin/objects
func (s *Server) ObjectsHandler(w http.ResponseWriter, r *http.Request) {
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	limit := 100
	if v := q.Get("limit"); v != "" {
		fmt.Sscanf(v, "%d", &limit)
	}
	items, next, err := s.Store.ListObjects(r.Context(), q.Get("account"), q.Get("kind"), q.Get("cursor"), limit)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List objects failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
}

func scopeKey(account string) string {
	if account == model.DefaultAccount {
		return "default"
	}
	return account
}

const allScopes = "*"
