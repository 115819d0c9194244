package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"billsync/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu        sync.Mutex
	triggers  map[string]model.WebhookEventTrigger // id -> trigger
	trigOrder []string                             // insertion order
	records   map[string]model.EventRecord         // account|eventId -> record
	recOrder  []string
	objects   map[string]model.BillingObject // account|kind|objectId -> object
	objOrder  []string
	accounts  map[string]model.Account // id -> account
}

func NewMemory() *Memory {
	return &Memory{
		triggers: map[string]model.WebhookEventTrigger{},
		records:  map[string]model.EventRecord{},
		objects:  map[string]model.BillingObject{},
		accounts: map[string]model.Account{},
	}
}

func (m *Memory) CreateTrigger(ctx context.Context, t model.WebhookEventTrigger) (model.WebhookEventTrigger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	m.triggers[t.ID] = t
	m.trigOrder = append(m.trigOrder, t.ID)
	return t, nil
}

func (m *Memory) UpdateTrigger(ctx context.Context, t model.WebhookEventTrigger) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.triggers[t.ID]; !ok {
		return ErrNotFound
	}
	m.triggers[t.ID] = t
	return nil
}

func (m *Memory) GetTrigger(ctx context.Context, id string) (model.WebhookEventTrigger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.triggers[id]
	if !ok {
		return model.WebhookEventTrigger{}, ErrNotFound
	}
	return t, nil
}

func (m *Memory) ListTriggers(ctx context.Context, cursor string, limit int) ([]model.WebhookEventTrigger, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	start := cursorPos(m.trigOrder, cursor)
	out := []model.WebhookEventTrigger{}
	var next string
	for i := start; i < len(m.trigOrder) && len(out) < limit; i++ {
		out = append(out, m.triggers[m.trigOrder[i]])
		next = m.trigOrder[i]
	}
	if start+len(out) >= len(m.trigOrder) {
		next = ""
	}
	return out, next, nil
}

func (m *Memory) RecordEvent(ctx context.Context, rec model.EventRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := rec.Account + "|" + rec.EventID
	if _, ok := m.records[key]; ok {
		return false, nil
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	m.records[key] = rec
	m.recOrder = append(m.recOrder, key)
	return true, nil
}

func (m *Memory) ListEventRecords(ctx context.Context, account, cursor string, limit int) ([]model.EventRecord, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	keys := []string{}
	for _, k := range m.recOrder {
		r := m.records[k]
		if account == "" || r.Account == account {
			keys = append(keys, k)
		}
	}
	start := cursorPos(keys, cursor)
	out := []model.EventRecord{}
	var next string
	for i := start; i < len(keys) && len(out) < limit; i++ {
		out = append(out, m.records[keys[i]])
		next = keys[i]
	}
	if start+len(out) >= len(keys) {
		next = ""
	}
	return out, next, nil
}

func (m *Memory) UpsertObject(ctx context.Context, obj model.BillingObject) (model.BillingObject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := obj.Account + "|" + obj.Kind + "|" + obj.ObjectID
	obj.UpdatedAt = time.Now().UTC()
	if _, ok := m.objects[key]; !ok {
		m.objOrder = append(m.objOrder, key)
	}
	m.objects[key] = obj
	return obj, nil
}

func (m *Memory) GetObject(ctx context.Context, account, kind, objectID string) (model.BillingObject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[account+"|"+kind+"|"+objectID]
	if !ok {
		return model.BillingObject{}, ErrNotFound
	}
	return obj, nil
}

func (m *Memory) ListObjects(ctx context.Context, account, kind, cursor string, limit int) ([]model.BillingObject, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	keys := []string{}
	for _, k := range m.objOrder {
		o := m.objects[k]
		if (account == "" || o.Account == account) && (kind == "" || o.Kind == kind) {
			keys = append(keys, k)
		}
	}
	start := cursorPos(keys, cursor)
	out := []model.BillingObject{}
	var next string
	for i := start; i < len(keys) && len(out) < limit; i++ {
		out = append(out, m.objects[keys[i]])
		next = keys[i]
	}
	if start+len(out) >= len(keys) {
		next = ""
	}
	return out, next, nil
}

func (m *Memory) DeleteObject(ctx context.Context, account, kind, objectID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := account + "|" + kind + "|" + objectID
	if _, ok := m.objects[key]; !ok {
		return ErrNotFound
	}
	delete(m.objects, key)
	for i, k := range m.objOrder {
		if k == key {
			m.objOrder = append(m.objOrder[:i], m.objOrder[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Memory) UpsertAccount(ctx context.Context, acct model.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct.UpdatedAt = time.Now().UTC()
	m.accounts[acct.ID] = acct
	return nil
}

func (m *Memory) ListAccounts(ctx context.Context) ([]model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func cursorPos(keys []string, cursor string) int {
	if cursor == "" {
		return 0
	}
	for i, k := range keys {
		if k == cursor {
			return i + 1
		}
	}
	return 0
}
