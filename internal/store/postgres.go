package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"billsync/internal/model"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

// MigrateDir applies every .sql file in dir in lexical order. Statements are
// expected to be idempotent (IF NOT EXISTS), so re-running is safe.
func (p *Postgres) MigrateDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	names := []string{}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		sqlBytes, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		if _, err := p.db.Exec(string(sqlBytes)); err != nil {
			return err
		}
	}
	return nil
}

func (p *Postgres) CreateTrigger(ctx context.Context, t model.WebhookEventTrigger) (model.WebhookEventTrigger, error) {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := p.db.ExecContext(ctx, `INSERT INTO webhook_triggers
		(id, endpoint_type, remote_ip, headers, body, valid, is_test_event, processed, exception, event_id, event_type, account, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		t.ID, t.EndpointType, nullIfEmpty(t.RemoteIP), nullIfEmpty(t.Headers), t.Body,
		t.Valid, t.IsTestEvent, t.Processed, nullIfEmpty(t.Exception),
		nullIfEmpty(t.EventID), nullIfEmpty(t.EventType), nullIfEmpty(t.Account), t.CreatedAt)
	if err != nil {
		return model.WebhookEventTrigger{}, err
	}
	return t, nil
}

func (p *Postgres) UpdateTrigger(ctx context.Context, t model.WebhookEventTrigger) error {
	res, err := p.db.ExecContext(ctx, `UPDATE webhook_triggers SET
		valid=$2, is_test_event=$3, processed=$4, exception=$5, event_id=$6, event_type=$7, account=$8
		WHERE id=$1`,
		t.ID, t.Valid, t.IsTestEvent, t.Processed, nullIfEmpty(t.Exception),
		nullIfEmpty(t.EventID), nullIfEmpty(t.EventType), nullIfEmpty(t.Account))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) GetTrigger(ctx context.Context, id string) (model.WebhookEventTrigger, error) {
	row := p.db.QueryRowContext(ctx, `SELECT id, endpoint_type, remote_ip, headers, body, valid, is_test_event, processed, exception, event_id, event_type, account, created_at
		FROM webhook_triggers WHERE id=$1`, id)
	return scanTrigger(row)
}

func (p *Postgres) ListTriggers(ctx context.Context, cursor string, limit int) ([]model.WebhookEventTrigger, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var rows *sql.Rows
	var err error
	if cursor != "" {
		rows, err = p.db.QueryContext(ctx, `SELECT id, endpoint_type, remote_ip, headers, body, valid, is_test_event, processed, exception, event_id, event_type, account, created_at
			FROM webhook_triggers WHERE id > $1 ORDER BY id LIMIT $2`, cursor, limit)
	} else {
		rows, err = p.db.QueryContext(ctx, `SELECT id, endpoint_type, remote_ip, headers, body, valid, is_test_event, processed, exception, event_id, event_type, account, created_at
			FROM webhook_triggers ORDER BY id LIMIT $1`, limit)
	}
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []model.WebhookEventTrigger{}
	for rows.Next() {
		t, err := scanTrigger(rows)
		if err != nil {
			return nil, "", err
		}
		out = append(out, t)
	}
	var next string
	if len(out) == limit {
		next = out[len(out)-1].ID
	}
	return out, next, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrigger(row rowScanner) (model.WebhookEventTrigger, error) {
	var t model.WebhookEventTrigger
	var remoteIP, headers, exception, eventID, eventType, account sql.NullString
	err := row.Scan(&t.ID, &t.EndpointType, &remoteIP, &headers, &t.Body,
		&t.Valid, &t.IsTestEvent, &t.Processed, &exception, &eventID, &eventType, &account, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return t, ErrNotFound
		}
		return t, err
	}
	t.RemoteIP = remoteIP.String
	t.Headers = headers.String
	t.Exception = exception.String
	t.EventID = eventID.String
	t.EventType = eventType.String
	t.Account = account.String
	return t, nil
}

func (p *Postgres) RecordEvent(ctx context.Context, rec model.EventRecord) (bool, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	res, err := p.db.ExecContext(ctx, `INSERT INTO event_records
		(id, event_id, event_type, account, outcome, object_kind, object_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (account, event_id) DO NOTHING`,
		rec.ID, rec.EventID, rec.EventType, rec.Account, rec.Outcome,
		nullIfEmpty(rec.ObjectKind), nullIfEmpty(rec.ObjectID), rec.CreatedAt)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (p *Postgres) ListEventRecords(ctx context.Context, account, cursor string, limit int) ([]model.EventRecord, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := `SELECT id, event_id, event_type, account, outcome, object_kind, object_id, created_at FROM event_records`
	args := []any{}
	conds := []string{}
	if account != "" {
		args = append(args, account)
		conds = append(conds, "account=$"+strconv.Itoa(len(args)))
	}
	if cursor != "" {
		args = append(args, cursor)
		conds = append(conds, "id > $"+strconv.Itoa(len(args)))
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, limit)
	q += " ORDER BY id LIMIT $" + strconv.Itoa(len(args))
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []model.EventRecord{}
	for rows.Next() {
		var r model.EventRecord
		var kind, objID sql.NullString
		if err := rows.Scan(&r.ID, &r.EventID, &r.EventType, &r.Account, &r.Outcome, &kind, &objID, &r.CreatedAt); err != nil {
			return nil, "", err
		}
		r.ObjectKind = kind.String
		r.ObjectID = objID.String
		out = append(out, r)
	}
	var next string
	if len(out) == limit {
		next = out[len(out)-1].ID
	}
	return out, next, rows.Err()
}

func (p *Postgres) UpsertObject(ctx context.Context, obj model.BillingObject) (model.BillingObject, error) {
	obj.UpdatedAt = time.Now().UTC()
	_, err := p.db.ExecContext(ctx, `INSERT INTO billing_objects
		(account, kind, object_id, payload, event_id, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (account, kind, object_id) DO UPDATE SET
			payload=EXCLUDED.payload, event_id=EXCLUDED.event_id, updated_at=EXCLUDED.updated_at`,
		obj.Account, obj.Kind, obj.ObjectID, []byte(obj.Payload), nullIfEmpty(obj.EventID), obj.UpdatedAt)
	if err != nil {
		return model.BillingObject{}, err
	}
	return obj, nil
}

func (p *Postgres) GetObject(ctx context.Context, account, kind, objectID string) (model.BillingObject, error) {
	var obj model.BillingObject
	var eventID sql.NullString
	var payload []byte
	row := p.db.QueryRowContext(ctx, `SELECT account, kind, object_id, payload, event_id, updated_at
		FROM billing_objects WHERE account=$1 AND kind=$2 AND object_id=$3`, account, kind, objectID)
	if err := row.Scan(&obj.Account, &obj.Kind, &obj.ObjectID, &payload, &eventID, &obj.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return obj, ErrNotFound
		}
		return obj, err
	}
	obj.Payload = payload
	obj.EventID = eventID.String
	return obj, nil
}

func (p *Postgres) ListObjects(ctx context.Context, account, kind, cursor string, limit int) ([]model.BillingObject, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := `SELECT account, kind, object_id, payload, event_id, updated_at FROM billing_objects`
	args := []any{}
	conds := []string{}
	if account != "" {
		args = append(args, account)
		conds = append(conds, "account=$"+strconv.Itoa(len(args)))
	}
	if kind != "" {
		args = append(args, kind)
		conds = append(conds, "kind=$"+strconv.Itoa(len(args)))
	}
	if cursor != "" {
		args = append(args, cursor)
		conds = append(conds, "object_id > $"+strconv.Itoa(len(args)))
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, limit)
	q += " ORDER BY object_id LIMIT $" + strconv.Itoa(len(args))
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []model.BillingObject{}
	for rows.Next() {
		var obj model.BillingObject
		var eventID sql.NullString
		var payload []byte
		if err := rows.Scan(&obj.Account, &obj.Kind, &obj.ObjectID, &payload, &eventID, &obj.UpdatedAt); err != nil {
			return nil, "", err
		}
		obj.Payload = payload
		obj.EventID = eventID.String
		out = append(out, obj)
	}
	var next string
	if len(out) == limit {
		next = out[len(out)-1].ObjectID
	}
	return out, next, rows.Err()
}

func (p *Postgres) DeleteObject(ctx context.Context, account, kind, objectID string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM billing_objects WHERE account=$1 AND kind=$2 AND object_id=$3`,
		account, kind, objectID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) UpsertAccount(ctx context.Context, acct model.Account) error {
	acct.UpdatedAt = time.Now().UTC()
	_, err := p.db.ExecContext(ctx, `INSERT INTO accounts (id, name, payload, updated_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, payload=EXCLUDED.payload, updated_at=EXCLUDED.updated_at`,
		acct.ID, nullIfEmpty(acct.Name), []byte(acct.Payload), acct.UpdatedAt)
	return err
}

func (p *Postgres) ListAccounts(ctx context.Context) ([]model.Account, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, name, payload, updated_at FROM accounts ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Account{}
	for rows.Next() {
		var a model.Account
		var name sql.NullString
		var payload []byte
		if err := rows.Scan(&a.ID, &name, &payload, &a.UpdatedAt); err != nil {
			return nil, err
		}
		a.Name = name.String
		a.Payload = payload
		out = append(out, a)
	}
	return out, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
