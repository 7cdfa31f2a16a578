// Package audit records which operator changed what through the portal.
package audit

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Outcomes of an audited action.
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

// Event is one audited operator action.
type Event struct {
	ID        uuid.UUID
	Actor     string
	Role      string
	Action    string
	BillID    int64
	Detail    string
	Outcome   string
	CreatedAt time.Time
}

// Repository stores events in postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository returns repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// EnsureSchema creates the audit table when missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	const table = `
		CREATE TABLE IF NOT EXISTS portal_audit_events (
			id UUID PRIMARY KEY,
			actor TEXT NOT NULL,
			role TEXT NOT NULL,
			action TEXT NOT NULL,
			bill_id BIGINT,
			detail TEXT NOT NULL DEFAULT '',
			outcome TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	const index = `
		CREATE INDEX IF NOT EXISTS portal_audit_events_created_at_idx ON portal_audit_events (created_at DESC)
	`
	for _, stmt := range []string{table, index} {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Insert stores the event.
func (r *Repository) Insert(ctx context.Context, e Event) error {
	const query = `
		INSERT INTO portal_audit_events (id, actor, role, action, bill_id, detail, outcome, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	var billID sql.NullInt64
	if e.BillID > 0 {
		billID = sql.NullInt64{Int64: e.BillID, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, query, e.ID, e.Actor, e.Role, e.Action, billID, e.Detail, e.Outcome, e.CreatedAt)
	return err
}

// Recent returns the latest events, newest first.
func (r *Repository) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
		SELECT id, actor, role, action, bill_id, detail, outcome, created_at
		FROM portal_audit_events
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e      Event
			billID sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &e.Actor, &e.Role, &e.Action, &billID, &e.Detail, &e.Outcome, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.BillID = billID.Int64
		events = append(events, e)
	}
	return events, rows.Err()
}

// Store persists events. *Repository is the postgres implementation.
type Store interface {
	Insert(ctx context.Context, e Event) error
	Recent(ctx context.Context, limit int) ([]Event, error)
}

// Recorder logs every event and persists it when a store is configured.
// Persistence failures are logged, never returned.
type Recorder struct {
	repo   Store
	logger *zap.Logger
	now    func() time.Time
}

// NewRecorder returns recorder; repo may be nil.
func NewRecorder(repo Store, logger *zap.Logger) *Recorder {
	return &Recorder{repo: repo, logger: logger, now: time.Now}
}

// Enabled reports whether events are persisted.
func (r *Recorder) Enabled() bool {
	return r != nil && r.repo != nil
}

// Record audits one action.
func (r *Recorder) Record(ctx context.Context, e Event) {
	if r == nil {
		return
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.now().UTC()
	}
	if e.Outcome == "" {
		e.Outcome = OutcomeOK
	}
	r.logger.Info("audit",
		zap.String("actor", e.Actor),
		zap.String("role", e.Role),
		zap.String("action", e.Action),
		zap.Int64("bill_id", e.BillID),
		zap.String("outcome", e.Outcome),
		zap.String("detail", e.Detail),
	)
	if r.repo == nil {
		return
	}
	if err := r.repo.Insert(context.WithoutCancel(ctx), e); err != nil {
		r.logger.Warn("audit persist failed", zap.String("action", e.Action), zap.Error(err))
	}
}

// Recent returns persisted events, or none when persistence is off.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]Event, error) {
	if !r.Enabled() {
		return nil, nil
	}
	return r.repo.Recent(ctx, limit)
}
