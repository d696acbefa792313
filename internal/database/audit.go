package database

import (
	"context"
	"fmt"
	"time"

	"vetbook/internal/model"
)

// AuditRecord is one row of the reservation lifecycle trail.
type AuditRecord struct {
	ID         int64     `json:"id"`
	Entity     string    `json:"entity"` // "reservation" or "appointment"
	EntityID   string    `json:"entity_id"`
	Action     string    `json:"action"` // held, renewed, confirmed, released, expired, cancelled
	VetID      int64     `json:"vet_id"`
	Date       time.Time `json:"date"`
	ActorToken string    `json:"actor_token,omitempty"`
	Details    string    `json:"details,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// WriteAudit appends a record to the audit trail. Failures here must not
// fail the operation being audited; callers log and continue.
func (db *DB) WriteAudit(ctx context.Context, rec *AuditRecord) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO audit_log (entity, entity_id, action, vet_id, date, actor_token, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Entity, rec.EntityID, rec.Action, rec.VetID, model.Day(rec.Date),
		nullIfEmpty(rec.ActorToken), nullIfEmpty(rec.Details), time.Now(),
	)
	return err
}

// ListAuditRange returns audit rows created inside [from, to), oldest
// first. Used by the monthly export.
func (db *DB) ListAuditRange(ctx context.Context, from, to time.Time) ([]AuditRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, entity, entity_id, action, vet_id, date,
		       COALESCE(actor_token, ''), COALESCE(details, ''), created_at
		FROM audit_log
		WHERE created_at >= ? AND created_at < ?
		ORDER BY created_at`,
		from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []AuditRecord
	for rows.Next() {
		var r AuditRecord
		if err := rows.Scan(
			&r.ID, &r.Entity, &r.EntityID, &r.Action, &r.VetID, &r.Date,
			&r.ActorToken, &r.Details, &r.CreatedAt,
		); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// DeleteOldAudit prunes audit rows older than the retention window.
func (db *DB) DeleteOldAudit(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	res, err := db.ExecContext(ctx, "DELETE FROM audit_log WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old audit rows: %w", err)
	}
	return res.RowsAffected()
}
