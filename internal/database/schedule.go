package database

import (
	"context"
	"database/sql"
	"time"

	"vetbook/internal/model"
)

// GetSchedulePeriods returns active periods whose date range covers the
// given date, most recently created first. The source system does not
// enforce uniqueness of period ranges, so callers take the first row as
// the effective period.
func (db *DB) GetSchedulePeriods(ctx context.Context, vetID int64, date time.Time) ([]model.SchedulePeriod, error) {
	day := model.Day(date)
	rows, err := db.QueryContext(ctx, `
		SELECT id, vet_id, start_date, end_date, work_days, work_start, work_end,
		       break_start, break_end, is_active, created_at, updated_at
		FROM schedule_periods
		WHERE vet_id = ? AND is_active = 1
		AND date(start_date) <= date(?) AND date(end_date) >= date(?)
		ORDER BY created_at DESC, id DESC`,
		vetID, day, day,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var periods []model.SchedulePeriod
	for rows.Next() {
		var p model.SchedulePeriod
		var breakStart, breakEnd sql.NullString
		if err := rows.Scan(
			&p.ID, &p.VetID, &p.StartDate, &p.EndDate, &p.WorkDays,
			&p.WorkStart, &p.WorkEnd, &breakStart, &breakEnd,
			&p.IsActive, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if breakStart.Valid {
			p.BreakStart = breakStart.String
		}
		if breakEnd.Valid {
			p.BreakEnd = breakEnd.String
		}
		periods = append(periods, p)
	}
	return periods, rows.Err()
}

// GetDayOff returns the day-off record for (vet, date), or nil.
func (db *DB) GetDayOff(ctx context.Context, vetID int64, date time.Time) (*model.DayOff, error) {
	var d model.DayOff
	var reason sql.NullString
	err := db.QueryRowContext(ctx, `
		SELECT id, vet_id, date, reason, created_at
		FROM days_off
		WHERE vet_id = ? AND date(date) = date(?)
		LIMIT 1`,
		vetID, model.Day(date),
	).Scan(&d.ID, &d.VetID, &d.Date, &reason, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if reason.Valid {
		d.Reason = reason.String
	}
	return &d, nil
}

// GetBreaks returns breaks in effect on the date: specific-date rows for
// that date plus recurring rows for its weekday.
func (db *DB) GetBreaks(ctx context.Context, vetID int64, date time.Time) ([]model.Break, error) {
	day := model.Day(date)
	rows, err := db.QueryContext(ctx, `
		SELECT id, vet_id, is_specific, weekday, date, start_time, end_time, created_at
		FROM breaks
		WHERE vet_id = ?
		AND ((is_specific = 1 AND date(date) = date(?))
		  OR (is_specific = 0 AND weekday = ?))
		ORDER BY start_time`,
		vetID, day, int(date.Weekday()),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var breaks []model.Break
	for rows.Next() {
		var b model.Break
		var weekday sql.NullInt64
		var brDate sql.NullTime
		if err := rows.Scan(
			&b.ID, &b.VetID, &b.IsSpecific, &weekday, &brDate,
			&b.StartTime, &b.EndTime, &b.CreatedAt,
		); err != nil {
			return nil, err
		}
		if weekday.Valid {
			b.Weekday = int(weekday.Int64)
		}
		if brDate.Valid {
			d := brDate.Time
			b.Date = &d
		}
		breaks = append(breaks, b)
	}
	return breaks, rows.Err()
}

// CreateSchedulePeriod inserts a weekly schedule period.
func (db *DB) CreateSchedulePeriod(ctx context.Context, p *model.SchedulePeriod) error {
	now := time.Now()
	res, err := db.ExecContext(ctx, `
		INSERT INTO schedule_periods (
			vet_id, start_date, end_date, work_days, work_start, work_end,
			break_start, break_end, is_active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.VetID, model.Day(p.StartDate), model.Day(p.EndDate), p.WorkDays,
		p.WorkStart, p.WorkEnd, nullIfEmpty(p.BreakStart), nullIfEmpty(p.BreakEnd),
		p.IsActive, now, now,
	)
	if err != nil {
		return err
	}
	p.ID, err = res.LastInsertId()
	p.CreatedAt = now
	p.UpdatedAt = now
	return err
}

// SetDayOff marks a date fully unavailable for a vet.
func (db *DB) SetDayOff(ctx context.Context, vetID int64, date time.Time, reason string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO days_off (vet_id, date, reason, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(vet_id, date) DO UPDATE SET reason = excluded.reason`,
		vetID, model.Day(date), reason, time.Now(),
	)
	return err
}

// ClearDayOff removes a day-off record.
func (db *DB) ClearDayOff(ctx context.Context, vetID int64, date time.Time) error {
	_, err := db.ExecContext(ctx,
		"DELETE FROM days_off WHERE vet_id = ? AND date(date) = date(?)",
		vetID, model.Day(date),
	)
	return err
}

// CreateBreak inserts a recurring or specific-date break.
func (db *DB) CreateBreak(ctx context.Context, b *model.Break) error {
	var date interface{}
	if b.Date != nil {
		date = model.Day(*b.Date)
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO breaks (vet_id, is_specific, weekday, date, start_time, end_time, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.VetID, b.IsSpecific, b.Weekday, date, b.StartTime, b.EndTime, time.Now(),
	)
	if err != nil {
		return err
	}
	b.ID, err = res.LastInsertId()
	return err
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
