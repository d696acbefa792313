package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"vetbook/internal/model"
)

// GetCommitments returns the committed time ranges for a (vet, date):
// non-cancelled appointments plus reservations still inside their TTL at
// the given instant. This union is the set the overlap invariant is
// checked against.
func (db *DB) GetCommitments(ctx context.Context, vetID int64, date time.Time, now time.Time) ([]model.Commitment, error) {
	day := model.Day(date)

	rows, err := db.QueryContext(ctx, `
		SELECT CAST(id AS TEXT), start_time, duration_minutes, 'appointment' AS source
		FROM appointments
		WHERE vet_id = ? AND date(date) = date(?) AND status != 'cancelled'
		UNION ALL
		SELECT id, start_time, duration_minutes, 'reservation' AS source
		FROM reservations
		WHERE vet_id = ? AND date(date) = date(?) AND expires_at > ?
		ORDER BY start_time`,
		vetID, day, vetID, day, now,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var commitments []model.Commitment
	for rows.Next() {
		var c model.Commitment
		if err := rows.Scan(&c.RefID, &c.StartTime, &c.DurationMinutes, &c.Source); err != nil {
			return nil, err
		}
		commitments = append(commitments, c)
	}
	return commitments, rows.Err()
}

// GetAppointment returns an appointment by id.
func (db *DB) GetAppointment(ctx context.Context, id int64) (*model.Appointment, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, vet_id, date, start_time, duration_minutes, patient_name,
		       owner_phone, status, comment, reservation_id, created_at, updated_at
		FROM appointments WHERE id = ?`,
		id,
	)
	return scanAppointment(row)
}

// ListAppointmentsOnDate returns all active appointments for a vet on a
// date, ordered by start time.
func (db *DB) ListAppointmentsOnDate(ctx context.Context, vetID int64, date time.Time) ([]model.Appointment, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, vet_id, date, start_time, duration_minutes, patient_name,
		       owner_phone, status, comment, reservation_id, created_at, updated_at
		FROM appointments
		WHERE vet_id = ? AND date(date) = date(?) AND status != 'cancelled'
		ORDER BY start_time`,
		vetID, model.Day(date),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appointments []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appointments = append(appointments, *a)
	}
	return appointments, rows.Err()
}

// CancelAppointment marks an appointment cancelled. Returns ErrNotFound
// if no active appointment with the id exists.
func (db *DB) CancelAppointment(ctx context.Context, id int64) (*model.Appointment, error) {
	appt, err := db.GetAppointment(ctx, id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if appt.Status == model.AppointmentCancelled {
		return nil, ErrNotFound
	}

	res, err := db.ExecContext(ctx, `
		UPDATE appointments SET status = 'cancelled', updated_at = ?
		WHERE id = ? AND status != 'cancelled'`,
		time.Now(), id,
	)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ErrNotFound
	}
	appt.Status = model.AppointmentCancelled
	return appt, nil
}

// DeleteOldAppointments removes cancelled and completed appointments
// older than the retention window. Used by the audit exporter's cleanup.
func (db *DB) DeleteOldAppointments(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	res, err := db.ExecContext(ctx, `
		DELETE FROM appointments
		WHERE date < ? AND status IN ('cancelled', 'completed')`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("delete old appointments: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAppointment(row rowScanner) (*model.Appointment, error) {
	var a model.Appointment
	var patient, phone, comment, resID sql.NullString
	err := row.Scan(
		&a.ID, &a.VetID, &a.Date, &a.StartTime, &a.DurationMinutes,
		&patient, &phone, &a.Status, &comment, &resID, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if patient.Valid {
		a.PatientName = patient.String
	}
	if phone.Valid {
		a.OwnerPhone = phone.String
	}
	if comment.Valid {
		a.Comment = comment.String
	}
	if resID.Valid {
		a.ReservationID = resID.String
	}
	return &a, nil
}
