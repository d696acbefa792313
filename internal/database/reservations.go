package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"vetbook/internal/model"
)

// HoldReservation atomically checks the candidate range against the
// union of active appointments and live reservations and inserts the
// hold if the range is free. Two concurrent holds for overlapping
// ranges serialize on the write transaction; the loser sees the
// winner's row and gets ErrSlotConflict.
func (db *DB) HoldReservation(ctx context.Context, res *model.Reservation) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	commitments, err := commitmentsTx(ctx, tx, res.VetID, res.Date, res.CreatedAt)
	if err != nil {
		return fmt.Errorf("load commitments: %w", err)
	}

	start, err := model.ParseClock(res.StartTime)
	if err != nil {
		return fmt.Errorf("parse start time: %w", err)
	}
	for i := range commitments {
		c := &commitments[i]
		if start < c.EndMinute() && c.StartMinute() < start+res.DurationMinutes {
			return ErrSlotConflict
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO reservations (
			id, vet_id, date, start_time, duration_minutes,
			holder_token, created_at, expires_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		res.ID, res.VetID, model.Day(res.Date), res.StartTime, res.DurationMinutes,
		res.HolderToken, res.CreatedAt, res.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// RenewReservation extends the hold by ttl from now. The reservation
// must exist, belong to the token, and still be live.
func (db *DB) RenewReservation(ctx context.Context, id, holderToken string, ttl time.Duration, now time.Time) (*model.Reservation, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := getReservationTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if res.HolderToken != holderToken {
		return nil, ErrTokenMismatch
	}
	if res.Expired(now) {
		return nil, ErrExpired
	}

	res.ExpiresAt = now.Add(ttl)
	if _, err := tx.ExecContext(ctx,
		"UPDATE reservations SET expires_at = ? WHERE id = ?",
		res.ExpiresAt, id,
	); err != nil {
		return nil, fmt.Errorf("update expiry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return res, nil
}

// ConfirmReservation promotes a live reservation into an appointment and
// deletes the reservation, as one transaction. A confirm racing the
// reaper on the same row has exactly one winner: whichever transaction
// commits first removes the row, and the other sees it gone.
func (db *DB) ConfirmReservation(ctx context.Context, id, holderToken string, now time.Time, patientName, ownerPhone, comment string) (*model.Appointment, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := getReservationTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if res.HolderToken != holderToken {
		return nil, ErrTokenMismatch
	}
	if res.Expired(now) {
		return nil, ErrExpired
	}

	appt := &model.Appointment{
		VetID:           res.VetID,
		Date:            model.Day(res.Date),
		StartTime:       res.StartTime,
		DurationMinutes: res.DurationMinutes,
		PatientName:     patientName,
		OwnerPhone:      ownerPhone,
		Status:          model.AppointmentScheduled,
		Comment:         comment,
		ReservationID:   res.ID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO appointments (
			vet_id, date, start_time, duration_minutes, patient_name,
			owner_phone, status, comment, reservation_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		appt.VetID, appt.Date, appt.StartTime, appt.DurationMinutes,
		nullIfEmpty(appt.PatientName), nullIfEmpty(appt.OwnerPhone),
		appt.Status, nullIfEmpty(appt.Comment), appt.ReservationID,
		appt.CreatedAt, appt.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert appointment: %w", err)
	}
	appt.ID, err = result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last id: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM reservations WHERE id = ?", id); err != nil {
		return nil, fmt.Errorf("delete reservation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return appt, nil
}

// ReleaseReservation deletes the hold early.
func (db *DB) ReleaseReservation(ctx context.Context, id, holderToken string) (*model.Reservation, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := getReservationTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if res.HolderToken != holderToken {
		return nil, ErrTokenMismatch
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM reservations WHERE id = ?", id); err != nil {
		return nil, fmt.Errorf("delete reservation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return res, nil
}

// GetReservation returns a reservation by id, or ErrNotFound.
func (db *DB) GetReservation(ctx context.Context, id string) (*model.Reservation, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, vet_id, date, start_time, duration_minutes,
		       holder_token, created_at, expires_at
		FROM reservations WHERE id = ?`,
		id,
	)
	res, err := scanReservation(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return res, err
}

// SweepExpired deletes reservations past expiry and returns the rows it
// actually removed. Each delete re-checks expiry so a row renewed or
// already removed by confirm/release in the meantime is skipped; the
// sweep is safe to run concurrently with the write path.
func (db *DB) SweepExpired(ctx context.Context, now time.Time) ([]model.Reservation, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, vet_id, date, start_time, duration_minutes,
		       holder_token, created_at, expires_at
		FROM reservations WHERE expires_at < ?`,
		now,
	)
	if err != nil {
		return nil, err
	}

	var candidates []model.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		candidates = append(candidates, *res)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	var swept []model.Reservation
	for i := range candidates {
		result, err := db.ExecContext(ctx,
			"DELETE FROM reservations WHERE id = ? AND expires_at < ?",
			candidates[i].ID, now,
		)
		if err != nil {
			return swept, fmt.Errorf("delete expired %s: %w", candidates[i].ID, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return swept, err
		}
		if affected > 0 {
			swept = append(swept, candidates[i])
		}
	}
	return swept, nil
}

func commitmentsTx(ctx context.Context, tx *sql.Tx, vetID int64, date time.Time, now time.Time) ([]model.Commitment, error) {
	day := model.Day(date)
	rows, err := tx.QueryContext(ctx, `
		SELECT CAST(id AS TEXT), start_time, duration_minutes, 'appointment' AS source
		FROM appointments
		WHERE vet_id = ? AND date(date) = date(?) AND status != 'cancelled'
		UNION ALL
		SELECT id, start_time, duration_minutes, 'reservation' AS source
		FROM reservations
		WHERE vet_id = ? AND date(date) = date(?) AND expires_at > ?`,
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

func getReservationTx(ctx context.Context, tx *sql.Tx, id string) (*model.Reservation, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT id, vet_id, date, start_time, duration_minutes,
		       holder_token, created_at, expires_at
		FROM reservations WHERE id = ?`,
		id,
	)
	res, err := scanReservation(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return res, err
}

func scanReservation(row rowScanner) (*model.Reservation, error) {
	var r model.Reservation
	err := row.Scan(
		&r.ID, &r.VetID, &r.Date, &r.StartTime, &r.DurationMinutes,
		&r.HolderToken, &r.CreatedAt, &r.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
