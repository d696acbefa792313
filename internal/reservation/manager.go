// Package reservation manages short-lived slot holds: the window between
// "staff picked a slot" and "booking confirmed" during which no other
// hold may take the same time.
package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"vetbook/internal/audit"
	"vetbook/internal/database"
	"vetbook/internal/events"
	"vetbook/internal/metrics"
	"vetbook/internal/model"
)

// Input validation errors, rejected before touching the store.
var (
	ErrInvalidInput  = errors.New("invalid reservation input")
	ErrAdvanceWindow = errors.New("slot outside the allowed booking window")
)

// Store is the persistence surface the manager drives. Every method is
// an atomic unit; the overlap invariant lives behind HoldReservation.
type Store interface {
	HoldReservation(ctx context.Context, res *model.Reservation) error
	RenewReservation(ctx context.Context, id, holderToken string, ttl time.Duration, now time.Time) (*model.Reservation, error)
	ConfirmReservation(ctx context.Context, id, holderToken string, now time.Time, patientName, ownerPhone, comment string) (*model.Appointment, error)
	ReleaseReservation(ctx context.Context, id, holderToken string) (*model.Reservation, error)
	SweepExpired(ctx context.Context, now time.Time) ([]model.Reservation, error)
}

// Rules bound how far ahead a hold may target.
type Rules struct {
	MinAdvance time.Duration
	MaxAdvance time.Duration
}

// Manager creates, renews, confirms, and releases holds.
type Manager struct {
	store    Store
	notifier *events.Notifier
	audit    *audit.Recorder
	ttl      time.Duration
	rules    Rules
	logger   *zerolog.Logger
	now      func() time.Time
}

func NewManager(store Store, notifier *events.Notifier, recorder *audit.Recorder, ttl time.Duration, rules Rules, logger *zerolog.Logger) *Manager {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Manager{
		store:    store,
		notifier: notifier,
		audit:    recorder,
		ttl:      ttl,
		rules:    rules,
		logger:   logger,
		now:      time.Now,
	}
}

// TTL returns the hold lifespan.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Hold places a TTL-bound hold on (vetID, date, startTime, duration).
// Returns database.ErrSlotConflict when the range overlaps an existing
// commitment; the caller re-fetches availability and picks another slot.
func (m *Manager) Hold(ctx context.Context, vetID int64, date time.Time, startTime string, durationMinutes int, holderToken string) (*model.Reservation, error) {
	startMinute, err := model.ParseClock(startTime)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}
	if durationMinutes <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", ErrInvalidInput)
	}
	if holderToken == "" {
		return nil, fmt.Errorf("%w: holder token required", ErrInvalidInput)
	}

	now := m.now()
	slotAt := model.Day(date).Add(time.Duration(startMinute) * time.Minute)
	if m.rules.MinAdvance > 0 && slotAt.Before(now.Add(m.rules.MinAdvance)) {
		return nil, ErrAdvanceWindow
	}
	if m.rules.MaxAdvance > 0 && slotAt.After(now.Add(m.rules.MaxAdvance)) {
		return nil, ErrAdvanceWindow
	}

	res := &model.Reservation{
		ID:              uuid.New().String(),
		VetID:           vetID,
		Date:            model.Day(date),
		StartTime:       startTime,
		DurationMinutes: durationMinutes,
		HolderToken:     holderToken,
		CreatedAt:       now,
		ExpiresAt:       now.Add(m.ttl),
	}

	if err := m.store.HoldReservation(ctx, res); err != nil {
		if errors.Is(err, database.ErrSlotConflict) {
			metrics.IncHold("conflict")
			m.logger.Debug().
				Int64("vet_id", vetID).
				Str("date", model.DateKey(date)).
				Str("start", startTime).
				Msg("hold conflict")
			return nil, err
		}
		metrics.IncHold("error")
		return nil, fmt.Errorf("hold reservation: %w", err)
	}

	metrics.IncHold("created")
	m.audit.Reservation(ctx, "held", res)
	m.logger.Info().
		Str("reservation_id", res.ID).
		Int64("vet_id", vetID).
		Str("date", model.DateKey(date)).
		Str("start", startTime).
		Time("expires_at", res.ExpiresAt).
		Msg("reservation held")
	return res, nil
}

// Renew extends a live hold by one TTL from now.
func (m *Manager) Renew(ctx context.Context, id, holderToken string) (*model.Reservation, error) {
	res, err := m.store.RenewReservation(ctx, id, holderToken, m.ttl, m.now())
	if err != nil {
		return nil, err
	}
	m.audit.Reservation(ctx, "renewed", res)
	return res, nil
}

// Confirm promotes a live hold into a scheduled appointment and removes
// the hold in the same transaction, then tells watchers the slot is
// booked.
func (m *Manager) Confirm(ctx context.Context, id, holderToken, patientName, ownerPhone, comment string) (*model.Appointment, error) {
	appt, err := m.store.ConfirmReservation(ctx, id, holderToken, m.now(), patientName, ownerPhone, comment)
	if err != nil {
		return nil, err
	}

	metrics.IncConfirm()
	m.audit.Appointment(ctx, "confirmed", appt)
	m.notifier.Publish(events.KindBooked, appt.VetID, appt.Date)
	m.logger.Info().
		Int64("appointment_id", appt.ID).
		Str("reservation_id", id).
		Int64("vet_id", appt.VetID).
		Str("date", model.DateKey(appt.Date)).
		Msg("reservation confirmed")
	return appt, nil
}

// Release deletes a hold early when the holder backs out.
func (m *Manager) Release(ctx context.Context, id, holderToken string) error {
	res, err := m.store.ReleaseReservation(ctx, id, holderToken)
	if err != nil {
		return err
	}

	metrics.IncRelease()
	m.audit.Reservation(ctx, "released", res)
	m.notifier.Publish(events.KindReleased, res.VetID, res.Date)
	m.logger.Info().
		Str("reservation_id", id).
		Int64("vet_id", res.VetID).
		Msg("reservation released")
	return nil
}
