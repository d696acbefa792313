package model

import "time"

// Appointment statuses.
const (
	AppointmentScheduled = "scheduled"
	AppointmentCompleted = "completed"
	AppointmentCancelled = "cancelled"
)

// Appointment is a confirmed visit on a vet's calendar.
type Appointment struct {
	ID              int64     `json:"id"`
	VetID           int64     `json:"vet_id"`
	Date            time.Time `json:"date"`
	StartTime       string    `json:"start_time"` // "10:00"
	DurationMinutes int       `json:"duration_minutes"`
	PatientName     string    `json:"patient_name,omitempty"`
	OwnerPhone      string    `json:"owner_phone,omitempty"`
	Status          string    `json:"status"`
	Comment         string    `json:"comment,omitempty"`
	ReservationID   string    `json:"reservation_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Active reports whether the appointment still occupies its slot.
func (a *Appointment) Active() bool {
	return a.Status != AppointmentCancelled
}

// Commitment sources.
const (
	CommitmentAppointment = "appointment"
	CommitmentReservation = "reservation"
)

// Commitment is a time range already spoken for on a (vet, date): a
// non-cancelled appointment or a live reservation. The engine's core
// invariant is that commitments for one vet on one date never overlap.
type Commitment struct {
	Source          string `json:"source"`
	RefID           string `json:"ref_id"`
	StartTime       string `json:"start_time"`
	DurationMinutes int    `json:"duration_minutes"`
}

// StartMinute returns the commitment start as minutes since midnight.
// Callers validate clock strings on the way in, so a malformed stored
// value maps to 0 rather than an error.
func (c *Commitment) StartMinute() int {
	m, err := ParseClock(c.StartTime)
	if err != nil {
		return 0
	}
	return m
}

// EndMinute returns the exclusive end as minutes since midnight.
func (c *Commitment) EndMinute() int {
	return c.StartMinute() + c.DurationMinutes
}
