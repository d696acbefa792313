package model

import "time"

// Reservation is a short-lived hold on a slot taken while a staff member
// walks through the booking flow. It is either promoted to an
// Appointment by confirm, released by its holder, or deleted by the
// reaper once past ExpiresAt. A reservation past expiry is treated as
// gone even if not yet swept.
type Reservation struct {
	ID              string    `json:"id"` // uuid
	VetID           int64     `json:"vet_id"`
	Date            time.Time `json:"date"`
	StartTime       string    `json:"start_time"`
	DurationMinutes int       `json:"duration_minutes"`
	HolderToken     string    `json:"holder_token"`
	CreatedAt       time.Time `json:"created_at"`
	ExpiresAt       time.Time `json:"expires_at"`
}

// Expired reports whether the reservation is past its TTL at the given
// instant.
func (r *Reservation) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Commitment converts the reservation to its commitment view.
func (r *Reservation) Commitment() Commitment {
	return Commitment{
		Source:          CommitmentReservation,
		RefID:           r.ID,
		StartTime:       r.StartTime,
		DurationMinutes: r.DurationMinutes,
	}
}
