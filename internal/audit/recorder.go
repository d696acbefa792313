// Package audit keeps a lifecycle trail of holds and appointments and
// exports it to Excel workbooks for the clinic's monthly review.
package audit

import (
	"context"

	"github.com/rs/zerolog"

	"vetbook/internal/database"
	"vetbook/internal/model"
)

// Writer persists audit records.
type Writer interface {
	WriteAudit(ctx context.Context, rec *database.AuditRecord) error
}

// Recorder writes lifecycle events. Audit failures are logged, never
// propagated: the operation being audited has already happened.
type Recorder struct {
	writer Writer
	logger *zerolog.Logger
}

func NewRecorder(writer Writer, logger *zerolog.Logger) *Recorder {
	return &Recorder{writer: writer, logger: logger}
}

// Reservation records a reservation lifecycle action.
func (r *Recorder) Reservation(ctx context.Context, action string, res *model.Reservation) {
	r.write(ctx, &database.AuditRecord{
		Entity:     "reservation",
		EntityID:   res.ID,
		Action:     action,
		VetID:      res.VetID,
		Date:       res.Date,
		ActorToken: res.HolderToken,
		Details:    res.StartTime,
	})
}

// Appointment records an appointment lifecycle action.
func (r *Recorder) Appointment(ctx context.Context, action string, appt *model.Appointment) {
	r.write(ctx, &database.AuditRecord{
		Entity:   "appointment",
		EntityID: appt.ReservationID,
		Action:   action,
		VetID:    appt.VetID,
		Date:     appt.Date,
		Details:  appt.StartTime,
	})
}

func (r *Recorder) write(ctx context.Context, rec *database.AuditRecord) {
	if err := r.writer.WriteAudit(ctx, rec); err != nil {
		r.logger.Error().Err(err).
			Str("entity", rec.Entity).
			Str("action", rec.Action).
			Msg("failed to write audit record")
	}
}
