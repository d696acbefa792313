package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"vetbook/internal/availability"
	"vetbook/internal/database"
	"vetbook/internal/events"
	"vetbook/internal/metrics"
	"vetbook/internal/model"
	"vetbook/internal/slots"
)

type clockInterval struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type dayResponse struct {
	VetID             int64                 `json:"vet_id"`
	Date              string                `json:"date"`
	UnavailableReason *string               `json:"unavailable_reason"`
	OpenIntervals     []clockInterval       `json:"open_intervals"`
	Slots             []slots.SlotInfo      `json:"slots"`
	Appointments      []appointmentResponse `json:"appointments"`
}

// handleVetDay answers GET /api/v1/vets/{id}/day?date=&duration=, the
// reception view: the full grid with taken slots plus the day's booked
// appointments.
func (s *HTTPServer) handleVetDay(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("vet_day")
	ctx := r.Context()

	vetID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || vetID <= 0 {
		writeError(w, http.StatusBadRequest, "vet id must be a positive integer")
		return
	}
	date, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	duration := s.opts.SlotStepMinutes
	if raw := r.URL.Query().Get("duration"); raw != "" {
		duration, err = strconv.Atoi(raw)
		if err != nil || duration <= 0 || duration > s.opts.MaxDuration {
			writeError(w, http.StatusBadRequest, "duration must be between 1 and "+strconv.Itoa(s.opts.MaxDuration)+" minutes")
			return
		}
	}
	if duration <= 0 {
		duration = 30
	}

	open, reason, err := s.resolver.ResolveOpenIntervals(ctx, vetID, date)
	if err != nil {
		s.logger.Error().Err(err).Int64("vet_id", vetID).Msg("day view lookup failed")
		writeError(w, http.StatusInternalServerError, "day view lookup failed")
		return
	}

	resp := dayResponse{
		VetID:         vetID,
		Date:          model.DateKey(date),
		OpenIntervals: []clockInterval{},
		Slots:         []slots.SlotInfo{},
		Appointments:  []appointmentResponse{},
	}
	if reason != availability.ReasonNone {
		rs := string(reason)
		resp.UnavailableReason = &rs
		writeJSON(w, http.StatusOK, resp)
		return
	}
	for _, iv := range open {
		resp.OpenIntervals = append(resp.OpenIntervals, clockInterval{
			Start: model.FormatClock(iv.Start),
			End:   model.FormatClock(iv.End),
		})
	}

	commitments, err := s.db.GetCommitments(ctx, vetID, date, time.Now())
	if err != nil {
		s.logger.Error().Err(err).Int64("vet_id", vetID).Msg("commitments lookup failed")
		writeError(w, http.StatusInternalServerError, "day view lookup failed")
		return
	}
	if annotated := slots.Annotate(open, duration, s.opts.SlotStepMinutes, commitments); annotated != nil {
		resp.Slots = annotated
	}

	appts, err := s.db.ListAppointmentsOnDate(ctx, vetID, date)
	if err != nil {
		s.logger.Error().Err(err).Int64("vet_id", vetID).Msg("appointments lookup failed")
		writeError(w, http.StatusInternalServerError, "day view lookup failed")
		return
	}
	for i := range appts {
		resp.Appointments = append(resp.Appointments, toAppointmentResponse(&appts[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCancelAppointment answers POST /api/v1/appointments/{id}/cancel.
// Cancelling frees the slot immediately for new holds.
func (s *HTTPServer) handleCancelAppointment(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("appointment_cancel")

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "appointment id must be a positive integer")
		return
	}

	appt, err := s.db.CancelAppointment(r.Context(), id)
	switch {
	case err == nil:
		s.audit.Appointment(r.Context(), "cancelled", appt)
		s.notifier.Publish(events.KindCancelled, appt.VetID, appt.Date)
		s.logger.Info().Int64("appointment_id", id).Int64("vet_id", appt.VetID).Msg("appointment cancelled")
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, "appointment not found or already cancelled")
	default:
		s.logger.Error().Err(err).Int64("appointment_id", id).Msg("cancel failed")
		writeError(w, http.StatusInternalServerError, "could not cancel appointment")
	}
}
