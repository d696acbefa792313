package api

import (
	"net/http"
	"strconv"
	"time"

	"vetbook/internal/availability"
	"vetbook/internal/metrics"
	"vetbook/internal/model"
	"vetbook/internal/slots"
)

type availabilityResponse struct {
	VetID             int64    `json:"vet_id"`
	Date              string   `json:"date"`
	DurationMinutes   int      `json:"duration_minutes"`
	Slots             []string `json:"slots"`
	UnavailableReason *string  `json:"unavailable_reason"`
}

// handleAvailability answers GET /api/v1/availability?vet_id=&date=&duration=.
func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("availability")
	ctx := r.Context()

	vetID, err := strconv.ParseInt(r.URL.Query().Get("vet_id"), 10, 64)
	if err != nil || vetID <= 0 {
		writeError(w, http.StatusBadRequest, "vet_id must be a positive integer")
		return
	}
	date, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	duration, err := strconv.Atoi(r.URL.Query().Get("duration"))
	if err != nil || duration <= 0 || duration > s.opts.MaxDuration {
		writeError(w, http.StatusBadRequest, "duration must be between 1 and "+strconv.Itoa(s.opts.MaxDuration)+" minutes")
		return
	}

	open, reason, err := s.resolver.ResolveOpenIntervals(ctx, vetID, date)
	if err != nil {
		s.logger.Error().Err(err).Int64("vet_id", vetID).Msg("availability lookup failed")
		writeError(w, http.StatusInternalServerError, "availability lookup failed")
		return
	}

	resp := availabilityResponse{
		VetID:           vetID,
		Date:            model.DateKey(date),
		DurationMinutes: duration,
		Slots:           []string{},
	}

	if reason != availability.ReasonNone {
		rs := string(reason)
		resp.UnavailableReason = &rs
		writeJSON(w, http.StatusOK, resp)
		return
	}

	commitments, err := s.db.GetCommitments(ctx, vetID, date, time.Now())
	if err != nil {
		s.logger.Error().Err(err).Int64("vet_id", vetID).Msg("commitments lookup failed")
		writeError(w, http.StatusInternalServerError, "availability lookup failed")
		return
	}

	if starts := slots.Generate(open, duration, s.opts.SlotStepMinutes, commitments); len(starts) == 0 {
		rs := string(availability.ReasonFullyBooked)
		resp.UnavailableReason = &rs
	} else {
		resp.Slots = starts
	}
	writeJSON(w, http.StatusOK, resp)
}
