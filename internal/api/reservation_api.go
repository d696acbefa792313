package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"vetbook/internal/database"
	"vetbook/internal/metrics"
	"vetbook/internal/model"
	"vetbook/internal/reservation"
)

type createReservationRequest struct {
	VetID           int64  `json:"vet_id"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	DurationMinutes int    `json:"duration_minutes"`
	HolderToken     string `json:"holder_token"`
}

type reservationResponse struct {
	ID              string `json:"id"`
	VetID           int64  `json:"vet_id"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	DurationMinutes int    `json:"duration_minutes"`
	ExpiresAt       string `json:"expires_at"`
}

func toReservationResponse(res *model.Reservation) reservationResponse {
	return reservationResponse{
		ID:              res.ID,
		VetID:           res.VetID,
		Date:            model.DateKey(res.Date),
		Time:            res.StartTime,
		DurationMinutes: res.DurationMinutes,
		ExpiresAt:       res.ExpiresAt.UTC().Format(time.RFC3339),
	}
}

// handleCreateReservation answers POST /api/v1/reservations.
func (s *HTTPServer) handleCreateReservation(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("reservation_create")

	var req createReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.HolderToken == "" {
		writeError(w, http.StatusBadRequest, "holder_token is required")
		return
	}
	if !s.allowHold(req.HolderToken) {
		writeError(w, http.StatusTooManyRequests, "too many hold attempts, slow down")
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	res, err := s.manager.Hold(r.Context(), req.VetID, date, req.Time, req.DurationMinutes, req.HolderToken)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, toReservationResponse(res))
	case errors.Is(err, database.ErrSlotConflict):
		writeError(w, http.StatusConflict, "slot is no longer available")
	case errors.Is(err, reservation.ErrInvalidInput), errors.Is(err, reservation.ErrAdvanceWindow):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error().Err(err).Int64("vet_id", req.VetID).Msg("hold failed")
		writeError(w, http.StatusInternalServerError, "could not create reservation")
	}
}

type holderTokenRequest struct {
	HolderToken string `json:"holder_token"`
}

// handleRenewReservation answers POST /api/v1/reservations/{id}/renew. A
// reservation past its expiry is treated as already gone.
func (s *HTTPServer) handleRenewReservation(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("reservation_renew")

	var req holderTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := s.manager.Renew(r.Context(), r.PathValue("id"), req.HolderToken)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, toReservationResponse(res))
	case errors.Is(err, database.ErrNotFound), errors.Is(err, database.ErrExpired):
		writeError(w, http.StatusNotFound, "reservation not found")
	case errors.Is(err, database.ErrTokenMismatch):
		writeError(w, http.StatusForbidden, "holder token does not match")
	default:
		s.logger.Error().Err(err).Str("reservation_id", r.PathValue("id")).Msg("renew failed")
		writeError(w, http.StatusInternalServerError, "could not renew reservation")
	}
}

type confirmReservationRequest struct {
	HolderToken string `json:"holder_token"`
	PatientName string `json:"patient_name"`
	OwnerPhone  string `json:"owner_phone"`
	Comment     string `json:"comment"`
}

type appointmentResponse struct {
	ID              int64  `json:"id"`
	VetID           int64  `json:"vet_id"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	DurationMinutes int    `json:"duration_minutes"`
	PatientName     string `json:"patient_name"`
	OwnerPhone      string `json:"owner_phone"`
	Comment         string `json:"comment,omitempty"`
	Status          string `json:"status"`
}

func toAppointmentResponse(a *model.Appointment) appointmentResponse {
	return appointmentResponse{
		ID:              a.ID,
		VetID:           a.VetID,
		Date:            model.DateKey(a.Date),
		Time:            a.StartTime,
		DurationMinutes: a.DurationMinutes,
		PatientName:     a.PatientName,
		OwnerPhone:      a.OwnerPhone,
		Comment:         a.Comment,
		Status:          a.Status,
	}
}

// handleConfirmReservation answers POST /api/v1/reservations/{id}/confirm.
func (s *HTTPServer) handleConfirmReservation(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("reservation_confirm")

	var req confirmReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PatientName == "" || req.OwnerPhone == "" {
		writeError(w, http.StatusBadRequest, "patient_name and owner_phone are required")
		return
	}

	appt, err := s.manager.Confirm(r.Context(), r.PathValue("id"), req.HolderToken, req.PatientName, req.OwnerPhone, req.Comment)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, "reservation not found")
	case errors.Is(err, database.ErrTokenMismatch):
		writeError(w, http.StatusForbidden, "holder token does not match")
	case errors.Is(err, database.ErrExpired):
		writeError(w, http.StatusGone, "reservation has expired")
	default:
		s.logger.Error().Err(err).Str("reservation_id", r.PathValue("id")).Msg("confirm failed")
		writeError(w, http.StatusInternalServerError, "could not confirm reservation")
	}
}

// handleReleaseReservation answers DELETE /api/v1/reservations/{id}.
func (s *HTTPServer) handleReleaseReservation(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("reservation_release")

	var req holderTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := s.manager.Release(r.Context(), r.PathValue("id"), req.HolderToken)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, "reservation not found")
	case errors.Is(err, database.ErrTokenMismatch):
		writeError(w, http.StatusForbidden, "holder token does not match")
	default:
		s.logger.Error().Err(err).Str("reservation_id", r.PathValue("id")).Msg("release failed")
		writeError(w, http.StatusInternalServerError, "could not release reservation")
	}
}
