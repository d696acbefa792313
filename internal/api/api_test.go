package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"vetbook/internal/audit"
	"vetbook/internal/availability"
	"vetbook/internal/database"
	"vetbook/internal/events"
	"vetbook/internal/model"
	"vetbook/internal/reservation"
)

const testAPIKey = "valid-key"

type testServer struct {
	*httptest.Server
	db       *database.DB
	notifier *events.Notifier
}

func setupTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	notifier := events.NewNotifier(4)
	recorder := audit.NewRecorder(db, &logger)
	resolver := availability.NewResolver(db, &logger)
	manager := reservation.NewManager(db, notifier, recorder, 2*time.Minute, reservation.Rules{}, &logger)

	if opts.SlotStepMinutes == 0 {
		opts.SlotStepMinutes = 30
	}
	srv := NewHTTPServer(db, resolver, manager, notifier, recorder, opts, &logger)

	return &testServer{
		Server:   httptest.NewServer(srv.Handler()),
		db:       db,
		notifier: notifier,
	}
}

var testDay = time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC) // a Monday

func seedSchedule(t *testing.T, db *database.DB, vetID int64) {
	t.Helper()
	err := db.CreateSchedulePeriod(context.Background(), &model.SchedulePeriod{
		VetID:      vetID,
		StartDate:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
		WorkDays:   model.MondayToFriday,
		WorkStart:  "09:00",
		WorkEnd:    "17:00",
		BreakStart: "12:00",
		BreakEnd:   "13:00",
		IsActive:   true,
	})
	if err != nil {
		t.Fatalf("seed schedule: %v", err)
	}
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", testAPIKey)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestAvailabilityValidation(t *testing.T) {
	srv := setupTestServer(t, Options{})
	defer srv.Close()

	tests := []struct {
		name  string
		query string
	}{
		{"missing vet_id", "date=2026-09-07&duration=30"},
		{"bad vet_id", "vet_id=abc&date=2026-09-07&duration=30"},
		{"bad date", "vet_id=1&date=07.09.2026&duration=30"},
		{"missing duration", "vet_id=1&date=2026-09-07"},
		{"zero duration", "vet_id=1&date=2026-09-07&duration=0"},
		{"excessive duration", "vet_id=1&date=2026-09-07&duration=600"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/availability?"+tt.query, nil)
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestAvailabilityFlow(t *testing.T) {
	srv := setupTestServer(t, Options{})
	defer srv.Close()
	seedSchedule(t, srv.db, 1)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/availability?vet_id=1&date=2026-09-07&duration=60", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	got := decode[availabilityResponse](t, resp)
	if got.UnavailableReason != nil {
		t.Fatalf("unavailable_reason = %q, want null", *got.UnavailableReason)
	}
	// 09:00-12:00 and 13:00-17:00 on a 30-minute grid for hour visits.
	if len(got.Slots) == 0 || got.Slots[0] != "09:00" {
		t.Fatalf("slots = %v", got.Slots)
	}
	for _, s := range got.Slots {
		if s == "11:30" {
			t.Error("slot straddling the break must not be offered")
		}
	}

	// A hold makes its range disappear.
	create := doJSON(t, http.MethodPost, srv.URL+"/api/v1/reservations", createReservationRequest{
		VetID: 1, Date: "2026-09-07", Time: "09:00", DurationMinutes: 60, HolderToken: "tok-1",
	})
	if create.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", create.StatusCode)
	}
	create.Body.Close()

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/availability?vet_id=1&date=2026-09-07&duration=60", nil)
	got = decode[availabilityResponse](t, resp)
	for _, s := range got.Slots {
		if s == "09:00" || s == "09:30" {
			t.Errorf("held range still offered at %s", s)
		}
	}
}

func TestAvailabilityReasons(t *testing.T) {
	srv := setupTestServer(t, Options{})
	defer srv.Close()
	seedSchedule(t, srv.db, 1)

	if err := srv.db.SetDayOff(context.Background(), 1, testDay, "vacation"); err != nil {
		t.Fatalf("set day off: %v", err)
	}

	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"day off", "vet_id=1&date=2026-09-07&duration=30", "dayOff"},
		{"weekend", "vet_id=1&date=2026-09-05&duration=30", "weekendOff"},
		{"no schedule", "vet_id=99&date=2026-09-07&duration=30", "noSchedule"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/availability?"+tt.query, nil)
			got := decode[availabilityResponse](t, resp)
			if got.UnavailableReason == nil || *got.UnavailableReason != tt.want {
				t.Fatalf("unavailable_reason = %v, want %q", got.UnavailableReason, tt.want)
			}
			if len(got.Slots) != 0 {
				t.Fatalf("slots = %v, want empty", got.Slots)
			}
		})
	}
}

func TestAvailabilityFullyBooked(t *testing.T) {
	srv := setupTestServer(t, Options{})
	defer srv.Close()

	// One short working window that a single hold consumes.
	err := srv.db.CreateSchedulePeriod(context.Background(), &model.SchedulePeriod{
		VetID:     2,
		StartDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
		WorkDays:  model.MondayToFriday,
		WorkStart: "09:00",
		WorkEnd:   "10:00",
		IsActive:  true,
	})
	if err != nil {
		t.Fatalf("seed schedule: %v", err)
	}

	create := doJSON(t, http.MethodPost, srv.URL+"/api/v1/reservations", createReservationRequest{
		VetID: 2, Date: "2026-09-07", Time: "09:00", DurationMinutes: 60, HolderToken: "tok-1",
	})
	if create.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", create.StatusCode)
	}
	create.Body.Close()

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/availability?vet_id=2&date=2026-09-07&duration=30", nil)
	got := decode[availabilityResponse](t, resp)
	if got.UnavailableReason == nil || *got.UnavailableReason != "fullyBooked" {
		t.Fatalf("unavailable_reason = %v, want fullyBooked", got.UnavailableReason)
	}
}

func TestReservationLifecycle(t *testing.T) {
	srv := setupTestServer(t, Options{})
	defer srv.Close()
	seedSchedule(t, srv.db, 1)

	create := doJSON(t, http.MethodPost, srv.URL+"/api/v1/reservations", createReservationRequest{
		VetID: 1, Date: "2026-09-07", Time: "10:00", DurationMinutes: 30, HolderToken: "tok-1",
	})
	if create.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", create.StatusCode)
	}
	res := decode[reservationResponse](t, create)
	if res.ID == "" || res.Time != "10:00" {
		t.Fatalf("reservation = %+v", res)
	}

	// Competing hold on the same range conflicts.
	conflict := doJSON(t, http.MethodPost, srv.URL+"/api/v1/reservations", createReservationRequest{
		VetID: 1, Date: "2026-09-07", Time: "10:15", DurationMinutes: 30, HolderToken: "tok-2",
	})
	conflict.Body.Close()
	if conflict.StatusCode != http.StatusConflict {
		t.Fatalf("conflict status = %d, want 409", conflict.StatusCode)
	}

	// Renew with the wrong token is forbidden.
	renew := doJSON(t, http.MethodPost, srv.URL+"/api/v1/reservations/"+res.ID+"/renew", holderTokenRequest{HolderToken: "tok-2"})
	renew.Body.Close()
	if renew.StatusCode != http.StatusForbidden {
		t.Fatalf("renew wrong token status = %d, want 403", renew.StatusCode)
	}

	renew = doJSON(t, http.MethodPost, srv.URL+"/api/v1/reservations/"+res.ID+"/renew", holderTokenRequest{HolderToken: "tok-1"})
	if renew.StatusCode != http.StatusOK {
		t.Fatalf("renew status = %d, want 200", renew.StatusCode)
	}
	renew.Body.Close()

	confirm := doJSON(t, http.MethodPost, srv.URL+"/api/v1/reservations/"+res.ID+"/confirm", confirmReservationRequest{
		HolderToken: "tok-1", PatientName: "Barsik", OwnerPhone: "+79990000000",
	})
	if confirm.StatusCode != http.StatusOK {
		t.Fatalf("confirm status = %d, want 200", confirm.StatusCode)
	}
	appt := decode[appointmentResponse](t, confirm)
	if appt.Status != "scheduled" || appt.Time != "10:00" {
		t.Fatalf("appointment = %+v", appt)
	}

	// The reservation is consumed by confirm.
	second := doJSON(t, http.MethodPost, srv.URL+"/api/v1/reservations/"+res.ID+"/confirm", confirmReservationRequest{
		HolderToken: "tok-1", PatientName: "Barsik", OwnerPhone: "+79990000000",
	})
	second.Body.Close()
	if second.StatusCode != http.StatusNotFound {
		t.Fatalf("second confirm status = %d, want 404", second.StatusCode)
	}

	// Cancel frees the slot for a new hold.
	cancel := doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/v1/appointments/%d/cancel", srv.URL, appt.ID), nil)
	if cancel.StatusCode != http.StatusOK {
		t.Fatalf("cancel status = %d, want 200", cancel.StatusCode)
	}
	cancel.Body.Close()

	again := doJSON(t, http.MethodPost, srv.URL+"/api/v1/reservations", createReservationRequest{
		VetID: 1, Date: "2026-09-07", Time: "10:00", DurationMinutes: 30, HolderToken: "tok-3",
	})
	again.Body.Close()
	if again.StatusCode != http.StatusCreated {
		t.Fatalf("hold after cancel status = %d, want 201", again.StatusCode)
	}
}

func TestReleaseReservation(t *testing.T) {
	srv := setupTestServer(t, Options{})
	defer srv.Close()
	seedSchedule(t, srv.db, 1)

	create := doJSON(t, http.MethodPost, srv.URL+"/api/v1/reservations", createReservationRequest{
		VetID: 1, Date: "2026-09-07", Time: "14:00", DurationMinutes: 30, HolderToken: "tok-1",
	})
	res := decode[reservationResponse](t, create)

	release := doJSON(t, http.MethodDelete, srv.URL+"/api/v1/reservations/"+res.ID, holderTokenRequest{HolderToken: "tok-1"})
	release.Body.Close()
	if release.StatusCode != http.StatusNoContent {
		t.Fatalf("release status = %d, want 204", release.StatusCode)
	}

	release = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/reservations/"+res.ID, holderTokenRequest{HolderToken: "tok-1"})
	release.Body.Close()
	if release.StatusCode != http.StatusNotFound {
		t.Fatalf("second release status = %d, want 404", release.StatusCode)
	}
}

func TestVetDayView(t *testing.T) {
	srv := setupTestServer(t, Options{})
	defer srv.Close()
	seedSchedule(t, srv.db, 1)

	create := doJSON(t, http.MethodPost, srv.URL+"/api/v1/reservations", createReservationRequest{
		VetID: 1, Date: "2026-09-07", Time: "09:00", DurationMinutes: 30, HolderToken: "tok-1",
	})
	res := decode[reservationResponse](t, create)
	confirm := doJSON(t, http.MethodPost, srv.URL+"/api/v1/reservations/"+res.ID+"/confirm", confirmReservationRequest{
		HolderToken: "tok-1", PatientName: "Murka", OwnerPhone: "+79990000001",
	})
	confirm.Body.Close()

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/vets/1/day?date=2026-09-07&duration=30", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	day := decode[dayResponse](t, resp)

	if len(day.OpenIntervals) != 2 {
		t.Fatalf("open intervals = %+v, want two around the break", day.OpenIntervals)
	}
	if day.OpenIntervals[0].Start != "09:00" || day.OpenIntervals[0].End != "12:00" {
		t.Fatalf("first interval = %+v", day.OpenIntervals[0])
	}
	if len(day.Appointments) != 1 || day.Appointments[0].PatientName != "Murka" {
		t.Fatalf("appointments = %+v", day.Appointments)
	}

	var taken bool
	for _, slot := range day.Slots {
		if slot.Start == "09:00" && !slot.Available {
			taken = true
		}
	}
	if !taken {
		t.Error("booked 09:00 slot must appear as unavailable")
	}
}

func TestAPIKeyGuard(t *testing.T) {
	srv := setupTestServer(t, Options{APIKeys: []string{testAPIKey}})
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/availability?vet_id=1&date=2026-09-07&duration=30", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no key status = %d, want 401", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/availability?vet_id=1&date=2026-09-07&duration=30", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("valid key status = %d, want 200", resp.StatusCode)
	}
}

func TestHoldRateLimit(t *testing.T) {
	srv := setupTestServer(t, Options{HoldPerMinute: 5, HoldBurst: 2})
	defer srv.Close()
	seedSchedule(t, srv.db, 1)

	statuses := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/reservations", createReservationRequest{
			VetID: 1, Date: "2026-09-07", Time: fmt.Sprintf("%02d:00", 9+i), DurationMinutes: 30, HolderToken: "greedy",
		})
		resp.Body.Close()
		statuses = append(statuses, resp.StatusCode)
	}

	limited := 0
	for _, code := range statuses {
		if code == http.StatusTooManyRequests {
			limited++
		}
	}
	if limited == 0 {
		t.Fatalf("statuses = %v, expected at least one 429", statuses)
	}

	// A different holder token has its own budget.
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/reservations", createReservationRequest{
		VetID: 1, Date: "2026-09-07", Time: "16:00", DurationMinutes: 30, HolderToken: "polite",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("other token status = %d, want 201", resp.StatusCode)
	}
}
