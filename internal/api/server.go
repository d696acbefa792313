// Package api exposes the booking engine over HTTP: availability reads,
// reservation writes, and a per-(vet, date) SSE event stream.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"vetbook/internal/audit"
	"vetbook/internal/availability"
	"vetbook/internal/database"
	"vetbook/internal/events"
	"vetbook/internal/reservation"
)

// Options tune the HTTP surface.
type Options struct {
	Port            int
	APIKeys         []string
	SlotStepMinutes int
	MaxDuration     int
	// HoldPerMinute and HoldBurst rate-limit hold attempts per holder
	// token. Zero disables limiting.
	HoldPerMinute int
	HoldBurst     int
}

// HTTPServer wires the engine's components to routes.
type HTTPServer struct {
	server   *http.Server
	db       *database.DB
	resolver *availability.Resolver
	manager  *reservation.Manager
	notifier *events.Notifier
	audit    *audit.Recorder
	logger   *zerolog.Logger
	opts     Options

	apiKeys map[string]bool

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter
}

func NewHTTPServer(db *database.DB, resolver *availability.Resolver, manager *reservation.Manager, notifier *events.Notifier, auditRec *audit.Recorder, opts Options, logger *zerolog.Logger) *HTTPServer {
	if opts.Port == 0 {
		opts.Port = 8080
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 240
	}

	keys := make(map[string]bool, len(opts.APIKeys))
	for _, k := range opts.APIKeys {
		if k != "" {
			keys[k] = true
		}
	}

	s := &HTTPServer{
		db:       db,
		resolver: resolver,
		manager:  manager,
		notifier: notifier,
		audit:    auditRec,
		logger:   logger,
		opts:     opts,
		apiKeys:  keys,
		limiters: make(map[string]*rate.Limiter),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/availability", s.requireAPIKey(s.handleAvailability))
	mux.HandleFunc("GET /api/v1/vets/{id}/day", s.requireAPIKey(s.handleVetDay))
	mux.HandleFunc("POST /api/v1/reservations", s.requireAPIKey(s.handleCreateReservation))
	mux.HandleFunc("POST /api/v1/reservations/{id}/renew", s.requireAPIKey(s.handleRenewReservation))
	mux.HandleFunc("POST /api/v1/reservations/{id}/confirm", s.requireAPIKey(s.handleConfirmReservation))
	mux.HandleFunc("DELETE /api/v1/reservations/{id}", s.requireAPIKey(s.handleReleaseReservation))
	mux.HandleFunc("POST /api/v1/appointments/{id}/cancel", s.requireAPIKey(s.handleCancelAppointment))
	mux.HandleFunc("GET /api/v1/events", s.requireAPIKey(s.handleEventStream))

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the route table for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until the context is cancelled.
func (s *HTTPServer) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(ctxShutdown)
	}()

	s.logger.Info().Str("addr", s.server.Addr).Msg("API server listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("API server: %w", err)
	}
	return nil
}

// requireAPIKey guards a handler behind the x-api-key header. With no
// keys configured the guard is off (local development).
func (s *HTTPServer) requireAPIKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if len(s.apiKeys) > 0 && !s.apiKeys[r.Header.Get("x-api-key")] {
			writeError(w, http.StatusUnauthorized, "invalid or missing API key")
			return
		}
		next(w, r)
	}
}

// allowHold applies the per-holder-token rate limit.
func (s *HTTPServer) allowHold(token string) bool {
	if s.opts.HoldPerMinute <= 0 {
		return true
	}

	s.limiterMu.Lock()
	defer s.limiterMu.Unlock()

	lim, ok := s.limiters[token]
	if !ok {
		burst := s.opts.HoldBurst
		if burst <= 0 {
			burst = s.opts.HoldPerMinute
		}
		lim = rate.NewLimiter(rate.Limit(float64(s.opts.HoldPerMinute)/60.0), burst)
		s.limiters[token] = lim
	}
	return lim.Allow()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
