package reservation

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"vetbook/internal/audit"
	"vetbook/internal/events"
	"vetbook/internal/metrics"
	"vetbook/internal/model"
)

// Reaper periodically deletes reservations past their TTL, returning
// their slots to the pool. Each sweep is idempotent: a reservation
// confirmed or released between the scan and the delete is simply
// absent and not counted.
type Reaper struct {
	store    Store
	notifier *events.Notifier
	audit    *audit.Recorder
	interval time.Duration
	logger   *zerolog.Logger
	now      func() time.Time
}

func NewReaper(store Store, notifier *events.Notifier, recorder *audit.Recorder, interval time.Duration, logger *zerolog.Logger) *Reaper {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &Reaper{
		store:    store,
		notifier: notifier,
		audit:    recorder,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Start runs the sweep loop until the context is cancelled.
func (r *Reaper) Start(ctx context.Context) {
	r.logger.Info().Dur("interval", r.interval).Msg("reservation reaper started")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("reservation reaper stopped")
			return
		case <-ticker.C:
			if _, err := r.SweepOnce(ctx); err != nil {
				r.logger.Error().Err(err).Msg("reaper sweep failed")
			}
		}
	}
}

// SweepOnce deletes every reservation whose expiry has passed and
// notifies each affected (vet, date) topic once. Returns the number of
// reservations removed.
func (r *Reaper) SweepOnce(ctx context.Context) (int, error) {
	swept, err := r.store.SweepExpired(ctx, r.now())
	if err != nil {
		return len(swept), err
	}
	if len(swept) == 0 {
		return 0, nil
	}

	type pair struct {
		vetID int64
		date  string
	}
	notified := make(map[pair]struct{})

	for i := range swept {
		res := &swept[i]
		r.audit.Reservation(ctx, "expired", res)

		key := pair{vetID: res.VetID, date: model.DateKey(res.Date)}
		if _, done := notified[key]; done {
			continue
		}
		notified[key] = struct{}{}
		r.notifier.Publish(events.KindExpired, res.VetID, res.Date)
	}

	metrics.AddReaped(len(swept))
	r.logger.Info().
		Int("swept", len(swept)).
		Int("topics", len(notified)).
		Msg("expired reservations reaped")
	return len(swept), nil
}
