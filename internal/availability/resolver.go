// Package availability resolves a vet's layered schedule rules into the
// open intervals of a single day. Precedence: day off > specific-date
// break > recurring break > schedule period.
package availability

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"vetbook/internal/model"
)

// Reason explains an empty result. It is data for the caller, not an
// error: staff-facing UIs show why the day has no slots.
type Reason string

const (
	ReasonNone        Reason = ""
	ReasonDayOff      Reason = "dayOff"
	ReasonWeekendOff  Reason = "weekendOff"
	ReasonNoSchedule  Reason = "noSchedule"
	ReasonFullyBooked Reason = "fullyBooked"
)

// Interval is a half-open [Start, End) span in minutes since midnight.
type Interval struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Empty reports whether the interval contains no time.
func (iv Interval) Empty() bool {
	return iv.End <= iv.Start
}

// Clip bounds the interval to the given window.
func (iv Interval) Clip(window Interval) Interval {
	if iv.Start < window.Start {
		iv.Start = window.Start
	}
	if iv.End > window.End {
		iv.End = window.End
	}
	return iv
}

// RuleStore is the read-only schedule rule source.
type RuleStore interface {
	GetSchedulePeriods(ctx context.Context, vetID int64, date time.Time) ([]model.SchedulePeriod, error)
	GetDayOff(ctx context.Context, vetID int64, date time.Time) (*model.DayOff, error)
	GetBreaks(ctx context.Context, vetID int64, date time.Time) ([]model.Break, error)
}

// Resolver merges schedule rules into open intervals.
type Resolver struct {
	rules  RuleStore
	logger *zerolog.Logger
}

func NewResolver(rules RuleStore, logger *zerolog.Logger) *Resolver {
	return &Resolver{rules: rules, logger: logger}
}

// ResolveOpenIntervals returns the ordered, disjoint working intervals
// for (vetID, date). When the list is empty the reason says why. The
// result is computed fresh on every call; commitments change too often
// for it to be cached.
func (r *Resolver) ResolveOpenIntervals(ctx context.Context, vetID int64, date time.Time) ([]Interval, Reason, error) {
	dayOff, err := r.rules.GetDayOff(ctx, vetID, date)
	if err != nil {
		return nil, ReasonNone, fmt.Errorf("get day off: %w", err)
	}
	if dayOff != nil {
		return nil, ReasonDayOff, nil
	}

	periods, err := r.rules.GetSchedulePeriods(ctx, vetID, date)
	if err != nil {
		return nil, ReasonNone, fmt.Errorf("get schedule periods: %w", err)
	}
	if len(periods) == 0 {
		return nil, ReasonNoSchedule, nil
	}

	// Period ranges may overlap in the source data; the store orders by
	// creation time so the newest period wins.
	period := periods[0]
	if len(periods) > 1 {
		r.logger.Warn().
			Int64("vet_id", vetID).
			Str("date", model.DateKey(date)).
			Int("periods", len(periods)).
			Int64("chosen", period.ID).
			Msg("overlapping schedule periods, using most recent")
	}

	if !period.WorkDays.Has(date.Weekday()) {
		return nil, ReasonWeekendOff, nil
	}

	window, err := clockInterval(period.WorkStart, period.WorkEnd)
	if err != nil {
		return nil, ReasonNone, fmt.Errorf("period %d window: %w", period.ID, err)
	}
	if window.Empty() {
		return nil, ReasonNoSchedule, nil
	}

	blocked, err := r.blockedIntervals(ctx, vetID, date, &period, window)
	if err != nil {
		return nil, ReasonNone, err
	}

	open := Subtract(window, blocked)
	if len(open) == 0 {
		// Breaks consumed the whole window; the vet has no working
		// time that day even though a period covers it.
		return nil, ReasonNoSchedule, nil
	}
	return open, ReasonNone, nil
}

// blockedIntervals gathers the period's recurring break and the break
// rows in effect on the date, clipped to the working window.
func (r *Resolver) blockedIntervals(ctx context.Context, vetID int64, date time.Time, period *model.SchedulePeriod, window Interval) ([]Interval, error) {
	var blocked []Interval

	if period.HasBreak() {
		iv, err := clockInterval(period.BreakStart, period.BreakEnd)
		if err != nil {
			return nil, fmt.Errorf("period %d break: %w", period.ID, err)
		}
		if iv = iv.Clip(window); !iv.Empty() {
			blocked = append(blocked, iv)
		}
	}

	breaks, err := r.rules.GetBreaks(ctx, vetID, date)
	if err != nil {
		return nil, fmt.Errorf("get breaks: %w", err)
	}
	for i := range breaks {
		b := &breaks[i]
		if !b.AppliesTo(date) {
			continue
		}
		iv, err := clockInterval(b.StartTime, b.EndTime)
		if err != nil {
			return nil, fmt.Errorf("break %d: %w", b.ID, err)
		}
		if iv = iv.Clip(window); !iv.Empty() {
			blocked = append(blocked, iv)
		}
	}

	return Merge(blocked), nil
}

// Merge unions overlapping or touching intervals into a sorted disjoint
// list.
func Merge(intervals []Interval) []Interval {
	if len(intervals) <= 1 {
		return intervals
	}

	sorted := append([]Interval(nil), intervals...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	merged := []Interval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &merged[len(merged)-1]
		if iv.Start <= last.End {
			if iv.End > last.End {
				last.End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

// Subtract removes the blocked intervals from the window, producing the
// ordered open sub-intervals. Blocked must be sorted and disjoint (see
// Merge). A block fully inside the window splits it; a block at either
// edge truncates it.
func Subtract(window Interval, blocked []Interval) []Interval {
	var open []Interval
	cursor := window.Start

	for _, b := range blocked {
		if b.Start > cursor {
			open = append(open, Interval{Start: cursor, End: b.Start})
		}
		if b.End > cursor {
			cursor = b.End
		}
	}
	if cursor < window.End {
		open = append(open, Interval{Start: cursor, End: window.End})
	}
	return open
}

func clockInterval(start, end string) (Interval, error) {
	s, err := model.ParseClock(start)
	if err != nil {
		return Interval{}, err
	}
	e, err := model.ParseClock(end)
	if err != nil {
		return Interval{}, err
	}
	return Interval{Start: s, End: e}, nil
}
