package model

import "time"

// SchedulePeriod describes a vet's standard weekly working pattern over a
// date range. Times are clock strings ("09:00"); dates are day-granular
// and inclusive on both ends.
type SchedulePeriod struct {
	ID          int64     `json:"id"`
	VetID       int64     `json:"vet_id"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	WorkDays    Weekdays  `json:"work_days"` // bitmask, Monday = bit 1
	WorkStart   string    `json:"work_start"` // "09:00"
	WorkEnd     string    `json:"work_end"`   // "17:00"
	BreakStart  string    `json:"break_start,omitempty"`
	BreakEnd    string    `json:"break_end,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HasBreak reports whether the period carries a recurring break.
func (p *SchedulePeriod) HasBreak() bool {
	return p.BreakStart != "" && p.BreakEnd != ""
}

// Covers reports whether date falls inside [StartDate, EndDate].
func (p *SchedulePeriod) Covers(date time.Time) bool {
	d := Day(date)
	return !d.Before(Day(p.StartDate)) && !d.After(Day(p.EndDate))
}

// Weekdays is a working-days set packed into a bitmask.
// Bit 0 is Sunday, matching time.Weekday numbering.
type Weekdays int

// Has reports whether the weekday is in the set.
func (w Weekdays) Has(day time.Weekday) bool {
	return w&(1<<uint(day)) != 0
}

// With returns the set extended with the given weekday.
func (w Weekdays) With(day time.Weekday) Weekdays {
	return w | 1<<uint(day)
}

// WeekdaysOf builds a set from the listed weekdays.
func WeekdaysOf(days ...time.Weekday) Weekdays {
	var w Weekdays
	for _, d := range days {
		w = w.With(d)
	}
	return w
}

// MondayToFriday is the common clinic pattern.
var MondayToFriday = WeekdaysOf(
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday,
)

// DayOff marks a vet fully unavailable on a specific date.
// It overrides any SchedulePeriod covering that date.
type DayOff struct {
	ID        int64     `json:"id"`
	VetID     int64     `json:"vet_id"`
	Date      time.Time `json:"date"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Break is a non-working window inside a working day. A recurring break
// applies to a weekday every week; a specific break applies to one date.
type Break struct {
	ID         int64      `json:"id"`
	VetID      int64      `json:"vet_id"`
	IsSpecific bool       `json:"is_specific"`
	Weekday    int        `json:"weekday,omitempty"` // recurring breaks, time.Weekday numbering
	Date       *time.Time `json:"date,omitempty"`    // specific breaks
	StartTime  string     `json:"start_time"`        // "12:00"
	EndTime    string     `json:"end_time"`          // "13:00"
	CreatedAt  time.Time  `json:"created_at"`
}

// AppliesTo reports whether the break is in effect on the given date.
func (b *Break) AppliesTo(date time.Time) bool {
	if b.IsSpecific {
		return b.Date != nil && Day(*b.Date).Equal(Day(date))
	}
	return int(date.Weekday()) == b.Weekday
}

// Day truncates a timestamp to day granularity in its own location.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// DateKey formats a date the way it is keyed throughout the system.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
