// Package slots turns open intervals into bookable visit start times.
package slots

import (
	"vetbook/internal/availability"
	"vetbook/internal/model"
)

// SlotInfo is a simplified slot representation for UI.
type SlotInfo struct {
	Start     string `json:"start"` // "10:00"
	End       string `json:"end"`   // "10:30"
	Available bool   `json:"available"`
}

// Generate returns the ordered start times ("HH:MM") at which a visit of
// durationMinutes fits inside the open intervals without overlapping any
// commitment. stepMinutes is the slot granularity; zero or negative
// means the visit duration itself. Output order follows interval order
// and monotonic steps, so it is already sorted.
func Generate(openIntervals []availability.Interval, durationMinutes, stepMinutes int, commitments []model.Commitment) []string {
	if durationMinutes <= 0 {
		return nil
	}
	if stepMinutes <= 0 {
		stepMinutes = durationMinutes
	}

	var starts []string
	for _, iv := range openIntervals {
		for t := iv.Start; t+durationMinutes <= iv.End; t += stepMinutes {
			if overlapsAny(t, durationMinutes, commitments) {
				continue
			}
			starts = append(starts, model.FormatClock(t))
		}
	}
	return starts
}

// Annotate returns every candidate slot in the open intervals with its
// availability flag, for reception day views that show taken slots too.
func Annotate(openIntervals []availability.Interval, durationMinutes, stepMinutes int, commitments []model.Commitment) []SlotInfo {
	if durationMinutes <= 0 {
		return nil
	}
	if stepMinutes <= 0 {
		stepMinutes = durationMinutes
	}

	var infos []SlotInfo
	for _, iv := range openIntervals {
		for t := iv.Start; t+durationMinutes <= iv.End; t += stepMinutes {
			infos = append(infos, SlotInfo{
				Start:     model.FormatClock(t),
				End:       model.FormatClock(t + durationMinutes),
				Available: !overlapsAny(t, durationMinutes, commitments),
			})
		}
	}
	return infos
}

// overlapsAny applies the half-open overlap test: a candidate
// [t, t+duration) collides with a commitment [c.start, c.end) when
// t < c.end && c.start < t+duration. Touching boundaries do not
// collide, so a visit may start exactly when another ends.
func overlapsAny(t, duration int, commitments []model.Commitment) bool {
	for i := range commitments {
		c := &commitments[i]
		if t < c.EndMinute() && c.StartMinute() < t+duration {
			return true
		}
	}
	return false
}
