package model

import (
	"testing"
	"time"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"09:00", 540, false},
		{"12:30", 750, false},
		{"23:59", 1439, false},
		{"9:00", 540, false},
		{"24:00", 0, true},
		{"09:60", 0, true},
		{"09-00", 0, true},
		{"", 0, true},
		{"ab:cd", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseClock(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseClock(%q): expected error, got %d", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseClock(%q): unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseClock(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestFormatClock(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{0, "00:00"},
		{540, "09:00"},
		{750, "12:30"},
		{1439, "23:59"},
	}
	for _, tt := range tests {
		if got := FormatClock(tt.in); got != tt.want {
			t.Errorf("FormatClock(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWeekdays(t *testing.T) {
	wd := MondayToFriday
	if wd.Has(time.Sunday) || wd.Has(time.Saturday) {
		t.Error("monday-friday mask must exclude weekend")
	}
	for d := time.Monday; d <= time.Friday; d++ {
		if !wd.Has(d) {
			t.Errorf("monday-friday mask must include %v", d)
		}
	}

	sat := WeekdaysOf(time.Saturday)
	if !sat.Has(time.Saturday) || sat.Has(time.Friday) {
		t.Error("single-day mask wrong")
	}
	if !sat.With(time.Sunday).Has(time.Sunday) {
		t.Error("With must add the day")
	}
}
