package slots

import (
	"testing"

	"vetbook/internal/availability"
	"vetbook/internal/model"
)

func commitment(start string, duration int) model.Commitment {
	return model.Commitment{Source: model.CommitmentAppointment, StartTime: start, DurationMinutes: duration}
}

func TestGenerate(t *testing.T) {
	// 09:00-12:00 and 13:00-17:00
	open := []availability.Interval{{Start: 540, End: 720}, {Start: 780, End: 1020}}

	tests := []struct {
		name        string
		open        []availability.Interval
		duration    int
		step        int
		commitments []model.Commitment
		want        []string
	}{
		{
			name:     "morning half only, hourly visits",
			open:     []availability.Interval{{Start: 540, End: 720}},
			duration: 60,
			step:     60,
			want:     []string{"09:00", "10:00", "11:00"},
		},
		{
			name:        "booked 10:00 visit removes one slot",
			open:        []availability.Interval{{Start: 540, End: 720}},
			duration:    30,
			step:        30,
			commitments: []model.Commitment{commitment("10:00", 30)},
			want:        []string{"09:00", "09:30", "10:30", "11:00", "11:30"},
		},
		{
			name:     "slots never straddle the break",
			open:     open,
			duration: 60,
			step:     60,
			want:     []string{"09:00", "10:00", "11:00", "13:00", "14:00", "15:00", "16:00"},
		},
		{
			name:     "visit may start exactly when a commitment ends",
			open:     []availability.Interval{{Start: 540, End: 720}},
			duration: 30,
			step:     30,
			commitments: []model.Commitment{
				commitment("09:00", 60),
			},
			want: []string{"10:00", "10:30", "11:00", "11:30"},
		},
		{
			name:     "step defaults to duration when zero",
			open:     []availability.Interval{{Start: 540, End: 660}},
			duration: 45,
			step:     0,
			want:     []string{"09:00", "09:45"},
		},
		{
			name:     "duration longer than every interval",
			open:     open,
			duration: 300,
			step:     30,
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Generate(tt.open, tt.duration, tt.step, tt.commitments)
			if len(got) != len(tt.want) {
				t.Fatalf("Generate = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Generate[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestGenerateBoundaryOverlap(t *testing.T) {
	open := []availability.Interval{{Start: 540, End: 720}}

	// A commitment ending at 10:00 leaves the 10:00 slot free but a
	// candidate one minute earlier collides.
	got := Generate(open, 30, 30, []model.Commitment{commitment("09:30", 30)})
	for _, s := range got {
		if s == "09:30" {
			t.Error("commitment's own start must not be offered")
		}
	}
	found := false
	for _, s := range got {
		if s == "10:00" {
			found = true
		}
	}
	if !found {
		t.Error("slot starting at a commitment's end must be offered")
	}
}

func TestAnnotate(t *testing.T) {
	open := []availability.Interval{{Start: 540, End: 660}} // 09:00-11:00

	infos := Annotate(open, 30, 30, []model.Commitment{commitment("09:30", 30)})
	if len(infos) != 4 {
		t.Fatalf("expected 4 slots, got %d", len(infos))
	}

	wantAvail := map[string]bool{
		"09:00": true,
		"09:30": false,
		"10:00": true,
		"10:30": true,
	}
	for _, info := range infos {
		if info.Available != wantAvail[info.Start] {
			t.Errorf("slot %s available = %v, want %v", info.Start, info.Available, wantAvail[info.Start])
		}
	}
}
