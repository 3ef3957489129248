package appointment

import (
	"testing"
	"time"
)

func TestNextOccurrence(t *testing.T) {
	// Wednesday 2025-03-12 10:00 UTC
	now := time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		dayOfWeek int
		start     string
		want      time.Time
	}{
		{"later this week", int(time.Friday), "09:00", time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)},
		{"same weekday goes to next week", int(time.Wednesday), "15:30:00", time.Date(2025, 3, 19, 15, 30, 0, 0, time.UTC)},
		{"earlier weekday wraps", int(time.Monday), "08:15", time.Date(2025, 3, 17, 8, 15, 0, 0, time.UTC)},
		{"sunday", int(time.Sunday), "12:00:30", time.Date(2025, 3, 16, 12, 0, 30, 0, time.UTC)},
		{"tomorrow", int(time.Thursday), "07:00", time.Date(2025, 3, 13, 7, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextOccurrence(now, tt.dayOfWeek, tt.start, time.UTC)
			if err != nil {
				t.Fatalf("NextOccurrence: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			if got.Weekday() != time.Weekday(tt.dayOfWeek) {
				t.Fatalf("weekday %v, want %v", got.Weekday(), time.Weekday(tt.dayOfWeek))
			}
		})
	}
}

func TestNextOccurrenceUsesLocation(t *testing.T) {
	nairobi := time.FixedZone("EAT", 3*60*60)
	// Tuesday 22:30 UTC is already Wednesday in Nairobi.
	now := time.Date(2025, 3, 11, 22, 30, 0, 0, time.UTC)

	got, err := NextOccurrence(now, int(time.Thursday), "09:00", nairobi)
	if err != nil {
		t.Fatalf("NextOccurrence: %v", err)
	}
	want := time.Date(2025, 3, 13, 9, 0, 0, 0, nairobi)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestNextOccurrenceRejectsBadInput(t *testing.T) {
	now := time.Now()
	if _, err := NextOccurrence(now, 7, "09:00", time.UTC); err == nil {
		t.Fatal("expected error for day 7")
	}
	for _, s := range []string{"", "9", "24:00", "10:60", "aa:bb", "10:00:00:00"} {
		if _, err := NextOccurrence(now, 1, s, time.UTC); err == nil {
			t.Fatalf("expected error for %q", s)
		}
	}
}

func TestNextEligibleDate(t *testing.T) {
	last := time.Date(2025, 1, 10, 16, 45, 0, 0, time.UTC)
	got := NextEligibleDate(last, time.UTC)
	want := time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}
