package daterange

import (
	"testing"
	"time"
)

func date(d int) time.Time {
	return time.Date(2026, time.January, d, 0, 0, 0, 0, time.UTC)
}

func TestNewRejectsInvalidRanges(t *testing.T) {
	tests := []struct {
		name  string
		start time.Time
		end   time.Time
	}{
		{"zero start", time.Time{}, date(5)},
		{"zero end", date(1), time.Time{}},
		{"end before start", date(5), date(1)},
		{"end equals start", date(3), date(3)},
	}

	for _, tt := range tests {
		if _, err := New(tt.start, tt.end); err != ErrInvalidRange {
			t.Errorf("%s: New() error = %v; want ErrInvalidRange", tt.name, err)
		}
	}
}

func TestNewNormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*3600)
	dr, err := New(time.Date(2026, time.January, 1, 7, 0, 0, 0, loc), date(3))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if dr.Start.Location() != time.UTC {
		t.Errorf("Start location = %v; want UTC", dr.Start.Location())
	}
	if !dr.Start.Equal(date(1)) {
		t.Errorf("Start = %v; want %v", dr.Start, date(1))
	}
}

func TestDaysRoundsPartialDaysUp(t *testing.T) {
	tests := []struct {
		start time.Time
		end   time.Time
		want  int
	}{
		{date(1), date(2), 1},
		{date(1), date(5), 4},
		{date(1), date(1).Add(6 * time.Hour), 1},
		{date(1), date(2).Add(time.Minute), 2},
	}

	for _, tt := range tests {
		dr := DateRange{Start: tt.start, End: tt.end}
		if got := dr.Days(); got != tt.want {
			t.Errorf("Days(%v..%v) = %d; want %d", tt.start, tt.end, got, tt.want)
		}
	}
}

func TestOverlapsIsHalfOpen(t *testing.T) {
	base := DateRange{Start: date(5), End: date(10)}

	tests := []struct {
		name  string
		other DateRange
		want  bool
	}{
		{"fully before", DateRange{Start: date(1), End: date(3)}, false},
		{"fully after", DateRange{Start: date(12), End: date(15)}, false},
		{"identical", DateRange{Start: date(5), End: date(10)}, true},
		{"contained", DateRange{Start: date(6), End: date(8)}, true},
		{"containing", DateRange{Start: date(1), End: date(20)}, true},
		{"overlap left edge", DateRange{Start: date(3), End: date(6)}, true},
		{"overlap right edge", DateRange{Start: date(9), End: date(12)}, true},
		{"ends at start", DateRange{Start: date(1), End: date(5)}, false},
		{"starts at end", DateRange{Start: date(10), End: date(14)}, false},
	}

	for _, tt := range tests {
		if got := base.Overlaps(tt.other); got != tt.want {
			t.Errorf("%s: Overlaps = %v; want %v", tt.name, got, tt.want)
		}
		// Overlap is symmetric.
		if got := tt.other.Overlaps(base); got != tt.want {
			t.Errorf("%s: reverse Overlaps = %v; want %v", tt.name, got, tt.want)
		}
	}
}

func TestAdjacent(t *testing.T) {
	base := DateRange{Start: date(5), End: date(10)}
	after := DateRange{Start: date(10), End: date(14)}
	before := DateRange{Start: date(1), End: date(5)}
	gap := DateRange{Start: date(11), End: date(14)}

	if !base.Adjacent(after) || !base.Adjacent(before) {
		t.Errorf("expected back-to-back ranges to be adjacent")
	}
	if base.Adjacent(gap) {
		t.Errorf("ranges with a gap must not report adjacency")
	}
}

func TestContainsInstant(t *testing.T) {
	dr := DateRange{Start: date(5), End: date(10)}

	if !dr.ContainsInstant(date(5)) {
		t.Errorf("start instant must be contained")
	}
	if dr.ContainsInstant(date(10)) {
		t.Errorf("end instant must not be contained")
	}
	if dr.ContainsInstant(date(4)) {
		t.Errorf("instant before start must not be contained")
	}
}

func TestElapsed(t *testing.T) {
	dr := DateRange{Start: date(5), End: date(10)}

	if dr.Elapsed(date(9)) {
		t.Errorf("range still running must not be elapsed")
	}
	if !dr.Elapsed(date(10)) {
		t.Errorf("range is elapsed at its end instant")
	}
	if !dr.Elapsed(date(12)) {
		t.Errorf("range fully in the past must be elapsed")
	}
}
