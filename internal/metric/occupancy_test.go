package metric

import (
	"math"
	"testing"

	clierr "github.com/ggonzalez94/lpman/internal/errors"
)

func TestOccupancy(t *testing.T) {
	cases := []struct {
		min, max, current, want float64
	}{
		{100, 200, 150, 0.5},
		{100, 200, 250, 1.5},
		{100, 200, 50, -0.5},
		{1, 3, 2, 0.5},
		{100, 200, 100, 0},
	}
	for _, tc := range cases {
		got, err := Occupancy(tc.min, tc.max, tc.current)
		if err != nil {
			t.Fatalf("Occupancy(%v, %v, %v) failed: %v", tc.min, tc.max, tc.current, err)
		}
		if got != tc.want {
			t.Fatalf("Occupancy(%v, %v, %v) = %v, want %v", tc.min, tc.max, tc.current, got, tc.want)
		}
	}
}

func TestOccupancyInvalidRange(t *testing.T) {
	for _, r := range [][3]float64{{100, 100, 150}, {200, 100, 150}, {math.NaN(), 1, 1}, {0, math.Inf(1), 1}} {
		if _, err := Occupancy(r[0], r[1], r[2]); !clierr.Is(err, clierr.CodeInvalidRange) {
			t.Fatalf("expected invalid range for %v, got %v", r, err)
		}
	}
}

func TestPercentRoundsForDisplay(t *testing.T) {
	if got := Percent(0.5); got != 50 {
		t.Fatalf("expected 50, got %v", got)
	}
	if got := Percent(1.0 / 3.0); got != 33.33 {
		t.Fatalf("expected 33.33, got %v", got)
	}
	if got := Percent(-0.123456); got != -12.35 {
		t.Fatalf("expected -12.35, got %v", got)
	}
}
