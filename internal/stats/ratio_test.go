package stats_test

import (
	"math"
	"testing"

	"github.com/headline-goat/funnel-goat/internal/stats"
)

func TestRate(t *testing.T) {
	tests := []struct {
		num, den int64
		expected float64
	}{
		{1, 1, 1.0},
		{1, 4, 0.25},
		{0, 10, 0},
		{3, 0, 0},
		{5, -1, 0},
		{7, 2, 3.5},
	}

	for _, tt := range tests {
		if got := stats.Rate(tt.num, tt.den); math.Abs(got-tt.expected) > 1e-9 {
			t.Errorf("Rate(%d, %d) = %f, want %f", tt.num, tt.den, got, tt.expected)
		}
	}
}

func TestRatio_ZeroDenominator(t *testing.T) {
	if got := stats.Ratio(40, 0); got != 0 {
		t.Errorf("expected 0 for zero denominator, got %f", got)
	}
	if got := stats.Ratio(40, 4); got != 10 {
		t.Errorf("Ratio(40, 4) = %f, want 10", got)
	}
}

func TestMean(t *testing.T) {
	if _, ok := stats.Mean(nil); ok {
		t.Error("expected no mean for empty input")
	}

	mean, ok := stats.Mean([]float64{30, 60, 90})
	if !ok {
		t.Fatal("expected a mean")
	}
	if mean != 60 {
		t.Errorf("got mean %f, want 60", mean)
	}
}
