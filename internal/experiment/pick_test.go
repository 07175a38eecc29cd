package experiment

import "testing"

func TestPick_CumulativeWeights(t *testing.T) {
	variants := []Variant{{ID: "a", Weight: 1}, {ID: "b", Weight: 2}, {ID: "c", Weight: 1}}

	tests := []struct {
		r        float64
		expected string
	}{
		{0, "a"},
		{0.999, "a"},
		{1, "b"},
		{2.999, "b"},
		{3, "c"},
		{3.999, "c"},
		{4, "c"}, // rounding guard
	}

	for _, tt := range tests {
		if got := pick(variants, tt.r); got != tt.expected {
			t.Errorf("pick(r=%v) = %s, want %s", tt.r, got, tt.expected)
		}
	}
}
