package stats

// Rate returns num/den, or 0 when den is zero. Counters are allowed to run
// ahead of their denominator (a click with no recorded impression), so callers
// get 0 instead of a division failure.
func Rate(num, den int64) float64 {
	if den <= 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// Ratio is Rate for float quantities.
func Ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

// Mean returns the arithmetic mean of values and false when there are none.
func Mean(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values)), true
}
