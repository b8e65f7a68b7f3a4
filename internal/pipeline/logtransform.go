package pipeline

import "math"

// LogValue is ln(v) for positive v and 0 otherwise, NaN included.
func LogValue(v float64) float64 {
	if v > 0 {
		return math.Log(v)
	}
	return 0
}

func LogColumn(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = LogValue(v)
	}
	return out
}
