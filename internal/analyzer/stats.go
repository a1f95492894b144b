package analyzer

import "math"

// Mean returns the arithmetic mean, or 0 for no values
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev returns the population standard deviation
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := Mean(values)
	var sq float64
	for _, v := range values {
		sq += (v - m) * (v - m)
	}
	return math.Sqrt(sq / float64(len(values)))
}

// ZScores returns (v-mean)/stddev for every value. A flat series yields all zeros.
func ZScores(values []float64) []float64 {
	out := make([]float64, len(values))
	sd := StdDev(values)
	if sd == 0 {
		return out
	}
	m := Mean(values)
	for i, v := range values {
		out[i] = (v - m) / sd
	}
	return out
}

// CountOutliers counts values whose z-score exceeds threshold
func CountOutliers(values []float64, threshold float64) int {
	n := 0
	for _, z := range ZScores(values) {
		if z > threshold {
			n++
		}
	}
	return n
}
