package analytics

import (
	"math"

	"iot-anomaly-engine/models"
)

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0.0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sampleStd is the n-1 estimator. Returns 0 for fewer than two values,
// which callers must treat as "no baseline".
func sampleStd(values []float64, avg float64) float64 {
	if len(values) < 2 {
		return 0.0
	}
	variance := 0.0
	for _, v := range values {
		diff := v - avg
		variance += diff * diff
	}
	variance /= float64(len(values) - 1)
	return math.Sqrt(variance)
}

func pointValues(points []models.DataPoint) []float64 {
	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}
	return values
}

// pearson computes the Pearson correlation coefficient of two equal-length
// value slices. A zero-variance input degenerates to 0.0 rather than NaN.
func pearson(a, b []float64) float64 {
	n := len(a)
	if n == 0 || n != len(b) {
		return 0.0
	}

	meanA := mean(a)
	meanB := mean(b)

	var cov, varA, varB float64
	for i := 0; i < n; i++ {
		da := a[i] - meanA
		db := b[i] - meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}

	if varA == 0 || varB == 0 {
		return 0.0
	}
	return cov / math.Sqrt(varA*varB)
}

func tail(points []models.DataPoint, n int) []models.DataPoint {
	if n <= 0 || len(points) <= n {
		return points
	}
	return points[len(points)-n:]
}
