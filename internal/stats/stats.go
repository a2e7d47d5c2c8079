package stats

import (
	"math"
	"slices"
)

// Percentile returns the p-th percentile (0-100) of sorted values using
// linear interpolation between the two nearest ranks. Returns 0 for empty input.
// The input must already be sorted ascending; use PercentileUnsorted otherwise.
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))

	if lower < 0 {
		return sorted[0]
	}
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	if lower == upper {
		return sorted[lower]
	}

	weight := rank - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// PercentileUnsorted sorts a copy of values and delegates to Percentile.
func PercentileUnsorted(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	temp := make([]float64, len(values))
	copy(temp, values)
	slices.Sort(temp)
	return Percentile(temp, p)
}

// Mean returns the arithmetic mean. Returns 0 for empty input.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev returns the population standard deviation (divide by n, not n-1).
// Returns 0 when fewer than two values are present.
func StdDev(values []float64) float64 {
	if len(values) <= 1 {
		return 0
	}
	mean := Mean(values)
	sumSq := 0.0
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)))
}

// ZScore returns the absolute number of standard deviations value lies from mean.
// Defined as 0 when stddev is 0. That is a deliberate floor to keep downstream
// thresholds well-behaved on flat series, not a claim of zero deviation.
func ZScore(value, mean, stddev float64) float64 {
	if stddev == 0 {
		return 0
	}
	return math.Abs(value-mean) / stddev
}

// LinearTrend returns the ordinary-least-squares slope of values against their
// index positions (0..n-1), using the closed-form sums. Returns 0 for series
// shorter than 2 points or when the OLS denominator collapses to 0.
func LinearTrend(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, v := range values {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}

	denom := float64(n)*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (float64(n)*sumXY - sumX*sumY) / denom
}

// CoefficientOfVariation returns stddev/mean, or 0 when the mean is 0.
func CoefficientOfVariation(values []float64) float64 {
	mean := Mean(values)
	if mean == 0 {
		return 0
	}
	return StdDev(values) / mean
}

// MinMax returns the smallest and largest values. Returns (0, 0) for empty input.
func MinMax(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	minV, maxV := values[0], values[0]
	for _, v := range values[1:] {
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	return minV, maxV
}
