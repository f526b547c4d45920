package analyzer

import "math"

// safeDiv returns 0 when the denominator is 0.
func safeDiv(numerator, denominator float64) float64 {
	if denominator == 0 {
		return 0
	}
	return numerator / denominator
}

// ceilDiv is ceil(n/d) for non-negative n and positive d.
func ceilDiv(n, d int64) int64 {
	if d <= 0 {
		return 0
	}
	return (n + d - 1) / d
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// RoundTo rounds half away from zero to the given number of decimal places.
func RoundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// PercentOf turns a 0-1 ratio into a rounded integer percentage.
func PercentOf(ratio float64) int {
	return int(math.Round(ratio * 100))
}
