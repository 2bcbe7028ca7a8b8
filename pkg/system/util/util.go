package util

import "math"

// DeltaU64 returns now-prev for monotonic counters, or 0 when the counter
// went backwards (wrap, reset, or prev unset).
func DeltaU64(now, prev uint64) uint64 {
	if now >= prev {
		return now - prev
	}
	return 0
}

func SafeDiv(n, d float64) float64 {
	const eps = 1e-12
	if d > eps || d < -eps {
		return n / d
	}
	return 0
}

// ClampPercent bounds x to [0,100]; NaN becomes 0.
func ClampPercent(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if x > 100 {
		return 100
	}
	return x
}
