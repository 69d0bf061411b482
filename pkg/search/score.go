package search

import (
	"math"
	"time"
)

// HybridScore combines vector distance, recency, and access frequency into
// one ranking value. distance is a cosine distance in [0, 2].
//
//	base       = 1 - distance/2
//	time_boost = 1 + 1/ln(2 + days_since_access)
//	freq_boost = 1 + 0.1*ln(1 + access_count)
//	score      = base * time_boost * freq_boost
//
// Multiplicative composition keeps an irrelevant memory irrelevant no
// matter how recent or frequent; the logarithms keep both boosts
// sub-linear so an access spike cannot dominate semantic relevance. The
// function is pure: same inputs, same score.
func HybridScore(distance float64, accessedAt time.Time, accessCount int, now time.Time) float64 {
	base := 1 - distance/2
	if base < 0 {
		base = 0
	}

	days := now.Sub(accessedAt).Hours() / 24
	if days < 0 {
		days = 0
	}
	timeBoost := 1 + 1/math.Log(2+days)

	freqBoost := 1 + 0.1*math.Log(1+float64(accessCount))

	return base * timeBoost * freqBoost
}
