package search

import (
	"testing"
	"time"
)

func TestHybridScore_IrrelevantStaysIrrelevant(t *testing.T) {
	now := time.Now()
	// Maximum distance means zero base similarity; no amount of recency
	// or frequency can resurrect it.
	score := HybridScore(2.0, now, 10000, now)
	if score != 0 {
		t.Errorf("expected 0 for orthogonal-opposite memory, got %f", score)
	}
}

func TestHybridScore_RecencyBoost(t *testing.T) {
	now := time.Now()
	recent := HybridScore(0.5, now.Add(-1*time.Hour), 0, now)
	stale := HybridScore(0.5, now.AddDate(0, 0, -90), 0, now)
	if recent <= stale {
		t.Errorf("recently accessed memory must outrank stale one: %f <= %f", recent, stale)
	}
}

func TestHybridScore_FrequencyBoost(t *testing.T) {
	now := time.Now()
	accessed := now.Add(-24 * time.Hour)
	frequent := HybridScore(0.5, accessed, 50, now)
	rare := HybridScore(0.5, accessed, 0, now)
	if frequent <= rare {
		t.Errorf("frequently accessed memory must outrank rare one: %f <= %f", frequent, rare)
	}
}

func TestHybridScore_FrequencyCannotDominateSimilarity(t *testing.T) {
	now := time.Now()
	accessed := now.Add(-24 * time.Hour)
	// A much more similar memory beats a frequency outlier.
	similar := HybridScore(0.2, accessed, 0, now)
	spiked := HybridScore(1.6, accessed, 100000, now)
	if similar <= spiked {
		t.Errorf("similarity must dominate an access spike: %f <= %f", similar, spiked)
	}
}

func TestHybridScore_Deterministic(t *testing.T) {
	now := time.Now()
	accessed := now.Add(-48 * time.Hour)
	a := HybridScore(0.7, accessed, 3, now)
	b := HybridScore(0.7, accessed, 3, now)
	if a != b {
		t.Errorf("same inputs must give same score: %f vs %f", a, b)
	}
}
