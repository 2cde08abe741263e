package match

import (
	"math"

	"github.com/viterin/vek/vek32"
	"github.com/xrash/smetrics"
)

// jaroWinkler returns the Jaro-Winkler similarity of a and b in [0, 1],
// boosting common prefixes of up to four characters.
func jaroWinkler(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	s := smetrics.JaroWinkler(a, b, 0.7, 4)
	if math.IsNaN(s) {
		return 0
	}
	return s
}

// cosine returns the cosine similarity of a and b clamped to [0, 1].
func cosine(a, b []float32) float64 {
	s := float64(vek32.CosineSimilarity(a, b))
	if math.IsNaN(s) || s < 0 {
		return 0
	}
	return min(s, 1)
}

func round4(x float64) float64 {
	return math.Round(x*1e4) / 1e4
}
