package analytics

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Correlation returns the Pearson correlation of two equal-length series.
// Mismatched or empty inputs, and inputs without variance, return 0.
func Correlation(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	if _, sd := meanStdDev(a); sd == 0 {
		return 0
	}
	if _, sd := meanStdDev(b); sd == 0 {
		return 0
	}

	r := stat.Correlation(a, b, nil)
	if math.IsNaN(r) {
		return 0
	}
	return clamp(r, -1, 1)
}

// CorrelateByLabel joins two series on identical labels, in the order of a, and
// correlates the matched values. It also reports how many labels matched.
func CorrelateByLabel(a, b Series) (float64, int) {
	index := make(map[string]float64, len(b))
	for _, p := range b {
		index[p.Label] = p.Value
	}

	left := make([]float64, 0, len(a))
	right := make([]float64, 0, len(a))
	for _, p := range a {
		if v, ok := index[p.Label]; ok {
			left = append(left, p.Value)
			right = append(right, v)
		}
	}
	return Correlation(left, right), len(left)
}
