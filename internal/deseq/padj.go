package deseq

import (
	"math"
	"sort"
)

// AdjustBH applies the Benjamini-Hochberg false-discovery-rate
// correction. NaN entries (untested genes) are excluded from the
// correction set but preserved as NaN at their positions; the number of
// hypotheses m is the count of valid p-values. Adjusted values are
// clipped to 1 and made monotone with a running minimum from the
// largest rank down.
func AdjustBH(pvals []float64) []float64 {
	adj := make([]float64, len(pvals))
	var idx []int
	for i, p := range pvals {
		if math.IsNaN(p) {
			adj[i] = math.NaN()
			continue
		}
		idx = append(idx, i)
	}
	m := len(idx)
	if m == 0 {
		return adj
	}

	sort.Slice(idx, func(a, b int) bool { return pvals[idx[a]] < pvals[idx[b]] })

	minP := 1.0
	for rank := m; rank >= 1; rank-- {
		i := idx[rank-1]
		a := pvals[i] * float64(m) / float64(rank)
		if a > 1 {
			a = 1
		}
		if a < minP {
			minP = a
		} else {
			a = minP
		}
		adj[i] = a
	}
	return adj
}
