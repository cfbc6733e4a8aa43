package deseq

import (
	"math"
	"sort"

	"github.com/zeebo/errs"
	"gonum.org/v1/gonum/stat"

	"github.com/inodb/vibe-deg/internal/expr"
)

// NormalizationErr reports that size factors cannot be estimated from
// the cohort.
var NormalizationErr = errs.Class("size factor estimation")

// EstimateSizeFactors computes one median-of-ratios normalization
// factor per sample. For every gene expressed in all samples, the log
// geometric mean across samples is taken; each sample's factor is the
// exponentiated median of that sample's log count minus the gene log
// geometric mean. Genes with any zero count contribute nothing to the
// medians but stay in the matrix for testing.
func EstimateSizeFactors(m *expr.CountMatrix) ([]float64, error) {
	nGenes, nSamples := m.NumGenes(), m.NumSamples()
	if nSamples == 0 {
		return nil, NormalizationErr.New("no samples")
	}

	// Log geometric means for genes with strictly positive counts.
	logGeo := make([]float64, nGenes)
	usable := make([]bool, nGenes)
	nUsable := 0
	for i := range nGenes {
		sum := 0.0
		ok := true
		for _, c := range m.Counts[i] {
			if c == 0 {
				ok = false
				break
			}
			sum += math.Log(float64(c))
		}
		if ok {
			logGeo[i] = sum / float64(nSamples)
			usable[i] = true
			nUsable++
		}
	}
	if nUsable == 0 {
		return nil, NormalizationErr.New("no gene has nonzero counts in every sample")
	}

	factors := make([]float64, nSamples)
	ratios := make([]float64, 0, nUsable)
	for j := range nSamples {
		ratios = ratios[:0]
		for i := range nGenes {
			if !usable[i] {
				continue
			}
			ratios = append(ratios, math.Log(float64(m.Counts[i][j]))-logGeo[i])
		}
		sort.Float64s(ratios)
		factors[j] = math.Exp(stat.Quantile(0.5, stat.LinInterp, ratios, nil))
	}
	return factors, nil
}
