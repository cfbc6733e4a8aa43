package deseq

import (
	"math"
	"sort"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/inodb/vibe-deg/internal/expr"
)

// Dispersion estimation constants. The trend is the standard parametric
// mean-dispersion curve a(mu) = a0 + a1/mu, fit by iteratively
// reweighted least squares with outlier down-weighting between rounds.
const (
	minDispersion  = 1e-8
	maxDispersion  = 20.0
	trendMeanFloor = 0.5 // genes below this base mean do not inform the trend
	trendMaxIter   = 10
	trendTol       = 1e-6
	trendRatioMin  = 1e-4 // points outside [min,max] ratio to the fitted
	trendRatioMax  = 15.0 // curve are dropped from the next round
	outlierSigmas  = 2.0  // log residual above which a gene keeps its raw estimate
	minPriorVar    = 0.25
)

// DispersionEstimate holds the per-gene dispersion passes, aligned with
// the matrix gene order. Raw and Final are NaN for excluded genes
// (zero mean or zero variance).
type DispersionEstimate struct {
	BaseMean []float64
	Raw      []float64
	Trend    []float64
	Final    []float64
	Outlier  []bool

	TrendA0  float64
	TrendA1  float64
	Fallback bool // trend fit failed; constant median trend in use
}

// Excluded reports whether gene i carries no usable dispersion.
func (d *DispersionEstimate) Excluded(i int) bool { return math.IsNaN(d.Final[i]) }

// EstimateDispersions runs the two dispersion passes over all genes:
// a parallel raw method-of-moments estimate per gene, a global trend
// fit across genes, then parallel shrinkage of each raw estimate toward
// the trend. workers <= 0 uses all CPUs.
func EstimateDispersions(m *expr.CountMatrix, sizeFactors []float64, workers int, logger *zap.Logger) *DispersionEstimate {
	nGenes := m.NumGenes()
	nSamples := m.NumSamples()
	d := &DispersionEstimate{
		BaseMean: make([]float64, nGenes),
		Raw:      make([]float64, nGenes),
		Trend:    make([]float64, nGenes),
		Final:    make([]float64, nGenes),
		Outlier:  make([]bool, nGenes),
	}

	xim := 0.0
	for _, sf := range sizeFactors {
		xim += 1 / sf
	}
	xim /= float64(nSamples)

	// Raw phase.
	parallelFor(nGenes, workers, func(i int) {
		d.BaseMean[i], d.Raw[i] = rawDispersion(m.Counts[i], sizeFactors, xim)
	})

	// Trend phase: a global pass, the barrier between the parallel phases.
	a0, a1, ok := fitTrend(d.BaseMean, d.Raw)
	if ok {
		d.TrendA0, d.TrendA1 = a0, a1
		logger.Info("fitted dispersion trend",
			zap.Float64("a0", a0),
			zap.Float64("a1", a1))
	} else {
		d.Fallback = true
		med := medianValid(d.Raw)
		d.TrendA0, d.TrendA1 = med, 0
		logger.Warn("dispersion trend fit did not converge, using constant median dispersion",
			zap.Float64("median", med))
	}

	// Prior width from the spread of log residuals around the trend.
	sigma := residualSigma(d)
	samplingBase := 2.0 / math.Max(float64(nSamples-2), 1)
	priorVar := math.Max(sigma*sigma-samplingBase, minPriorVar)

	// Shrink phase.
	parallelFor(nGenes, workers, func(i int) {
		d.Trend[i] = trendAt(d.TrendA0, d.TrendA1, d.BaseMean[i])
		if math.IsNaN(d.Raw[i]) {
			d.Final[i] = math.NaN()
			return
		}
		logRes := math.Log(d.Raw[i]) - math.Log(d.Trend[i])
		if logRes > outlierSigmas*sigma {
			// Genuinely overdispersed gene: shrinkage must not mask it.
			d.Outlier[i] = true
			d.Final[i] = d.Raw[i]
			return
		}
		// Sampling variance of the log raw estimate grows as counts
		// shrink, pulling low-count genes toward the trend.
		sv := samplingBase * (1 + 1/(d.Trend[i]*d.BaseMean[i]))
		logFinal := (math.Log(d.Raw[i])/sv + math.Log(d.Trend[i])/priorVar) / (1/sv + 1/priorVar)
		d.Final[i] = clampDispersion(math.Exp(logFinal))
	})

	return d
}

// rawDispersion computes the base mean and the method-of-moments
// dispersion for one gene under var = mu + alpha*mu^2. Returns NaN
// dispersion for all-zero and zero-variance genes.
func rawDispersion(counts []int, sizeFactors []float64, xim float64) (baseMean, alpha float64) {
	n := len(counts)
	q := make([]float64, n)
	for j, c := range counts {
		q[j] = float64(c) / sizeFactors[j]
	}
	mu := stat.Mean(q, nil)
	if mu == 0 {
		return 0, math.NaN()
	}
	s2 := stat.Variance(q, nil)
	if s2 == 0 {
		return mu, math.NaN()
	}
	return mu, clampDispersion((s2 - xim*mu) / (mu * mu))
}

func clampDispersion(a float64) float64 {
	return math.Min(math.Max(a, minDispersion), maxDispersion)
}

func trendAt(a0, a1, mu float64) float64 {
	if mu <= 0 {
		return clampDispersion(a0)
	}
	return clampDispersion(a0 + a1/mu)
}

// fitTrend fits alpha = a0 + a1/mu by iteratively reweighted least
// squares with gamma-family weights (1/fitted^2) and drops points whose
// ratio to the fitted curve falls outside [trendRatioMin, trendRatioMax]
// between rounds. Returns ok=false when too few points remain, the
// solve is singular, or the coefficients fail to stabilize.
func fitTrend(baseMean, raw []float64) (a0, a1 float64, ok bool) {
	var mus, alphas []float64
	for i := range raw {
		if math.IsNaN(raw[i]) || baseMean[i] < trendMeanFloor || raw[i] <= minDispersion {
			continue
		}
		mus = append(mus, baseMean[i])
		alphas = append(alphas, raw[i])
	}
	if len(mus) < 10 {
		return 0, 0, false
	}

	a0, a1 = medianOf(alphas), 0
	for iter := 0; iter < trendMaxIter; iter++ {
		var sw, swx, swxx, swy, swxy float64
		used := 0
		for i, mu := range mus {
			f := a0 + a1/mu
			if iter > 0 {
				r := alphas[i] / f
				if r < trendRatioMin || r > trendRatioMax {
					continue
				}
			}
			w := 1.0
			if iter > 0 && f > 0 {
				w = 1 / (f * f)
			}
			x := 1 / mu
			sw += w
			swx += w * x
			swxx += w * x * x
			swy += w * alphas[i]
			swxy += w * x * alphas[i]
			used++
		}
		if used < 10 {
			return 0, 0, false
		}

		A := mat.NewDense(2, 2, []float64{sw, swx, swx, swxx})
		b := mat.NewVecDense(2, []float64{swy, swxy})
		var sol mat.VecDense
		if err := sol.SolveVec(A, b); err != nil {
			return 0, 0, false
		}
		na0, na1 := sol.AtVec(0), sol.AtVec(1)
		if na0 < 0 {
			na0 = 0
		}
		if na1 < 0 {
			na1 = 0
		}
		if na0 <= minDispersion && na1 <= 0 {
			return 0, 0, false
		}
		if iter > 0 &&
			math.Abs(na0-a0) < trendTol*(math.Abs(a0)+trendTol) &&
			math.Abs(na1-a1) < trendTol*(math.Abs(a1)+trendTol) {
			return na0, na1, true
		}
		a0, a1 = na0, na1
	}
	// Iteration cap without stabilizing counts as non-convergence.
	return 0, 0, false
}

// residualSigma estimates the spread of log raw dispersions around the
// trend with a MAD scaled to the normal.
func residualSigma(d *DispersionEstimate) float64 {
	var res []float64
	for i := range d.Raw {
		if math.IsNaN(d.Raw[i]) || d.BaseMean[i] < trendMeanFloor {
			continue
		}
		res = append(res, math.Log(d.Raw[i])-math.Log(trendAt(d.TrendA0, d.TrendA1, d.BaseMean[i])))
	}
	if len(res) == 0 {
		return math.Sqrt(minPriorVar)
	}
	med := medianOf(res)
	abs := make([]float64, len(res))
	for i, r := range res {
		abs[i] = math.Abs(r - med)
	}
	sigma := 1.4826 * medianOf(abs)
	if sigma <= 0 {
		return math.Sqrt(minPriorVar)
	}
	return sigma
}

func medianOf(v []float64) float64 {
	s := append([]float64(nil), v...)
	sort.Float64s(s)
	return stat.Quantile(0.5, stat.LinInterp, s, nil)
}

func medianValid(v []float64) float64 {
	var valid []float64
	for _, x := range v {
		if !math.IsNaN(x) {
			valid = append(valid, x)
		}
	}
	if len(valid) == 0 {
		return minDispersion
	}
	return medianOf(valid)
}
