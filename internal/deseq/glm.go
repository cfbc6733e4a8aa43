package deseq

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// GLM fit constants.
const (
	glmMaxIter = 100
	glmTol     = 1e-6
	glmMinMu   = 1e-10
)

const ln2 = math.Ln2

// FitResult is the outcome of one gene's negative-binomial GLM fit.
// The effect is the male coefficient against the female reference,
// reported on the log2 scale.
type FitResult struct {
	BaseMean   float64
	Log2FC     float64
	SE         float64
	Stat       float64
	PValue     float64
	Status     FitStatus
	Iterations int
}

// naFit returns an all-NA result with the given terminal status.
func naFit(baseMean float64, status FitStatus) FitResult {
	nan := math.NaN()
	return FitResult{
		BaseMean: baseMean,
		Log2FC:   nan,
		SE:       nan,
		Stat:     nan,
		PValue:   nan,
		Status:   status,
	}
}

// FitGene fits log(mu_j) = beta0 + beta1*male_j + log(sizeFactor_j) by
// iteratively reweighted least squares with the shrunk dispersion alpha
// held fixed, then runs a two-sided Wald test on beta1. All-zero genes
// are excluded; hitting the iteration cap yields an NA result rather
// than an error.
func FitGene(counts []int, sizeFactors []float64, male []bool, alpha float64) FitResult {
	n := len(counts)
	q := make([]float64, n)
	allZero := true
	for j, c := range counts {
		if c > 0 {
			allZero = false
		}
		q[j] = float64(c) / sizeFactors[j]
	}
	baseMean := stat.Mean(q, nil)
	if allZero || math.IsNaN(alpha) {
		return naFit(baseMean, StatusExcluded)
	}

	// Start from the group means of the normalized counts.
	var sumF, sumM float64
	var nF, nM int
	for j := range counts {
		if male[j] {
			sumM += q[j]
			nM++
		} else {
			sumF += q[j]
			nF++
		}
	}
	if nF == 0 || nM == 0 {
		return naFit(baseMean, StatusExcluded)
	}
	beta0 := math.Log(math.Max(sumF/float64(nF), glmMinMu))
	beta1 := math.Log(math.Max(sumM/float64(nM), glmMinMu)) - beta0

	status := StatusFitting
	iter := 0
	for ; iter < glmMaxIter; iter++ {
		// Weighted normal equations for the working response.
		var sw, swx, swxx, swz, swxz float64
		for j, c := range counts {
			x := 0.0
			if male[j] {
				x = 1
			}
			eta := beta0 + beta1*x
			mu := math.Exp(eta) * sizeFactors[j]
			if mu < glmMinMu {
				mu = glmMinMu
			}
			w := mu / (1 + alpha*mu)
			z := eta + (float64(c)-mu)/mu
			sw += w
			swx += w * x
			swxx += w * x * x
			swz += w * z
			swxz += w * x * z
		}

		A := mat.NewDense(2, 2, []float64{sw, swx, swx, swxx})
		b := mat.NewVecDense(2, []float64{swz, swxz})
		var sol mat.VecDense
		if err := sol.SolveVec(A, b); err != nil {
			return naFit(baseMean, StatusNonConverged)
		}
		nb0, nb1 := sol.AtVec(0), sol.AtVec(1)
		if math.IsNaN(nb0) || math.IsNaN(nb1) || math.IsInf(nb0, 0) || math.IsInf(nb1, 0) {
			return naFit(baseMean, StatusNonConverged)
		}

		done := math.Abs(nb0-beta0) < glmTol && math.Abs(nb1-beta1) < glmTol
		beta0, beta1 = nb0, nb1
		if done {
			status = StatusConverged
			break
		}
	}
	if status != StatusConverged {
		return naFit(baseMean, StatusNonConverged)
	}

	// Standard error of beta1 from the inverse Fisher information.
	var sw, swx, swxx float64
	for j := range counts {
		x := 0.0
		if male[j] {
			x = 1
		}
		mu := math.Exp(beta0+beta1*x) * sizeFactors[j]
		if mu < glmMinMu {
			mu = glmMinMu
		}
		w := mu / (1 + alpha*mu)
		sw += w
		swx += w * x
		swxx += w * x * x
	}
	det := sw*swxx - swx*swx
	if det <= 0 {
		return naFit(baseMean, StatusNonConverged)
	}
	se1 := math.Sqrt(sw / det)

	log2FC := beta1 / ln2
	se := se1 / ln2
	wald := log2FC / se
	p := 2 * distuv.UnitNormal.CDF(-math.Abs(wald))

	return FitResult{
		BaseMean:   baseMean,
		Log2FC:     log2FC,
		SE:         se,
		Stat:       wald,
		PValue:     p,
		Status:     StatusConverged,
		Iterations: iter + 1,
	}
}
