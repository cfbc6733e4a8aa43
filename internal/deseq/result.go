// Package deseq implements the count-based differential expression
// pipeline: size factor normalization, dispersion estimation with
// empirical-Bayes shrinkage, per-gene negative-binomial GLM fits with
// Wald tests, Benjamini-Hochberg correction and threshold
// classification.
package deseq

import "math"

// FitStatus tracks the per-gene model fit through its lifecycle.
type FitStatus string

// Fit states. Excluded genes never enter the fitter (all-zero or
// zero-variance counts); non-converged genes hit the iteration cap and
// carry NA statistics.
const (
	StatusFitting      FitStatus = "fitting"
	StatusConverged    FitStatus = "converged"
	StatusNonConverged FitStatus = "non_converged"
	StatusExcluded     FitStatus = "excluded"
)

// Label is the fixed-threshold significance call for a gene.
type Label string

// Classification labels: the sex with higher expression, or NO.
const (
	LabelMale   Label = "Male"
	LabelFemale Label = "Female"
	LabelNone   Label = "NO"
)

// Thresholds are the fixed classification cutoffs.
type Thresholds struct {
	Log2FC float64 // absolute log2 fold change a gene must exceed
	PAdj   float64 // adjusted p-value a gene must stay under
}

// DefaultThresholds returns the standard |log2FC| > 1, padj < 0.05 cutoffs.
func DefaultThresholds() Thresholds {
	return Thresholds{Log2FC: 1.0, PAdj: 0.05}
}

// Classify labels a gene from its effect size and adjusted p-value.
// NaN padj (untested gene) is never significant.
func Classify(log2FC, padj float64, t Thresholds) Label {
	if math.IsNaN(padj) || padj >= t.PAdj {
		return LabelNone
	}
	switch {
	case log2FC > t.Log2FC:
		return LabelMale
	case log2FC < -t.Log2FC:
		return LabelFemale
	default:
		return LabelNone
	}
}

// Result is the per-gene test outcome. Numeric fields are NaN when the
// gene was excluded or its fit did not converge.
type Result struct {
	GeneID         string
	GeneName       string // filled by the annotation join, empty when unmapped
	BaseMean       float64
	Log2FoldChange float64
	LfcSE          float64
	Stat           float64
	PValue         float64
	PAdj           float64
	Label          Label
	Status         FitStatus
}

// Tested reports whether the gene produced a usable test statistic.
func (r *Result) Tested() bool { return r.Status == StatusConverged }
