package deseq

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ones(n int) []float64 {
	sf := make([]float64, n)
	for i := range sf {
		sf[i] = 1
	}
	return sf
}

func TestFitGene_ExactFoldChange(t *testing.T) {
	// Equal counts within each group: the fitted group means are the
	// group means, so the fold change is exact.
	counts := []int{100, 100, 100, 400, 400, 400}
	male := []bool{false, false, false, true, true, true}

	fit := FitGene(counts, ones(6), male, 0.01)
	require.Equal(t, StatusConverged, fit.Status)
	assert.InDelta(t, 2.0, fit.Log2FC, 1e-4)
	assert.InDelta(t, 250.0, fit.BaseMean, 1e-9)
	assert.Greater(t, fit.SE, 0.0)
	assert.InDelta(t, fit.Log2FC/fit.SE, fit.Stat, 1e-9)
	assert.Less(t, fit.PValue, 1e-6)
}

func TestFitGene_FemaleBiased(t *testing.T) {
	counts := []int{800, 800, 800, 100, 100, 100}
	male := []bool{false, false, false, true, true, true}

	fit := FitGene(counts, ones(6), male, 0.01)
	require.Equal(t, StatusConverged, fit.Status)
	assert.InDelta(t, -3.0, fit.Log2FC, 1e-4)
	assert.Less(t, fit.PValue, 1e-6)
}

func TestFitGene_NoEffect(t *testing.T) {
	counts := []int{95, 105, 100, 98, 104, 103}
	male := []bool{false, false, false, true, true, true}

	fit := FitGene(counts, ones(6), male, 0.05)
	require.Equal(t, StatusConverged, fit.Status)
	assert.InDelta(t, 0.0, fit.Log2FC, 0.2)
	assert.Greater(t, fit.PValue, 0.5)
}

func TestFitGene_SizeFactorOffset(t *testing.T) {
	// Male raw counts are doubled but so are their size factors:
	// normalized means are identical, so no effect.
	counts := []int{100, 100, 100, 200, 200, 200}
	sf := []float64{1, 1, 1, 2, 2, 2}
	male := []bool{false, false, false, true, true, true}

	fit := FitGene(counts, sf, male, 0.01)
	require.Equal(t, StatusConverged, fit.Status)
	assert.InDelta(t, 0.0, fit.Log2FC, 1e-4)
}

func TestFitGene_AllZeroExcluded(t *testing.T) {
	counts := []int{0, 0, 0, 0}
	male := []bool{false, false, true, true}

	fit := FitGene(counts, ones(4), male, 0.1)
	assert.Equal(t, StatusExcluded, fit.Status)
	assert.True(t, math.IsNaN(fit.Log2FC))
	assert.True(t, math.IsNaN(fit.PValue))
	assert.Equal(t, 0.0, fit.BaseMean)
}

func TestFitGene_NaNDispersionExcluded(t *testing.T) {
	counts := []int{10, 10, 10, 10}
	male := []bool{false, false, true, true}

	fit := FitGene(counts, ones(4), male, math.NaN())
	assert.Equal(t, StatusExcluded, fit.Status)
	assert.True(t, math.IsNaN(fit.PValue))
}

func TestFitGene_SingleSexDesign(t *testing.T) {
	counts := []int{10, 20, 30}
	male := []bool{true, true, true}

	fit := FitGene(counts, ones(3), male, 0.1)
	assert.Equal(t, StatusExcluded, fit.Status)
}

func TestFitGene_LargerDispersionWidensSE(t *testing.T) {
	counts := []int{100, 120, 90, 380, 420, 400}
	male := []bool{false, false, false, true, true, true}

	tight := FitGene(counts, ones(6), male, 0.001)
	loose := FitGene(counts, ones(6), male, 0.5)
	require.Equal(t, StatusConverged, tight.Status)
	require.Equal(t, StatusConverged, loose.Status)
	assert.Greater(t, loose.SE, tight.SE)
	assert.Greater(t, loose.PValue, tight.PValue)
}
