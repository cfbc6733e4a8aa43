package deseq

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-deg/internal/expr"
)

func mustMatrix(t *testing.T, genes, samples []string, counts [][]int) *expr.CountMatrix {
	t.Helper()
	m, err := expr.NewCountMatrix(genes, samples, counts)
	require.NoError(t, err)
	return m
}

func TestEstimateSizeFactors_EqualDepth(t *testing.T) {
	m := mustMatrix(t,
		[]string{"g1", "g2", "g3"},
		[]string{"s1", "s2", "s3"},
		[][]int{
			{10, 10, 10},
			{50, 50, 50},
			{200, 200, 200},
		})

	sf, err := EstimateSizeFactors(m)
	require.NoError(t, err)
	for _, f := range sf {
		assert.InDelta(t, 1.0, f, 1e-12)
	}
}

func TestEstimateSizeFactors_DepthScaling(t *testing.T) {
	// Sample s2 is a uniformly 2x deeper copy of s1/s3: its relative
	// factor must be exactly 2x theirs.
	m := mustMatrix(t,
		[]string{"g1", "g2", "g3", "g4"},
		[]string{"s1", "s2", "s3"},
		[][]int{
			{10, 20, 10},
			{20, 40, 20},
			{30, 60, 30},
			{40, 80, 40},
		})

	sf, err := EstimateSizeFactors(m)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, sf[1]/sf[0], 1e-12)
	assert.InDelta(t, 1.0, sf[2]/sf[0], 1e-12)

	// Geometric mean of the factors stays near 1.
	geo := math.Pow(sf[0]*sf[1]*sf[2], 1.0/3.0)
	assert.InDelta(t, 1.0, geo, 1e-12)
}

func TestEstimateSizeFactors_RescaleInvariance(t *testing.T) {
	base := [][]int{
		{12, 25, 31},
		{40, 90, 77},
		{7, 13, 20},
		{100, 210, 180},
	}
	m := mustMatrix(t, []string{"g1", "g2", "g3", "g4"}, []string{"s1", "s2", "s3"}, base)
	sf, err := EstimateSizeFactors(m)
	require.NoError(t, err)

	// Scale every count of s1 by 4: only s1's relative factor moves, by
	// exactly that constant.
	scaled := make([][]int, len(base))
	for i, row := range base {
		scaled[i] = []int{row[0] * 4, row[1], row[2]}
	}
	m2 := mustMatrix(t, []string{"g1", "g2", "g3", "g4"}, []string{"s1", "s2", "s3"}, scaled)
	sf2, err := EstimateSizeFactors(m2)
	require.NoError(t, err)

	assert.InDelta(t, 4*sf[0]/sf[1], sf2[0]/sf2[1], 1e-9)
	assert.InDelta(t, sf[2]/sf[1], sf2[2]/sf2[1], 1e-9)
}

func TestEstimateSizeFactors_ZeroGenesExcluded(t *testing.T) {
	m := mustMatrix(t,
		[]string{"g1", "g2"},
		[]string{"s1", "s2"},
		[][]int{
			{10, 10},
			{0, 1000000}, // zero count: must not influence the ratios
		})

	sf, err := EstimateSizeFactors(m)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sf[0], 1e-12)
	assert.InDelta(t, 1.0, sf[1], 1e-12)
}

func TestEstimateSizeFactors_NoUsableGene(t *testing.T) {
	m := mustMatrix(t,
		[]string{"g1", "g2"},
		[]string{"s1", "s2"},
		[][]int{
			{0, 5},
			{7, 0},
		})

	_, err := EstimateSizeFactors(m)
	require.Error(t, err)
	assert.True(t, NormalizationErr.Has(err))
}
