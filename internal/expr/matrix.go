// Package expr provides the expression count matrix and sample metadata
// structures consumed by the differential expression pipeline.
package expr

import (
	"fmt"

	"github.com/zeebo/errs"
)

// MalformedInputErr reports structurally invalid input tables
// (duplicate genes, misaligned metadata, missing columns).
var MalformedInputErr = errs.Class("malformed input")

// CountMatrix holds raw read counts with genes as rows and samples as
// columns. Row and column order is significant: Samples must align 1:1
// and in-order with the metadata records used alongside the matrix.
type CountMatrix struct {
	Genes   []string
	Samples []string
	Counts  [][]int // Counts[i][j] is the read count of gene i in sample j

	geneIdx map[string]int
}

// NewCountMatrix builds a CountMatrix and validates its shape: unique
// gene keys, one count row per gene, one count per sample in each row,
// and non-negative counts.
func NewCountMatrix(genes, samples []string, counts [][]int) (*CountMatrix, error) {
	if len(counts) != len(genes) {
		return nil, MalformedInputErr.New("count rows %d != genes %d", len(counts), len(genes))
	}
	idx := make(map[string]int, len(genes))
	for i, g := range genes {
		if _, dup := idx[g]; dup {
			return nil, MalformedInputErr.New("duplicate gene row %q", g)
		}
		idx[g] = i
		if len(counts[i]) != len(samples) {
			return nil, MalformedInputErr.New("gene %q has %d counts, want %d", g, len(counts[i]), len(samples))
		}
		for j, c := range counts[i] {
			if c < 0 {
				return nil, MalformedInputErr.New("gene %q sample %q: negative count %d", g, samples[j], c)
			}
		}
	}
	return &CountMatrix{Genes: genes, Samples: samples, Counts: counts, geneIdx: idx}, nil
}

// NumGenes returns the number of gene rows.
func (m *CountMatrix) NumGenes() int { return len(m.Genes) }

// NumSamples returns the number of sample columns.
func (m *CountMatrix) NumSamples() int { return len(m.Samples) }

// Row returns the count row for a gene, or nil if the gene is absent.
func (m *CountMatrix) Row(gene string) []int {
	i, ok := m.geneIdx[gene]
	if !ok {
		return nil
	}
	return m.Counts[i]
}

// SubsetColumns returns a new matrix containing only the columns at the
// given indices, in the given order. Count rows are copied; the receiver
// is not modified.
func (m *CountMatrix) SubsetColumns(cols []int) (*CountMatrix, error) {
	samples := make([]string, len(cols))
	for k, j := range cols {
		if j < 0 || j >= len(m.Samples) {
			return nil, fmt.Errorf("column index %d out of range [0,%d)", j, len(m.Samples))
		}
		samples[k] = m.Samples[j]
	}
	counts := make([][]int, len(m.Genes))
	for i := range m.Genes {
		row := make([]int, len(cols))
		for k, j := range cols {
			row[k] = m.Counts[i][j]
		}
		counts[i] = row
	}
	return NewCountMatrix(m.Genes, samples, counts)
}
