package enrich

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHypergeomUpperTail_Exact(t *testing.T) {
	// P(X >= 5) with N=20000, K=100, n=50.
	p := HypergeomUpperTail(20000, 100, 50, 5)
	assert.InEpsilon(t, 5.0077797296914976e-06, p, 1e-9)

	// Small case checkable by hand: N=10, K=4, n=3 -> P(X >= 2) = 1/3.
	p = HypergeomUpperTail(10, 4, 3, 2)
	assert.InEpsilon(t, 1.0/3.0, p, 1e-12)
}

func TestHypergeomUpperTail_Edges(t *testing.T) {
	assert.Equal(t, 1.0, HypergeomUpperTail(100, 10, 5, 0))
	assert.Equal(t, 0.0, HypergeomUpperTail(100, 10, 5, 6), "k beyond draw size")
	assert.Equal(t, 0.0, HypergeomUpperTail(100, 3, 50, 4), "k beyond successes")
	// Certain overlap: drawing all marked genes.
	assert.InDelta(t, 1.0, HypergeomUpperTail(10, 10, 10, 10), 1e-12)
}

func universeFixture(n int) []string {
	u := make([]string, n)
	for i := range n {
		u[i] = fmt.Sprintf("ENSG%05d", i)
	}
	return u
}

func TestRun_BasicEnrichment(t *testing.T) {
	universe := universeFixture(100)
	list := universe[:10]

	terms := []TermSet{
		{ID: "GO:0000001", Name: "enriched process", Genes: universe[:8]},      // 8/8 in list
		{ID: "GO:0000002", Name: "background process", Genes: universe[50:70]}, // 0 overlap
		{ID: "GO:0000003", Name: "mixed process", Genes: universe[5:25]},       // 5/20 in list
	}
	names := map[string]string{"ENSG00000": "XIST"}

	results := Run(list, universe, terms, names)
	require.Len(t, results, 2, "zero-overlap term omitted")

	top := results[0]
	assert.Equal(t, "GO:0000001", top.TermID)
	assert.Equal(t, 8, top.ListCount)
	assert.Equal(t, 8, top.BackgroundCount)
	assert.InEpsilon(t, HypergeomUpperTail(100, 10, 8, 8), top.PValue, 1e-12)
	assert.GreaterOrEqual(t, top.PAdj, top.PValue)
	require.NotEmpty(t, top.Genes)
	assert.Equal(t, "XIST", top.Genes[0], "mapped gene reported by name")
	assert.Equal(t, "ENSG00001", top.Genes[1], "unmapped gene falls back to id")

	second := results[1]
	assert.Equal(t, "GO:0000003", second.TermID)
	assert.Equal(t, 5, second.ListCount)
	assert.Equal(t, 20, second.BackgroundCount)
	assert.LessOrEqual(t, results[0].PAdj, results[1].PAdj, "sorted by padj")
}

func TestRun_EmptyList(t *testing.T) {
	universe := universeFixture(50)
	terms := []TermSet{{ID: "GO:1", Name: "anything", Genes: universe[:10]}}

	assert.Empty(t, Run(nil, universe, terms, nil))
	assert.Empty(t, Run([]string{}, universe, terms, nil))
}

func TestRun_ListOutsideUniverse(t *testing.T) {
	universe := universeFixture(50)
	terms := []TermSet{{ID: "GO:1", Name: "anything", Genes: universe[:10]}}

	// Flagged genes not in the background cannot contribute.
	assert.Empty(t, Run([]string{"ENSGX", "ENSGY"}, universe, terms, nil))
}

func TestRun_TermGenesOutsideUniverseIgnored(t *testing.T) {
	universe := universeFixture(20)
	list := universe[:5]
	terms := []TermSet{{
		ID:   "GO:1",
		Name: "padded term",
		// Half the term's genes are outside the tested universe and
		// must not count toward the background total.
		Genes: append([]string{"ENSGA", "ENSGB", "ENSGC"}, universe[:3]...),
	}}

	results := Run(list, universe, terms, nil)
	require.Len(t, results, 1)
	assert.Equal(t, 3, results[0].BackgroundCount)
	assert.Equal(t, 3, results[0].ListCount)
}

func TestRun_DuplicateTermGenesCountedOnce(t *testing.T) {
	universe := universeFixture(20)
	list := universe[:4]
	terms := []TermSet{{
		ID:    "GO:1",
		Name:  "dup term",
		Genes: []string{"ENSG00000", "ENSG00000", "ENSG00001"},
	}}

	results := Run(list, universe, terms, nil)
	require.Len(t, results, 1)
	assert.Equal(t, 2, results[0].BackgroundCount)
	assert.Equal(t, 2, results[0].ListCount)
}
