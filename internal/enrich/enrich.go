// Package enrich implements gene ontology over-representation testing
// with a hypergeometric upper-tail test per term and
// Benjamini-Hochberg correction across terms.
package enrich

import (
	"math"
	"sort"

	"github.com/inodb/vibe-deg/internal/deseq"
)

// TermSet is one ontology term and its annotated genes. Gene ids are
// unversioned, matching the annotation tables.
type TermSet struct {
	ID    string
	Name  string
	Genes []string
}

// Result is the over-representation outcome for one term. Genes holds
// the contributing gene names (falling back to ids for unmapped genes)
// in list order.
type Result struct {
	TermID          string
	TermName        string
	ListCount       int // flagged genes annotated to the term (k)
	BackgroundCount int // universe genes annotated to the term (n)
	PValue          float64
	PAdj            float64
	Genes           []string
}

// Run tests each term for over-representation of list genes against
// the universe of tested genes. Terms with zero overlap are omitted.
// An empty list yields an empty result set. Results are ordered by
// adjusted p-value, then raw p-value, then term id.
func Run(list, universe []string, terms []TermSet, names map[string]string) []Result {
	if len(list) == 0 {
		return nil
	}

	inUniverse := make(map[string]bool, len(universe))
	for _, g := range universe {
		inUniverse[g] = true
	}
	inList := make(map[string]bool, len(list))
	for _, g := range list {
		if inUniverse[g] {
			inList[g] = true
		}
	}

	bigN := len(inUniverse)
	bigK := len(inList)
	if bigK == 0 {
		return nil
	}

	var results []Result
	for _, term := range terms {
		n := 0
		var hits []string
		seen := make(map[string]bool, len(term.Genes))
		for _, g := range term.Genes {
			if seen[g] || !inUniverse[g] {
				continue
			}
			seen[g] = true
			n++
			if inList[g] {
				hits = append(hits, g)
			}
		}
		k := len(hits)
		if k == 0 {
			// No information: P(X >= 0) is trivially 1.
			continue
		}

		// Preserve list order among the contributing genes.
		ordered := make([]string, 0, k)
		hitSet := make(map[string]bool, k)
		for _, g := range hits {
			hitSet[g] = true
		}
		for _, g := range list {
			if hitSet[g] {
				ordered = append(ordered, displayName(g, names))
				delete(hitSet, g)
			}
		}

		results = append(results, Result{
			TermID:          term.ID,
			TermName:        term.Name,
			ListCount:       k,
			BackgroundCount: n,
			PValue:          HypergeomUpperTail(bigN, bigK, n, k),
			Genes:           ordered,
		})
	}

	pvals := make([]float64, len(results))
	for i := range results {
		pvals[i] = results[i].PValue
	}
	padj := deseq.AdjustBH(pvals)
	for i := range results {
		results[i].PAdj = padj[i]
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].PAdj != results[j].PAdj {
			return results[i].PAdj < results[j].PAdj
		}
		if results[i].PValue != results[j].PValue {
			return results[i].PValue < results[j].PValue
		}
		return results[i].TermID < results[j].TermID
	})
	return results
}

func displayName(geneID string, names map[string]string) string {
	if name, ok := names[geneID]; ok && name != "" {
		return name
	}
	return geneID
}

// HypergeomUpperTail returns P(X >= k) for X ~ Hypergeometric(N, K, n):
// the probability of at least k marked genes in a draw of n from a
// population of N containing K marked genes.
func HypergeomUpperTail(N, K, n, k int) float64 {
	if k <= 0 {
		return 1
	}
	if k > n || k > K {
		return 0
	}
	logDenom := logChoose(N, n)
	sum := 0.0
	upper := min(K, n)
	for x := k; x <= upper; x++ {
		sum += math.Exp(logChoose(K, x) + logChoose(N-K, n-x) - logDenom)
	}
	return math.Min(sum, 1)
}

// logChoose returns log C(n, k) via the log-gamma function.
func logChoose(n, k int) float64 {
	if k < 0 || k > n {
		return math.Inf(-1)
	}
	a, _ := math.Lgamma(float64(n + 1))
	b, _ := math.Lgamma(float64(k + 1))
	c, _ := math.Lgamma(float64(n - k + 1))
	return a - b - c
}
