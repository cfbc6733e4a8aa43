// Package annotation strips Ensembl version suffixes from gene
// identifiers and joins human-readable gene names onto test results.
package annotation

import (
	"regexp"

	"github.com/inodb/vibe-deg/internal/deseq"
)

// versionSuffix matches a trailing dot-and-digits version on an
// Ensembl identifier, e.g. the ".4" in ENSG00000123.4.
var versionSuffix = regexp.MustCompile(`\.\d+$`)

// StripVersion removes the version suffix from a gene identifier.
// Stripping is idempotent: an unversioned id is returned unchanged.
func StripVersion(id string) string {
	return versionSuffix.ReplaceAllString(id, "")
}

// Table maps unversioned gene_id to gene_name.
type Table map[string]string

// Add records a mapping. The first name seen for an id wins, so a
// many-to-one source table deduplicates deterministically.
func (t Table) Add(geneID, geneName string) {
	if _, ok := t[geneID]; !ok {
		t[geneID] = geneName
	}
}

// Name returns the gene name for an identifier (versioned or not) and
// whether the id is mapped.
func (t Table) Name(geneID string) (string, bool) {
	name, ok := t[StripVersion(geneID)]
	return name, ok
}

// Join rewrites each result's GeneID to its unversioned form and fills
// GeneName from the table. Unmapped ids keep an empty name; no result
// is dropped or duplicated. Returns the number of unmapped ids.
func (t Table) Join(results []*deseq.Result) int {
	unmapped := 0
	for _, r := range results {
		r.GeneID = StripVersion(r.GeneID)
		name, ok := t[r.GeneID]
		if !ok {
			unmapped++
			continue
		}
		r.GeneName = name
	}
	return unmapped
}
