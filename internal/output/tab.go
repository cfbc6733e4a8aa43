// Package output provides tab-delimited result table writers.
package output

import (
	"bufio"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/inodb/vibe-deg/internal/deseq"
	"github.com/inodb/vibe-deg/internal/enrich"
)

// naValue renders NA numeric fields (excluded or non-converged genes).
const naValue = "NA"

// DEWriter writes per-gene test results in tab-delimited format.
type DEWriter struct {
	w       *bufio.Writer
	columns []string
}

// NewDEWriter creates a new test result writer.
func NewDEWriter(w io.Writer) *DEWriter {
	return &DEWriter{
		w: bufio.NewWriter(w),
		columns: []string{
			"gene_id",
			"gene_name",
			"baseMean",
			"log2FoldChange",
			"lfcSE",
			"stat",
			"pvalue",
			"padj",
			"diffexpressed",
		},
	}
}

// WriteHeader writes the header line.
func (dw *DEWriter) WriteHeader() error {
	_, err := dw.w.WriteString(strings.Join(dw.columns, "\t") + "\n")
	return err
}

// Write writes a single gene result.
func (dw *DEWriter) Write(r *deseq.Result) error {
	fields := []string{
		r.GeneID,
		r.GeneName,
		formatFloat(r.BaseMean),
		formatFloat(r.Log2FoldChange),
		formatFloat(r.LfcSE),
		formatFloat(r.Stat),
		formatFloat(r.PValue),
		formatFloat(r.PAdj),
		string(r.Label),
	}
	_, err := dw.w.WriteString(strings.Join(fields, "\t") + "\n")
	return err
}

// Flush flushes buffered output.
func (dw *DEWriter) Flush() error {
	return dw.w.Flush()
}

// EnrichmentWriter writes per-term enrichment results in tab-delimited format.
type EnrichmentWriter struct {
	w       *bufio.Writer
	columns []string
}

// NewEnrichmentWriter creates a new enrichment result writer.
func NewEnrichmentWriter(w io.Writer) *EnrichmentWriter {
	return &EnrichmentWriter{
		w: bufio.NewWriter(w),
		columns: []string{
			"term_id",
			"term_name",
			"list_count",
			"background_count",
			"pvalue",
			"padj",
			"genes",
		},
	}
}

// WriteHeader writes the header line.
func (ew *EnrichmentWriter) WriteHeader() error {
	_, err := ew.w.WriteString(strings.Join(ew.columns, "\t") + "\n")
	return err
}

// Write writes a single term result.
func (ew *EnrichmentWriter) Write(r *enrich.Result) error {
	fields := []string{
		r.TermID,
		r.TermName,
		strconv.Itoa(r.ListCount),
		strconv.Itoa(r.BackgroundCount),
		formatFloat(r.PValue),
		formatFloat(r.PAdj),
		strings.Join(r.Genes, ","),
	}
	_, err := ew.w.WriteString(strings.Join(fields, "\t") + "\n")
	return err
}

// Flush flushes buffered output.
func (ew *EnrichmentWriter) Flush() error {
	return ew.w.Flush()
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return naValue
	}
	return strconv.FormatFloat(v, 'g', 6, 64)
}
