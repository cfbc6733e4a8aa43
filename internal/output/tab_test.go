package output

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-deg/internal/deseq"
	"github.com/inodb/vibe-deg/internal/enrich"
)

func TestDEWriter(t *testing.T) {
	var sb strings.Builder
	dw := NewDEWriter(&sb)
	require.NoError(t, dw.WriteHeader())

	require.NoError(t, dw.Write(&deseq.Result{
		GeneID:         "ENSG00000229807",
		GeneName:       "XIST",
		BaseMean:       153.25,
		Log2FoldChange: -4.5,
		LfcSE:          0.31,
		Stat:           -14.516,
		PValue:         1e-47,
		PAdj:           2e-43,
		Label:          deseq.LabelFemale,
	}))

	nan := math.NaN()
	require.NoError(t, dw.Write(&deseq.Result{
		GeneID:         "ENSG00000000001",
		BaseMean:       0,
		Log2FoldChange: nan,
		LfcSE:          nan,
		Stat:           nan,
		PValue:         nan,
		PAdj:           nan,
		Label:          deseq.LabelNone,
		Status:         deseq.StatusExcluded,
	}))
	require.NoError(t, dw.Flush())

	lines := strings.Split(strings.TrimRight(sb.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t,
		"gene_id\tgene_name\tbaseMean\tlog2FoldChange\tlfcSE\tstat\tpvalue\tpadj\tdiffexpressed",
		lines[0])
	assert.Equal(t,
		"ENSG00000229807\tXIST\t153.25\t-4.5\t0.31\t-14.516\t1e-47\t2e-43\tFemale",
		lines[1])
	assert.Equal(t,
		"ENSG00000000001\t\t0\tNA\tNA\tNA\tNA\tNA\tNO",
		lines[2])
}

func TestEnrichmentWriter(t *testing.T) {
	var sb strings.Builder
	ew := NewEnrichmentWriter(&sb)
	require.NoError(t, ew.WriteHeader())

	require.NoError(t, ew.Write(&enrich.Result{
		TermID:          "GO:0006412",
		TermName:        "translation",
		ListCount:       5,
		BackgroundCount: 50,
		PValue:          5.00778e-06,
		PAdj:            0.0001,
		Genes:           []string{"RPS4Y1", "DDX3Y"},
	}))
	require.NoError(t, ew.Flush())

	lines := strings.Split(strings.TrimRight(sb.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t,
		"term_id\tterm_name\tlist_count\tbackground_count\tpvalue\tpadj\tgenes",
		lines[0])
	assert.Equal(t,
		"GO:0006412\ttranslation\t5\t50\t5.00778e-06\t0.0001\tRPS4Y1,DDX3Y",
		lines[1])
}
