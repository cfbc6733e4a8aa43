package deseq

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/inodb/vibe-deg/internal/expr"
)

// Pipeline runs the full differential expression analysis for one
// cohort. A Pipeline is stateless across runs; every Run builds its
// own size factors, dispersions and results, so independent strata
// share nothing.
type Pipeline struct {
	workers    int
	thresholds Thresholds
	logger     *zap.Logger
}

// New creates a pipeline with default thresholds, all CPUs and a nop logger.
func New() *Pipeline {
	return &Pipeline{thresholds: DefaultThresholds(), logger: zap.NewNop()}
}

// SetLogger sets the logger for phase progress and warnings.
func (p *Pipeline) SetLogger(l *zap.Logger) { p.logger = l }

// SetWorkers sets the worker count for the per-gene phases (0 = all CPUs).
func (p *Pipeline) SetWorkers(n int) { p.workers = n }

// SetThresholds overrides the classification cutoffs.
func (p *Pipeline) SetThresholds(t Thresholds) { p.thresholds = t }

// StratumResult is the owned output of one cohort run.
type StratumResult struct {
	Results     []*Result // aligned with the matrix gene order
	SizeFactors []float64
	Dispersions *DispersionEstimate

	Excluded     int // all-zero or zero-variance genes, not tested
	NonConverged int // genes whose fit hit the iteration cap
}

// Run executes the pipeline on an already-filtered cohort. The samples
// must align 1:1 with the matrix columns and carry both sex levels.
func (p *Pipeline) Run(m *expr.CountMatrix, samples []expr.Sample) (*StratumResult, error) {
	if len(samples) != m.NumSamples() {
		return nil, expr.MalformedInputErr.New("metadata rows %d != matrix columns %d", len(samples), m.NumSamples())
	}
	male := make([]bool, len(samples))
	nMale := 0
	for j, s := range samples {
		if s.Sex == expr.SexMale {
			male[j] = true
			nMale++
		}
	}
	if nMale == 0 || nMale == len(samples) {
		return nil, expr.EmptyCohortErr.New("cohort has a single sex level")
	}
	p.logger.Info("running differential expression",
		zap.Int("genes", m.NumGenes()),
		zap.Int("samples", len(samples)),
		zap.Int("male", nMale),
		zap.Int("female", len(samples)-nMale))

	sizeFactors, err := EstimateSizeFactors(m)
	if err != nil {
		return nil, fmt.Errorf("estimate size factors: %w", err)
	}
	p.logger.Info("estimated size factors", zap.Int("samples", len(sizeFactors)))

	disp := EstimateDispersions(m, sizeFactors, p.workers, p.logger)

	engine := NewEngine(sizeFactors, male)
	items := make(chan WorkItem, 2*max(p.workers, 1))
	go func() {
		defer close(items)
		for i, gene := range m.Genes {
			items <- WorkItem{Seq: i, GeneID: gene, Counts: m.Counts[i], Alpha: disp.Final[i]}
		}
	}()

	sr := &StratumResult{
		Results:     make([]*Result, 0, m.NumGenes()),
		SizeFactors: sizeFactors,
		Dispersions: disp,
	}
	err = OrderedCollect(engine.ParallelFit(items, p.workers), func(r WorkResult) error {
		res := &Result{
			GeneID:         r.GeneID,
			BaseMean:       r.Fit.BaseMean,
			Log2FoldChange: r.Fit.Log2FC,
			LfcSE:          r.Fit.SE,
			Stat:           r.Fit.Stat,
			PValue:         r.Fit.PValue,
			Status:         r.Fit.Status,
		}
		switch r.Fit.Status {
		case StatusExcluded:
			sr.Excluded++
		case StatusNonConverged:
			sr.NonConverged++
		}
		sr.Results = append(sr.Results, res)
		return nil
	})
	if err != nil {
		return nil, err
	}

	pvals := make([]float64, len(sr.Results))
	for i, r := range sr.Results {
		pvals[i] = r.PValue
	}
	padj := AdjustBH(pvals)
	for i, r := range sr.Results {
		r.PAdj = padj[i]
		r.Label = Classify(r.Log2FoldChange, r.PAdj, p.thresholds)
	}

	p.logger.Info("fit complete",
		zap.Int("tested", len(sr.Results)-sr.Excluded-sr.NonConverged),
		zap.Int("excluded", sr.Excluded),
		zap.Int("non_converged", sr.NonConverged),
		zap.Bool("dispersion_fallback", disp.Fallback))
	return sr, nil
}

// Significant returns the gene IDs labeled with the given direction.
func (sr *StratumResult) Significant(label Label) []string {
	var ids []string
	for _, r := range sr.Results {
		if r.Label == label {
			ids = append(ids, r.GeneID)
		}
	}
	return ids
}

// TestedGenes returns the IDs of genes that produced a test statistic,
// the background universe for enrichment.
func (sr *StratumResult) TestedGenes() []string {
	var ids []string
	for _, r := range sr.Results {
		if r.Tested() {
			ids = append(ids, r.GeneID)
		}
	}
	return ids
}
