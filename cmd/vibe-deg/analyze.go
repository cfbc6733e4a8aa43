package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/inodb/vibe-deg/internal/annotation"
	"github.com/inodb/vibe-deg/internal/deseq"
	"github.com/inodb/vibe-deg/internal/enrich"
	"github.com/inodb/vibe-deg/internal/expr"
	"github.com/inodb/vibe-deg/internal/output"
	"github.com/inodb/vibe-deg/internal/refdata"
)

func newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run the differential expression and enrichment pipeline",
		Example: `  vibe-deg analyze --counts counts.tsv.gz --metadata samples.tsv \
      --refdata reference.duckdb --out results/`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(configFromViper(cmd))
		},
	}

	cmd.Flags().String("counts", "", "Gene x sample read count matrix (TSV, optionally gzipped)")
	cmd.Flags().String("metadata", "", "Sample metadata table (TSV, optionally gzipped)")
	cmd.Flags().String("refdata", "", "Reference database with gene annotation and GO terms (DuckDB file or s3:// URL)")
	cmd.Flags().String("out", ".", "Output directory")
	cmd.Flags().Float64("age-cutoff", 50, "Age stratum boundary: young is age <= cutoff, old is age > cutoff")
	cmd.Flags().String("sample-type", "Metastatic", "sample_type value to keep")
	cmd.Flags().Float64("lfc-threshold", 1.0, "Absolute log2 fold change a gene must exceed to be called")
	cmd.Flags().Float64("padj-threshold", 0.05, "Adjusted p-value a gene must stay under to be called")
	cmd.Flags().Int("workers", 0, "Worker count for per-gene fitting (0 = all CPUs)")
	cmd.Flags().Bool("verbose", false, "Verbose logging")
	cmd.MarkFlagRequired("counts")
	cmd.MarkFlagRequired("metadata")
	cmd.MarkFlagRequired("refdata")

	for key, flag := range map[string]string{
		"analysis.age_cutoff":     "age-cutoff",
		"analysis.sample_type":    "sample-type",
		"analysis.lfc_threshold":  "lfc-threshold",
		"analysis.padj_threshold": "padj-threshold",
		"analysis.workers":        "workers",
		"refdata.path":            "refdata",
	} {
		viper.BindPFlag(key, cmd.Flags().Lookup(flag))
	}

	return cmd
}

// analysisConfig is the explicit configuration the pipeline runs with,
// resolved from flags and the config file.
type analysisConfig struct {
	CountsPath   string
	MetadataPath string
	RefdataPath  string
	OutDir       string
	AgeCutoff    float64
	SampleType   string
	Thresholds   deseq.Thresholds
	Workers      int
	Verbose      bool
}

func configFromViper(cmd *cobra.Command) analysisConfig {
	counts, _ := cmd.Flags().GetString("counts")
	metadata, _ := cmd.Flags().GetString("metadata")
	out, _ := cmd.Flags().GetString("out")
	verbose, _ := cmd.Flags().GetBool("verbose")
	return analysisConfig{
		CountsPath:   counts,
		MetadataPath: metadata,
		RefdataPath:  viper.GetString("refdata.path"),
		OutDir:       out,
		AgeCutoff:    viper.GetFloat64("analysis.age_cutoff"),
		SampleType:   viper.GetString("analysis.sample_type"),
		Thresholds: deseq.Thresholds{
			Log2FC: viper.GetFloat64("analysis.lfc_threshold"),
			PAdj:   viper.GetFloat64("analysis.padj_threshold"),
		},
		Workers: viper.GetInt("analysis.workers"),
		Verbose: verbose,
	}
}

// stratumSpec names one age stratum of the cohort.
type stratumSpec struct {
	Name  string
	Older bool
}

func runAnalyze(cfg analysisConfig) error {
	logger, err := newLogger(cfg.Verbose)
	if err != nil {
		return err
	}
	defer logger.Sync()

	matrix, err := expr.LoadCounts(cfg.CountsPath)
	if err != nil {
		return fmt.Errorf("load counts: %w", err)
	}
	samples, err := expr.LoadMetadata(cfg.MetadataPath)
	if err != nil {
		return fmt.Errorf("load metadata: %w", err)
	}
	samples, err = expr.AlignMetadata(matrix, samples)
	if err != nil {
		return err
	}
	logger.Info("loaded inputs",
		zap.Int("genes", matrix.NumGenes()),
		zap.Int("samples", matrix.NumSamples()))

	store, err := refdata.Open(cfg.RefdataPath)
	if err != nil {
		return err
	}
	defer store.Close()
	names, err := store.GeneNames()
	if err != nil {
		return err
	}
	terms, err := store.TermSets()
	if err != nil {
		return err
	}
	logger.Info("loaded reference data",
		zap.Int("annotated_genes", len(names)),
		zap.Int("go_terms", len(terms)))

	if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	strata := []stratumSpec{
		{Name: "young", Older: false},
		{Name: "old", Older: true},
	}

	// The strata are fully independent: each builds its own size
	// factors, dispersions and results from its own filtered cohort.
	var g errgroup.Group
	for _, st := range strata {
		g.Go(func() error {
			slog := logger.With(zap.String("stratum", st.Name))
			err := runStratum(cfg, st, matrix, samples, names, terms, slog)
			if expr.EmptyCohortErr.Has(err) {
				// Fatal for this stratum only.
				slog.Error("skipping stratum", zap.Error(err))
				return nil
			}
			return err
		})
	}
	return g.Wait()
}

func runStratum(cfg analysisConfig, st stratumSpec, matrix *expr.CountMatrix, samples []expr.Sample,
	names annotation.Table, terms []enrich.TermSet, logger *zap.Logger) error {

	sub, kept, err := expr.FilterCohort(matrix, samples, expr.Predicate{
		SampleType: cfg.SampleType,
		AgeCutoff:  cfg.AgeCutoff,
		Older:      st.Older,
	})
	if err != nil {
		return err
	}

	p := deseq.New()
	p.SetLogger(logger)
	p.SetWorkers(cfg.Workers)
	p.SetThresholds(cfg.Thresholds)
	sr, err := p.Run(sub, kept)
	if err != nil {
		return err
	}

	unmapped := names.Join(sr.Results)
	if unmapped > 0 {
		logger.Warn("gene ids without annotation", zap.Int("unmapped", unmapped))
	}

	degPath := filepath.Join(cfg.OutDir, fmt.Sprintf("deg_%s.tsv", st.Name))
	if err := writeDETable(degPath, sr.Results); err != nil {
		return err
	}

	universe := sr.TestedGenes()
	for _, dir := range []struct {
		label deseq.Label
		name  string
	}{
		{deseq.LabelMale, "male"},
		{deseq.LabelFemale, "female"},
	} {
		list := sr.Significant(dir.label)
		results := enrich.Run(list, universe, terms, names)
		logger.Info("enrichment complete",
			zap.String("direction", dir.name),
			zap.Int("flagged_genes", len(list)),
			zap.Int("terms", len(results)))

		goPath := filepath.Join(cfg.OutDir, fmt.Sprintf("go_%s_%s.tsv", st.Name, dir.name))
		if err := writeEnrichmentTable(goPath, results); err != nil {
			return err
		}
	}

	logger.Info("stratum complete",
		zap.Int("samples", len(kept)),
		zap.Int("genes", len(sr.Results)),
		zap.Int("excluded", sr.Excluded),
		zap.Int("non_converged", sr.NonConverged),
		zap.Bool("dispersion_fallback", sr.Dispersions.Fallback))
	return nil
}

func writeDETable(path string, results []*deseq.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := output.NewDEWriter(f)
	if err := w.WriteHeader(); err != nil {
		return err
	}
	for _, r := range results {
		if err := w.Write(r); err != nil {
			return err
		}
	}
	return w.Flush()
}

func writeEnrichmentTable(path string, results []enrich.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := output.NewEnrichmentWriter(f)
	if err := w.WriteHeader(); err != nil {
		return err
	}
	for i := range results {
		if err := w.Write(&results[i]); err != nil {
			return err
		}
	}
	return w.Flush()
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.DisableCaller = true
	return cfg.Build()
}
