package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/inodb/vibe-deg/internal/refdata"
)

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Build a reference DuckDB database from annotation TSVs",
		Long: `Build the reference database the analyze command reads. The gene
annotation file maps gene ids to symbols, the term file lists one
term-gene association per row. Versioned Ensembl ids are stored
unversioned.`,
		Example: `  vibe-deg import --genes gene_names.tsv --terms go_terms.tsv.gz \
      --output reference.duckdb`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			genes, _ := cmd.Flags().GetString("genes")
			terms, _ := cmd.Flags().GetString("terms")
			out, _ := cmd.Flags().GetString("output")
			return runImport(genes, terms, out)
		},
	}

	cmd.Flags().String("genes", "", "Gene annotation TSV with gene_id and gene_name columns (optionally gzipped)")
	cmd.Flags().String("terms", "", "GO term TSV with term_id, term_name and gene_id columns (optionally gzipped)")
	cmd.Flags().StringP("output", "o", "", "Output DuckDB file path")
	cmd.MarkFlagRequired("genes")
	cmd.MarkFlagRequired("terms")
	cmd.MarkFlagRequired("output")

	return cmd
}

func runImport(genesPath, termsPath, outPath string) error {
	if _, err := os.Stat(outPath); err == nil {
		return fmt.Errorf("output file %s already exists", outPath)
	}

	store, err := refdata.Open(outPath)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.CreateSchema(); err != nil {
		return err
	}

	gf, err := refdata.OpenInput(genesPath)
	if err != nil {
		return err
	}
	nGenes, err := store.ImportGenes(gf)
	gf.Close()
	if err != nil {
		return fmt.Errorf("import genes: %w", err)
	}

	tf, err := refdata.OpenInput(termsPath)
	if err != nil {
		return err
	}
	nTerms, nAssocs, err := store.ImportTerms(tf)
	tf.Close()
	if err != nil {
		return fmt.Errorf("import terms: %w", err)
	}

	fmt.Printf("Imported %d genes, %d terms, %d term-gene associations into %s\n",
		nGenes, nTerms, nAssocs, outPath)
	return nil
}
