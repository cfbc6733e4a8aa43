// Package main provides the vibe-deg command-line tool.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Exit codes
const (
	ExitSuccess = 0
	ExitError   = 1
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitError
	}
	return ExitSuccess
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vibe-deg",
		Short: "Sex-biased differential expression analysis for tumor RNA-seq cohorts",
		Long: `vibe-deg computes which genes are differentially expressed between
male and female samples in a tumor cohort, split by age stratum, and
which gene ontology terms are over-represented among the significant
genes. Input is a raw read-count matrix plus sample metadata; output
is one test result table per stratum and one enrichment table per
stratum and direction.`,
		Version:       fmt.Sprintf("%s (%s) built %s", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
	}

	cmd.AddCommand(newAnalyzeCmd())
	cmd.AddCommand(newImportCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// initConfig loads ~/.vibe-deg.yaml if present. A missing config file
// is not an error.
func initConfig() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	viper.SetConfigFile(filepath.Join(home, ".vibe-deg.yaml"))
	if err := viper.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}
	return nil
}
