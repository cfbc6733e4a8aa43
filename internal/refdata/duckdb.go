// Package refdata provides access to the static reference tables:
// gene annotation and gene ontology term sets, stored in DuckDB.
package refdata

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/inodb/vibe-deg/internal/annotation"
	"github.com/inodb/vibe-deg/internal/enrich"
)

// Store provides access to reference data stored in a DuckDB database.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens a reference database. The path can be a local file path
// or an S3 URL (s3://bucket/path.duckdb).
func Open(path string) (*Store, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	// Enable httpfs extension for S3 support
	if strings.HasPrefix(path, "s3://") {
		if _, err := db.Exec("INSTALL httpfs; LOAD httpfs;"); err != nil {
			db.Close()
			return nil, fmt.Errorf("load httpfs extension: %w", err)
		}
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateSchema creates the reference tables. Gene ids are stored
// unversioned.
func (s *Store) CreateSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS genes (
			gene_id VARCHAR PRIMARY KEY,
			gene_name VARCHAR
		)`,
		`CREATE TABLE IF NOT EXISTS go_terms (
			term_id VARCHAR PRIMARY KEY,
			term_name VARCHAR
		)`,
		`CREATE TABLE IF NOT EXISTS go_term_genes (
			term_id VARCHAR,
			gene_id VARCHAR
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// InsertGene adds a gene annotation row.
func (s *Store) InsertGene(geneID, geneName string) error {
	_, err := s.db.Exec(`INSERT INTO genes (gene_id, gene_name) VALUES (?, ?)`,
		annotation.StripVersion(geneID), geneName)
	if err != nil {
		return fmt.Errorf("insert gene %s: %w", geneID, err)
	}
	return nil
}

// InsertTerm adds an ontology term and its gene set.
func (s *Store) InsertTerm(termID, termName string, geneIDs []string) error {
	if _, err := s.db.Exec(`INSERT INTO go_terms (term_id, term_name) VALUES (?, ?)`, termID, termName); err != nil {
		return fmt.Errorf("insert term %s: %w", termID, err)
	}
	for _, g := range geneIDs {
		if _, err := s.db.Exec(`INSERT INTO go_term_genes (term_id, gene_id) VALUES (?, ?)`,
			termID, annotation.StripVersion(g)); err != nil {
			return fmt.Errorf("insert term gene %s/%s: %w", termID, g, err)
		}
	}
	return nil
}

// GeneCount returns the number of annotated genes.
func (s *Store) GeneCount() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM genes`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count genes: %w", err)
	}
	return n, nil
}

// GeneNames loads the gene_id to gene_name mapping. The first name
// seen for an id wins.
func (s *Store) GeneNames() (annotation.Table, error) {
	rows, err := s.db.Query(`SELECT gene_id, gene_name FROM genes ORDER BY gene_id`)
	if err != nil {
		return nil, fmt.Errorf("query genes: %w", err)
	}
	defer rows.Close()

	table := annotation.Table{}
	for rows.Next() {
		var id string
		var name sql.NullString
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan gene: %w", err)
		}
		table.Add(id, name.String)
	}
	return table, rows.Err()
}

// TermSets loads all ontology terms with their gene sets. Terms
// without any annotated gene are omitted.
func (s *Store) TermSets() ([]enrich.TermSet, error) {
	rows, err := s.db.Query(`
		SELECT t.term_id, t.term_name, g.gene_id
		FROM go_terms t
		JOIN go_term_genes g ON g.term_id = t.term_id
		ORDER BY t.term_id, g.gene_id
	`)
	if err != nil {
		return nil, fmt.Errorf("query term sets: %w", err)
	}
	defer rows.Close()

	var terms []enrich.TermSet
	for rows.Next() {
		var termID, termName, geneID string
		if err := rows.Scan(&termID, &termName, &geneID); err != nil {
			return nil, fmt.Errorf("scan term gene: %w", err)
		}
		if len(terms) == 0 || terms[len(terms)-1].ID != termID {
			terms = append(terms, enrich.TermSet{ID: termID, Name: termName})
		}
		last := &terms[len(terms)-1]
		last.Genes = append(last.Genes, geneID)
	}
	return terms, rows.Err()
}
