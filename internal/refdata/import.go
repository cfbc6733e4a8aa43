package refdata

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/inodb/vibe-deg/internal/annotation"
)

// ImportGenes loads gene annotation rows from a TSV with columns
// gene_id and gene_name. Returns the number of genes inserted.
func (s *Store) ImportGenes(r io.Reader) (int, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 1024*1024), 16*1024*1024)

	if !sc.Scan() {
		return 0, fmt.Errorf("gene annotation file is empty")
	}
	header := strings.Split(sc.Text(), "\t")
	if len(header) < 2 || header[0] != "gene_id" || header[1] != "gene_name" {
		return 0, fmt.Errorf("gene annotation header must start with gene_id and gene_name, got %q", sc.Text())
	}

	n := 0
	line := 1
	for sc.Scan() {
		line++
		fields := strings.Split(sc.Text(), "\t")
		if len(fields) < 2 {
			return n, fmt.Errorf("gene annotation line %d: expected 2 columns, got %d", line, len(fields))
		}
		if err := s.InsertGene(fields[0], fields[1]); err != nil {
			return n, err
		}
		n++
	}
	return n, sc.Err()
}

// ImportTerms loads term-gene associations from a TSV with columns
// term_id, term_name and gene_id, one association per row. Rows for
// the same term need not be adjacent. Returns the number of terms and
// associations inserted.
func (s *Store) ImportTerms(r io.Reader) (terms, assocs int, err error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 1024*1024), 16*1024*1024)

	if !sc.Scan() {
		return 0, 0, fmt.Errorf("term file is empty")
	}
	header := strings.Split(sc.Text(), "\t")
	if len(header) < 3 || header[0] != "term_id" || header[1] != "term_name" || header[2] != "gene_id" {
		return 0, 0, fmt.Errorf("term header must start with term_id, term_name and gene_id, got %q", sc.Text())
	}

	seen := map[string]bool{}
	line := 1
	for sc.Scan() {
		line++
		fields := strings.Split(sc.Text(), "\t")
		if len(fields) < 3 {
			return terms, assocs, fmt.Errorf("term line %d: expected 3 columns, got %d", line, len(fields))
		}
		termID, termName, geneID := fields[0], fields[1], fields[2]
		if !seen[termID] {
			if _, err := s.db.Exec(`INSERT INTO go_terms (term_id, term_name) VALUES (?, ?)`, termID, termName); err != nil {
				return terms, assocs, fmt.Errorf("insert term %s: %w", termID, err)
			}
			seen[termID] = true
			terms++
		}
		if _, err := s.db.Exec(`INSERT INTO go_term_genes (term_id, gene_id) VALUES (?, ?)`,
			termID, annotation.StripVersion(geneID)); err != nil {
			return terms, assocs, fmt.Errorf("insert term gene %s/%s: %w", termID, geneID, err)
		}
		assocs++
	}
	return terms, assocs, sc.Err()
}

// OpenInput opens a reference input file, transparently decompressing
// .gz files. The caller must close the returned reader.
func OpenInput(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open gzip %s: %w", path, err)
	}
	return &gzipFile{gz: gz, f: f}, nil
}

type gzipFile struct {
	gz *gzip.Reader
	f  *os.File
}

func (g *gzipFile) Read(p []byte) (int, error) { return g.gz.Read(p) }

func (g *gzipFile) Close() error {
	gzErr := g.gz.Close()
	fErr := g.f.Close()
	if gzErr != nil {
		return gzErr
	}
	return fErr
}
