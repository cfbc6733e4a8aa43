package expr

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Metadata column names as produced by the GDC clinical export.
const (
	ColSampleID    = "sample_id"
	ColAgeAtIndex  = "age_at_index"
	ColGender      = "gender"
	ColSampleType  = "sample_type"
	ColVitalStatus = "vital_status"
)

// Values treated as a missing age in the metadata table.
var missingAge = map[string]bool{"": true, "NA": true, "'--": true, "--": true}

// metadataColumns holds the indices of the required metadata columns.
type metadataColumns struct {
	SampleID    int
	AgeAtIndex  int
	Gender      int
	SampleType  int
	VitalStatus int
}

// openMaybeGzip opens a file, transparently decompressing .gz paths.
// The returned closer closes both readers.
func openMaybeGzip(path string) (io.Reader, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, f.Close, nil
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("open gzip %s: %w", path, err)
	}
	closer := func() error {
		gzErr := gz.Close()
		if err := f.Close(); err != nil {
			return err
		}
		return gzErr
	}
	return gz, closer, nil
}

// LoadCounts reads a gene x sample count matrix from a tab-delimited
// file. The first header field names the gene column and is ignored;
// the remaining header fields are sample IDs. Supports gzipped input.
func LoadCounts(path string) (*CountMatrix, error) {
	r, closer, err := openMaybeGzip(path)
	if err != nil {
		return nil, err
	}
	defer closer()
	m, err := ReadCounts(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// ReadCounts parses a count matrix from a reader. See LoadCounts.
func ReadCounts(r io.Reader) (*CountMatrix, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		return nil, MalformedInputErr.New("empty counts file")
	}
	header := strings.Split(scanner.Text(), "\t")
	if len(header) < 2 {
		return nil, MalformedInputErr.New("counts header has no sample columns")
	}
	samples := header[1:]

	var genes []string
	var counts [][]int
	line := 1
	for scanner.Scan() {
		line++
		fields := strings.Split(scanner.Text(), "\t")
		if len(fields) != len(header) {
			return nil, MalformedInputErr.New("line %d: %d fields, want %d", line, len(fields), len(header))
		}
		row := make([]int, len(samples))
		for j, f := range fields[1:] {
			c, err := strconv.Atoi(f)
			if err != nil {
				return nil, MalformedInputErr.New("line %d: non-integer count %q", line, f)
			}
			row[j] = c
		}
		genes = append(genes, fields[0])
		counts = append(counts, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return NewCountMatrix(genes, samples, counts)
}

// LoadMetadata reads sample metadata from a tab-delimited file with a
// header row. Required columns: sample_id, age_at_index, gender,
// sample_type, vital_status. Extra columns are ignored. Supports
// gzipped input.
func LoadMetadata(path string) ([]Sample, error) {
	r, closer, err := openMaybeGzip(path)
	if err != nil {
		return nil, err
	}
	defer closer()
	samples, err := ReadMetadata(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return samples, nil
}

// ReadMetadata parses sample metadata from a reader. See LoadMetadata.
func ReadMetadata(r io.Reader) ([]Sample, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		return nil, MalformedInputErr.New("empty metadata file")
	}
	cols, err := parseMetadataHeader(strings.Split(scanner.Text(), "\t"))
	if err != nil {
		return nil, err
	}

	var samples []Sample
	line := 1
	for scanner.Scan() {
		line++
		fields := strings.Split(scanner.Text(), "\t")
		s, err := parseMetadataRow(fields, cols)
		if err != nil {
			return nil, MalformedInputErr.New("line %d: %v", line, err)
		}
		samples = append(samples, s)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return samples, nil
}

func parseMetadataHeader(fields []string) (metadataColumns, error) {
	cols := metadataColumns{SampleID: -1, AgeAtIndex: -1, Gender: -1, SampleType: -1, VitalStatus: -1}
	for i, f := range fields {
		switch f {
		case ColSampleID:
			cols.SampleID = i
		case ColAgeAtIndex:
			cols.AgeAtIndex = i
		case ColGender:
			cols.Gender = i
		case ColSampleType:
			cols.SampleType = i
		case ColVitalStatus:
			cols.VitalStatus = i
		}
	}
	for name, idx := range map[string]int{
		ColSampleID:    cols.SampleID,
		ColAgeAtIndex:  cols.AgeAtIndex,
		ColGender:      cols.Gender,
		ColSampleType:  cols.SampleType,
		ColVitalStatus: cols.VitalStatus,
	} {
		if idx < 0 {
			return cols, MalformedInputErr.New("metadata header missing column %q", name)
		}
	}
	return cols, nil
}

func parseMetadataRow(fields []string, cols metadataColumns) (Sample, error) {
	get := func(i int) string {
		if i < len(fields) {
			return strings.TrimSpace(fields[i])
		}
		return ""
	}

	s := Sample{
		ID:          get(cols.SampleID),
		SampleType:  get(cols.SampleType),
		VitalStatus: get(cols.VitalStatus),
	}
	if s.ID == "" {
		return s, fmt.Errorf("empty sample_id")
	}

	switch strings.ToLower(get(cols.Gender)) {
	case "male":
		s.Sex = SexMale
	case "female":
		s.Sex = SexFemale
	default:
		return s, fmt.Errorf("unknown gender %q", get(cols.Gender))
	}

	if raw := get(cols.AgeAtIndex); !missingAge[raw] {
		age, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return s, fmt.Errorf("bad age_at_index %q", raw)
		}
		s.Age = &age
	}
	return s, nil
}
