package expr

import "github.com/zeebo/errs"

// EmptyCohortErr reports a filter that leaves no usable cohort: zero
// samples, or samples of only one sex (the sex covariate would be
// rank-deficient downstream).
var EmptyCohortErr = errs.Class("empty cohort")

// Predicate selects the sample subset to analyze. Samples with a nil
// age are always dropped.
type Predicate struct {
	SampleType string  // required sample_type value, e.g. "Metastatic"
	AgeCutoff  float64 // stratum boundary
	Older      bool    // false keeps age <= AgeCutoff, true keeps age > AgeCutoff
	Sex        Sex     // optional; empty keeps both levels
}

// Matches reports whether the sample passes the predicate.
func (p Predicate) Matches(s Sample) bool {
	if s.Age == nil {
		return false
	}
	if s.SampleType != p.SampleType {
		return false
	}
	if p.Older {
		if *s.Age <= p.AgeCutoff {
			return false
		}
	} else if *s.Age > p.AgeCutoff {
		return false
	}
	if p.Sex != "" && s.Sex != p.Sex {
		return false
	}
	return true
}

// FilterCohort returns the column subset of the matrix and the aligned
// metadata subset for samples matching the predicate. It fails with
// EmptyCohortErr when no sample matches, or when the surviving samples
// carry a single sex level while the predicate did not fix the sex.
func FilterCohort(m *CountMatrix, samples []Sample, p Predicate) (*CountMatrix, []Sample, error) {
	if len(samples) != m.NumSamples() {
		return nil, nil, MalformedInputErr.New("metadata rows %d != matrix columns %d", len(samples), m.NumSamples())
	}

	var cols []int
	var kept []Sample
	sexes := make(map[Sex]bool)
	for j, s := range samples {
		if !p.Matches(s) {
			continue
		}
		cols = append(cols, j)
		kept = append(kept, s)
		sexes[s.Sex] = true
	}

	if len(kept) == 0 {
		return nil, nil, EmptyCohortErr.New("no samples match predicate")
	}
	if p.Sex == "" && len(sexes) < 2 {
		return nil, nil, EmptyCohortErr.New("cohort has a single sex level")
	}

	sub, err := m.SubsetColumns(cols)
	if err != nil {
		return nil, nil, err
	}
	return sub, kept, nil
}
