package expr

// Sex is the two-level biological sex covariate. Female is the
// reference level in the downstream model.
type Sex string

// Sex levels as they appear in the metadata table.
const (
	SexFemale Sex = "female"
	SexMale   Sex = "male"
)

// Sample is one sample metadata record. Age is nil when the source
// table has no age for the sample.
type Sample struct {
	ID          string
	Age         *float64
	Sex         Sex
	SampleType  string
	VitalStatus string
}

// AlignMetadata reorders metadata records to match the matrix column
// order. Every matrix column must have exactly one metadata record;
// metadata records without a matching column are an error as well, so
// the aligned result is always 1:1 with the columns.
func AlignMetadata(m *CountMatrix, samples []Sample) ([]Sample, error) {
	byID := make(map[string]Sample, len(samples))
	for _, s := range samples {
		if _, dup := byID[s.ID]; dup {
			return nil, MalformedInputErr.New("duplicate metadata record for sample %q", s.ID)
		}
		byID[s.ID] = s
	}
	aligned := make([]Sample, len(m.Samples))
	for j, id := range m.Samples {
		s, ok := byID[id]
		if !ok {
			return nil, MalformedInputErr.New("no metadata record for matrix column %q", id)
		}
		aligned[j] = s
		delete(byID, id)
	}
	if len(byID) != 0 {
		for id := range byID {
			return nil, MalformedInputErr.New("metadata sample %q has no matrix column", id)
		}
	}
	return aligned, nil
}
