package timeseries

// FieldClass tags a field as fast-changing data (sampled every poll) or
// slow-changing metadata (stored only on change).
type FieldClass int

const (
	ClassData FieldClass = iota
	ClassMetadata
)

func (c FieldClass) String() string {
	if c == ClassMetadata {
		return "metadata"
	}
	return "data"
}

// FieldTable is the static classification for one feed type in one city.
// It is configuration, not learned: every field observed in a payload must
// resolve here, and an unclassified field is an error condition.
type FieldTable map[string]FieldClass

// BuildFieldTable assembles a table from metadata and data field name
// lists. A field named in both lists resolves to metadata; provider tables
// are maintained by hand and the metadata list is the authoritative one.
func BuildFieldTable(metadata, data []string) FieldTable {
	t := make(FieldTable, len(metadata)+len(data))
	for _, f := range data {
		t[f] = ClassData
	}
	for _, f := range metadata {
		t[f] = ClassMetadata
	}
	return t
}

// Class resolves a field name, reporting whether it is classified at all.
func (t FieldTable) Class(field string) (FieldClass, bool) {
	c, ok := t[field]
	return c, ok
}
