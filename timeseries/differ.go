package timeseries

import (
	"sort"

	"github.com/bikewatch-nyc/gbfs-analytics/gbfs"
)

// EntityChange is the classified change picture for one entity between two
// consecutive snapshots.
type EntityChange struct {
	Entity    string
	Timestamp Timestamp
	// New marks an entity absent from the previous snapshot; every field
	// counts as changed.
	New     bool
	Changed []string
	// Data holds every data-classified field present this round, changed or
	// not: data records are full samples. A field the entity previously
	// reported but dropped this round appears with an explicit Missing
	// value.
	Data gbfs.Fields
	// Metadata holds every metadata-classified field value this round, the
	// candidate record to store if MetadataChanged.
	Metadata        gbfs.Fields
	MetadataChanged bool
}

// ChangeSet is the per-entity classification of one snapshot against the
// previous one for the same feed.
type ChangeSet struct {
	Feed       string
	CapturedAt Timestamp
	Keys       []string
	Entities   map[string]*EntityChange
}

// Classify compares a newly fetched snapshot against the previous one and
// splits each entity's fields into data and metadata sub-maps. prev may be
// nil (first successful fetch), in which case every entity is new.
//
// An entity carrying a field absent from the table is dropped from the
// change set and reported in the returned error slice; the rest of the
// snapshot is unaffected.
func Classify(prev, cur *gbfs.RawSnapshot, table FieldTable) (*ChangeSet, []error) {
	cs := &ChangeSet{
		Feed:       cur.Feed,
		CapturedAt: Timestamp(cur.CapturedAt),
		Entities:   map[string]*EntityChange{},
	}
	var errs []error

	for _, key := range cur.Keys {
		fields := cur.Entities[key]
		var prevFields gbfs.Fields
		if prev != nil {
			prevFields = prev.Entities[key]
		}
		change, err := classifyEntity(cur, key, fields, prevFields, table)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		cs.Keys = append(cs.Keys, key)
		cs.Entities[key] = change
	}
	return cs, errs
}

func classifyEntity(cur *gbfs.RawSnapshot, key string, fields, prevFields gbfs.Fields, table FieldTable) (*EntityChange, error) {
	change := &EntityChange{
		Entity:    key,
		Timestamp: Timestamp(cur.EffectiveTime(key)),
		New:       prevFields == nil,
		Data:      gbfs.Fields{},
		Metadata:  gbfs.Fields{},
	}

	for name, value := range fields {
		class, ok := table.Class(name)
		if !ok {
			return nil, &UnclassifiedFieldError{Feed: cur.Feed, Entity: key, Field: name}
		}
		if class == ClassMetadata {
			change.Metadata[name] = value
		} else {
			change.Data[name] = value
		}
		if change.New {
			change.Changed = append(change.Changed, name)
			continue
		}
		prevValue, reported := prevFields[name]
		if !reported || !value.Equal(prevValue) {
			change.Changed = append(change.Changed, name)
		}
	}

	// Fields the entity reported last round but not this round are recorded
	// as explicitly missing, distinguishing "unreported" from "unchanged".
	for name, prevValue := range prevFields {
		if _, reported := fields[name]; reported {
			continue
		}
		class, ok := table.Class(name)
		if !ok {
			// prev snapshot was built against the same table; an entry here
			// without a classification cannot happen through ingestion.
			return nil, &UnclassifiedFieldError{Feed: cur.Feed, Entity: key, Field: name}
		}
		if prevValue.Kind == gbfs.KindMissing {
			// already missing last round; no transition to record
			if class == ClassMetadata {
				change.Metadata[name] = gbfs.Missing()
			} else {
				change.Data[name] = gbfs.Missing()
			}
			continue
		}
		if class == ClassMetadata {
			change.Metadata[name] = gbfs.Missing()
		} else {
			change.Data[name] = gbfs.Missing()
		}
		change.Changed = append(change.Changed, name)
	}

	sort.Strings(change.Changed)
	change.MetadataChanged = change.New
	for _, name := range change.Changed {
		if class, _ := table.Class(name); class == ClassMetadata {
			change.MetadataChanged = true
			break
		}
	}
	return change, nil
}
