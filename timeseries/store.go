package timeseries

import (
	"io"
	"iter"
	"sync"

	"github.com/goccy/go-json"

	"github.com/bikewatch-nyc/gbfs-analytics/gbfs"
)

// Store accumulates one feed's snapshots into per-entity data and metadata
// histories. It exclusively owns both sequences; callers get copies.
//
// All mutation happens from the one polling loop that feeds the store, so
// no coordination is needed between sessions. The internal lock only makes
// concurrent reads (the query API, the HTTP surface) safe against an
// in-flight ingest.
type Store struct {
	feed string

	mu       sync.RWMutex
	entities map[string]*entitySeries
	order    []string
}

type entitySeries struct {
	data []DataRecord
	meta []MetadataRecord
}

// NewStore creates an empty store for one feed.
func NewStore(feed string) *Store {
	return &Store{feed: feed, entities: map[string]*entitySeries{}}
}

// Feed returns the feed type this store accumulates.
func (s *Store) Feed() string { return s.feed }

// Ingest appends one classified snapshot. Every entity in the change set
// gets a DataRecord; a MetadataRecord is appended only when the candidate
// metadata differs from the entity's last stored record (first-seen counts
// as differing). A timestamp at or before an entity's newest record is
// rejected with DuplicateTimestampError; rejected entities do not affect
// the rest of the change set.
func (s *Store) Ingest(cs *ChangeSet) []error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, key := range cs.Keys {
		change := cs.Entities[key]
		series, known := s.entities[key]
		if !known {
			series = &entitySeries{}
			s.entities[key] = series
			s.order = append(s.order, key)
		}
		if n := len(series.data); n > 0 && change.Timestamp <= series.data[n-1].Timestamp {
			errs = append(errs, &DuplicateTimestampError{Entity: key, Timestamp: change.Timestamp})
			continue
		}

		if len(series.meta) == 0 || !series.meta[len(series.meta)-1].Fields.Equal(change.Metadata) {
			series.meta = append(series.meta, MetadataRecord{
				Timestamp: change.Timestamp,
				Version:   len(series.meta),
				Fields:    change.Metadata.Clone(),
			})
		}
		series.data = append(series.data, DataRecord{
			Timestamp:       change.Timestamp,
			MetadataVersion: series.meta[len(series.meta)-1].Version,
			Fields:          change.Data.Clone(),
		})
	}
	return errs
}

// DataAt returns the entity's most recent data record at or before t.
func (s *Store) DataAt(entity string, t Timestamp) (DataRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	series, ok := s.entities[entity]
	if !ok {
		return DataRecord{}, &NotFoundError{Entity: entity, Timestamp: t}
	}
	idx := latestAtOrBefore(len(series.data), t, func(i int) Timestamp { return series.data[i].Timestamp })
	if idx < 0 {
		return DataRecord{}, &NotFoundError{Entity: entity, Timestamp: t}
	}
	rec := series.data[idx]
	rec.Fields = rec.Fields.Clone()
	return rec, nil
}

// MetadataAt returns the entity's most recent metadata record at or before t.
func (s *Store) MetadataAt(entity string, t Timestamp) (MetadataRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	series, ok := s.entities[entity]
	if !ok {
		return MetadataRecord{}, &NotFoundError{Entity: entity, Timestamp: t}
	}
	idx := latestAtOrBefore(len(series.meta), t, func(i int) Timestamp { return series.meta[i].Timestamp })
	if idx < 0 {
		return MetadataRecord{}, &NotFoundError{Entity: entity, Timestamp: t}
	}
	rec := series.meta[idx]
	rec.Fields = rec.Fields.Clone()
	return rec, nil
}

// FullStateAt reconstructs the entity's complete field set at t by merging
// the latest data and metadata records at or before t.
func (s *Store) FullStateAt(entity string, t Timestamp) (gbfs.Fields, error) {
	s.mu.RLock()
	known := s.entities[entity] != nil
	s.mu.RUnlock()
	if !known {
		return nil, &EntityUnknownError{Entity: entity}
	}

	data, err := s.DataAt(entity, t)
	if err != nil {
		return nil, err
	}
	state := data.Fields.Clone()
	if meta, err := s.MetadataAt(entity, t); err == nil {
		for name, value := range meta.Fields {
			state[name] = value
		}
	}
	return state, nil
}

// Entities yields known entity keys in insertion order. The sequence is
// lazy and restartable: ranging over it twice replays from the start.
func (s *Store) Entities() iter.Seq[string] {
	return func(yield func(string) bool) {
		s.mu.RLock()
		keys := make([]string, len(s.order))
		copy(keys, s.order)
		s.mu.RUnlock()
		for _, key := range keys {
			if !yield(key) {
				return
			}
		}
	}
}

// Len returns the number of known entities.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// History returns copies of the entity's full record sequences, newest
// last. Used by serialization and tests; day-to-day queries go through the
// *At accessors.
func (s *Store) History(entity string) ([]DataRecord, []MetadataRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	series, ok := s.entities[entity]
	if !ok {
		return nil, nil, &EntityUnknownError{Entity: entity}
	}
	data := make([]DataRecord, len(series.data))
	copy(data, series.data)
	meta := make([]MetadataRecord, len(series.meta))
	copy(meta, series.meta)
	return data, meta, nil
}

// SerializeTo dumps the accumulated series as JSON. Durability of the
// series is the caller's responsibility; this is the on-demand half,
// distinct from per-tick raw persistence.
func (s *Store) SerializeTo(w io.Writer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type entityDump struct {
		MetadataHistory []MetadataRecord `json:"metadata_history"`
		TimeSeries      []DataRecord     `json:"time_series"`
	}
	dump := make(map[string]entityDump, len(s.order))
	for _, key := range s.order {
		series := s.entities[key]
		dump[key] = entityDump{MetadataHistory: series.meta, TimeSeries: series.data}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(dump)
}

// latestAtOrBefore binary-searches for the last index with timestamp <= t,
// or -1. Timestamps are strictly increasing within a series.
func latestAtOrBefore(n int, t Timestamp, at func(int) Timestamp) int {
	lo, hi := 0, n
	for lo < hi {
		mid := (lo + hi) / 2
		if at(mid) <= t {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo - 1
}
