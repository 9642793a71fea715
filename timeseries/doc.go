// Package timeseries accumulates feed snapshots into a memory-efficient
// per-entity series.
//
// Every ingested snapshot appends one DataRecord per entity (every poll is
// a sample); a MetadataRecord is appended only when at least one
// metadata-classified field differs from the entity's previous metadata
// record. Slow-moving flags like is_installed therefore cost one record per
// change instead of one per poll, which is the entire point of the split.
//
// The main pieces are FieldTable (the static data/metadata
// classification), Classify (per-entity change classification between
// consecutive snapshots), and Store (the append-only accumulation
// structure with time-travel accessors).
package timeseries
