package timeseries

import "fmt"

// UnclassifiedFieldError reports a payload field missing from the feed's
// classification table. Processing of that entity's record halts; other
// entities in the same snapshot are unaffected.
type UnclassifiedFieldError struct {
	Feed   string
	Entity string
	Field  string
}

func (e *UnclassifiedFieldError) Error() string {
	return fmt.Sprintf("field %q of entity %s is not classified for feed %s", e.Field, e.Entity, e.Feed)
}

// DuplicateTimestampError reports an ingest at a timestamp at or before the
// entity's newest record. Capture timestamps are wall-clock, so a collision
// indicates a caller bug or a stale feed; the record is rejected.
type DuplicateTimestampError struct {
	Entity    string
	Timestamp Timestamp
}

func (e *DuplicateTimestampError) Error() string {
	return fmt.Sprintf("entity %s already has a record at or after %s", e.Entity, e.Timestamp)
}

// EntityUnknownError reports a query for an entity never observed in any
// ingested snapshot.
type EntityUnknownError struct {
	Entity string
}

func (e *EntityUnknownError) Error() string {
	return fmt.Sprintf("entity %s has never been observed", e.Entity)
}

// NotFoundError reports a query time before the entity's first record. It
// is an explicit absent result, never a crash.
type NotFoundError struct {
	Entity    string
	Timestamp Timestamp
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("entity %s has no record at or before %s", e.Entity, e.Timestamp)
}
