package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/bikewatch-nyc/gbfs-analytics/gbfs"
	"github.com/bikewatch-nyc/gbfs-analytics/timeseries"
)

// ConfigurationError is the one fatal error kind: it aborts a session
// before any tick runs.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "session misconfigured: " + e.Reason
}

// TickError is one recorded per-tick or per-entity failure. A completed
// session with partial failures still yields whatever was ingested plus
// this enumerable record of what failed and why.
type TickError struct {
	Tick   int
	Feed   string
	Entity string
	At     time.Time
	Kind   string
	Err    error
}

func (e TickError) Error() string {
	if e.Entity != "" {
		return fmt.Sprintf("tick %d (%s, entity %s): %v", e.Tick, e.Feed, e.Entity, e.Err)
	}
	return fmt.Sprintf("tick %d (%s): %v", e.Tick, e.Feed, e.Err)
}

// errKind buckets an error for the session log.
func errKind(err error) (kind, entity string) {
	var reqErr *gbfs.RequestError
	if errors.As(err, &reqErr) {
		return "network", ""
	}
	var payloadErr *gbfs.PayloadError
	if errors.As(err, &payloadErr) {
		return "payload", ""
	}
	var unclassified *timeseries.UnclassifiedFieldError
	if errors.As(err, &unclassified) {
		return "unclassified_field", unclassified.Entity
	}
	var dup *timeseries.DuplicateTimestampError
	if errors.As(err, &dup) {
		return "duplicate_timestamp", dup.Entity
	}
	return "internal", ""
}
