package timeseries

import (
	"strconv"
	"time"

	"github.com/bikewatch-nyc/gbfs-analytics/gbfs"
)

// Timestamp is a capture time in fractional unix seconds. A scalar keeps
// strict ordering and exact-collision detection trivial.
type Timestamp float64

// TimestampOf converts a wall-clock time.
func TimestampOf(t time.Time) Timestamp {
	return Timestamp(float64(t.UnixNano()) / 1e9)
}

// Time converts back to wall-clock time.
func (t Timestamp) Time() time.Time {
	sec := int64(t)
	nsec := int64((float64(t) - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC()
}

func (t Timestamp) String() string {
	return strconv.FormatFloat(float64(t), 'f', -1, 64)
}

// DataRecord is one entity's data-classified field values at one capture
// timestamp. Appended for every entity present in every ingested snapshot,
// whether or not values changed.
type DataRecord struct {
	Timestamp Timestamp `json:"timestamp"`
	// MetadataVersion points at the metadata record in force at this
	// timestamp, so a data sample can be joined to its slow-moving context
	// without a time search.
	MetadataVersion int         `json:"metadata_version"`
	Fields          gbfs.Fields `json:"data"`
}

// MetadataRecord is one entity's metadata-classified field values at the
// timestamp they were first observed to differ from the previous record.
// Consecutive records for an entity are never field-wise identical.
type MetadataRecord struct {
	Timestamp Timestamp   `json:"timestamp"`
	Version   int         `json:"version"`
	Fields    gbfs.Fields `json:"metadata"`
}
