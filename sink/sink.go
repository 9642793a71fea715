package sink

import (
	"context"
	"fmt"
	"time"
)

// Sink receives one artifact per polling tick. Implementations must be
// safe for use from multiple sessions.
type Sink interface {
	Persist(ctx context.Context, key string, payload []byte) error
}

// ArtifactKey builds the storage key for one tick's payload. mode is
// "snapshot" or "delta"; capturedAt is fractional unix seconds.
func ArtifactKey(city, feed, mode string, iteration int, capturedAt float64) string {
	sec := int64(capturedAt)
	nsec := int64((capturedAt - float64(sec)) * 1e9)
	ts := time.Unix(sec, nsec).UTC().Format("2006-01-02T15:04:05.000Z")
	return fmt.Sprintf("%s_%s_%s_%d_%s.json", city, feed, mode, iteration, ts)
}
