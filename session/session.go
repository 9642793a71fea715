package session

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/bikewatch-nyc/gbfs-analytics/gbfs"
	"github.com/bikewatch-nyc/gbfs-analytics/sink"
	"github.com/bikewatch-nyc/gbfs-analytics/timeseries"
)

// State is the session lifecycle: IDLE until the first perform call,
// RUNNING during the loop, COMPLETED after the final tick (regardless of
// how many individual ticks failed), ABORTED only on misconfiguration.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	default:
		return "idle"
	}
}

// Fetcher is the one-fetch contract the session drives. *gbfs.Client
// satisfies it; tests substitute a stub.
type Fetcher interface {
	Fetch(ctx context.Context, city, feed, url string) (*gbfs.RawSnapshot, []byte, error)
}

// Session polls one city's feeds on a fixed cadence and accumulates each
// feed into its own store. All mutation happens from the single perform
// loop; the mutex only protects reads from other goroutines (the HTTP
// surface) against in-flight updates.
type Session struct {
	ID   uuid.UUID
	City string

	client  Fetcher
	urls    map[string]string
	tables  map[string]timeseries.FieldTable
	sink    sink.Sink
	retries uint

	mu     sync.RWMutex
	state  State
	stores map[string]*timeseries.Store
	errLog []TickError
}

// Option configures a Session.
type Option func(*Session)

// WithSink enables raw-payload persistence for save-mode runs.
func WithSink(s sink.Sink) Option {
	return func(sess *Session) { sess.sink = s }
}

// WithFetchRetries bounds in-tick fetch attempts. An exhausted tick
// records exactly one failure.
func WithFetchRetries(n uint) Option {
	return func(sess *Session) { sess.retries = n }
}

// NewSession builds a session over a resolved feed URL map and the city's
// field classification tables.
func NewSession(city string, client Fetcher, urls map[string]string, tables map[string]timeseries.FieldTable, opts ...Option) *Session {
	s := &Session{
		ID:      uuid.New(),
		City:    city,
		client:  client,
		urls:    urls,
		tables:  tables,
		retries: 3,
		stores:  map[string]*timeseries.Store{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Store returns the accumulated series for a feed, nil before the feed's
// first perform call.
func (s *Session) Store(feed string) *timeseries.Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stores[feed]
}

// Feeds lists the feed names this session can poll.
func (s *Session) Feeds() []string {
	names := make([]string, 0, len(s.urls))
	for name := range s.urls {
		names = append(names, name)
	}
	return names
}

// Errors returns a copy of the session error log.
func (s *Session) Errors() []TickError {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]TickError, len(s.errLog))
	copy(out, s.errLog)
	return out
}

// PerformSnapshot polls the feed iterations times, interval apart (first
// tick immediate), ingesting every successful fetch. With saveMode the
// exact payload bytes are persisted once per tick.
func (s *Session) PerformSnapshot(ctx context.Context, feed string, interval time.Duration, iterations int, saveMode bool) error {
	return s.perform(ctx, feed, interval, iterations, saveMode, false)
}

// PerformDelta is PerformSnapshot except that save mode persists per-tick
// field-level deltas (changed fields only) instead of raw payloads. The
// first tick has no previous payload and persists nothing.
func (s *Session) PerformDelta(ctx context.Context, feed string, interval time.Duration, iterations int, saveMode bool) error {
	return s.perform(ctx, feed, interval, iterations, saveMode, true)
}

func (s *Session) perform(ctx context.Context, feed string, interval time.Duration, iterations int, saveMode, delta bool) error {
	if err := s.validate(feed, interval, iterations); err != nil {
		s.setState(StateAborted)
		return err
	}
	url := s.urls[feed]
	table := s.tables[feed]

	s.setState(StateRunning)
	store := timeseries.NewStore(feed)
	s.mu.Lock()
	s.stores[feed] = store
	s.mu.Unlock()

	var prev *gbfs.RawSnapshot
	next := time.Now()
	for tick := 0; tick < iterations; tick++ {
		// external stop requests take effect at tick boundaries, never
		// mid-fetch
		if err := ctx.Err(); err != nil {
			log.Printf("session %s: %s/%s stopped at tick %d/%d", s.ID, s.City, feed, tick, iterations)
			s.setState(StateCompleted)
			return err
		}
		log.Printf("session %s: %s/%s tick %d/%d", s.ID, s.City, feed, tick+1, iterations)

		snap, body, err := s.fetchTick(ctx, feed, url)
		switch {
		case err != nil && ctx.Err() != nil:
			s.setState(StateCompleted)
			return ctx.Err()
		case err != nil:
			s.record(tick, feed, err)
		default:
			changeSet, classifyErrs := timeseries.Classify(prev, snap, table)
			for _, cerr := range classifyErrs {
				s.record(tick, feed, cerr)
			}
			for _, ierr := range store.Ingest(changeSet) {
				s.record(tick, feed, ierr)
			}
			if saveMode && s.sink != nil {
				s.persistTick(ctx, feed, tick, snap, body, changeSet, prev != nil, delta)
			}
			prev = snap
		}

		if tick == iterations-1 {
			break
		}
		next = next.Add(interval)
		wait := time.Until(next)
		if wait <= 0 {
			// an overlong cycle fires the next tick immediately; missed
			// ticks are not queued up
			next = time.Now()
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Printf("session %s: %s/%s stopped during wait after tick %d", s.ID, s.City, feed, tick+1)
			s.setState(StateCompleted)
			return ctx.Err()
		case <-timer.C:
		}
	}

	s.setState(StateCompleted)
	log.Printf("session %s: %s/%s completed %d ticks, %d entities, %d errors",
		s.ID, s.City, feed, iterations, store.Len(), len(s.Errors()))
	return nil
}

func (s *Session) validate(feed string, interval time.Duration, iterations int) error {
	if url, ok := s.urls[feed]; !ok || url == "" {
		return &ConfigurationError{Reason: "unknown feed " + feed + " for city " + s.City}
	}
	if _, ok := s.tables[feed]; !ok {
		return &ConfigurationError{Reason: "feed " + feed + " is not classified for city " + s.City}
	}
	if interval <= 0 {
		return &ConfigurationError{Reason: "interval must be positive"}
	}
	if iterations <= 0 {
		return &ConfigurationError{Reason: "iterations must be positive"}
	}
	return nil
}

type fetchResult struct {
	snap *gbfs.RawSnapshot
	body []byte
}

// fetchTick performs one tick's fetch with bounded in-tick retries. Only
// transport errors are retried; a malformed body will not heal within a
// tick.
func (s *Session) fetchTick(ctx context.Context, feed, url string) (*gbfs.RawSnapshot, []byte, error) {
	op := func() (fetchResult, error) {
		snap, body, err := s.client.Fetch(ctx, s.City, feed, url)
		if err != nil {
			var payloadErr *gbfs.PayloadError
			if errors.As(err, &payloadErr) {
				return fetchResult{}, backoff.Permanent(err)
			}
			return fetchResult{}, err
		}
		return fetchResult{snap: snap, body: body}, nil
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond
	res, err := backoff.Retry(ctx, op, backoff.WithBackOff(bo), backoff.WithMaxTries(s.retries))
	if err != nil {
		return nil, nil, err
	}
	return res.snap, res.body, nil
}

func (s *Session) persistTick(ctx context.Context, feed string, tick int, snap *gbfs.RawSnapshot, body []byte, cs *timeseries.ChangeSet, hadPrev, delta bool) {
	payload := body
	mode := "snapshot"
	if delta {
		if !hadPrev {
			return
		}
		mode = "delta"
		var err error
		payload, err = deltaPayload(cs)
		if err != nil {
			s.record(tick, feed, err)
			return
		}
	}
	key := sink.ArtifactKey(s.City, feed, mode, tick, snap.CapturedAt)
	if err := s.sink.Persist(ctx, key, payload); err != nil {
		s.record(tick, feed, err)
		return
	}
	log.Printf("session %s: saved %s", s.ID, key)
}

// deltaPayload renders only the changed fields of each entity.
func deltaPayload(cs *timeseries.ChangeSet) ([]byte, error) {
	out := make(map[string]gbfs.Fields, len(cs.Keys))
	for _, key := range cs.Keys {
		change := cs.Entities[key]
		if len(change.Changed) == 0 {
			continue
		}
		fields := gbfs.Fields{}
		for _, name := range change.Changed {
			if v, ok := change.Data[name]; ok {
				fields[name] = v
			} else if v, ok := change.Metadata[name]; ok {
				fields[name] = v
			}
		}
		out[key] = fields
	}
	return json.Marshal(out)
}

func (s *Session) record(tick int, feed string, err error) {
	kind, entity := errKind(err)
	log.Printf("session %s: tick %d %s error (%s): %v", s.ID, tick, feed, kind, err)
	s.mu.Lock()
	s.errLog = append(s.errLog, TickError{
		Tick:   tick,
		Feed:   feed,
		Entity: entity,
		At:     time.Now().UTC(),
		Kind:   kind,
		Err:    err,
	})
	s.mu.Unlock()
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}
