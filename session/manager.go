package session

import (
	"context"
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/bikewatch-nyc/gbfs-analytics/config"
	"github.com/bikewatch-nyc/gbfs-analytics/gbfs"
	"github.com/bikewatch-nyc/gbfs-analytics/sink"
	"github.com/bikewatch-nyc/gbfs-analytics/timeseries"
)

// Discoverer resolves a system's auto-discovery document. *gbfs.Client
// satisfies it.
type Discoverer interface {
	Fetcher
	Discover(ctx context.Context, url string) (*gbfs.FeedIndex, error)
}

// Manager knows the available systems and builds sessions for them. It is
// an explicit value handed around, never process-wide state.
type Manager struct {
	cfg    *config.AppConfig
	client Discoverer
	sink   sink.Sink
}

// NewManager builds a manager over the loaded configuration.
func NewManager(cfg *config.AppConfig, client Discoverer, snk sink.Sink) *Manager {
	return &Manager{cfg: cfg, client: client, sink: snk}
}

// Systems lists the available system names.
func (m *Manager) Systems() []string {
	return m.cfg.SystemNames()
}

// Feed resolves a city's feed index and returns a session for it. Unknown
// cities are a configuration error.
func (m *Manager) Feed(ctx context.Context, city string) (*Session, error) {
	discoveryURL, ok := m.cfg.DiscoveryURL(city)
	if !ok {
		return nil, &ConfigurationError{Reason: "city " + city + " is not in the systems list"}
	}
	idx, err := m.client.Discover(ctx, discoveryURL)
	if err != nil {
		return nil, err
	}

	tables := map[string]timeseries.FieldTable{}
	for feed := range idx.URLs {
		meta, data, ok := m.cfg.FieldLists(city, feed)
		if !ok {
			// feeds without a classification table (system_information,
			// station_information, ...) are discoverable but not pollable
			continue
		}
		tables[feed] = timeseries.BuildFieldTable(meta, data)
	}

	opts := []Option{WithFetchRetries(uint(m.cfg.Polling.FetchRetries))}
	if m.sink != nil {
		opts = append(opts, WithSink(m.sink))
	}
	return NewSession(city, m.client, idx.URLs, tables, opts...), nil
}

// Job is one queued polling run. Each job gets its own session, store, and
// cancellation; jobs never share state.
type Job struct {
	City       string
	Feed       string
	Interval   time.Duration
	Iterations int
	SaveMode   bool
	Delta      bool
}

// Handle tracks one started job. Cancel stops it at the next tick
// boundary; Err blocks until the run finishes.
type Handle struct {
	Job    Job
	Cancel context.CancelFunc

	done    chan struct{}
	mu      sync.Mutex
	session *Session
	err     error
}

// Session returns the job's session once feed discovery has completed;
// nil before then.
func (h *Handle) Session() *Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session
}

func (h *Handle) setSession(s *Session) {
	h.mu.Lock()
	h.session = s
	h.mu.Unlock()
}

// Err blocks until the job finishes and returns its terminal error.
func (h *Handle) Err() error {
	<-h.done
	return h.err
}

// Start launches one job in the background.
func (m *Manager) Start(ctx context.Context, job Job) *Handle {
	jobCtx, cancel := context.WithCancel(ctx)
	h := &Handle{Job: job, Cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(h.done)
		defer cancel()
		h.err = m.run(jobCtx, job, h)
	}()
	return h
}

// RunAll runs the whole job queue concurrently and waits for every job.
// Stores are never shared across sessions, so no cross-job coordination is
// needed.
func (m *Manager) RunAll(ctx context.Context, jobs []Job) []*Handle {
	handles := make([]*Handle, len(jobs))
	var wg conc.WaitGroup
	for i, job := range jobs {
		jobCtx, cancel := context.WithCancel(ctx)
		h := &Handle{Job: job, Cancel: cancel, done: make(chan struct{})}
		handles[i] = h
		wg.Go(func() {
			defer close(h.done)
			defer cancel()
			h.err = m.run(jobCtx, job, h)
		})
	}
	wg.Wait()
	return handles
}

func (m *Manager) run(ctx context.Context, job Job, h *Handle) error {
	sess, err := m.Feed(ctx, job.City)
	if err != nil {
		return err
	}
	h.setSession(sess)
	if job.Delta {
		return sess.PerformDelta(ctx, job.Feed, job.Interval, job.Iterations, job.SaveMode)
	}
	return sess.PerformSnapshot(ctx, job.Feed, job.Interval, job.Iterations, job.SaveMode)
}
