package gbfsanalytics

import (
	"sort"
	"sync"

	"github.com/bikewatch-nyc/gbfs-analytics/session"
)

// Registry tracks the polling jobs started in serve mode so the query
// endpoints can reach their sessions.
type Registry struct {
	mu      sync.RWMutex
	handles map[string]*session.Handle
}

func NewRegistry() *Registry {
	return &Registry{handles: map[string]*session.Handle{}}
}

func registryKey(city, feed string) string { return city + "/" + feed }

func (r *Registry) Put(h *session.Handle) {
	r.mu.Lock()
	r.handles[registryKey(h.Job.City, h.Job.Feed)] = h
	r.mu.Unlock()
}

func (r *Registry) Get(city, feed string) (*session.Handle, bool) {
	r.mu.RLock()
	h, ok := r.handles[registryKey(city, feed)]
	r.mu.RUnlock()
	return h, ok
}

func (r *Registry) Keys() []string {
	r.mu.RLock()
	keys := make([]string, 0, len(r.handles))
	for k := range r.handles {
		keys = append(keys, k)
	}
	r.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// CancelAll stops every registered job.
func (r *Registry) CancelAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, h := range r.handles {
		h.Cancel()
	}
}
