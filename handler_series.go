package gbfsanalytics

import (
	"errors"
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/bikewatch-nyc/gbfs-analytics/config"
	"github.com/bikewatch-nyc/gbfs-analytics/gbfs"
	"github.com/bikewatch-nyc/gbfs-analytics/timeseries"
)

func handleSystems(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	type system struct {
		Name         string `json:"name"`
		DiscoveryURL string `json:"discovery_url"`
	}
	out := make([]system, 0, len(config.Config.Systems))
	for _, name := range config.Config.SystemNames() {
		url, _ := config.Config.DiscoveryURL(name)
		out = append(out, system{Name: name, DiscoveryURL: url})
	}
	_ = json.NewEncoder(w).Encode(out)
}

func handleSeriesEntities(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		q, err := parseSeriesQuery(r, reg)
		if err != nil {
			w.WriteHeader(400)
			_, _ = w.Write(buildErrorPayload(err.Error()))
			return
		}
		store, ok := seriesStore(reg, q)
		if !ok {
			w.WriteHeader(503)
			_, _ = w.Write(buildErrorPayload("session still discovering feeds"))
			return
		}
		entities := []string{}
		for id := range store.Entities() {
			entities = append(entities, id)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"city":     q.City,
			"feed":     q.Feed,
			"entities": entities,
		})
	}
}

func handleSeriesState(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		q, err := parseSeriesQuery(r, reg)
		if err != nil {
			w.WriteHeader(400)
			_, _ = w.Write(buildErrorPayload(err.Error()))
			return
		}
		store, ok := seriesStore(reg, q)
		if !ok {
			w.WriteHeader(503)
			_, _ = w.Write(buildErrorPayload("session still discovering feeds"))
			return
		}

		if entity := r.URL.Query().Get("entity"); entity != "" {
			fields, err := store.FullStateAt(entity, q.At)
			if err != nil {
				writeStateError(w, err)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"city":  q.City,
				"feed":  q.Feed,
				"at":    q.At,
				"state": map[string]gbfs.Fields{entity: fields},
			})
			return
		}

		state := map[string]gbfs.Fields{}
		for id := range store.Entities() {
			fields, err := store.FullStateAt(id, q.At)
			if err != nil {
				// entities first observed after the query instant are skipped
				var notFound *timeseries.NotFoundError
				if errors.As(err, &notFound) {
					continue
				}
				writeStateError(w, err)
				return
			}
			state[id] = fields
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"city":  q.City,
			"feed":  q.Feed,
			"at":    q.At,
			"state": state,
		})
	}
}

func handleSeriesErrors(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		q, err := parseSeriesQuery(r, reg)
		if err != nil {
			w.WriteHeader(400)
			_, _ = w.Write(buildErrorPayload(err.Error()))
			return
		}
		h, _ := reg.Get(q.City, q.Feed)
		sess := h.Session()
		if sess == nil {
			w.WriteHeader(503)
			_, _ = w.Write(buildErrorPayload("session still discovering feeds"))
			return
		}

		type tickError struct {
			Tick   int    `json:"tick"`
			Feed   string `json:"feed"`
			Entity string `json:"entity,omitempty"`
			At     string `json:"at"`
			Kind   string `json:"kind"`
			Error  string `json:"error"`
		}
		out := []tickError{}
		for _, te := range sess.Errors() {
			out = append(out, tickError{
				Tick:   te.Tick,
				Feed:   te.Feed,
				Entity: te.Entity,
				At:     te.At.UTC().Format("2006-01-02T15:04:05.000Z"),
				Kind:   te.Kind,
				Error:  te.Err.Error(),
			})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"city":   q.City,
			"feed":   q.Feed,
			"state":  sess.State().String(),
			"errors": out,
		})
	}
}

func seriesStore(reg *Registry, q *seriesQuery) (*timeseries.Store, bool) {
	h, _ := reg.Get(q.City, q.Feed)
	sess := h.Session()
	if sess == nil {
		return nil, false
	}
	store := sess.Store(q.Feed)
	if store == nil {
		return nil, false
	}
	return store, true
}

func writeStateError(w http.ResponseWriter, err error) {
	var unknown *timeseries.EntityUnknownError
	var notFound *timeseries.NotFoundError
	if errors.As(err, &unknown) || errors.As(err, &notFound) {
		w.WriteHeader(404)
	} else {
		w.WriteHeader(500)
	}
	_, _ = w.Write(buildErrorPayload(err.Error()))
}
