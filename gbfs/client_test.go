package gbfs

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

const stationStatusBody = `{
	"last_updated": 1700000000,
	"ttl": 60,
	"data": {"stations": [{"station_id": "station-1", "num_bikes_available": 5}]}
}`

func TestClientFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(stationStatusBody))
	}))
	defer srv.Close()

	client := NewClient()
	snap, body, err := client.Fetch(context.Background(), "nyc", "station_status", srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(body) == 0 {
		t.Error("expected the exact payload bytes back")
	}
	if len(snap.Keys) != 1 || snap.Keys[0] != "station-1" {
		t.Fatalf("expected station-1, got %v", snap.Keys)
	}
	if snap.CapturedAt <= 0 {
		t.Error("capture time must be set at receipt")
	}
}

func TestClientFetchStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient()
	_, _, err := client.Fetch(context.Background(), "nyc", "station_status", srv.URL)
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected RequestError, got %v", err)
	}
	if reqErr.Kind != RequestStatus || reqErr.Status != http.StatusBadGateway {
		t.Errorf("expected status-kind 502 error, got %+v", reqErr)
	}
}

func TestClientFetchMalformedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": `))
	}))
	defer srv.Close()

	client := NewClient()
	_, _, err := client.Fetch(context.Background(), "nyc", "station_status", srv.URL)
	var payloadErr *PayloadError
	if !errors.As(err, &payloadErr) {
		t.Fatalf("expected PayloadError, got %v", err)
	}
}

func TestClientFetchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client := NewClient(WithTimeout(20 * time.Millisecond))
	_, _, err := client.Fetch(context.Background(), "nyc", "station_status", srv.URL)
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected RequestError, got %v", err)
	}
	if reqErr.Kind != RequestTimeout {
		t.Errorf("expected timeout kind, got %v", reqErr.Kind)
	}
}

func TestClientETagRevalidation(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(stationStatusBody))
	}))
	defer srv.Close()

	client := NewClient()
	_, first, err := client.Fetch(context.Background(), "nyc", "station_status", srv.URL)
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	snap, second, err := client.Fetch(context.Background(), "nyc", "station_status", srv.URL)
	if err != nil {
		t.Fatalf("revalidated fetch: %v", err)
	}
	if string(first) != string(second) {
		t.Error("304 must serve the cached body")
	}
	if len(snap.Keys) != 1 {
		t.Error("cached body must still parse into a snapshot")
	}
	if requests.Load() != 2 {
		t.Errorf("expected 2 requests, got %d", requests.Load())
	}
}

func TestDiscover(t *testing.T) {
	doc := `{
		"last_updated": 1700000000,
		"ttl": 60,
		"version": "2.3",
		"data": {
			"en": {"feeds": [
				{"name": "station_status", "url": "https://example.com/station_status.json"},
				{"name": "free_bike_status", "url": "https://example.com/free_bike_status.json"}
			]},
			"fr": {"feeds": [
				{"name": "station_status", "url": "https://example.com/fr/station_status.json"}
			]}
		}
	}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(doc))
	}))
	defer srv.Close()

	client := NewClient()
	idx, err := client.Discover(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if idx.Version != "2.3" || idx.TTL != 60 {
		t.Errorf("feed-level fields wrong: %+v", idx)
	}
	// the English list wins when both languages are published
	if got := idx.URLs["station_status"]; got != "https://example.com/station_status.json" {
		t.Errorf("expected the en feed list, got %s", got)
	}
	if len(idx.URLs) != 2 {
		t.Errorf("expected 2 feeds, got %d", len(idx.URLs))
	}
}

func TestDiscoverNoFeeds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": {}}`))
	}))
	defer srv.Close()

	client := NewClient()
	_, err := client.Discover(context.Background(), srv.URL)
	var payloadErr *PayloadError
	if !errors.As(err, &payloadErr) {
		t.Fatalf("expected PayloadError, got %v", err)
	}
}
