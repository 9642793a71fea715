package gbfsanalytics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/bikewatch-nyc/gbfs-analytics/timeseries"
)

type QueryError struct{ Msg string }

func (e *QueryError) Error() string { return e.Msg }

type seriesQuery struct {
	City string
	Feed string
	At   timeseries.Timestamp
}

// parseSeriesQuery validates the city/feed pair against the registry. An
// empty "at" parameter means the present moment.
func parseSeriesQuery(r *http.Request, reg *Registry) (*seriesQuery, error) {
	city := strings.TrimSpace(r.URL.Query().Get("city"))
	if city == "" {
		return nil, &QueryError{Msg: "You must provide a city parameter."}
	}
	feed := strings.TrimSpace(r.URL.Query().Get("feed"))
	if feed == "" {
		return nil, &QueryError{Msg: "You must provide a feed parameter."}
	}
	if _, ok := reg.Get(city, feed); !ok {
		return nil, &QueryError{Msg: "No polling job for " + city + "/" + feed + "."}
	}
	at, err := parseAtParam(r.URL.Query().Get("at"))
	if err != nil {
		return nil, err
	}
	return &seriesQuery{City: city, Feed: feed, At: at}, nil
}

// parseAtParam accepts unix seconds (fractional allowed) or RFC 3339.
func parseAtParam(s string) (timeseries.Timestamp, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return timeseries.TimestampOf(time.Now()), nil
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		if v < 0 {
			return 0, &QueryError{Msg: "at must be a non-negative unix timestamp."}
		}
		return timeseries.Timestamp(v), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, &QueryError{Msg: "at must be unix seconds or RFC 3339: " + s}
	}
	return timeseries.TimestampOf(t), nil
}

func buildErrorPayload(msg string) []byte {
	b, _ := json.Marshal(map[string]string{"error": msg})
	return b
}
