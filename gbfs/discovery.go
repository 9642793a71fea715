package gbfs

import (
	"context"

	"github.com/goccy/go-json"
)

// FeedIndex is the parsed gbfs.json auto-discovery document for one system:
// the feed TTL, spec version, and feed name to URL map.
type FeedIndex struct {
	TTL     int
	Version string
	URLs    map[string]string
}

type discoveryDocument struct {
	LastUpdated float64 `json:"last_updated"`
	TTL         int     `json:"ttl"`
	Version     string  `json:"version"`
	Data        map[string]struct {
		Feeds []struct {
			Name string `json:"name"`
			URL  string `json:"url"`
		} `json:"feeds"`
	} `json:"data"`
}

// Discover fetches and parses a system's gbfs.json. The English feed list
// is preferred; for providers publishing a single other language, that list
// is used instead.
func (c *Client) Discover(ctx context.Context, url string) (*FeedIndex, error) {
	body, err := c.fetchBody(ctx, url)
	if err != nil {
		return nil, err
	}
	var doc discoveryDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, &PayloadError{Feed: "gbfs", Reason: "malformed discovery document", Cause: err}
	}

	langs := doc.Data
	feeds, ok := langs["en"]
	if !ok {
		for _, l := range langs {
			feeds = l
			break
		}
	}
	if len(feeds.Feeds) == 0 {
		return nil, &PayloadError{Feed: "gbfs", Reason: "discovery document lists no feeds"}
	}

	idx := &FeedIndex{TTL: doc.TTL, Version: doc.Version, URLs: make(map[string]string, len(feeds.Feeds))}
	if idx.Version == "" {
		idx.Version = "unknown"
	}
	for _, f := range feeds.Feeds {
		idx.URLs[f.Name] = f.URL
	}
	return idx, nil
}
