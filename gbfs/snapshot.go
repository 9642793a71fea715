package gbfs

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/goccy/go-json"
)

// RawSnapshot is the normalized payload of one feed fetch: per-entity field
// maps plus the capture timestamp taken at receipt time. Immutable once
// built; the polling session hands it to the store, which may keep a
// reference for diffing against the next fetch.
type RawSnapshot struct {
	City string
	Feed string

	// CapturedAt is the wall-clock receipt time in fractional unix seconds.
	CapturedAt float64
	// LastUpdated is the feed-level last_updated field, 0 when absent.
	LastUpdated float64
	TTL         int

	// Entities maps entity key to its field values. Keys preserves payload
	// order so entity insertion order stays deterministic downstream.
	Entities map[string]Fields
	Keys     []string

	// EntityTimes holds per-entity timestamps for the nested
	// {entity:{ts:{...}}} payload shape, where the inner key is the record
	// time. Standard shapes never populate it: report-time fields like
	// last_reported lag the poll cadence, so records are ordered by capture
	// time and those fields ride along as ordinary data.
	EntityTimes map[string]float64
}

// EffectiveTime returns the timestamp a record for this entity should carry:
// the nested-shape embedded time when the payload supplies one, the capture
// time otherwise.
func (s *RawSnapshot) EffectiveTime(entity string) float64 {
	if ts, ok := s.EntityTimes[entity]; ok && ts > 0 {
		return ts
	}
	return s.CapturedAt
}

func entityIDField(feed string) string {
	switch feed {
	case "free_bike_status":
		return "bike_id"
	default:
		return "station_id"
	}
}

// ParseSnapshot normalizes one fetched payload into a RawSnapshot. Three
// payload shapes are supported: the GBFS-standard wrapper
// {"data":{"stations":[...]}} / {"data":{"bikes":[...]}}, a flat
// {entity:{field:value}} map, and the nested {entity:{ts:{field:value}}}
// form where the inner timestamp key is authoritative.
func ParseSnapshot(city, feed string, body []byte, capturedAt float64) (*RawSnapshot, error) {
	var root map[string]any
	if err := json.Unmarshal(body, &root); err != nil {
		return nil, &PayloadError{Feed: feed, Reason: "malformed JSON", Cause: err}
	}

	snap := &RawSnapshot{
		City:        city,
		Feed:        feed,
		CapturedAt:  capturedAt,
		Entities:    map[string]Fields{},
		EntityTimes: map[string]float64{},
	}
	if lu, ok := root["last_updated"].(float64); ok {
		snap.LastUpdated = lu
	}
	if ttl, ok := root["ttl"].(float64); ok {
		snap.TTL = int(ttl)
	}

	if data, ok := root["data"].(map[string]any); ok {
		return snap, parseStandard(snap, data)
	}
	return snap, parseKeyed(snap, root)
}

// parseStandard handles the GBFS-standard data.stations / data.bikes arrays.
func parseStandard(snap *RawSnapshot, data map[string]any) error {
	records, ok := data["stations"].([]any)
	if !ok {
		records, ok = data["bikes"].([]any)
	}
	if !ok {
		return &PayloadError{Feed: snap.Feed, Reason: "data object has neither stations nor bikes"}
	}

	idField := entityIDField(snap.Feed)
	for i, item := range records {
		record, ok := item.(map[string]any)
		if !ok {
			return &PayloadError{Feed: snap.Feed, Reason: fmt.Sprintf("record %d is not an object", i)}
		}
		id, _ := record[idField].(string)
		if id == "" {
			return &PayloadError{Feed: snap.Feed, Reason: fmt.Sprintf("record %d has no %s", i, idField)}
		}
		fields, err := parseFields(snap.Feed, record)
		if err != nil {
			return err
		}
		addEntity(snap, id, fields)
	}
	return nil
}

// parseKeyed handles flat and nested-timestamp entity maps.
func parseKeyed(snap *RawSnapshot, root map[string]any) error {
	for _, key := range jsonObjectKeys(root) {
		record, ok := root[key].(map[string]any)
		if !ok {
			// feed-level scalars such as last_updated, ttl, version
			continue
		}
		if ts, inner, ok := nestedTimestamp(record); ok {
			fields, err := parseFields(snap.Feed, inner)
			if err != nil {
				return err
			}
			addEntity(snap, key, fields)
			snap.EntityTimes[key] = ts
			continue
		}
		fields, err := parseFields(snap.Feed, record)
		if err != nil {
			return err
		}
		addEntity(snap, key, fields)
	}
	if len(snap.Keys) == 0 {
		return &PayloadError{Feed: snap.Feed, Reason: "payload contains no entity records"}
	}
	return nil
}

// nestedTimestamp detects the {ts:{field:value}} nesting: every key parses
// as a unix timestamp and every value is an object. The newest timestamp is
// authoritative.
func nestedTimestamp(record map[string]any) (float64, map[string]any, bool) {
	var best float64
	var inner map[string]any
	for k, v := range record {
		ts, err := strconv.ParseFloat(k, 64)
		if err != nil {
			return 0, nil, false
		}
		obj, ok := v.(map[string]any)
		if !ok {
			return 0, nil, false
		}
		if inner == nil || ts > best {
			best = ts
			inner = obj
		}
	}
	if inner == nil {
		return 0, nil, false
	}
	return best, inner, true
}

func parseFields(feed string, record map[string]any) (Fields, error) {
	fields := make(Fields, len(record))
	for name, raw := range record {
		v, err := ParseValue(raw)
		if err != nil {
			return nil, &PayloadError{Feed: feed, Reason: fmt.Sprintf("field %s", name), Cause: err}
		}
		fields[name] = v
	}
	return fields, nil
}

func addEntity(snap *RawSnapshot, id string, fields Fields) {
	if _, seen := snap.Entities[id]; !seen {
		snap.Keys = append(snap.Keys, id)
	}
	snap.Entities[id] = fields
}

// jsonObjectKeys returns map keys in a stable order. Payload order is lost
// by the generic decoder, so sorted order stands in for it.
func jsonObjectKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
