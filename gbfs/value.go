package gbfs

import (
	"fmt"
	"sort"

	"github.com/goccy/go-json"
)

// ValueKind enumerates the closed set of field value shapes GBFS status
// feeds are known to carry.
type ValueKind int

const (
	// KindMissing marks a field the entity previously reported but did not
	// report this round. Distinct from "unchanged".
	KindMissing ValueKind = iota
	KindNumber
	KindString
	KindBool
	// KindVehicleTypeCounts covers vehicle_types_available style arrays of
	// {vehicle_type_id, count} objects.
	KindVehicleTypeCounts
	// KindURIMap covers rental_uris style string-to-string maps.
	KindURIMap
)

// VehicleTypeCount is one entry of a vehicle_types_available array.
type VehicleTypeCount struct {
	VehicleTypeID string  `json:"vehicle_type_id"`
	Count         float64 `json:"count"`
}

// Value is a closed tagged union over the field value shapes observed in
// GBFS status payloads. Payload fields are validated into this union at
// parse time rather than carried as untyped blobs.
type Value struct {
	Kind   ValueKind
	Num    float64
	Str    string
	Bool   bool
	Counts []VehicleTypeCount
	URIs   map[string]string
}

// Fields maps field name to value for one entity in one snapshot.
type Fields map[string]Value

// Number wraps a numeric field value.
func Number(n float64) Value { return Value{Kind: KindNumber, Num: n} }

// String wraps a string field value.
func String(s string) Value { return Value{Kind: KindString, Str: s} }

// Bool wraps a boolean field value. GBFS 2.x encodes booleans both as JSON
// booleans and as 0/1 integers; ParseValue keeps integers numeric.
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// Missing is the explicit unreported-this-round marker.
func Missing() Value { return Value{Kind: KindMissing} }

// ParseValue validates a decoded JSON value into the closed union.
// Unsupported shapes return an error rather than being dropped.
func ParseValue(raw any) (Value, error) {
	switch v := raw.(type) {
	case nil:
		return Missing(), nil
	case float64:
		return Number(v), nil
	case string:
		return String(v), nil
	case bool:
		return Bool(v), nil
	case map[string]any:
		uris := make(map[string]string, len(v))
		for k, u := range v {
			s, ok := u.(string)
			if !ok {
				return Value{}, fmt.Errorf("nested object value for key %q is not a string", k)
			}
			uris[k] = s
		}
		return Value{Kind: KindURIMap, URIs: uris}, nil
	case []any:
		counts := make([]VehicleTypeCount, 0, len(v))
		for _, item := range v {
			obj, ok := item.(map[string]any)
			if !ok {
				return Value{}, fmt.Errorf("array element is not an object")
			}
			id, _ := obj["vehicle_type_id"].(string)
			count, ok := obj["count"].(float64)
			if id == "" || !ok {
				return Value{}, fmt.Errorf("array element is not a vehicle type count")
			}
			counts = append(counts, VehicleTypeCount{VehicleTypeID: id, Count: count})
		}
		return Value{Kind: KindVehicleTypeCounts, Counts: counts}, nil
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", raw)
	}
}

// Equal reports whether two values are field-wise identical.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindMissing:
		return true
	case KindNumber:
		return v.Num == o.Num
	case KindString:
		return v.Str == o.Str
	case KindBool:
		return v.Bool == o.Bool
	case KindVehicleTypeCounts:
		if len(v.Counts) != len(o.Counts) {
			return false
		}
		for i := range v.Counts {
			if v.Counts[i] != o.Counts[i] {
				return false
			}
		}
		return true
	case KindURIMap:
		if len(v.URIs) != len(o.URIs) {
			return false
		}
		for k, s := range v.URIs {
			if os, ok := o.URIs[k]; !ok || os != s {
				return false
			}
		}
		return true
	}
	return false
}

// MarshalJSON renders the value in its native JSON shape. Missing values
// render as null so serialized series keep the unreported marker visible.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindMissing:
		return []byte("null"), nil
	case KindNumber:
		return json.Marshal(v.Num)
	case KindString:
		return json.Marshal(v.Str)
	case KindBool:
		return json.Marshal(v.Bool)
	case KindVehicleTypeCounts:
		return json.Marshal(v.Counts)
	case KindURIMap:
		return json.Marshal(v.URIs)
	}
	return nil, fmt.Errorf("unknown value kind %d", v.Kind)
}

// UnmarshalJSON parses a JSON value into the closed union.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseValue(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Equal reports whether two field maps hold identical values. An explicit
// Missing marker and an absent key describe the same state — the entity is
// not reporting the field — so they compare equal; otherwise a dropped
// field would read as a fresh change on every tick after the drop.
func (f Fields) Equal(o Fields) bool {
	for k, v := range f {
		ov, ok := o[k]
		if !ok {
			if v.Kind != KindMissing {
				return false
			}
			continue
		}
		if !v.Equal(ov) {
			return false
		}
	}
	for k, ov := range o {
		if _, ok := f[k]; !ok && ov.Kind != KindMissing {
			return false
		}
	}
	return true
}

// Clone returns a shallow copy safe for callers to hold.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Names returns the field names in sorted order.
func (f Fields) Names() []string {
	names := make([]string, 0, len(f))
	for k := range f {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
