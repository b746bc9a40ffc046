// Package normalize coerces loosely-typed third-party payload fields into
// canonical values. Coercions never fail: malformed input degrades to a
// caller-supplied default.
package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Record is a decoded JSON object from a provider payload.
type Record map[string]any

// AsRecord returns v as a Record, or an empty Record if v is not an object.
func AsRecord(v any) Record {
	switch m := v.(type) {
	case Record:
		return m
	case map[string]any:
		return Record(m)
	default:
		return Record{}
	}
}

// AsRecords returns the objects of a JSON array. Non-array input yields nil.
func AsRecords(v any) []Record {
	items, ok := v.([]any)
	if !ok {
		if recs, ok := v.([]Record); ok {
			return recs
		}
		return nil
	}
	records := make([]Record, 0, len(items))
	for _, item := range items {
		records = append(records, AsRecord(item))
	}
	return records
}

// PickFirst returns the value of the first alias that is present and non-null.
func (r Record) PickFirst(aliases ...string) (any, bool) {
	for _, key := range aliases {
		if v, ok := r[key]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// Has reports whether key is present in the record, even if null.
func (r Record) Has(key string) bool {
	_, ok := r[key]
	return ok
}

// Number coerces v to a finite float64, falling back to def.
func Number(v any, def float64) float64 {
	if n, ok := OptionalNumber(v); ok {
		return n
	}
	return def
}

// OptionalNumber coerces v to a finite float64. Numbers and numeric strings
// are accepted; anything else reports false.
func OptionalNumber(v any) (float64, bool) {
	var n float64
	switch t := v.(type) {
	case float64:
		n = t
	case float32:
		n = float64(t)
	case int:
		n = float64(t)
	case int32:
		n = float64(t)
	case int64:
		n = float64(t)
	case uint16:
		n = float64(t)
	case uint32:
		n = float64(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, false
		}
		n = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		n = f
	default:
		return 0, false
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

// Bool coerces v to a bool. Strings "true" and "false" are matched
// case-insensitively; anything else returns def.
func Bool(v any, def bool) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(t) {
		case "true":
			return true
		case "false":
			return false
		}
	}
	return def
}

// String coerces v to a string. Numbers are formatted without exponent or
// trailing zeros.
func String(v any, def string) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64, float32, int, int32, int64, uint16, uint32:
		if n, ok := OptionalNumber(t); ok {
			return strconv.FormatFloat(n, 'f', -1, 64)
		}
	}
	return def
}

// ISOTimeLayout is the canonical timestamp format: UTC with millisecond precision.
const ISOTimeLayout = "2006-01-02T15:04:05.000Z07:00"

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

// ISOTime converts a date representation to an ISO-8601 UTC string.
// Numbers are read as Unix milliseconds. Unparsable input yields the current time.
func ISOTime(v any) string {
	return formatISO(parseTime(v))
}

func parseTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		if !t.IsZero() {
			return t
		}
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed
			}
		}
	default:
		if ms, ok := OptionalNumber(v); ok {
			return time.UnixMilli(int64(ms))
		}
	}
	return time.Now()
}

func formatISO(t time.Time) string {
	return t.UTC().Format(ISOTimeLayout)
}

// Unit hints accepted by DistanceKm.
const (
	UnitKilometers = "km"
	UnitMeters     = "meters"
)

// metersThreshold is the raw distance above which a value is assumed to be
// in meters regardless of the unit hint. Activities longer than 300 km are
// misread as meters; the threshold must stay at 300 for compatibility.
const metersThreshold = 300

// DistanceKm coerces a raw distance to kilometers.
func DistanceKm(v any, unitHint string) float64 {
	raw := Number(v, 0)
	if raw == 0 {
		return 0
	}
	if strings.Contains(strings.ToLower(unitHint), "meter") {
		return raw / 1000
	}
	if raw > metersThreshold {
		return raw / 1000
	}
	return raw
}
