package telemetry

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// valueKind tags the variant held by a Value
type valueKind uint8

const (
	kindNull valueKind = iota
	kindNumber
	kindString
	kindTime
)

// Value is one cell of a result row. The zero Value is null.
type Value struct {
	kind valueKind
	num  float64
	str  string
	t    time.Time
}

// Null returns the null value
func Null() Value { return Value{} }

// Number wraps a float
func Number(f float64) Value { return Value{kind: kindNumber, num: f} }

// String wraps a string
func String(s string) Value { return Value{kind: kindString, str: s} }

// Time wraps a timestamp
func Time(t time.Time) Value { return Value{kind: kindTime, t: t} }

// FromAny converts a decoded driver or JSON value into a Value.
// Unknown types become strings via fmt.
func FromAny(x any) Value {
	switch v := x.(type) {
	case nil:
		return Null()
	case Value:
		return v
	case float64:
		return Number(v)
	case float32:
		return Number(float64(v))
	case int:
		return Number(float64(v))
	case int32:
		return Number(float64(v))
	case int64:
		return Number(float64(v))
	case uint32:
		return Number(float64(v))
	case uint64:
		return Number(float64(v))
	case bool:
		if v {
			return Number(1)
		}
		return Number(0)
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return Number(f)
		}
		return String(v.String())
	case string:
		return String(v)
	case []byte:
		return String(string(v))
	case time.Time:
		return Time(v)
	default:
		return String(fmt.Sprint(v))
	}
}

// IsNull reports whether the value is null
func (v Value) IsNull() bool { return v.kind == kindNull }

// Float coerces the value to a finite number. Numbers and numeric strings
// succeed; NaN and infinities are treated as absent.
func (v Value) Float() (float64, bool) {
	var f float64
	switch v.kind {
	case kindNumber:
		f = v.num
	case kindString:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v.str), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Millis coerces the value to Unix milliseconds. Times convert directly,
// numbers are taken as epoch milliseconds and strings are parsed as
// timestamps or, failing that, as epoch milliseconds.
func (v Value) Millis() (int64, bool) {
	switch v.kind {
	case kindTime:
		return v.t.UnixMilli(), true
	case kindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return 0, false
		}
		return int64(v.num), true
	case kindString:
		if ms, err := ParseTimestamp(v.str); err == nil {
			return ms, true
		}
		if n, err := strconv.ParseInt(strings.TrimSpace(v.str), 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

// Text returns the value as a string
func (v Value) Text() (string, bool) {
	switch v.kind {
	case kindString:
		return v.str, true
	case kindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64), true
	case kindTime:
		return v.t.UTC().Format(time.RFC3339Nano), true
	}
	return "", false
}

func (v Value) String() string {
	if s, ok := v.Text(); ok {
		return s
	}
	return "null"
}

// timestampFormats are tried in order by ParseTimestamp
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05.000Z",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z",
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05.000Z",
}

// ParseTimestamp converts an ISO 8601 timestamp string to Unix milliseconds
func ParseTimestamp(isoTime string) (int64, error) {
	s := strings.TrimSpace(isoTime)
	for _, format := range timestampFormats {
		t, err := time.Parse(format, s)
		if err == nil {
			return t.UnixMilli(), nil
		}
	}
	return 0, fmt.Errorf("unable to parse timestamp: %s", isoTime)
}
