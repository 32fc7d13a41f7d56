package core

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Timestamp is the canonical instant used for every cross-series comparison:
// milliseconds since the Unix epoch. Raw input representations (epoch seconds,
// epoch milliseconds, date strings, time.Time) are converted exactly once by
// Normalize and never compared to each other directly.
type Timestamp int64

// Values below this threshold are interpreted as epoch seconds and scaled up.
// 2e9 seconds lands in 2033, while 2e9 milliseconds is still January 1970, so
// the two ranges cannot be confused for market data.
const secondsThreshold = 2_000_000_000

// Date layouts accepted for string inputs, tried in order.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Normalize converts a heterogeneous time representation to a Timestamp.
// Integers and floats are treated as epoch seconds or milliseconds depending
// on magnitude. Strings are parsed against the accepted layouts. time.Time
// values are converted via UnixMilli. Anything unrecognized or non-finite
// returns ErrMalformedTimestamp; callers must drop such entries instead of
// letting a zero instant slip into an ordered series.
func Normalize(value any) (Timestamp, error) {
	switch v := value.(type) {
	case Timestamp:
		return v, nil
	case time.Time:
		if v.IsZero() {
			return 0, ErrMalformedTimestamp
		}
		return Timestamp(v.UnixMilli()), nil
	case int:
		return normalizeNumeric(float64(v))
	case int32:
		return normalizeNumeric(float64(v))
	case int64:
		return normalizeNumeric(float64(v))
	case float32:
		return normalizeNumeric(float64(v))
	case float64:
		return normalizeNumeric(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrMalformedTimestamp, v.String())
		}
		return normalizeNumeric(f)
	case string:
		return normalizeString(v)
	default:
		return 0, fmt.Errorf("%w: unsupported type %T", ErrMalformedTimestamp, value)
	}
}

func normalizeNumeric(v float64) (Timestamp, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, ErrMalformedTimestamp
	}

	if v < secondsThreshold {
		return Timestamp(v * 1000), nil
	}
	return Timestamp(v), nil
}

func normalizeString(v string) (Timestamp, error) {
	s := strings.TrimSpace(v)
	if s == "" {
		return 0, ErrMalformedTimestamp
	}

	// Numeric strings carry epoch values
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return normalizeNumeric(f)
	}

	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return Timestamp(ts.UnixMilli()), nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrMalformedTimestamp, v)
}

// Time converts the timestamp back to a time.Time in UTC.
func (t Timestamp) Time() time.Time {
	return time.UnixMilli(int64(t)).UTC()
}

// IsZero reports whether the timestamp is unset.
func (t Timestamp) IsZero() bool { return t == 0 }

// String returns the RFC3339 representation, mostly for logs.
func (t Timestamp) String() string {
	return t.Time().Format(time.RFC3339)
}

// MarshalJSON always emits epoch milliseconds.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(int64(t), 10)), nil
}

// UnmarshalJSON accepts epoch seconds, epoch milliseconds, or a date string,
// so mixed backend payloads normalize at decode time.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)

	ts, err := Normalize(raw)
	if err != nil {
		return err
	}

	*t = ts
	return nil
}
