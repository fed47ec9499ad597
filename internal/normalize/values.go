package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// secondsThreshold separates epoch seconds from epoch milliseconds.
const secondsThreshold = 1e12

var embeddedInt = regexp.MustCompile(`-?\d+`)

// NumberLike coerces native numbers and numeric strings. A string that is not
// a number as a whole yields the first signed integer it contains, so "E123"
// gives 123.
func NumberLike(v interface{}) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		if parsed, err := strconv.ParseFloat(s, 64); err == nil {
			f = parsed
			break
		}
		m := embeddedInt.FindString(s)
		if m == "" {
			return 0, false
		}
		parsed, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return 0, false
		}
		f = float64(parsed)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Integer is NumberLike restricted to whole numbers.
func Integer(v interface{}) (int64, bool) {
	f, ok := NumberLike(v)
	if !ok || f != math.Trunc(f) || f > math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

// timeLayouts are tried in order; values without a zone are read as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Timestamp coerces times, epoch numbers and date strings. Numbers below 1e12
// are epoch seconds, anything larger epoch milliseconds.
func Timestamp(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range timeLayouts {
			if parsed, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
				return parsed, true
			}
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return time.Time{}, false
		}
		return fromEpoch(f)
	default:
		f, ok := numeric(v)
		if !ok {
			return time.Time{}, false
		}
		return fromEpoch(f)
	}
}

// numeric accepts native numbers only, never strings.
func numeric(v interface{}) (float64, bool) {
	switch v.(type) {
	case json.Number, float64, float32, int, int32, int64, uint32, uint64:
		return NumberLike(v)
	}
	return 0, false
}

func fromEpoch(f float64) (time.Time, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}, false
	}
	ms := f
	if f < secondsThreshold {
		ms = f * 1000
	}
	// time.Time cannot represent far-off epochs in UnixNano
	if math.Abs(ms) > 9e15 {
		return time.Time{}, false
	}
	sec := math.Floor(ms / 1000)
	nsec := (ms - sec*1000) * 1e6
	return time.Unix(int64(sec), int64(math.Round(nsec))).UTC(), true
}

// Truthy interprets flags sent as booleans, numbers or strings.
func Truthy(v interface{}) bool {
	switch b := v.(type) {
	case nil:
		return false
	case bool:
		return b
	case string:
		s := strings.TrimSpace(b)
		if parsed, err := strconv.ParseBool(s); err == nil {
			return parsed
		}
		return s != ""
	default:
		if f, ok := numeric(v); ok {
			return f != 0
		}
		return true
	}
}

// Text renders a scalar field value as a string; nil becomes "".
func Text(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case json.Number:
		return s.String()
	case bool:
		return strconv.FormatBool(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
