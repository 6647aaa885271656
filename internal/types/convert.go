// Package types converts loosely typed attribute values read from layers and
// catalog rows into the identifiers and numbers accesstally works with.
package types

import (
	"math"
	"strconv"
	"strings"
)

// ToInt64 converts an interface{} to int64.
// Supports int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32 and float64.
func ToInt64(v interface{}) int64 {
	switch i := v.(type) {
	case int64:
		return i
	case int:
		return int64(i)
	case int32:
		return int64(i)
	case int16:
		return int64(i)
	case int8:
		return int64(i)
	case uint:
		return int64(i)
	case uint64:
		return int64(i)
	case uint32:
		return int64(i)
	case uint16:
		return int64(i)
	case uint8:
		return int64(i)
	case float64:
		return int64(i)
	case float32:
		return int64(i)
	default:
		return 0
	}
}

// ToOrderID normalises an order identifier to its string form.
// GeoJSON decodes numeric ids as float64, MySQL drivers return []byte or int64;
// all of them must compare equal to the same string. Integral floats are
// printed without a fractional part so 1042 and 1042.0 are the same order.
func ToOrderID(v interface{}) (string, bool) {
	switch id := v.(type) {
	case nil:
		return "", false
	case string:
		id = strings.TrimSpace(id)
		return id, id != ""
	case []byte:
		s := strings.TrimSpace(string(id))
		return s, s != ""
	case float64:
		return formatFloatID(id)
	case float32:
		return formatFloatID(float64(id))
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return strconv.FormatInt(ToInt64(id), 10), true
	default:
		return "", false
	}
}

func formatFloatID(f float64) (string, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", false
	}
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return strconv.FormatInt(int64(f), 10), true
	}
	return strconv.FormatFloat(f, 'f', -1, 64), true
}

// ToFloat64 converts a numeric attribute (or its string form) to float64.
func ToFloat64(v interface{}) (float64, bool) {
	switch f := v.(type) {
	case float64:
		return f, true
	case float32:
		return float64(f), true
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return float64(ToInt64(f)), true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	case []byte:
		return ToFloat64(string(f))
	default:
		return 0, false
	}
}
