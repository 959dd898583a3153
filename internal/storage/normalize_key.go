package storage

import (
	"fmt"
	"strconv"
	"strings"
)

// NormalizeValue converts a scanned driver value to a canonical string, so
// GROUP BY buckets read the same across backends. SQLite returns booleans as
// 0/1 integers, Postgres and DuckDB as bool, SQL Server as bool or []byte.
//
// nil maps to "" so callers can choose their own label for SQL NULL.
func NormalizeValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case bool:
		return strconv.FormatBool(t)
	case string:
		return strings.TrimSpace(t)
	case []byte:
		return strings.TrimSpace(string(t))
	case int64:
		return strconv.FormatInt(t, 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// NormalizeBool maps a scanned boolean-ish value to true/false. ok is false for
// nil and for values that are not a boolean encoding.
func NormalizeBool(v any) (b bool, ok bool) {
	switch NormalizeValue(v) {
	case "true", "1", "t", "TRUE", "True":
		return true, true
	case "false", "0", "f", "FALSE", "False":
		return false, true
	default:
		return false, false
	}
}
