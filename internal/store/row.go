package store

import (
	"fmt"
	"reflect"
	"strconv"
	"time"
)

func (r Row) String(col string) string {
	switch v := r[col].(type) {
	case string:
		return v
	case *string:
		if v != nil {
			return *v
		}
	case []byte:
		return string(v)
	case nil:
	default:
		if s, ok := v.(interface{ String() string }); ok {
			return s.String()
		}
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.String {
			return rv.String()
		}
	}
	return ""
}

// OptString returns nil for NULL and missing columns.
func (r Row) OptString(col string) *string {
	switch v := r[col].(type) {
	case nil:
		return nil
	case *string:
		if v == nil {
			return nil
		}
		s := *v
		return &s
	}
	s := r.String(col)
	return &s
}

// Int64 reads an integer column, returning 0 when it is NULL or cannot be parsed.
// Use ParseInt64 where a malformed value must not pass as 0.
func (r Row) Int64(col string) int64 {
	n, _ := r.ParseInt64(col)
	return n
}

func (r Row) ParseInt64(col string) (int64, error) {
	switch v := r[col].(type) {
	case nil:
		return 0, nil
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case []byte:
		return parseInt(col, string(v))
	case string:
		return parseInt(col, v)
	default:
		return 0, fmt.Errorf("column %s: unexpected integer value of type %T", col, v)
	}
}

func parseInt(col, s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("column %s: %w", col, err)
	}
	return n, nil
}

// Time reads a timestamp column, returning the zero time when it is NULL or cannot be parsed.
func (r Row) Time(col string) time.Time {
	t, _ := r.ParseTime(col)
	return t
}

func (r Row) ParseTime(col string) (time.Time, error) {
	switch v := r[col].(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return v, nil
	case *time.Time:
		if v == nil {
			return time.Time{}, nil
		}
		return *v, nil
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return time.Time{}, fmt.Errorf("column %s: %w", col, err)
		}
		return t, nil
	default:
		return time.Time{}, fmt.Errorf("column %s: unexpected timestamp value of type %T", col, v)
	}
}
