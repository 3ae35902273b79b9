package util

import (
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
)

// ToInt64 converts a numeric value decoded from json or put into a context to int64
func ToInt64(v interface{}) (int64, error) {
	switch r := v.(type) {
	case int:
		return int64(r), nil
	case int8:
		return int64(r), nil
	case int16:
		return int64(r), nil
	case int32:
		return int64(r), nil
	case int64:
		return r, nil
	case uint:
		return int64(r), nil
	case uint8:
		return int64(r), nil
	case uint16:
		return int64(r), nil
	case uint32:
		return int64(r), nil
	case uint64:
		return int64(r), nil
	case float32:
		return int64(r), nil
	case float64:
		return int64(r), nil
	case json.Number:
		return r.Int64()
	case string:
		return strconv.ParseInt(r, 10, 64)
	}
	return 0, errors.Errorf("value is nil or not integer: %v", v)
}
