package http

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/partwise/partwise/pkg/types"
)

// TypedValue is the JSON form of a routing value. Value carries a JSON
// number for int64/float64, an RFC 3339 string (or integer microseconds)
// for timestamps, and a string for text.
type TypedValue struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// decode converts the JSON form into the engine's value encoding.
func (tv TypedValue) decode() (types.Value, types.TypeID, error) {
	switch types.TypeID(tv.Type) {
	case types.TypeInt64:
		var n int64
		if err := json.Unmarshal(tv.Value, &n); err != nil {
			return nil, "", fmt.Errorf("int64 value: %w", err)
		}
		return types.Int64Value(n), types.TypeInt64, nil

	case types.TypeFloat64:
		var f float64
		if err := json.Unmarshal(tv.Value, &f); err != nil {
			return nil, "", fmt.Errorf("float64 value: %w", err)
		}
		return types.Float64Value(f), types.TypeFloat64, nil

	case types.TypeTimestamp:
		var s string
		if err := json.Unmarshal(tv.Value, &s); err == nil {
			t, err := time.Parse(time.RFC3339Nano, s)
			if err != nil {
				return nil, "", fmt.Errorf("timestamp value: %w", err)
			}
			return types.TimestampValue(t), types.TypeTimestamp, nil
		}
		var micros int64
		if err := json.Unmarshal(tv.Value, &micros); err != nil {
			return nil, "", fmt.Errorf("timestamp value: %w", err)
		}
		return types.Int64Value(micros), types.TypeTimestamp, nil

	case types.TypeText:
		var s string
		if err := json.Unmarshal(tv.Value, &s); err != nil {
			return nil, "", fmt.Errorf("text value: %w", err)
		}
		return types.TextValue(s), types.TypeText, nil

	default:
		return nil, "", fmt.Errorf("unknown value type %q", tv.Type)
	}
}
