package types

import (
	"encoding/binary"
	"math"
	"time"
)

// TypeID identifies the semantic type of a partitioning attribute value.
type TypeID string

const (
	// TypeInt64 is a signed 64-bit integer, encoded as 8 bytes big-endian.
	TypeInt64 TypeID = "int64"

	// TypeFloat64 is an IEEE-754 double, encoded as its 8-byte bit pattern.
	TypeFloat64 TypeID = "float64"

	// TypeTimestamp is microseconds since the Unix epoch, encoded like int64.
	TypeTimestamp TypeID = "timestamp"

	// TypeText is a UTF-8 string, encoded as its raw bytes.
	TypeText TypeID = "text"
)

// Value is an encoded partitioning attribute value. The encoding is fixed
// per TypeID; values are opaque to the routing engine and only interpreted
// by the comparator and hash function supplied for their type.
type Value []byte

// Int64Value encodes a signed 64-bit integer.
func Int64Value(v int64) Value {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

// Float64Value encodes an IEEE-754 double.
func Float64Value(v float64) Value {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, math.Float64bits(v))
	return b
}

// TimestampValue encodes a point in time at microsecond precision.
func TimestampValue(t time.Time) Value {
	return Int64Value(t.UnixMicro())
}

// TextValue encodes a string.
func TextValue(s string) Value {
	return Value(s)
}

// DecodeInt64 decodes an 8-byte encoded integer or timestamp value.
// The second result is false when the encoding has the wrong width.
func DecodeInt64(v Value) (int64, bool) {
	if len(v) != 8 {
		return 0, false
	}
	return int64(binary.BigEndian.Uint64(v)), true
}

// DecodeFloat64 decodes an 8-byte encoded IEEE-754 double.
func DecodeFloat64(v Value) (float64, bool) {
	if len(v) != 8 {
		return 0, false
	}
	return math.Float64frombits(binary.BigEndian.Uint64(v)), true
}

// Clone returns an independent copy of the value.
func (v Value) Clone() Value {
	if v == nil {
		return nil
	}
	cp := make(Value, len(v))
	copy(cp, v)
	return cp
}
