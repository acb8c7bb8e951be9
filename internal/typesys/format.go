package typesys

import (
	"encoding/hex"
	"strconv"
	"time"

	"github.com/partwise/partwise/pkg/types"
)

// FormatValue renders an encoded value for inspection output. Unknown types
// and malformed encodings fall back to hex; this is display-only and never
// participates in routing decisions.
func FormatValue(v types.Value, id types.TypeID) string {
	switch id {
	case types.TypeInt64:
		if x, err := decodeInt64(v); err == nil {
			return strconv.FormatInt(x, 10)
		}
	case types.TypeFloat64:
		if x, err := decodeFloat64(v); err == nil {
			return strconv.FormatFloat(x, 'g', -1, 64)
		}
	case types.TypeTimestamp:
		if x, err := decodeInt64(v); err == nil {
			return time.UnixMicro(x).UTC().Format(time.RFC3339Nano)
		}
	case types.TypeText:
		return string(v)
	}
	return "0x" + hex.EncodeToString(v)
}
