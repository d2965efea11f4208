package sseclient

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParsePing decodes a "ping <epoch-ms>" payload.
func ParsePing(data string) (time.Time, error) {
	rest, ok := strings.CutPrefix(data, "ping ")
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %q", ErrNotPing, data)
	}
	ms, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", ErrNotPing, err)
	}
	return time.UnixMilli(ms), nil
}
