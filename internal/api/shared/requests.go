package shared

import (
	"strconv"
	"strings"
)

// ParseID parses a positive int64 identifier such as a task or user ID.
// Empty input yields 0 and no error.
func ParseID(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}
