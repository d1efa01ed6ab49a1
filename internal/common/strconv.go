package common

import (
	"net/url"
	"strconv"
	"strings"
)

// QueryInt reads a non-negative integer query parameter. Absent, malformed
// and negative values yield def.
func QueryInt(v url.Values, key string, def int) int {
	raw := strings.TrimSpace(v.Get(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}
