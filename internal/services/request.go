package services

import (
	"strconv"
	"strings"
)

// DefaultHours is the lookback window used when a request gives none
const DefaultHours = 6

// RequestContext carries the per-request variables of one assembly
type RequestContext struct {
	AquariumID string
	Hours      int
}

// Bindings returns the template variables of the request
func (rc RequestContext) Bindings() Bindings {
	return Bindings{AquariumID: rc.AquariumID, Hours: rc.Hours}
}

// ParseHours reads the hours query parameter. Missing, non-integer and
// out-of-range values fall back to def. A maxHours of zero means no upper bound.
func ParseHours(raw string, def, maxHours int) int {
	if def < 1 {
		def = DefaultHours
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	h, err := strconv.Atoi(raw)
	if err != nil || h < 1 || (maxHours > 0 && h > maxHours) {
		return def
	}
	return h
}
