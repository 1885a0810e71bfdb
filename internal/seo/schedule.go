package seo

import (
	"time"

	"seowibe/rank-service/internal/model"
)

// Recheck intervals. A job that reached its target only needs an occasional
// confirmation; a job still climbing is rechecked often.
const (
	holdInterval  = 30 * 24 * time.Hour
	retryInterval = 3 * 24 * time.Hour
)

// NextCheck returns when a job should be re-resolved next, given its latest
// position. An unresolved position counts as a miss.
func NextCheck(position *int, targetPosition int) time.Time {
	if position != nil && *position <= targetPosition {
		return time.Now().UTC().Add(holdInterval)
	}
	return time.Now().UTC().Add(retryInterval)
}

// SafeKnownPosition clamps a stored position for reuse as a fallback:
// 0 means "nothing known", values past the ceiling collapse to the
// overflow sentinel.
func SafeKnownPosition(value *int) int {
	if value == nil || *value <= 0 {
		return 0
	}
	if *value > model.PositionLimit {
		return model.PositionOverflow
	}
	return *value
}
