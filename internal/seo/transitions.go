// Package seo contains the job lifecycle and the business operations built
// on it. It is transport-agnostic: any HTTP or RPC layer can sit on top.
//
// Valid status graph:
//
//	generated ──► in_progress ──► applied ──► top_reached
//	    │              ▲             ▲             │
//	    ├──────────────┼─────────────┘             │
//	    │              └───────────────────────────┘
//	    └──────────────────────────► top_reached (direct recheck hit)
//
// top_reached is not terminal: a product that slips out of its target range
// regresses to in_progress and the recheck loop picks it up again.
package seo

import "fmt"

// Status values mirror the seo_job_status enum in PostgreSQL.
type Status string

const (
	StatusGenerated  Status = "generated"
	StatusInProgress Status = "in_progress"
	StatusApplied    Status = "applied"
	StatusTopReached Status = "top_reached"
)

// validTransitions lists every allowed (from → to) pair. A recheck may
// reach top_reached from any live status; the only regression edge is
// top_reached → in_progress.
var validTransitions = map[Status][]Status{
	StatusGenerated:  {StatusInProgress, StatusApplied, StatusTopReached},
	StatusInProgress: {StatusApplied, StatusTopReached},
	StatusApplied:    {StatusInProgress, StatusTopReached},
	StatusTopReached: {StatusInProgress},
}

// ParseStatus converts a raw string to a Status, returning an error for
// unknown values.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	switch st {
	case StatusGenerated, StatusInProgress, StatusApplied, StatusTopReached:
		return st, nil
	}
	return "", fmt.Errorf("unknown seo job status %q", s)
}

// IsTransitionAllowed returns true when moving from → to is permitted by
// the state machine. Staying in the same status is always allowed; a
// recheck that misses the target again is not a transition.
func IsTransitionAllowed(from, to Status) bool {
	if from == to {
		return true
	}
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsRecheckable returns true for statuses the background loop re-resolves.
// generated jobs wait for an explicit apply or a manual recheck first.
func IsRecheckable(s Status) bool {
	return s == StatusApplied || s == StatusInProgress
}
