// Package model defines the marketplace domain types and the job lifecycle
// state machine.
//
// Valid status graph:
//
//	open ──► in_progress ──► completed
//	  │            │
//	  └────────────┴──► cancelled
//
// completed and cancelled are terminal states.
package model

import "fmt"

// JobStatus values mirror the job_status enum in PostgreSQL.
type JobStatus string

const (
	StatusOpen       JobStatus = "open"
	StatusInProgress JobStatus = "in_progress"
	StatusCompleted  JobStatus = "completed"
	StatusCancelled  JobStatus = "cancelled"
)

// validTransitions lists every allowed (from → to) pair.
var validTransitions = map[JobStatus][]JobStatus{
	StatusOpen:       {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
	// completed and cancelled are terminal; no outgoing transitions
}

// ParseJobStatus converts a raw string to a JobStatus, returning an error for
// unknown values.
func ParseJobStatus(s string) (JobStatus, error) {
	st := JobStatus(s)
	switch st {
	case StatusOpen, StatusInProgress, StatusCompleted, StatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("unknown job status %q", s)
}

// CanTransition returns true when moving from → to is permitted by the
// state machine.
func CanTransition(from, to JobStatus) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false // terminal state, no outgoing transitions
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal returns true for statuses with no outgoing transitions.
func IsTerminal(s JobStatus) bool {
	_, ok := validTransitions[s]
	return !ok
}

// HasAssignee reports whether a job in status s must carry an assignee.
// The lifecycle invariant is: assignee set ⇔ status ∈ {in_progress, completed}.
func HasAssignee(s JobStatus) bool {
	return s == StatusInProgress || s == StatusCompleted
}
