package model

import "strings"

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusComplete  Status = "COMPLETE"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// ParseStatus normalises user input. "completed" and "complete" both map to
// their upper-case spellings; unknown values report false.
func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case StatusPending, StatusComplete, StatusCompleted, StatusCancelled:
		return st, true
	}
	return "", false
}

// IsPending reports whether the appointment can still change status.
func (s Status) IsPending() bool { return s == StatusPending }

// IsComplete treats COMPLETE and COMPLETED as the same state.
func (s Status) IsComplete() bool { return s == StatusComplete || s == StatusCompleted }

// IsTerminal reports whether no further transitions are allowed.
func (s Status) IsTerminal() bool { return s.IsComplete() || s == StatusCancelled }

// UpdateTarget reports whether s may be sent to the update-status endpoint.
func (s Status) UpdateTarget() bool { return s == StatusComplete || s == StatusCancelled }

// CanTransition reports whether from -> to is a legal lifecycle step.
func CanTransition(from, to Status) bool {
	return from.IsPending() && to.UpdateTarget()
}
