// Package workflow holds the interactive flows that sit between the screens
// and the API client: confirming an appointment status change and booking.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"dams/internal/model"
)

var (
	ErrSubmitting      = errors.New("workflow: status update already in progress")
	ErrNothingSelected = errors.New("workflow: no appointment selected")
)

// State of a StatusFlow.
type State int

const (
	Idle State = iota
	PendingConfirmation
	Submitting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case PendingConfirmation:
		return "pending-confirmation"
	case Submitting:
		return "submitting"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// StatusUpdater sends a status change to the API.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, id string, status model.Status) (model.Appointment, error)
}

// AllowedTargets lists the status changes a role may request. Patients can
// only cancel; an unknown role gets the full set.
func AllowedTargets(role model.Role) []model.Status {
	if role == model.RolePatient {
		return []model.Status{model.StatusCancelled}
	}
	return []model.Status{model.StatusComplete, model.StatusCancelled}
}

// StatusFlow drives select -> confirm -> submit for one screen. It is safe
// for concurrent use; at most one update is in flight at a time.
type StatusFlow struct {
	mu       sync.Mutex
	updater  StatusUpdater
	allowed  []model.Status
	state    State
	selected model.Appointment
	target   model.Status
	err      error
}

// NewStatusFlow creates an idle flow for a user with the given role.
func NewStatusFlow(updater StatusUpdater, role model.Role) *StatusFlow {
	return &StatusFlow{updater: updater, allowed: AllowedTargets(role)}
}

// State returns the current state.
func (f *StatusFlow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Select asks for confirmation of moving appt to target. It returns false and
// changes nothing when appt is not PENDING, the target is not allowed, or a
// submission is in flight. A new selection replaces a pending one.
func (f *StatusFlow) Select(appt model.Appointment, target model.Status) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == Submitting {
		return false
	}
	if !model.CanTransition(appt.Status, target) || !slices.Contains(f.allowed, target) {
		return false
	}
	f.selected = appt
	f.target = target
	f.err = nil
	f.state = PendingConfirmation
	return true
}

// Dismiss closes the confirmation without side effects.
func (f *StatusFlow) Dismiss() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != PendingConfirmation {
		return
	}
	f.reset()
}

// CanConfirm reports whether Confirm would issue a request.
func (f *StatusFlow) CanConfirm() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state == PendingConfirmation
}

// Err returns the error of the last failed submission, cleared on the next selection.
func (f *StatusFlow) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Selected returns the appointment and target awaiting confirmation.
func (f *StatusFlow) Selected() (model.Appointment, model.Status, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == Idle {
		return model.Appointment{}, "", false
	}
	return f.selected, f.target, true
}

// Confirm submits the selected change with exactly one update call. On
// success the flow returns to Idle. On failure it stays pending so the user
// can retry or dismiss; the error is returned and kept in Err.
func (f *StatusFlow) Confirm(ctx context.Context) (model.Appointment, error) {
	f.mu.Lock()
	switch f.state {
	case Submitting:
		f.mu.Unlock()
		return model.Appointment{}, ErrSubmitting
	case Idle:
		f.mu.Unlock()
		return model.Appointment{}, ErrNothingSelected
	}
	id, target := f.selected.ID, f.target
	f.state = Submitting
	f.err = nil
	f.mu.Unlock()

	updated, err := f.updater.UpdateStatus(ctx, id, target)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.err = err
		f.state = PendingConfirmation
		return model.Appointment{}, err
	}
	f.reset()
	return updated, nil
}

// Title is the heading of the confirmation dialog.
func (f *StatusFlow) Title() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return title(f.target)
}

// Prompt is the confirmation question for the current selection.
func (f *StatusFlow) Prompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == Idle {
		return ""
	}
	return fmt.Sprintf("Are you sure you want to %s this appointment with %s on %s",
		verb(f.target), f.selected.Counterpart(), f.selected.FormatDate())
}

func (f *StatusFlow) reset() {
	f.state = Idle
	f.selected = model.Appointment{}
	f.target = ""
}

func title(target model.Status) string {
	switch target {
	case model.StatusComplete:
		return "Mark as Completed"
	case model.StatusCancelled:
		return "Cancel Appointment"
	}
	return ""
}

func verb(target model.Status) string {
	if target == model.StatusComplete {
		return "complete"
	}
	return "cancel"
}
