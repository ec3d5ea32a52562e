package domain

import (
	"errors"
	"fmt"
)

// ErrTrialNotFound is returned when a trial ID cannot be found in the store.
var ErrTrialNotFound = errors.New("trial not found")

// ErrDuplicateTrial is returned when registering a trial whose ID already
// exists. Exactly one of two concurrent registrations receives it.
var ErrDuplicateTrial = errors.New("trial already registered")

// ErrRaceCondition is returned when a status transition lost against a
// concurrent writer ("trial status changed meanwhile").
var ErrRaceCondition = errors.New("trial status changed meanwhile")

// ErrNotReservable is returned when a trial cannot be claimed in its
// current status.
var ErrNotReservable = errors.New("trial is not reservable")

// ErrInvalidTransition is returned for a status change the state machine
// does not allow.
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrNotRunning is returned when an operation requires a running trial
// (e.g. suspend) and the trial is not executing.
var ErrNotRunning = errors.New("trial is not running")

// ErrAmbiguousID is returned when a short ID prefix matches several trials.
var ErrAmbiguousID = errors.New("short id matches multiple trials")

// ConflictKind categorizes a difference detected on resume.
type ConflictKind string

const (
	ConflictCode        ConflictKind = "code"        // VCS fingerprint changed
	ConflictEnv         ConflictKind = "env"         // Host environment changed
	ConflictConfig      ConflictKind = "config"      // Resolved configuration changed
	ConflictCommandline ConflictKind = "commandline" // Raw command line changed
)

// Conflict is one detected difference between the stored trial and the
// environment attempting to resume it.
type Conflict struct {
	Kind   ConflictKind
	Field  string
	Stored string
	Found  string
}

func (c Conflict) String() string {
	return fmt.Sprintf("%s change on %q: stored %q, found %q", c.Kind, c.Field, c.Stored, c.Found)
}

// ConflictError aggregates every conflict found while resuming a trial.
// Resume aborts with it unless the corresponding changes were allowed.
type ConflictError struct {
	TrialID   string
	Conflicts []Conflict
}

func (e *ConflictError) Error() string {
	if len(e.Conflicts) == 1 {
		return fmt.Sprintf("cannot resume trial %.7s: %s", e.TrialID, e.Conflicts[0])
	}
	return fmt.Sprintf("cannot resume trial %.7s: %d conflicts, first: %s",
		e.TrialID, len(e.Conflicts), e.Conflicts[0])
}

// Has reports whether the error contains a conflict of the given kind.
func (e *ConflictError) Has(kind ConflictKind) bool {
	for _, c := range e.Conflicts {
		if c.Kind == kind {
			return true
		}
	}
	return false
}
