package domain

// Status defines the lifecycle state of a trial.
type Status string

const (
	StatusNew         Status = "new"         // Registered, never reserved
	StatusReserved    Status = "reserved"    // Claimed by a worker, not yet running
	StatusRunning     Status = "running"     // Child process executing
	StatusCompleted   Status = "completed"   // Exited with code 0
	StatusInterrupted Status = "interrupted" // Stopped by an external actor
	StatusSuspended   Status = "suspended"   // Stopped on user request, resumable
	StatusBroken      Status = "broken"      // Exited with a non-zero code
	StatusFailover    Status = "failover"    // Heartbeat went stale, presumed dead
	StatusSwitchover  Status = "switchover"  // Manually marked executable again
	StatusBranched    Status = "branched"    // Superseded by a child trial
)

// AllStatuses lists every valid status, in lifecycle order.
var AllStatuses = []Status{
	StatusNew, StatusReserved, StatusRunning, StatusCompleted,
	StatusSuspended, StatusInterrupted, StatusSwitchover, StatusFailover,
	StatusBroken, StatusBranched,
}

// reservable statuses can be claimed by a worker.
var reservable = map[Status]bool{
	StatusNew:         true,
	StatusSuspended:   true,
	StatusInterrupted: true,
	StatusFailover:    true,
	StatusSwitchover:  true,
}

// switchoverable statuses can be forced back to executable.
var switchoverable = map[Status]bool{
	StatusReserved: true,
	StatusBroken:   true,
	StatusBranched: true,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Reservable reports whether a worker may claim a trial in this status.
func (s Status) Reservable() bool {
	return reservable[s]
}

// Terminal reports whether the trial finished for good.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusBranched
}

// CanTransition reports whether the status machine allows moving from s to next.
func (s Status) CanTransition(next Status) bool {
	switch next {
	case StatusReserved:
		return s.Reservable()
	case StatusRunning:
		// running -> running is the heartbeat refresh.
		return s == StatusReserved || s == StatusRunning
	case StatusCompleted, StatusBroken, StatusSuspended, StatusInterrupted, StatusFailover:
		return s == StatusRunning
	case StatusSwitchover:
		return switchoverable[s]
	case StatusBranched:
		return s.Reservable()
	default:
		return false
	}
}
