package trial

import (
	"context"
	"fmt"
	"time"

	"github.com/epistimio/kleio/pkg/domain"
	"github.com/epistimio/kleio/pkg/ports"
)

// Handle is the writable interface to one registered trial.
type Handle struct {
	trial *domain.Trial
	store ports.Store
	tags  []string
}

// NewHandle wraps a registered trial.
func NewHandle(t *domain.Trial, store ports.Store) *Handle {
	return &Handle{trial: t, store: store}
}

// Load opens a handle on an existing trial.
func Load(ctx context.Context, store ports.Store, trialID string) (*Handle, error) {
	t, err := store.Load(ctx, trialID)
	if err != nil {
		return nil, err
	}
	h := &Handle{trial: t, store: store}
	tags, err := h.Tags(ctx)
	if err != nil {
		return nil, err
	}
	h.tags = tags
	return h, nil
}

// Trial returns the immutable record.
func (h *Handle) Trial() *domain.Trial { return h.trial }

// ID returns the full trial ID.
func (h *Handle) ID() string { return h.trial.ID }

// ShortID returns the abbreviated trial ID.
func (h *Handle) ShortID() string { return h.trial.ShortID() }

// Status reads the current status from the store.
func (h *Handle) Status(ctx context.Context) (domain.Status, error) {
	return h.store.Status(ctx, h.trial.ID)
}

// setStatus performs one guarded transition: read, validate, CAS.
// A concurrent writer between read and swap surfaces as
// domain.ErrRaceCondition.
func (h *Handle) setStatus(ctx context.Context, to domain.Status) error {
	current, err := h.store.Status(ctx, h.trial.ID)
	if err != nil {
		return err
	}
	if !current.CanTransition(to) {
		if to == domain.StatusReserved {
			return fmt.Errorf("%w: status is %q", domain.ErrNotReservable, current)
		}
		return fmt.Errorf("%w: trial with status %q cannot be set to %q",
			domain.ErrInvalidTransition, current, to)
	}
	if err := h.store.CompareAndSwapStatus(ctx, h.trial.ID, current, to, time.Time{}); err != nil {
		return err
	}
	return h.SaveReport(ctx)
}

// Reserve claims the trial for execution.
func (h *Handle) Reserve(ctx context.Context) error {
	return h.setStatus(ctx, domain.StatusReserved)
}

// Run marks the reserved trial as executing.
func (h *Handle) Run(ctx context.Context) error {
	return h.setStatus(ctx, domain.StatusRunning)
}

// Heartbeat refreshes a running trial's claim. It fails with
// domain.ErrRaceCondition when an external actor changed the status
// (e.g. a suspend request), which is the signal to stop the child.
func (h *Handle) Heartbeat(ctx context.Context) error {
	if err := h.store.CompareAndSwapStatus(ctx, h.trial.ID,
		domain.StatusRunning, domain.StatusRunning, time.Time{}); err != nil {
		return err
	}
	return h.SaveReport(ctx)
}

// Complete marks a running trial as successfully finished.
func (h *Handle) Complete(ctx context.Context) error {
	return h.setStatus(ctx, domain.StatusCompleted)
}

// Broken marks a running trial as crashed.
func (h *Handle) Broken(ctx context.Context) error {
	return h.setStatus(ctx, domain.StatusBroken)
}

// Suspend stops a running trial on user request; it stays resumable.
func (h *Handle) Suspend(ctx context.Context) error {
	return h.setStatus(ctx, domain.StatusSuspended)
}

// Interrupt records an externally stopped trial.
func (h *Handle) Interrupt(ctx context.Context) error {
	return h.setStatus(ctx, domain.StatusInterrupted)
}

// Failover marks a presumed-dead trial (stale heartbeat) resumable.
func (h *Handle) Failover(ctx context.Context) error {
	return h.setStatus(ctx, domain.StatusFailover)
}

// Switchover forces a broken or stuck trial back to executable.
func (h *Handle) Switchover(ctx context.Context) error {
	return h.setStatus(ctx, domain.StatusSwitchover)
}

// MarkBranched records that a child lineage superseded this trial.
func (h *Handle) MarkBranched(ctx context.Context) error {
	return h.setStatus(ctx, domain.StatusBranched)
}

// AddTags appends tags not already present.
func (h *Handle) AddTags(ctx context.Context, tags ...string) error {
	current, err := h.Tags(ctx)
	if err != nil {
		return err
	}
	present := map[string]bool{}
	for _, t := range current {
		present[t] = true
	}
	for _, tag := range tags {
		if tag == "" || present[tag] {
			continue
		}
		ev := domain.NewEvent(h.trial.ID, domain.AttrTags, domain.EventAdd, tag, time.Time{})
		if _, err := h.store.Append(ctx, ev); err != nil {
			return err
		}
		present[tag] = true
	}
	return h.SaveReport(ctx)
}

// Tags replays the tag stream.
func (h *Handle) Tags(ctx context.Context) ([]string, error) {
	events, err := h.store.Events(ctx, h.trial.ID, domain.AttrTags, 0)
	if err != nil {
		return nil, err
	}
	return domain.ReplayList(events)
}

// LogOutput appends captured process output lines to the stdout or
// stderr stream.
func (h *Handle) LogOutput(ctx context.Context, attr domain.Attribute, lines ...string) error {
	if attr != domain.AttrStdout && attr != domain.AttrStderr {
		return fmt.Errorf("attribute %q is not an output stream", attr)
	}
	for _, line := range lines {
		ev := domain.NewEvent(h.trial.ID, attr, domain.EventAdd, line, time.Time{})
		if _, err := h.store.Append(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

// LogStatistic appends one statistic record. A zero runtimeAt stamps now.
func (h *Handle) LogStatistic(ctx context.Context, values map[string]float64, runtimeAt time.Time) error {
	item, err := domain.Statistic{Values: values}.MarshalItem()
	if err != nil {
		return err
	}
	ev := domain.NewEvent(h.trial.ID, domain.AttrStatistics, domain.EventAdd, item, runtimeAt)
	_, err = h.store.Append(ctx, ev)
	return err
}

// SaveReport refreshes the queryable summary from the event streams.
func (h *Handle) SaveReport(ctx context.Context) error {
	events, err := h.store.Events(ctx, h.trial.ID, domain.AttrStatus, 0)
	if err != nil {
		return err
	}

	registry := domain.Registry{Status: domain.StatusNew}
	if len(events) > 0 {
		registry.Status = domain.Status(events[len(events)-1].Item)
		registry.EndTime = events[len(events)-1].RuntimeAt
		registry.Heartbeat = events[len(events)-1].CreatedAt
		for _, ev := range events {
			if domain.Status(ev.Item) == domain.StatusRunning {
				registry.StartTime = ev.RuntimeAt
				break
			}
		}
	}

	tags, err := h.Tags(ctx)
	if err != nil {
		return err
	}
	h.tags = tags

	return h.store.SaveReport(ctx, domain.Report{
		ID:          h.trial.ID,
		Tags:        tags,
		Commandline: h.trial.Commandline,
		Registry:    registry,
	})
}
