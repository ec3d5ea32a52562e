package domain

import (
	"fmt"
	"time"
)

// Attribute names the event-sourced streams attached to a trial.
type Attribute string

const (
	AttrStatus     Attribute = "status"
	AttrTags       Attribute = "tags"
	AttrStdout     Attribute = "stdout"
	AttrStderr     Attribute = "stderr"
	AttrStatistics Attribute = "statistics"
)

// EventType defines the operation an event applies to its stream.
type EventType string

const (
	EventSet    EventType = "set"    // Replace the current value (status)
	EventAdd    EventType = "add"    // Append an item (tags, stdout, statistics)
	EventRemove EventType = "remove" // Remove a previously added item (tags)
)

// Event is one append-only record in a trial attribute stream.
//
// Two timestamps are kept on purpose: CreatedAt is when the record was
// written, RuntimeAt is the instant inside the trial's timeline the event
// belongs to. They differ when statistics are inserted after the fact by
// an analysis process.
type Event struct {
	Seq       uint64    `json:"seq"`
	TrialID   string    `json:"trial_id"`
	Attribute Attribute `json:"attribute"`
	Type      EventType `json:"type"`
	Item      string    `json:"item"`
	CreatedAt time.Time `json:"created_at"`
	RuntimeAt time.Time `json:"runtime_at"`
	// CreatorID is the trial that produced the event. It differs from
	// TrialID when a branch or an analyzer writes into another lineage.
	CreatorID string `json:"creator_id,omitempty"`
}

// NewEvent builds an event stamped now. A zero runtimeAt defaults to the
// creation time.
func NewEvent(trialID string, attr Attribute, typ EventType, item string, runtimeAt time.Time) Event {
	now := time.Now().UTC()
	if runtimeAt.IsZero() {
		runtimeAt = now
	}
	return Event{
		TrialID:   trialID,
		Attribute: attr,
		Type:      typ,
		Item:      item,
		CreatedAt: now,
		RuntimeAt: runtimeAt.UTC(),
		CreatorID: trialID,
	}
}

// ReplayList folds add/remove events into the resulting list of items.
func ReplayList(events []Event) ([]string, error) {
	var items []string
	for _, ev := range events {
		switch ev.Type {
		case EventAdd:
			items = append(items, ev.Item)
		case EventRemove:
			kept := items[:0]
			for _, it := range items {
				if it != ev.Item {
					kept = append(kept, it)
				}
			}
			items = kept
		default:
			return nil, fmt.Errorf("%w: event type %q in list stream %q",
				ErrInvalidTransition, ev.Type, ev.Attribute)
		}
	}
	return items, nil
}

// ReplayItem folds set events into the latest value. ok is false for an
// empty stream.
func ReplayItem(events []Event) (item string, at time.Time, ok bool) {
	if len(events) == 0 {
		return "", time.Time{}, false
	}
	last := events[len(events)-1]
	return last.Item, last.RuntimeAt, true
}

// ClipEvents returns the prefix of events with RuntimeAt <= bound.
// A zero bound returns events unchanged. Used for interval-bounded parent
// views when reading a branched lineage.
func ClipEvents(events []Event, bound time.Time) []Event {
	if bound.IsZero() {
		return events
	}
	clipped := make([]Event, 0, len(events))
	for _, ev := range events {
		if !ev.RuntimeAt.After(bound) {
			clipped = append(clipped, ev)
		}
	}
	return clipped
}
