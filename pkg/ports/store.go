package ports

import (
	"context"
	"time"

	"github.com/epistimio/kleio/pkg/domain"
)

// TrialStore persists trial identities, reports and event streams.
//
// Implementations must make Register and CompareAndSwapStatus atomic
// against concurrent writers: two processes registering the same ID or
// reserving the same trial must see exactly one winner.
type TrialStore interface {
	// Register creates the immutable trial record. Returns
	// domain.ErrDuplicateTrial if the ID is already registered.
	Register(ctx context.Context, trial *domain.Trial) error

	// Load retrieves the immutable trial record. Returns
	// domain.ErrTrialNotFound if the ID does not exist.
	Load(ctx context.Context, trialID string) (*domain.Trial, error)

	// Resolve expands a short ID prefix to the full trial ID. Returns
	// domain.ErrTrialNotFound or domain.ErrAmbiguousID.
	Resolve(ctx context.Context, shortID string) (string, error)

	// SaveReport upserts the queryable summary of a trial.
	SaveReport(ctx context.Context, report domain.Report) error

	// LoadReport retrieves the summary. Returns domain.ErrTrialNotFound
	// if the trial was never reported.
	LoadReport(ctx context.Context, trialID string) (domain.Report, error)

	// ListReports returns every report carrying all the given tags,
	// in registration order. Empty tags match everything.
	ListReports(ctx context.Context, tags []string) ([]domain.Report, error)

	// Children returns the IDs of trials branched from the given one.
	Children(ctx context.Context, trialID string) ([]string, error)

	EventLog
}

// EventLog is the append-only store of trial attribute streams.
type EventLog interface {
	// Append stores an event, assigning it the next sequence number of
	// its (trial, attribute) stream.
	Append(ctx context.Context, event domain.Event) (domain.Event, error)

	// Events returns the stream of one attribute in sequence order.
	// A non-zero since skips events with Seq <= since.
	Events(ctx context.Context, trialID string, attr domain.Attribute, since uint64) ([]domain.Event, error)
}

// StatusStore is the subset of operations needed for lifecycle changes.
// Kept separate so the consumer heartbeat can depend on the minimum.
type StatusStore interface {
	// CompareAndSwapStatus transitions the trial status atomically.
	// Returns domain.ErrRaceCondition if the current status is no longer
	// `from`, without writing anything.
	CompareAndSwapStatus(ctx context.Context, trialID string, from, to domain.Status, at time.Time) error

	// Status returns the current status of the trial.
	Status(ctx context.Context, trialID string) (domain.Status, error)
}

// Store combines full trial persistence with status arbitration.
type Store interface {
	TrialStore
	StatusStore

	// Close releases backend resources.
	Close() error
}
