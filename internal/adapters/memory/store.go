package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/epistimio/kleio/pkg/domain"
	"github.com/epistimio/kleio/pkg/ports"
)

// Store implements ports.Store in memory. Safe for concurrent use.
// Used for tests and for --debug runs that must leave no trace behind.
type Store struct {
	mu      sync.Mutex
	trials  map[string]*domain.Trial
	reports map[string]domain.Report
	events  map[string][]domain.Event // keyed by trialID + "/" + attribute
	order   []string                  // registration order for listings
}

var _ ports.Store = (*Store)(nil)

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		trials:  make(map[string]*domain.Trial),
		reports: make(map[string]domain.Report),
		events:  make(map[string][]domain.Event),
	}
}

func streamKey(trialID string, attr domain.Attribute) string {
	return trialID + "/" + string(attr)
}

// Register creates the immutable trial record.
func (s *Store) Register(ctx context.Context, trial *domain.Trial) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.trials[trial.ID]; ok {
		return domain.ErrDuplicateTrial
	}

	copied := *trial
	copied.Commandline = append([]string(nil), trial.Commandline...)
	copied.Configuration = copyMap(trial.Configuration)
	s.trials[trial.ID] = &copied
	s.order = append(s.order, trial.ID)
	return nil
}

// Load retrieves the immutable trial record.
func (s *Store) Load(ctx context.Context, trialID string) (*domain.Trial, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	trial, ok := s.trials[trialID]
	if !ok {
		return nil, domain.ErrTrialNotFound
	}

	// Copy on read so the caller can't mutate store state by pointer.
	copied := *trial
	copied.Commandline = append([]string(nil), trial.Commandline...)
	copied.Configuration = copyMap(trial.Configuration)
	return &copied, nil
}

// Resolve expands a short ID prefix to the full trial ID.
func (s *Store) Resolve(ctx context.Context, shortID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var match string
	for id := range s.trials {
		if strings.HasPrefix(id, shortID) {
			if match != "" {
				return "", domain.ErrAmbiguousID
			}
			match = id
		}
	}
	if match == "" {
		return "", domain.ErrTrialNotFound
	}
	return match, nil
}

// SaveReport upserts the queryable summary of a trial.
func (s *Store) SaveReport(ctx context.Context, report domain.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[report.ID] = report
	return nil
}

// LoadReport retrieves the summary.
func (s *Store) LoadReport(ctx context.Context, trialID string) (domain.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report, ok := s.reports[trialID]
	if !ok {
		return domain.Report{}, domain.ErrTrialNotFound
	}
	return report, nil
}

// ListReports returns reports carrying all the given tags, in
// registration order.
func (s *Store) ListReports(ctx context.Context, tags []string) ([]domain.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var reports []domain.Report
	for _, id := range s.order {
		report, ok := s.reports[id]
		if !ok {
			continue
		}
		if report.HasTags(tags) {
			reports = append(reports, report)
		}
	}
	return reports, nil
}

// Children returns the IDs of trials branched from the given one.
func (s *Store) Children(ctx context.Context, trialID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var children []string
	for _, id := range s.order {
		if s.trials[id].Refers.ParentID == trialID {
			children = append(children, id)
		}
	}
	return children, nil
}

// Append stores an event with the next sequence number of its stream.
func (s *Store) Append(ctx context.Context, event domain.Event) (domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := streamKey(event.TrialID, event.Attribute)
	event.Seq = uint64(len(s.events[key]) + 1)
	s.events[key] = append(s.events[key], event)
	return event, nil
}

// Events returns the stream of one attribute in sequence order.
func (s *Store) Events(ctx context.Context, trialID string, attr domain.Attribute, since uint64) ([]domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stream := s.events[streamKey(trialID, attr)]
	var events []domain.Event
	for _, ev := range stream {
		if ev.Seq > since {
			events = append(events, ev)
		}
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].Seq < events[j].Seq })
	return events, nil
}

// CompareAndSwapStatus transitions the trial status atomically.
func (s *Store) CompareAndSwapStatus(ctx context.Context, trialID string, from, to domain.Status, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.trials[trialID]; !ok {
		return domain.ErrTrialNotFound
	}

	current := domain.StatusNew
	key := streamKey(trialID, domain.AttrStatus)
	if stream := s.events[key]; len(stream) > 0 {
		current = domain.Status(stream[len(stream)-1].Item)
	}
	if current != from {
		return domain.ErrRaceCondition
	}

	event := domain.NewEvent(trialID, domain.AttrStatus, domain.EventSet, string(to), at)
	event.Seq = uint64(len(s.events[key]) + 1)
	s.events[key] = append(s.events[key], event)
	return nil
}

// Status returns the current status of the trial.
func (s *Store) Status(ctx context.Context, trialID string) (domain.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.trials[trialID]; !ok {
		return "", domain.ErrTrialNotFound
	}
	stream := s.events[streamKey(trialID, domain.AttrStatus)]
	if len(stream) == 0 {
		return domain.StatusNew, nil
	}
	return domain.Status(stream[len(stream)-1].Item), nil
}

// Close is a no-op for the memory store.
func (s *Store) Close() error { return nil }

func copyMap(m map[string]string) map[string]string {
	copied := make(map[string]string, len(m))
	for k, v := range m {
		copied[k] = v
	}
	return copied
}
