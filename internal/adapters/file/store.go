package file

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/epistimio/kleio/pkg/domain"
	"github.com/epistimio/kleio/pkg/ports"
)

// Store implements ports.Store on the local filesystem. It is the default
// backend for single-host use: trials are JSON documents under
// <base>/trials, reports under <base>/reports, and event streams are
// JSON-lines files under <base>/events/<trial-id>/.
//
// Cross-process atomicity relies on two primitives: O_EXCL creation for
// trial registration, and a per-trial lock file for status arbitration
// and event sequencing.
type Store struct {
	BasePath string
}

var _ ports.Store = (*Store)(nil)

// New creates a new file store rooted at basePath. If basePath is empty,
// it defaults to ".kleio".
func New(basePath string) *Store {
	if basePath == "" {
		basePath = ".kleio"
	}
	return &Store{BasePath: basePath}
}

func (s *Store) trialPath(id string) string {
	return filepath.Join(s.BasePath, "trials", id+".json")
}

func (s *Store) reportPath(id string) string {
	return filepath.Join(s.BasePath, "reports", id+".json")
}

func (s *Store) streamPath(id string, attr domain.Attribute) string {
	return filepath.Join(s.BasePath, "events", id, string(attr)+".jsonl")
}

func (s *Store) lockPath(id string) string {
	return filepath.Join(s.BasePath, "events", id+".lock")
}

// Register creates the immutable trial record. O_EXCL makes the create
// atomic: the second of two concurrent registrations gets
// domain.ErrDuplicateTrial.
func (s *Store) Register(ctx context.Context, trial *domain.Trial) error {
	if err := os.MkdirAll(filepath.Dir(s.trialPath(trial.ID)), 0o755); err != nil {
		return fmt.Errorf("failed to ensure trials directory: %w", err)
	}

	data, err := json.MarshalIndent(trial, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal trial: %w", err)
	}

	f, err := os.OpenFile(s.trialPath(trial.ID), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return domain.ErrDuplicateTrial
		}
		return fmt.Errorf("failed to create trial file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("failed to write trial file: %w", err)
	}
	return nil
}

// Load retrieves the immutable trial record.
func (s *Store) Load(ctx context.Context, trialID string) (*domain.Trial, error) {
	data, err := os.ReadFile(s.trialPath(trialID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrTrialNotFound
		}
		return nil, fmt.Errorf("failed to read trial file: %w", err)
	}

	var trial domain.Trial
	if err := json.Unmarshal(data, &trial); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trial: %w", err)
	}
	return &trial, nil
}

// Resolve expands a short ID prefix to the full trial ID.
func (s *Store) Resolve(ctx context.Context, shortID string) (string, error) {
	entries, err := os.ReadDir(filepath.Join(s.BasePath, "trials"))
	if err != nil {
		if os.IsNotExist(err) {
			return "", domain.ErrTrialNotFound
		}
		return "", fmt.Errorf("failed to list trials: %w", err)
	}

	var match string
	for _, entry := range entries {
		id := strings.TrimSuffix(entry.Name(), ".json")
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
	if err := os.MkdirAll(filepath.Dir(s.reportPath(report.ID)), 0o755); err != nil {
		return fmt.Errorf("failed to ensure reports directory: %w", err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(s.reportPath(report.ID), data, 0o644); err != nil {
		return fmt.Errorf("failed to write report file: %w", err)
	}
	return nil
}

// LoadReport retrieves the summary.
func (s *Store) LoadReport(ctx context.Context, trialID string) (domain.Report, error) {
	data, err := os.ReadFile(s.reportPath(trialID))
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Report{}, domain.ErrTrialNotFound
		}
		return domain.Report{}, fmt.Errorf("failed to read report file: %w", err)
	}

	var report domain.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return domain.Report{}, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return report, nil
}

// ListReports returns reports carrying all the given tags, ordered by
// trial submit time.
func (s *Store) ListReports(ctx context.Context, tags []string) ([]domain.Report, error) {
	entries, err := os.ReadDir(filepath.Join(s.BasePath, "reports"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}

	type dated struct {
		report domain.Report
		at     time.Time
	}
	var all []dated
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".json")
		report, err := s.LoadReport(ctx, id)
		if err != nil {
			continue
		}
		if !report.HasTags(tags) {
			continue
		}
		at := time.Time{}
		if trial, err := s.Load(ctx, id); err == nil {
			at = trial.SubmitTime
		}
		all = append(all, dated{report: report, at: at})
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].at.Before(all[j].at) })

	reports := make([]domain.Report, len(all))
	for i, d := range all {
		reports[i] = d.report
	}
	return reports, nil
}

// Children returns the IDs of trials branched from the given one.
func (s *Store) Children(ctx context.Context, trialID string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.BasePath, "trials"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list trials: %w", err)
	}

	var children []string
	for _, entry := range entries {
		id := strings.TrimSuffix(entry.Name(), ".json")
		trial, err := s.Load(ctx, id)
		if err != nil {
			continue
		}
		if trial.Refers.ParentID == trialID {
			children = append(children, id)
		}
	}
	sort.Strings(children)
	return children, nil
}

// Append stores an event with the next sequence number of its stream.
func (s *Store) Append(ctx context.Context, event domain.Event) (domain.Event, error) {
	unlock, err := s.lockTrial(ctx, event.TrialID)
	if err != nil {
		return domain.Event{}, err
	}
	defer unlock()

	return s.appendLocked(event)
}

func (s *Store) appendLocked(event domain.Event) (domain.Event, error) {
	path := s.streamPath(event.TrialID, event.Attribute)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return domain.Event{}, fmt.Errorf("failed to ensure event directory: %w", err)
	}

	last, err := s.lastSeq(path)
	if err != nil {
		return domain.Event{}, err
	}
	event.Seq = last + 1

	data, err := json.Marshal(event)
	if err != nil {
		return domain.Event{}, fmt.Errorf("failed to marshal event: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return domain.Event{}, fmt.Errorf("failed to open event stream: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return domain.Event{}, fmt.Errorf("failed to append event: %w", err)
	}
	return event, nil
}

// Events returns the stream of one attribute in sequence order.
func (s *Store) Events(ctx context.Context, trialID string, attr domain.Attribute, since uint64) ([]domain.Event, error) {
	f, err := os.Open(s.streamPath(trialID, attr))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open event stream: %w", err)
	}
	defer f.Close()

	var events []domain.Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var ev domain.Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			return nil, fmt.Errorf("failed to parse event stream %s/%s: %w", domain.ShortID(trialID), attr, err)
		}
		if ev.Seq > since {
			events = append(events, ev)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read event stream: %w", err)
	}
	return events, nil
}

// CompareAndSwapStatus transitions the trial status atomically under the
// per-trial lock file.
func (s *Store) CompareAndSwapStatus(ctx context.Context, trialID string, from, to domain.Status, at time.Time) error {
	if _, err := s.Load(ctx, trialID); err != nil {
		return err
	}

	unlock, err := s.lockTrial(ctx, trialID)
	if err != nil {
		return err
	}
	defer unlock()

	current, err := s.statusLocked(trialID)
	if err != nil {
		return err
	}
	if current != from {
		return domain.ErrRaceCondition
	}

	_, err = s.appendLocked(domain.NewEvent(trialID, domain.AttrStatus, domain.EventSet, string(to), at))
	return err
}

// Status returns the current status of the trial.
func (s *Store) Status(ctx context.Context, trialID string) (domain.Status, error) {
	if _, err := s.Load(ctx, trialID); err != nil {
		return "", err
	}
	return s.statusLocked(trialID)
}

func (s *Store) statusLocked(trialID string) (domain.Status, error) {
	events, err := s.Events(context.Background(), trialID, domain.AttrStatus, 0)
	if err != nil {
		return "", err
	}
	item, _, ok := domain.ReplayItem(events)
	if !ok {
		return domain.StatusNew, nil
	}
	return domain.Status(item), nil
}

func (s *Store) lastSeq(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to open event stream: %w", err)
	}
	defer f.Close()

	var last uint64
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var ev domain.Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			continue
		}
		if ev.Seq > last {
			last = ev.Seq
		}
	}
	return last, scanner.Err()
}

// staleLockAge is how old a lock file must be before it is considered
// abandoned by a crashed process and broken.
const staleLockAge = 30 * time.Second

// lockTrial takes the per-trial lock file, polling until acquired or the
// context is canceled.
func (s *Store) lockTrial(ctx context.Context, trialID string) (func(), error) {
	path := s.lockPath(trialID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to ensure lock directory: %w", err)
	}

	for {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			fmt.Fprintf(f, "%d", os.Getpid())
			f.Close()
			return func() { os.Remove(path) }, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to create lock file: %w", err)
		}

		if info, statErr := os.Stat(path); statErr == nil && time.Since(info.ModTime()) > staleLockAge {
			os.Remove(path)
			continue
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// Close is a no-op for the file store.
func (s *Store) Close() error { return nil }
