package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/epistimio/kleio/pkg/domain"
	"github.com/epistimio/kleio/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// Store implements ports.Store using Redis. It is the backend for teams
// sharing one tracking database across hosts: SETNX gives atomic trial
// registration, and a Lua script arbitrates status transitions.
type Store struct {
	client *backend.Client
	prefix string
}

var _ ports.Store = (*Store)(nil)

type Option func(*Store)

// WithPrefix sets the key prefix for all trial data.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: "kleio:",
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Client exposes the underlying connection so a Locker can share it.
func (s *Store) Client() *backend.Client { return s.client }

// Prefix returns the key prefix for all trial data.
func (s *Store) Prefix() string { return s.prefix }

func (s *Store) trialKey(id string) string  { return s.prefix + "trial:" + id }
func (s *Store) reportKey(id string) string { return s.prefix + "report:" + id }
func (s *Store) indexKey() string           { return s.prefix + "index" }
func (s *Store) childrenKey(id string) string {
	return s.prefix + "children:" + id
}
func (s *Store) streamKey(id string, attr domain.Attribute) string {
	return s.prefix + "events:" + id + ":" + string(attr)
}

// Register creates the immutable trial record. SETNX makes the write
// atomic: the second of two concurrent registrations gets
// domain.ErrDuplicateTrial.
func (s *Store) Register(ctx context.Context, trial *domain.Trial) error {
	data, err := json.Marshal(trial)
	if err != nil {
		return fmt.Errorf("failed to marshal trial: %w", err)
	}

	created, err := s.client.SetNX(ctx, s.trialKey(trial.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to register trial in redis: %w", err)
	}
	if !created {
		return domain.ErrDuplicateTrial
	}

	pipe := s.client.Pipeline()
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{
		Score:  float64(trial.SubmitTime.UnixNano()),
		Member: trial.ID,
	})
	if trial.Refers.ParentID != "" {
		pipe.SAdd(ctx, s.childrenKey(trial.Refers.ParentID), trial.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to index trial: %w", err)
	}
	return nil
}

// Load retrieves the immutable trial record.
func (s *Store) Load(ctx context.Context, trialID string) (*domain.Trial, error) {
	val, err := s.client.Get(ctx, s.trialKey(trialID)).Result()
	if err != nil {
		if err == backend.Nil {
			return nil, domain.ErrTrialNotFound
		}
		return nil, fmt.Errorf("failed to get trial from redis: %w", err)
	}

	var trial domain.Trial
	if err := json.Unmarshal([]byte(val), &trial); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trial: %w", err)
	}
	return &trial, nil
}

// Resolve expands a short ID prefix to the full trial ID by scanning the
// trial keyspace.
func (s *Store) Resolve(ctx context.Context, shortID string) (string, error) {
	var match string
	iter := s.client.Scan(ctx, 0, s.trialKey(shortID)+"*", 0).Iterator()
	for iter.Next(ctx) {
		id := iter.Val()[len(s.trialKey("")):]
		if match != "" && match != id {
			return "", domain.ErrAmbiguousID
		}
		match = id
	}
	if err := iter.Err(); err != nil {
		return "", fmt.Errorf("failed to scan trials: %w", err)
	}
	if match == "" {
		return "", domain.ErrTrialNotFound
	}
	return match, nil
}

// SaveReport upserts the queryable summary of a trial.
func (s *Store) SaveReport(ctx context.Context, report domain.Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := s.client.Set(ctx, s.reportKey(report.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save report to redis: %w", err)
	}
	return nil
}

// LoadReport retrieves the summary.
func (s *Store) LoadReport(ctx context.Context, trialID string) (domain.Report, error) {
	val, err := s.client.Get(ctx, s.reportKey(trialID)).Result()
	if err != nil {
		if err == backend.Nil {
			return domain.Report{}, domain.ErrTrialNotFound
		}
		return domain.Report{}, fmt.Errorf("failed to get report from redis: %w", err)
	}

	var report domain.Report
	if err := json.Unmarshal([]byte(val), &report); err != nil {
		return domain.Report{}, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return report, nil
}

// ListReports returns reports carrying all the given tags, in submit
// order (the index ZSET is scored by submit time).
func (s *Store) ListReports(ctx context.Context, tags []string) ([]domain.Report, error) {
	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list trials: %w", err)
	}

	var reports []domain.Report
	for _, id := range ids {
		report, err := s.LoadReport(ctx, id)
		if err != nil {
			if err == domain.ErrTrialNotFound {
				continue
			}
			return nil, err
		}
		if report.HasTags(tags) {
			reports = append(reports, report)
		}
	}
	return reports, nil
}

// Children returns the IDs of trials branched from the given one.
func (s *Store) Children(ctx context.Context, trialID string) ([]string, error) {
	children, err := s.client.SMembers(ctx, s.childrenKey(trialID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list children: %w", err)
	}
	return children, nil
}

// Append stores an event at the tail of its stream. The sequence number
// is the resulting list length, so concurrent appends never collide.
func (s *Store) Append(ctx context.Context, event domain.Event) (domain.Event, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return domain.Event{}, fmt.Errorf("failed to marshal event: %w", err)
	}

	length, err := s.client.RPush(ctx, s.streamKey(event.TrialID, event.Attribute), data).Result()
	if err != nil {
		return domain.Event{}, fmt.Errorf("failed to append event to redis: %w", err)
	}
	event.Seq = uint64(length)
	return event, nil
}

// Events returns the stream of one attribute in sequence order. Sequence
// numbers derive from list position.
func (s *Store) Events(ctx context.Context, trialID string, attr domain.Attribute, since uint64) ([]domain.Event, error) {
	items, err := s.client.LRange(ctx, s.streamKey(trialID, attr), int64(since), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read event stream: %w", err)
	}

	events := make([]domain.Event, 0, len(items))
	for i, item := range items {
		var ev domain.Event
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			return nil, fmt.Errorf("failed to parse event stream %s/%s: %w", domain.ShortID(trialID), attr, err)
		}
		ev.Seq = since + uint64(i) + 1
		events = append(events, ev)
	}
	return events, nil
}

// casScript compares the last status event against the expected status
// and appends the transition only if it still holds.
//
// KEYS[1] = status stream, ARGV[1] = expected status, ARGV[2] = new event
// JSON, ARGV[3] = field name of the item within the JSON ("item").
var casScript = backend.NewScript(`
local last = redis.call("LRANGE", KEYS[1], -1, -1)
local current = "new"
if #last > 0 then
	current = cjson.decode(last[1])["item"]
end
if current ~= ARGV[1] then
	return 0
end
return redis.call("RPUSH", KEYS[1], ARGV[2])
`)

// CompareAndSwapStatus transitions the trial status atomically.
func (s *Store) CompareAndSwapStatus(ctx context.Context, trialID string, from, to domain.Status, at time.Time) error {
	if _, err := s.Load(ctx, trialID); err != nil {
		return err
	}

	event := domain.NewEvent(trialID, domain.AttrStatus, domain.EventSet, string(to), at)
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal status event: %w", err)
	}

	res, err := casScript.Run(ctx, s.client,
		[]string{s.streamKey(trialID, domain.AttrStatus)},
		string(from), string(data), "item").Int64()
	if err != nil {
		return fmt.Errorf("failed to swap status in redis: %w", err)
	}
	if res == 0 {
		return domain.ErrRaceCondition
	}
	return nil
}

// Status returns the current status of the trial.
func (s *Store) Status(ctx context.Context, trialID string) (domain.Status, error) {
	if _, err := s.Load(ctx, trialID); err != nil {
		return "", err
	}

	items, err := s.client.LRange(ctx, s.streamKey(trialID, domain.AttrStatus), -1, -1).Result()
	if err != nil {
		return "", fmt.Errorf("failed to read status stream: %w", err)
	}
	if len(items) == 0 {
		return domain.StatusNew, nil
	}

	var ev domain.Event
	if err := json.Unmarshal([]byte(items[0]), &ev); err != nil {
		return "", fmt.Errorf("failed to parse status event: %w", err)
	}
	return domain.Status(ev.Item), nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
