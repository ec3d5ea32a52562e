package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Statistic is one batch of named values reported at a point of the
// trial's timeline, e.g. {"epoch": 3, "loss": 0.21}.
type Statistic struct {
	Values    map[string]float64 `json:"values"`
	RuntimeAt time.Time          `json:"runtime_at"`
	CreatorID string             `json:"creator_id,omitempty"`
}

// MarshalItem encodes the statistic values as an event payload.
func (s Statistic) MarshalItem() (string, error) {
	data, err := json.Marshal(s.Values)
	if err != nil {
		return "", fmt.Errorf("failed to marshal statistic: %w", err)
	}
	return string(data), nil
}

// Statistics is the replayed, time-ordered view of a trial's statistic
// stream.
type Statistics struct {
	records []Statistic
}

// ParseStatistics replays a statistics event stream.
func ParseStatistics(events []Event) (*Statistics, error) {
	records := make([]Statistic, 0, len(events))
	for _, ev := range events {
		if ev.Attribute != AttrStatistics || ev.Type != EventAdd {
			continue
		}
		var values map[string]float64
		if err := json.Unmarshal([]byte(ev.Item), &values); err != nil {
			return nil, fmt.Errorf("failed to parse statistic event %d: %w", ev.Seq, err)
		}
		records = append(records, Statistic{
			Values:    values,
			RuntimeAt: ev.RuntimeAt,
			CreatorID: ev.CreatorID,
		})
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].RuntimeAt.Before(records[j].RuntimeAt)
	})
	return &Statistics{records: records}, nil
}

// Len returns the number of statistic records.
func (s *Statistics) Len() int { return len(s.records) }

// Records returns all records in runtime order.
func (s *Statistics) Records() []Statistic { return s.records }

// Names returns the sorted set of value names seen across all records.
func (s *Statistics) Names() []string {
	seen := map[string]bool{}
	for _, r := range s.records {
		for name := range r.Values {
			seen[name] = true
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Point is one (time, value) sample of a named series.
type Point struct {
	RuntimeAt time.Time
	Value     float64
}

// Series extracts the time-ordered samples of one named value.
func (s *Statistics) Series(name string) []Point {
	var points []Point
	for _, r := range s.records {
		if v, ok := r.Values[name]; ok {
			points = append(points, Point{RuntimeAt: r.RuntimeAt, Value: v})
		}
	}
	return points
}

// Last returns the most recent sample of a named value.
func (s *Statistics) Last(name string) (Point, bool) {
	points := s.Series(name)
	if len(points) == 0 {
		return Point{}, false
	}
	return points[len(points)-1], true
}
