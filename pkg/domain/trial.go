package domain

import (
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Refers links a branched trial to its parent lineage.
type Refers struct {
	ParentID string `json:"parent_id,omitempty"`
	// Timestamp is the branch point: the child sees the parent's history
	// only up to this instant.
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// Trial is the immutable identity of one tracked execution.
//
// The ID hashes the lineage and the resolved configuration, which encodes
// the full command (positional arguments included) in canonical form, so
// different spellings of the same command resume the same trial. The
// version and host fingerprints are stored alongside but do not
// participate in hashing: they are compared on resume instead, so that
// running the same command with changed code surfaces as a conflict
// rather than a silent new trial.
type Trial struct {
	ID            string             `json:"id"`
	Refers        Refers             `json:"refers"`
	Commandline   []string           `json:"commandline"`
	Configuration map[string]string  `json:"configuration"`
	Version       VersionFingerprint `json:"version"`
	Host          HostFingerprint    `json:"host"`
	SubmitTime    time.Time          `json:"submit_time"`
}

// NewTrial builds a trial and computes its identity hash. A nil
// configuration derives positional entries from the command line, so the
// identity still encodes what runs.
func NewTrial(commandline []string, configuration map[string]string, refers Refers) *Trial {
	if configuration == nil {
		configuration = make(map[string]string, len(commandline))
		for i, arg := range commandline {
			configuration[fmt.Sprintf("_pos_%d", i)] = arg
		}
	}
	t := &Trial{
		Refers:        refers,
		Commandline:   commandline,
		Configuration: configuration,
		SubmitTime:    time.Now().UTC(),
	}
	t.ID = t.hash()
	return t
}

// hash derives the trial ID. Two trials with the same lineage and
// configuration must collide so that re-running a command resumes
// instead of duplicating.
func (t *Trial) hash() string {
	var b strings.Builder
	b.WriteString("refers:")
	b.WriteString(t.Refers.ParentID)
	if !t.Refers.Timestamp.IsZero() {
		b.WriteString("@")
		b.WriteString(t.Refers.Timestamp.UTC().Format(time.RFC3339Nano))
	}
	b.WriteString("\nconfig:")
	keys := make([]string, 0, len(t.Configuration))
	for k := range t.Configuration {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(t.Configuration[k])
		b.WriteString(";")
	}
	sum := sha512.Sum512([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// ShortID returns the first 7 characters of the trial ID.
func (t *Trial) ShortID() string {
	return ShortID(t.ID)
}

// ShortID abbreviates a trial ID for display.
func ShortID(id string) string {
	if len(id) <= 7 {
		return id
	}
	return id[:7]
}

// CommandlineString joins the command line for display and re-execution.
func (t *Trial) CommandlineString() string {
	return strings.Join(t.Commandline, " ")
}

// Registry is the mutable bookkeeping section of a trial report.
type Registry struct {
	Status    Status    `json:"status"`
	StartTime time.Time `json:"start_time,omitzero"`
	EndTime   time.Time `json:"end_time,omitzero"`
	Heartbeat time.Time `json:"heartbeat,omitzero"`
}

// Report is the queryable summary of a trial, refreshed on every save.
// Listing and status commands read reports instead of replaying event
// streams.
type Report struct {
	ID          string   `json:"id"`
	Tags        []string `json:"tags,omitempty"`
	Commandline []string `json:"commandline"`
	Registry    Registry `json:"registry"`
}

// HasTags reports whether the report carries every one of the given tags.
func (r Report) HasTags(tags []string) bool {
	for _, want := range tags {
		found := false
		for _, have := range r.Tags {
			if have == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
