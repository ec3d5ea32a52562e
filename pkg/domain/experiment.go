package domain

import (
	"sort"
	"time"
)

// Experiment is a versioned description of a reproducible computation:
// the tag namespace grouping trials that ran the same study, with the
// metadata captured when the first trial was registered.
type Experiment struct {
	Name       string             `json:"name"`
	Parameters []string           `json:"parameters,omitempty"`
	Config     map[string]string  `json:"config,omitempty"`
	User       string             `json:"user,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
	Version    VersionFingerprint `json:"version"`
}

// ExperimentFromTrial derives the experiment description a trial belongs
// to. Parameter names are the configuration keys, sorted for stability.
func ExperimentFromTrial(name string, t *Trial) Experiment {
	params := make([]string, 0, len(t.Configuration))
	for k := range t.Configuration {
		params = append(params, k)
	}
	sort.Strings(params)
	return Experiment{
		Name:       name,
		Parameters: params,
		Config:     t.Configuration,
		User:       t.Host.User,
		CreatedAt:  t.SubmitTime,
		Version:    t.Version,
	}
}
