// Package client is the library a tracked program embeds to log
// statistics against its own trial.
//
// A process launched by the consumer finds its trial and store
// coordinates in the environment (KLEIO_TRIAL_ID and friends). Run
// outside of a trial, the logger degrades to a no-op so the same program
// works tracked and untracked.
package client

import (
	"context"
	"os"
	"time"

	"github.com/epistimio/kleio/internal/adapters"
	"github.com/epistimio/kleio/internal/config"
	"github.com/epistimio/kleio/pkg/ports"
	"github.com/epistimio/kleio/pkg/trial"
)

// Logger writes statistics into the event log of the enclosing trial.
type Logger struct {
	store  ports.Store
	handle *trial.Handle
}

// FromEnv builds a logger from the KLEIO_* environment. Without a
// KLEIO_TRIAL_ID it returns a disabled logger and no error.
func FromEnv(ctx context.Context) (*Logger, error) {
	trialID := os.Getenv(config.EnvTrialID)
	if trialID == "" {
		return &Logger{}, nil
	}

	cfg, err := config.Resolve("")
	if err != nil {
		return nil, err
	}
	store, _, err := adapters.Open(cfg)
	if err != nil {
		return nil, err
	}
	handle, err := trial.Load(ctx, store, trialID)
	if err != nil {
		store.Close()
		return nil, err
	}
	return &Logger{store: store, handle: handle}, nil
}

// Enabled reports whether the process runs inside a tracked trial.
func (l *Logger) Enabled() bool { return l.handle != nil }

// TrialID returns the enclosing trial's ID, empty when disabled.
func (l *Logger) TrialID() string {
	if l.handle == nil {
		return ""
	}
	return l.handle.ID()
}

// Log records one statistic sample stamped now.
func (l *Logger) Log(ctx context.Context, values map[string]float64) error {
	return l.LogAt(ctx, values, time.Time{})
}

// LogAt records one statistic sample at an explicit point of the trial's
// timeline, for after-the-fact analysis inserts.
func (l *Logger) LogAt(ctx context.Context, values map[string]float64, runtimeAt time.Time) error {
	if l.handle == nil {
		return nil
	}
	return l.handle.LogStatistic(ctx, values, runtimeAt)
}

// Close releases the store connection.
func (l *Logger) Close() error {
	if l.store == nil {
		return nil
	}
	return l.store.Close()
}
