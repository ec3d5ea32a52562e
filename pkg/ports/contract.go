package ports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epistimio/kleio/pkg/domain"
)

// RunStoreContract verifies that a Store implementation adheres to the
// interface contract, in particular the atomicity promises of Register
// and CompareAndSwapStatus as far as they are observable from one
// process.
func RunStoreContract(t *testing.T, store Store) {
	ctx := context.Background()

	newTrial := func(lr string) *domain.Trial {
		cmd := []string{"python", "train.py", "--lr", lr}
		config := map[string]string{"_pos_0": "python", "_pos_1": "train.py", "lr": lr}
		return domain.NewTrial(cmd, config, domain.Refers{})
	}

	t.Run("Register and Load", func(t *testing.T) {
		trial := newTrial("0.1")
		require.NoError(t, store.Register(ctx, trial))

		loaded, err := store.Load(ctx, trial.ID)
		require.NoError(t, err)
		assert.Equal(t, trial.ID, loaded.ID)
		assert.Equal(t, trial.Commandline, loaded.Commandline)
		assert.Equal(t, trial.Configuration, loaded.Configuration)
	})

	t.Run("Register duplicate", func(t *testing.T) {
		trial := newTrial("0.2")
		require.NoError(t, store.Register(ctx, trial))

		err := store.Register(ctx, trial)
		assert.ErrorIs(t, err, domain.ErrDuplicateTrial)
	})

	t.Run("Load non-existent", func(t *testing.T) {
		_, err := store.Load(ctx, "ffffffffffffffff")
		assert.ErrorIs(t, err, domain.ErrTrialNotFound)
	})

	t.Run("Resolve short id", func(t *testing.T) {
		trial := newTrial("0.3")
		require.NoError(t, store.Register(ctx, trial))

		full, err := store.Resolve(ctx, trial.ID[:7])
		require.NoError(t, err)
		assert.Equal(t, trial.ID, full)

		_, err = store.Resolve(ctx, "zzzzzzz")
		assert.ErrorIs(t, err, domain.ErrTrialNotFound)
	})

	t.Run("Events are sequenced per stream", func(t *testing.T) {
		trial := newTrial("0.4")
		require.NoError(t, store.Register(ctx, trial))

		for _, line := range []string{"epoch 1", "epoch 2", "epoch 3"} {
			_, err := store.Append(ctx, domain.NewEvent(
				trial.ID, domain.AttrStdout, domain.EventAdd, line, time.Time{}))
			require.NoError(t, err)
		}
		// A second stream sequences independently.
		_, err := store.Append(ctx, domain.NewEvent(
			trial.ID, domain.AttrTags, domain.EventAdd, "demo", time.Time{}))
		require.NoError(t, err)

		events, err := store.Events(ctx, trial.ID, domain.AttrStdout, 0)
		require.NoError(t, err)
		require.Len(t, events, 3)
		for i, ev := range events {
			assert.Equal(t, uint64(i+1), ev.Seq)
		}
		assert.Equal(t, "epoch 1", events[0].Item)

		since, err := store.Events(ctx, trial.ID, domain.AttrStdout, 2)
		require.NoError(t, err)
		require.Len(t, since, 1)
		assert.Equal(t, "epoch 3", since[0].Item)

		tags, err := store.Events(ctx, trial.ID, domain.AttrTags, 0)
		require.NoError(t, err)
		require.Len(t, tags, 1)
		assert.Equal(t, uint64(1), tags[0].Seq)
	})

	t.Run("Status starts new and follows CAS", func(t *testing.T) {
		trial := newTrial("0.5")
		require.NoError(t, store.Register(ctx, trial))

		status, err := store.Status(ctx, trial.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusNew, status)

		require.NoError(t, store.CompareAndSwapStatus(
			ctx, trial.ID, domain.StatusNew, domain.StatusReserved, time.Time{}))

		status, err = store.Status(ctx, trial.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusReserved, status)
	})

	t.Run("CAS refuses a stale expectation", func(t *testing.T) {
		trial := newTrial("0.6")
		require.NoError(t, store.Register(ctx, trial))

		require.NoError(t, store.CompareAndSwapStatus(
			ctx, trial.ID, domain.StatusNew, domain.StatusReserved, time.Time{}))

		// A second claimant still expects "new" and must lose.
		err := store.CompareAndSwapStatus(
			ctx, trial.ID, domain.StatusNew, domain.StatusReserved, time.Time{})
		assert.ErrorIs(t, err, domain.ErrRaceCondition)

		status, err := store.Status(ctx, trial.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusReserved, status)
	})

	t.Run("Reports and tags filtering", func(t *testing.T) {
		trial := newTrial("0.7")
		require.NoError(t, store.Register(ctx, trial))

		report := domain.Report{
			ID:          trial.ID,
			Tags:        []string{"contract", "tagged"},
			Commandline: trial.Commandline,
			Registry:    domain.Registry{Status: domain.StatusNew},
		}
		require.NoError(t, store.SaveReport(ctx, report))

		loaded, err := store.LoadReport(ctx, trial.ID)
		require.NoError(t, err)
		assert.Equal(t, report.Tags, loaded.Tags)

		listed, err := store.ListReports(ctx, []string{"contract"})
		require.NoError(t, err)
		require.Len(t, listed, 1)
		assert.Equal(t, trial.ID, listed[0].ID)

		none, err := store.ListReports(ctx, []string{"contract", "absent"})
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("Children", func(t *testing.T) {
		parent := newTrial("0.8")
		require.NoError(t, store.Register(ctx, parent))

		child := domain.NewTrial(parent.Commandline, parent.Configuration, domain.Refers{
			ParentID:  parent.ID,
			Timestamp: time.Now().UTC(),
		})
		require.NoError(t, store.Register(ctx, child))

		children, err := store.Children(ctx, parent.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{child.ID}, children)
	})
}
