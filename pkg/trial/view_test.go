package trial_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epistimio/kleio/internal/adapters/memory"
	"github.com/epistimio/kleio/pkg/domain"
	"github.com/epistimio/kleio/pkg/ports"
	"github.com/epistimio/kleio/pkg/trial"
)

// seedLineage registers a parent with output before and after the branch
// point, and a child branched at that point.
func seedLineage(t *testing.T, store ports.Store) (parent, child *domain.Trial, branchAt time.Time) {
	t.Helper()
	ctx := context.Background()

	parent = domain.NewTrial(
		[]string{"python", "train.py", "--lr", "0.1"},
		map[string]string{"lr": "0.1", "epochs": "10"},
		domain.Refers{})
	require.NoError(t, store.Register(ctx, parent))

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	branchAt = base.Add(time.Minute)

	appendAt := func(tr *domain.Trial, attr domain.Attribute, item string, at time.Time) {
		_, err := store.Append(ctx, domain.NewEvent(tr.ID, attr, domain.EventAdd, item, at))
		require.NoError(t, err)
	}
	appendAt(parent, domain.AttrStdout, "epoch 1", base)
	appendAt(parent, domain.AttrStdout, "epoch 2", branchAt)
	appendAt(parent, domain.AttrStdout, "epoch 3", base.Add(2*time.Minute))
	appendAt(parent, domain.AttrStatistics, `{"loss":0.5}`, base)
	appendAt(parent, domain.AttrStatistics, `{"loss":0.1}`, base.Add(2*time.Minute))

	child = domain.NewTrial(
		[]string{"python", "train.py", "--lr", "0.01"},
		map[string]string{"lr": "0.01"},
		domain.Refers{ParentID: parent.ID, Timestamp: branchAt})
	require.NoError(t, store.Register(ctx, child))
	appendAt(child, domain.AttrStdout, "epoch 3 (retake)", base.Add(3*time.Minute))

	return parent, child, branchAt
}

func TestView_ClipsParentAtBranchPoint(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	_, child, _ := seedLineage(t, store)

	view, err := trial.NewView(ctx, store, child.ID)
	require.NoError(t, err)
	require.NotNil(t, view.Parent())

	lines, err := view.Stdout(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"epoch 1", "epoch 2", "epoch 3 (retake)"}, lines,
		"parent output after the branch point is invisible")
}

func TestView_ParentViewIsUnclipped(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	parent, _, _ := seedLineage(t, store)

	view, err := trial.NewView(ctx, store, parent.ID)
	require.NoError(t, err)
	assert.Nil(t, view.Parent())

	lines, err := view.Stdout(ctx)
	require.NoError(t, err)
	assert.Len(t, lines, 3, "the parent itself sees its whole history")
}

func TestView_StatisticsClipped(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	_, child, _ := seedLineage(t, store)

	view, err := trial.NewView(ctx, store, child.ID)
	require.NoError(t, err)

	stats, err := view.Statistics(ctx)
	require.NoError(t, err)
	last, ok := stats.Last("loss")
	require.True(t, ok)
	assert.Equal(t, 0.5, last.Value, "the post-branch sample belongs to the parent only")
}

func TestView_ConfigurationOverlay(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	_, child, _ := seedLineage(t, store)

	view, err := trial.NewView(ctx, store, child.ID)
	require.NoError(t, err)

	config := view.Configuration()
	assert.Equal(t, "0.01", config["lr"], "child override wins")
	assert.Equal(t, "10", config["epochs"], "inherited from the parent")
}

func TestView_Commandlines(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	_, child, _ := seedLineage(t, store)

	view, err := trial.NewView(ctx, store, child.ID)
	require.NoError(t, err)

	lines, err := view.Commandlines(ctx)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "python train.py --lr 0.1", lines[0].Commandline)
	assert.Equal(t, "python train.py --lr 0.01", lines[1].Commandline)
}

func TestView_StatusOfFreshTrial(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	tr := domain.NewTrial([]string{"echo", "hi"}, nil, domain.Refers{})
	require.NoError(t, store.Register(ctx, tr))

	view, err := trial.NewView(ctx, store, tr.ID)
	require.NoError(t, err)

	status, err := view.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusNew, status)

	start, err := view.StartTime(ctx)
	require.NoError(t, err)
	assert.True(t, start.IsZero())
}
