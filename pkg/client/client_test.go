package client_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epistimio/kleio/internal/adapters/file"
	"github.com/epistimio/kleio/internal/config"
	"github.com/epistimio/kleio/pkg/client"
	"github.com/epistimio/kleio/pkg/domain"
)

func TestFromEnv_DisabledOutsideTrial(t *testing.T) {
	t.Setenv(config.EnvTrialID, "")

	logger, err := client.FromEnv(context.Background())
	require.NoError(t, err)
	assert.False(t, logger.Enabled())
	assert.Empty(t, logger.TrialID())

	// Logging is a silent no-op so untracked runs just work.
	assert.NoError(t, logger.Log(context.Background(), map[string]float64{"loss": 1}))
	assert.NoError(t, logger.Close())
}

func TestFromEnv_LogsAgainstEnclosingTrial(t *testing.T) {
	base := t.TempDir()
	ctx := context.Background()

	// The consumer side: a registered trial in a shared file store.
	store := file.New(base)
	tr := domain.NewTrial([]string{"python", "train.py"}, nil, domain.Refers{})
	require.NoError(t, store.Register(ctx, tr))

	// The child side: coordinates arrive through the environment.
	t.Setenv(config.EnvDBType, "file")
	t.Setenv(config.EnvDBName, base)
	t.Setenv(config.EnvTrialID, tr.ID)

	logger, err := client.FromEnv(ctx)
	require.NoError(t, err)
	defer logger.Close()

	assert.True(t, logger.Enabled())
	assert.Equal(t, tr.ID, logger.TrialID())

	require.NoError(t, logger.Log(ctx, map[string]float64{"epoch": 1, "loss": 0.5}))
	require.NoError(t, logger.Log(ctx, map[string]float64{"epoch": 2, "loss": 0.4}))

	events, err := store.Events(ctx, tr.ID, domain.AttrStatistics, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)

	stats, err := domain.ParseStatistics(events)
	require.NoError(t, err)
	last, ok := stats.Last("loss")
	require.True(t, ok)
	assert.Equal(t, 0.4, last.Value)
}

func TestFromEnv_UnknownTrial(t *testing.T) {
	t.Setenv(config.EnvDBType, "file")
	t.Setenv(config.EnvDBName, t.TempDir())
	t.Setenv(config.EnvTrialID, "does-not-exist")

	_, err := client.FromEnv(context.Background())
	assert.ErrorIs(t, err, domain.ErrTrialNotFound)
}
