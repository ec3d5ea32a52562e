package kleio_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kleio "github.com/epistimio/kleio"
	"github.com/epistimio/kleio/internal/config"
	"github.com/epistimio/kleio/pkg/domain"
	"github.com/epistimio/kleio/pkg/producer"
)

func memorySession(t *testing.T) *kleio.Session {
	t.Helper()
	t.Setenv(config.EnvDBType, "memory")

	session, err := kleio.Open()
	require.NoError(t, err)
	t.Cleanup(func() { session.Close() })
	return session
}

func TestOpen_WiresProducerAndConsumer(t *testing.T) {
	session := memorySession(t)

	require.NotNil(t, session.Producer)
	require.NotNil(t, session.Consumer)
	assert.Equal(t, "memory", session.Config.Database.Type)
}

func TestSession_TrackAndReserve(t *testing.T) {
	session := memorySession(t)
	ctx := context.Background()

	h, err := session.Producer.Build(ctx,
		[]string{"python", "train.py", "--lr", "0.1"},
		producer.Options{Tags: []string{"smoke"}})
	require.NoError(t, err)

	require.NoError(t, session.Producer.Reserve(ctx, h, producer.Options{}))
	status, err := h.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReserved, status)

	// The same command line resolves to the same trial.
	again, err := session.Producer.Build(ctx,
		[]string{"python", "train.py", "--lr=0.1"}, producer.Options{})
	require.NoError(t, err)
	assert.Equal(t, h.ID(), again.ID())
}
