package producer_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epistimio/kleio/internal/adapters/memory"
	"github.com/epistimio/kleio/internal/cmdline"
	"github.com/epistimio/kleio/internal/config"
	"github.com/epistimio/kleio/internal/hostinfo"
	"github.com/epistimio/kleio/internal/logging"
	"github.com/epistimio/kleio/pkg/domain"
	"github.com/epistimio/kleio/pkg/producer"
)

func newProducer(t *testing.T, cfg config.Config) (*producer.Producer, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	return producer.New(store, memory.NewLocker(), cfg, logging.NewNop(), nil), store
}

func TestBuild_RegistersNewTrial(t *testing.T) {
	prod, store := newProducer(t, config.Defaults())
	ctx := context.Background()

	h, err := prod.Build(ctx, []string{"python", "train.py", "--lr", "0.1"},
		producer.Options{Tags: []string{"exp1"}})
	require.NoError(t, err)

	loaded, err := store.Load(ctx, h.ID())
	require.NoError(t, err)
	assert.Equal(t, []string{"python", "train.py", "--lr", "0.1"}, loaded.Commandline)
	assert.Equal(t, "0.1", loaded.Configuration["lr"])

	tags, err := h.Tags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"exp1"}, tags)

	report, err := store.LoadReport(ctx, h.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusNew, report.Registry.Status)
}

func TestBuild_SameCommandResumesSameTrial(t *testing.T) {
	prod, _ := newProducer(t, config.Defaults())
	ctx := context.Background()

	a, err := prod.Build(ctx, []string{"python", "train.py", "--lr", "0.1"}, producer.Options{})
	require.NoError(t, err)

	// The two spellings normalize identically.
	b, err := prod.Build(ctx, []string{"python", "train.py", "--lr=0.1"}, producer.Options{})
	require.NoError(t, err)
	assert.Equal(t, a.ID(), b.ID())
}

func TestBuild_EmptyCommandline(t *testing.T) {
	prod, _ := newProducer(t, config.Defaults())
	_, err := prod.Build(context.Background(), nil, producer.Options{})
	assert.Error(t, err)
}

// registerWithFingerprints plants a trial the way a previous run on
// different code or host would have left it.
func registerWithFingerprints(t *testing.T, store *memory.Store, commandline []string,
	version domain.VersionFingerprint, host domain.HostFingerprint) *domain.Trial {
	t.Helper()

	parser := cmdline.New()
	configuration, err := parser.Parse(commandline)
	require.NoError(t, err)

	tr := domain.NewTrial(commandline, configuration, domain.Refers{})
	tr.Version = version
	tr.Host = host
	require.NoError(t, store.Register(context.Background(), tr))
	return tr
}

func TestBuild_CodeConflictBlocksResume(t *testing.T) {
	prod, store := newProducer(t, config.Defaults())
	ctx := context.Background()
	commandline := []string{"python", "train.py", "--lr", "0.1"}

	registerWithFingerprints(t, store, commandline,
		domain.VersionFingerprint{Type: "git", Commit: "deadbeef"},
		hostinfo.Fingerprint(nil))

	_, err := prod.Build(ctx, commandline, producer.Options{})
	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.True(t, conflict.Has(domain.ConflictCode))

	// Explicitly allowing the change resumes the stored trial.
	h, err := prod.Build(ctx, commandline, producer.Options{AllowCodeChange: true})
	require.NoError(t, err)
	assert.NotNil(t, h)
}

func TestBuild_EnvConflictBlocksResume(t *testing.T) {
	cfg := config.Defaults()
	cfg.HostEnvVars = []string{"KLEIO_TEST_DEVICES"}
	prod, store := newProducer(t, cfg)
	ctx := context.Background()
	commandline := []string{"python", "train.py"}

	t.Setenv("KLEIO_TEST_DEVICES", "0,1")
	stored := hostinfo.Fingerprint([]string{"KLEIO_TEST_DEVICES"})
	stored.EnvVars = map[string]string{"KLEIO_TEST_DEVICES": "2,3"}
	registerWithFingerprints(t, store, commandline, domain.VersionFingerprint{}, stored)

	_, err := prod.Build(ctx, commandline, producer.Options{})
	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.True(t, conflict.Has(domain.ConflictEnv))
	assert.False(t, conflict.Has(domain.ConflictCode),
		"an untracked original never raises code conflicts")

	_, err = prod.Build(ctx, commandline, producer.Options{AllowEnvChange: true})
	assert.NoError(t, err)

	_, err = prod.Build(ctx, commandline, producer.Options{AllowAnyChange: true})
	assert.NoError(t, err)
}

func TestReserve_ExactlyOneWinner(t *testing.T) {
	prod, _ := newProducer(t, config.Defaults())
	ctx := context.Background()
	commandline := []string{"python", "train.py"}

	a, err := prod.Build(ctx, commandline, producer.Options{})
	require.NoError(t, err)
	b, err := prod.Build(ctx, commandline, producer.Options{})
	require.NoError(t, err)
	require.Equal(t, a.ID(), b.ID())

	require.NoError(t, prod.Reserve(ctx, a, producer.Options{}))
	err = prod.Reserve(ctx, b, producer.Options{})
	assert.True(t, errors.Is(err, domain.ErrNotReservable) || errors.Is(err, domain.ErrRaceCondition),
		"the loser sees the claim, got %v", err)
}

func TestReserve_SwitchOverRevivesBrokenTrial(t *testing.T) {
	prod, _ := newProducer(t, config.Defaults())
	ctx := context.Background()

	h, err := prod.Build(ctx, []string{"python", "crash.py"}, producer.Options{})
	require.NoError(t, err)
	require.NoError(t, h.Reserve(ctx))
	require.NoError(t, h.Run(ctx))
	require.NoError(t, h.Broken(ctx))

	err = prod.Reserve(ctx, h, producer.Options{})
	assert.ErrorIs(t, err, domain.ErrNotReservable)

	require.NoError(t, prod.Reserve(ctx, h, producer.Options{SwitchOver: true}))
	status, err := h.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReserved, status)
}

func TestTransformer_IgnoringKeys(t *testing.T) {
	prod, _ := newProducer(t, config.Defaults())
	prod.SetTransformer(producer.Ignoring("output-dir"))
	ctx := context.Background()

	a, err := prod.Build(ctx, []string{"train", "--output-dir", "/tmp/a"}, producer.Options{})
	require.NoError(t, err)
	b, err := prod.Build(ctx, []string{"train", "--output-dir", "/tmp/b"}, producer.Options{})
	require.NoError(t, err)
	assert.Equal(t, a.ID(), b.ID(), "ignored keys do not distinguish trials")
}
