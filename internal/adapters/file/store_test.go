package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epistimio/kleio/internal/adapters/file"
	"github.com/epistimio/kleio/pkg/domain"
	"github.com/epistimio/kleio/pkg/ports"
)

func TestFileStore_Contract(t *testing.T) {
	ports.RunStoreContract(t, file.New(t.TempDir()))
}

func TestFileStore_LayoutOnDisk(t *testing.T) {
	base := t.TempDir()
	store := file.New(base)
	ctx := context.Background()

	trial := domain.NewTrial([]string{"python", "train.py"}, nil, domain.Refers{})
	require.NoError(t, store.Register(ctx, trial))
	_, err := store.Append(ctx, domain.NewEvent(
		trial.ID, domain.AttrStdout, domain.EventAdd, "hello", time.Time{}))
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(base, "trials", trial.ID+".json"))
	assert.FileExists(t, filepath.Join(base, "events", trial.ID, "stdout.jsonl"))
}

func TestFileLocker_Contention(t *testing.T) {
	base := t.TempDir()
	locker := file.NewLocker(base)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "producer:abc", time.Minute)
	require.NoError(t, err)

	ctxTimeout, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctxTimeout, "producer:abc", time.Minute)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, unlock(ctx))

	unlock2, err := locker.Lock(ctx, "producer:abc", time.Minute)
	require.NoError(t, err)
	require.NoError(t, unlock2(ctx))
}

func TestFileLocker_BreaksStaleLock(t *testing.T) {
	base := t.TempDir()
	locker := file.NewLocker(base)
	ctx := context.Background()

	// Plant a lock file that looks abandoned by a crashed process.
	dir := filepath.Join(base, "locks")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, "producer_stale.lock")
	require.NoError(t, os.WriteFile(path, []byte("12345"), 0o644))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	ctxTimeout, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	unlock, err := locker.Lock(ctxTimeout, "producer:stale", time.Minute)
	require.NoError(t, err)
	require.NoError(t, unlock(ctx))
}
