package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffVersions(t *testing.T) {
	stored := VersionFingerprint{Type: "git", Commit: "abc", DiffSHA: "d1", Dirty: true}

	assert.Empty(t, DiffVersions(stored, stored), "identical fingerprints never conflict")
	assert.Empty(t, DiffVersions(VersionFingerprint{}, stored),
		"an untracked original never conflicts")

	found := VersionFingerprint{Type: "git", Commit: "def", DiffSHA: "d1", Dirty: true}
	conflicts := DiffVersions(stored, found)
	require.Len(t, conflicts, 1)
	assert.Equal(t, ConflictCode, conflicts[0].Kind)
	assert.Equal(t, "commit", conflicts[0].Field)
	assert.Equal(t, "abc", conflicts[0].Stored)
	assert.Equal(t, "def", conflicts[0].Found)

	clean := VersionFingerprint{Type: "git", Commit: "abc", Dirty: false}
	conflicts = DiffVersions(stored, clean)
	assert.Len(t, conflicts, 2, "diff sha and dirty flag both changed")
}

func TestDiffHosts(t *testing.T) {
	stored := HostFingerprint{
		User: "alice", Hostname: "box1", OS: "linux", Arch: "amd64",
		EnvVars: map[string]string{"CUDA_VISIBLE_DEVICES": "0"},
	}

	assert.Empty(t, DiffHosts(stored, stored))

	// User and hostname changes are informational, never conflicts.
	moved := stored
	moved.User = "bob"
	moved.Hostname = "box2"
	assert.Empty(t, DiffHosts(stored, moved))

	changed := stored
	changed.EnvVars = map[string]string{"CUDA_VISIBLE_DEVICES": "1"}
	conflicts := DiffHosts(stored, changed)
	require.Len(t, conflicts, 1)
	assert.Equal(t, ConflictEnv, conflicts[0].Kind)
	assert.Equal(t, "env:CUDA_VISIBLE_DEVICES", conflicts[0].Field)

	extra := stored
	extra.EnvVars = map[string]string{"CUDA_VISIBLE_DEVICES": "0", "OMP_NUM_THREADS": "4"}
	conflicts = DiffHosts(stored, extra)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "env:OMP_NUM_THREADS", conflicts[0].Field)
}

func TestConflictError(t *testing.T) {
	err := &ConflictError{
		TrialID: "0123456789abcdef",
		Conflicts: []Conflict{
			{Kind: ConflictCode, Field: "commit", Stored: "a", Found: "b"},
			{Kind: ConflictEnv, Field: "os", Stored: "linux", Found: "darwin"},
		},
	}
	assert.True(t, err.Has(ConflictCode))
	assert.True(t, err.Has(ConflictEnv))
	assert.False(t, err.Has(ConflictConfig))
	assert.Contains(t, err.Error(), "0123456")
	assert.Contains(t, err.Error(), "2 conflicts")
}
