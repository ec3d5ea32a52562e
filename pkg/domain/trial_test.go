package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewTrial_IdentityIsDeterministic(t *testing.T) {
	cmd := []string{"python", "train.py", "--lr", "0.1"}
	config := map[string]string{"lr": "0.1", "_pos_0": "train.py"}

	a := NewTrial(cmd, config, Refers{})
	b := NewTrial(cmd, config, Refers{})
	assert.Equal(t, a.ID, b.ID, "same command and config must resume the same trial")
	assert.Len(t, a.ID, 128, "sha512 hex")
}

func TestNewTrial_IdentityDependsOnInputs(t *testing.T) {
	cmd := []string{"python", "train.py", "--lr", "0.1"}
	config := map[string]string{"_pos_0": "python", "_pos_1": "train.py", "lr": "0.1"}
	base := NewTrial(cmd, config, Refers{})

	changed := map[string]string{"_pos_0": "python", "_pos_1": "train.py", "lr": "0.2"}
	changedConfig := NewTrial(cmd, changed, Refers{})
	assert.NotEqual(t, base.ID, changedConfig.ID)

	other := map[string]string{"_pos_0": "python", "_pos_1": "eval.py", "lr": "0.1"}
	changedCmd := NewTrial([]string{"python", "eval.py", "--lr", "0.1"}, other, Refers{})
	assert.NotEqual(t, base.ID, changedCmd.ID,
		"positional arguments are part of the configuration, so a different script is a different trial")

	branched := NewTrial(cmd, config, Refers{ParentID: base.ID, Timestamp: time.Now()})
	assert.NotEqual(t, base.ID, branched.ID, "a branch is a distinct trial")
}

func TestNewTrial_FingerprintsDoNotChangeIdentity(t *testing.T) {
	cmd := []string{"python", "train.py"}
	a := NewTrial(cmd, nil, Refers{})
	b := NewTrial(cmd, nil, Refers{})
	b.Version = VersionFingerprint{Type: "git", Commit: "abc123"}
	b.Host = HostFingerprint{Hostname: "other-host"}

	assert.Equal(t, a.ID, b.ID, "fingerprints are compared on resume, not hashed")
}

func TestShortID(t *testing.T) {
	trial := NewTrial([]string{"echo", "hi"}, nil, Refers{})
	assert.Equal(t, trial.ID[:7], trial.ShortID())
	assert.Equal(t, "abc", ShortID("abc"))
}

func TestReport_HasTags(t *testing.T) {
	report := Report{Tags: []string{"exp1", "baseline"}}
	assert.True(t, report.HasTags(nil))
	assert.True(t, report.HasTags([]string{"exp1"}))
	assert.True(t, report.HasTags([]string{"baseline", "exp1"}))
	assert.False(t, report.HasTags([]string{"exp1", "other"}))
}
