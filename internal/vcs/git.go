// Package vcs captures the git fingerprint of the code a trial runs.
package vcs

import (
	"crypto/sha256"
	"encoding/hex"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/epistimio/kleio/pkg/domain"
)

// Fingerprint inspects the repository containing scriptPath and returns
// its version fingerprint. A script outside any git repository yields a
// zero fingerprint (untracked code never conflicts on resume).
func Fingerprint(scriptPath string) domain.VersionFingerprint {
	dir := filepath.Dir(scriptPath)

	commit, err := git(dir, "rev-parse", "HEAD")
	if err != nil {
		return domain.VersionFingerprint{}
	}

	fp := domain.VersionFingerprint{
		Type:   "git",
		Commit: commit,
	}

	// Detached HEAD leaves the branch empty.
	if branch, err := git(dir, "rev-parse", "--abbrev-ref", "HEAD"); err == nil && branch != "HEAD" {
		fp.ActiveBranch = branch
	}

	if status, err := git(dir, "status", "--porcelain"); err == nil {
		fp.Dirty = status != ""
	}

	// The diff sha pins the exact uncommitted changes: two dirty
	// checkouts only match if their diffs match.
	if diff, err := git(dir, "diff", "HEAD"); err == nil {
		sum := sha256.Sum256([]byte(diff))
		fp.DiffSHA = hex.EncodeToString(sum[:])
	}

	return fp
}

func git(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
