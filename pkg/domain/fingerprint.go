package domain

import "fmt"

// VersionFingerprint captures the state of the code that produced a trial.
type VersionFingerprint struct {
	Type         string `json:"type,omitempty" yaml:"type,omitempty"` // "git" or empty when untracked
	Commit       string `json:"commit,omitempty" yaml:"commit,omitempty"`
	ActiveBranch string `json:"active_branch,omitempty" yaml:"active_branch,omitempty"`
	Dirty        bool   `json:"dirty" yaml:"dirty"`
	DiffSHA      string `json:"diff_sha,omitempty" yaml:"diff_sha,omitempty"`
}

// HostFingerprint captures the execution environment of a trial.
type HostFingerprint struct {
	User     string            `json:"user,omitempty" yaml:"user,omitempty"`
	Hostname string            `json:"hostname,omitempty" yaml:"hostname,omitempty"`
	OS       string            `json:"os,omitempty" yaml:"os,omitempty"`
	Arch     string            `json:"arch,omitempty" yaml:"arch,omitempty"`
	EnvVars  map[string]string `json:"env_vars,omitempty" yaml:"env_vars,omitempty"`
}

// DiffVersions lists the code conflicts between a stored fingerprint and
// the one observed now. An empty stored fingerprint never conflicts: the
// original run was not version-controlled.
func DiffVersions(stored, found VersionFingerprint) []Conflict {
	if stored == (VersionFingerprint{}) {
		return nil
	}
	var conflicts []Conflict
	add := func(field, s, f string) {
		if s != f {
			conflicts = append(conflicts, Conflict{
				Kind: ConflictCode, Field: field, Stored: s, Found: f,
			})
		}
	}
	add("commit", stored.Commit, found.Commit)
	add("diff_sha", stored.DiffSHA, found.DiffSHA)
	add("dirty", fmt.Sprintf("%t", stored.Dirty), fmt.Sprintf("%t", found.Dirty))
	return conflicts
}

// DiffHosts lists the environment conflicts between a stored fingerprint
// and the one observed now. Hostname and user are informational only;
// what breaks reproducibility is the captured env vars and the platform.
func DiffHosts(stored, found HostFingerprint) []Conflict {
	var conflicts []Conflict
	add := func(field, s, f string) {
		if s != f {
			conflicts = append(conflicts, Conflict{
				Kind: ConflictEnv, Field: field, Stored: s, Found: f,
			})
		}
	}
	add("os", stored.OS, found.OS)
	add("arch", stored.Arch, found.Arch)
	for name, sv := range stored.EnvVars {
		add("env:"+name, sv, found.EnvVars[name])
	}
	for name, fv := range found.EnvVars {
		if _, ok := stored.EnvVars[name]; !ok {
			add("env:"+name, "", fv)
		}
	}
	return conflicts
}
