// Package hostinfo captures the execution environment of a trial.
package hostinfo

import (
	"os"
	"os/user"
	"runtime"

	"github.com/epistimio/kleio/pkg/domain"
)

// Fingerprint snapshots the current host. envVars lists the environment
// variables whose values become part of the fingerprint and are compared
// on resume (e.g. CUDA_VISIBLE_DEVICES).
func Fingerprint(envVars []string) domain.HostFingerprint {
	fp := domain.HostFingerprint{
		OS:   runtime.GOOS,
		Arch: runtime.GOARCH,
	}

	if u, err := user.Current(); err == nil {
		fp.User = u.Username
	}
	if name, err := os.Hostname(); err == nil {
		fp.Hostname = name
	}

	if len(envVars) > 0 {
		fp.EnvVars = make(map[string]string, len(envVars))
		for _, name := range envVars {
			fp.EnvVars[name] = os.Getenv(name)
		}
	}
	return fp
}
