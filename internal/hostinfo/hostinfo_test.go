package hostinfo_test

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/epistimio/kleio/internal/hostinfo"
)

func TestFingerprint(t *testing.T) {
	fp := hostinfo.Fingerprint(nil)
	assert.Equal(t, runtime.GOOS, fp.OS)
	assert.Equal(t, runtime.GOARCH, fp.Arch)
	assert.Nil(t, fp.EnvVars, "no tracked variables, no map")
}

func TestFingerprint_TracksEnvVars(t *testing.T) {
	t.Setenv("KLEIO_TEST_DEVICES", "0,1")

	fp := hostinfo.Fingerprint([]string{"KLEIO_TEST_DEVICES", "KLEIO_TEST_UNSET"})
	assert.Equal(t, "0,1", fp.EnvVars["KLEIO_TEST_DEVICES"])
	assert.Equal(t, "", fp.EnvVars["KLEIO_TEST_UNSET"],
		"unset variables are tracked as empty so setting them later is a change")
}
