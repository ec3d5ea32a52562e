package cmdline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_FlagsAndPositionals(t *testing.T) {
	p := New()
	config, err := p.Parse([]string{"python", "train.py", "--lr", "0.1", "--cuda"})
	require.NoError(t, err)

	assert.Equal(t, "python", config["_pos_0"])
	assert.Equal(t, "train.py", config["_pos_1"])
	assert.Equal(t, "0.1", config["lr"])
	assert.Equal(t, "true", config["cuda"], "bare flags read true")
}

func TestParse_EqualsAndSpaceAreCanonical(t *testing.T) {
	a, err := New().Parse([]string{"python", "--lr=0.1"})
	require.NoError(t, err)
	b, err := New().Parse([]string{"python", "--lr", "0.1"})
	require.NoError(t, err)
	assert.Equal(t, a, b, "the two spellings must hash identically")
}

func TestParse_MultiValueFlags(t *testing.T) {
	config, err := New().Parse([]string{"train", "--layers", "64", "128", "256"})
	require.NoError(t, err)
	assert.Equal(t, "64 128 256", config["layers"])
}

func TestParse_BranchOverlay(t *testing.T) {
	p := New()
	_, err := p.Parse([]string{"python", "train.py", "--lr", "0.1", "--epochs", "10"})
	require.NoError(t, err)

	config, err := p.Parse([]string{"--lr", "0.01"})
	require.NoError(t, err)
	assert.Equal(t, "0.01", config["lr"], "override wins")
	assert.Equal(t, "10", config["epochs"], "untouched values survive")
}

func TestParse_BranchRejectsNewPositionals(t *testing.T) {
	p := New()
	_, err := p.Parse([]string{"python", "train.py", "--lr", "0.1"})
	require.NoError(t, err)

	_, err = p.Parse([]string{"eval.py"})
	assert.ErrorContains(t, err, "positional")
}

func TestFormat_RoundTrip(t *testing.T) {
	p := New()
	_, err := p.Parse([]string{"python", "train.py", "--lr", "0.1", "--cuda"})
	require.NoError(t, err)

	out := p.Format(nil)
	assert.Equal(t, []string{"python", "train.py", "--lr", "0.1", "--cuda"}, out)
}

func TestFormat_OverridesAndAdditions(t *testing.T) {
	p := New()
	_, err := p.Parse([]string{"python", "train.py", "--lr", "0.1"})
	require.NoError(t, err)

	out := p.Format(map[string]string{"lr": "0.01", "momentum": "0.9"})
	assert.Equal(t, []string{"python", "train.py", "--lr", "0.01", "--momentum", "0.9"}, out)
}

func TestFormat_AddedFlagsAreSorted(t *testing.T) {
	p := New()
	_, err := p.Parse([]string{"train"})
	require.NoError(t, err)

	out := p.Format(map[string]string{"zeta": "1", "alpha": "2"})
	assert.Equal(t, []string{"train", "--alpha", "2", "--zeta", "1"}, out)
}
