package canonicalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJCSKeyOrdering(t *testing.T) {
	a, err := JCS(map[string]any{"b": 1, "a": 2})
	require.NoError(t, err)
	assert.Equal(t, `{"a":2,"b":1}`, string(a))
}

func TestDigestDeterminism(t *testing.T) {
	type rec struct {
		Text    string   `json:"text"`
		Targets []string `json:"targets"`
	}
	v := rec{Text: "increase NPS outreach", Targets: []string{"k1", "k2"}}

	d1, err := Digest(v)
	require.NoError(t, err)
	d2, err := Digest(v)
	require.NoError(t, err)
	assert.Equal(t, d1, d2)
	assert.Contains(t, d1, "sha256:")

	v.Text = "something else"
	d3, err := Digest(v)
	require.NoError(t, err)
	assert.NotEqual(t, d1, d3)
}
