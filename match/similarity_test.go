package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJaroWinkler(t *testing.T) {
	assert.Equal(t, 1.0, jaroWinkler("dps", "dps"))
	assert.Equal(t, 0.0, jaroWinkler("", "dps"))
	assert.Equal(t, 0.0, jaroWinkler("abc", "xyz"))

	s := jaroWinkler("dps", "dpsn")
	assert.Greater(t, s, 0.9)
	assert.Less(t, s, 1.0)
	assert.Greater(t, jaroWinkler("dps", "dpsn"), jaroWinkler("dps", "sdp"), "prefix boost")
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, cosine([]float32{1, 0}, []float32{2, 0}), 1e-6)
	assert.InDelta(t, 0.0, cosine([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.Equal(t, 0.0, cosine([]float32{1, 0}, []float32{-1, 0}), "negative similarity clamps to zero")
}

func TestRound4(t *testing.T) {
	assert.Equal(t, 102.5, round4(102.5))
	assert.Equal(t, 66.6667, round4(200.0/3))
}
