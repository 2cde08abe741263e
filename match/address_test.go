package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddressPattern(t *testing.T) {
	tests := []struct {
		name    string
		place   string
		words   []string
		address string
		want    bool
	}{
		{"initials", "rkp", nil, "r k puram", true},
		{"initials mid address", "rkp", nil, "sector 4 r k puram new delhi", true},
		{"initials spaced", "rk p", nil, "r k puram", true},
		{"word prefix", "", []string{"noida"}, "noida sector 30", true},
		{"word typo", "", []string{"noyda"}, "noida sector 30", true},
		{"initials then word", "rk", []string{"puram"}, "r k puram", true},
		{"word with typo within budget", "rk", []string{"purm"}, "r k puram", true},
		{"two wrong initials tolerated", "xyp", nil, "r k puram", true},
		{"three wrong initials rejected", "xyz", nil, "r k puram", false},
		{"unrelated word", "", []string{"chanakyapuri"}, "civil lines", false},
		{"too few tokens", "abcd", nil, "r k puram", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newAddressPattern(tt.place, tt.words, MaxAddressErrors)
			assert.NotNil(t, p)
			assert.Equal(t, tt.want, p.Match(tt.address))
		})
	}
}

func TestAddressPattern_Empty(t *testing.T) {
	assert.Nil(t, newAddressPattern("", nil, MaxAddressErrors))
	assert.Nil(t, newAddressPattern("  ", nil, MaxAddressErrors))
}
