package color

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHue(t *testing.T) {
	tests := []struct {
		title string
		hue   int
	}{
		{"", 0},
		{"a", 97},
		{"ab", 225}, // 97*31 + 98 = 3105
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.hue, Hue(tt.title))
		})
	}
}

func TestHue_InRangeForLongTitles(t *testing.T) {
	titles := []string{
		strings.Repeat("The Name of the Wind ", 20),
		"Cien años de soledad",
		"三体",
		"🙂 emoji title",
	}
	for _, title := range titles {
		hue := Hue(title)
		assert.GreaterOrEqual(t, hue, 0)
		assert.Less(t, hue, 360)
	}
}

func TestForBook_Deterministic(t *testing.T) {
	assert.Equal(t, "hsl(97, 70%, 50%)", ForBook("a"))
	assert.Equal(t, ForBook("Dune"), ForBook("Dune"))
	assert.NotEqual(t, ForBook("Dune"), ForBook("Emma"))
}
