// Package color derives deterministic cover colors for books.
package color

import (
	"fmt"
	"unicode/utf16"
)

// Fixed saturation and lightness for cover colors; only the hue varies.
const (
	coverSaturation = 0.7
	coverLightness  = 0.5
)

// Hue maps a title to a hue in [0, 360).
// The hash runs over UTF-16 code units with 32-bit wraparound, so stored colors
// stay stable for titles imported by earlier versions of the web client.
func Hue(title string) int {
	var h int32
	for _, c := range utf16.Encode([]rune(title)) {
		h = (h << 5) - h + int32(c)
	}
	hue := int(h % 360)
	if hue < 0 {
		hue = -hue
	}
	return hue
}

// ForBook returns the CSS color stored as a book's cover color.
// The same title always yields the same color.
func ForBook(title string) string {
	return fmt.Sprintf("hsl(%d, %d%%, %d%%)", Hue(title), int(coverSaturation*100), int(coverLightness*100))
}
