package export

import (
	"fmt"
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/mattn/go-runewidth"
)

var (
	colorLink      = color.RGBA{0xcc, 0xcc, 0xcc, 0xff}
	colorMarkerRim = color.RGBA{0x00, 0x00, 0x00, 0xff}
	colorText      = color.RGBA{0x11, 0x11, 0x11, 0xff}
	colorSubtle    = color.RGBA{0x66, 0x66, 0x66, 0xff}
	colorBackdrop  = color.RGBA{0xff, 0xff, 0xff, 0xff}
)

// Approximate advance of one terminal cell of 14px Arial.
const labelCellWidth = 8.0

func css(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// parseColor accepts anything go-colorful can parse plus CSS "white"/"black".
// Unknown values fall back to fallback.
func parseColor(s string, fallback color.RGBA) color.RGBA {
	switch s {
	case "white":
		return color.RGBA{0xff, 0xff, 0xff, 0xff}
	case "black":
		return color.RGBA{0, 0, 0, 0xff}
	}
	c, err := colorful.Hex(expandHex(s))
	if err != nil {
		return fallback
	}
	r, g, b := c.RGB255()
	return color.RGBA{r, g, b, 0xff}
}

// expandHex turns "#abc" into "#aabbcc".
func expandHex(s string) string {
	if len(s) != 4 || s[0] != '#' {
		return s
	}
	return string([]byte{'#', s[1], s[1], s[2], s[2], s[3], s[3]})
}

func labelWidth(s string) float64 {
	return float64(runewidth.StringWidth(s)) * labelCellWidth
}

func ceil(v float64) int {
	return int(math.Ceil(v))
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= max {
		return s
	}
	if max <= 3 {
		return runewidth.Truncate(s, max, "")
	}
	return runewidth.Truncate(s, max, "...")
}
