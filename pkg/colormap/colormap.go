// Package colormap assigns visually distinct colors to a set of identifiers.
//
// The assignment depends only on the set of ids: duplicates and input order
// are ignored, so the same visible set always renders with the same colors.
package colormap

import (
	"sort"

	"github.com/lucasb-eyer/go-colorful"
)

// Saturation and lightness shared by every generated color.
const (
	Saturation = 0.65
	Lightness  = 0.5
)

// Map is an id to color assignment.
type Map map[string]colorful.Color

// Generate returns a color for each distinct id. Hues are spread evenly around
// the wheel in sorted id order.
func Generate(ids []string) Map {
	uniq := unique(ids)
	out := make(Map, len(uniq))
	if len(uniq) == 0 {
		return out
	}
	step := 360.0 / float64(len(uniq))
	for i, id := range uniq {
		out[id] = colorful.Hsl(float64(i)*step, Saturation, Lightness)
	}
	return out
}

// Hex returns the colors as "#rrggbb" strings, the form surfaces consume.
func (m Map) Hex() map[string]string {
	out := make(map[string]string, len(m))
	for id, c := range m {
		out[id] = c.Clamped().Hex()
	}
	return out
}

// IDs returns the mapped ids in sorted order.
func (m Map) IDs() []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func unique(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
