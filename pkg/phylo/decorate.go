package phylo

import (
	"fmt"
	"strconv"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/Dicklesworthstone/dplace_viewer/pkg/model"
)

// DefaultHue is used when a variable has no known distinct values or a coded
// value is not numeric.
const DefaultHue = 0.0

// Marker geometry.
const (
	MarkerRadius = 4.5
	MarkerStep   = 15.0
)

// RightAnglePath returns SVG path data for a link drawn as an elbow: from the
// parent it runs along the parent's offset to the child's row, then across to
// the child.
func RightAnglePath(link Link) string {
	s, t := link.Source, link.Target
	return fmt.Sprintf("M%s,%s %s,%s %s,%s",
		num(s.Y), num(s.X),
		num(s.Y), num(t.X),
		num(t.Y), num(t.X))
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Hue computes the marker hue for a coded value: value * 240 / distinct.
// A variable with a single distinct value always renders hue 0, and one
// with no known values renders DefaultHue.
func Hue(value float64, distinct int) float64 {
	switch {
	case distinct <= 0:
		return DefaultHue
	case distinct == 1:
		return 0
	}
	return value * 240 / float64(distinct)
}

// HueColor renders a hue as the fully saturated, half-lightness color used
// for markers.
func HueColor(hue float64) colorful.Color {
	return colorful.Hsl(hue, 1, 0.5)
}

// HSL formats a hue as a CSS hsl() value.
func HSL(hue float64) string {
	return fmt.Sprintf("hsl(%s,100%%,50%%)", num(hue))
}

// ValueMarker is one colored circle drawn in front of a leaf label.
type ValueMarker struct {
	Variable   string
	CodedValue string
	Hue        float64
	Offset     float64 // Horizontal offset from the leaf position
}

// LeafDecoration collects what is drawn next to a leaf.
type LeafDecoration struct {
	Leaf        *LayoutNode
	Markers     []ValueMarker
	LabelOffset float64
	Societies   []model.Society
}

// Decorate matches leaves against the societies in results and computes their
// markers. Every leaf gets a decoration; leaves without a matching society
// carry only a label at offset zero.
func Decorate(l *Layout, results *model.Results) []LeafDecoration {
	index := results.SocietiesByKey()

	out := make([]LeafDecoration, 0, len(l.Leaves))
	for _, leaf := range l.Leaves {
		d := LeafDecoration{Leaf: leaf}
		offset := 0.0
		for _, sr := range index[leaf.Name] {
			d.Societies = append(d.Societies, sr.Society)
			for _, vcv := range sr.VariableCodedValues {
				hue := DefaultHue
				if v, ok := vcv.Numeric(); ok {
					hue = Hue(v, results.DistinctValueCount(vcv.VariableKey()))
				}
				d.Markers = append(d.Markers, ValueMarker{
					Variable:   vcv.VariableKey(),
					CodedValue: vcv.CodedValue,
					Hue:        hue,
					Offset:     offset,
				})
				offset += MarkerStep
			}
		}
		d.LabelOffset = offset
		out = append(out, d)
	}
	return out
}
