package geomap

import (
	"math"

	"github.com/Dicklesworthstone/dplace_viewer/pkg/model"
)

// millerLimit is the projected y of the poles.
var millerLimit = millerY(90)

func millerY(lat float64) float64 {
	phi := lat * math.Pi / 180
	return 1.25 * math.Log(math.Tan(math.Pi/4+0.4*phi))
}

// Projection is a Miller cylindrical projection fitted into a pixel box,
// centered and aspect-preserving. y grows downwards.
type Projection struct {
	Width  float64
	Height float64
	scale  float64
}

// NewProjection fits the whole world into width x height pixels.
func NewProjection(width, height float64) Projection {
	p := Projection{Width: width, Height: height}
	if width > 0 && height > 0 {
		p.scale = math.Min(width/(2*math.Pi), height/(2*millerLimit))
	}
	return p
}

// Scale returns pixels per projected unit.
func (p Projection) Scale() float64 {
	return p.scale
}

// Point projects a coordinate to pixels.
func (p Projection) Point(ll model.LatLng) (x, y float64) {
	lat := math.Max(-90, math.Min(90, ll.Lat))
	mx := ll.Lng * math.Pi / 180
	my := millerY(lat)
	return p.Width/2 + mx*p.scale, p.Height/2 - my*p.scale
}

// Invert maps pixels back to a coordinate. A zero-sized projection yields the
// origin.
func (p Projection) Invert(x, y float64) model.LatLng {
	if p.scale == 0 {
		return model.LatLng{}
	}
	mx := (x - p.Width/2) / p.scale
	my := (p.Height/2 - y) / p.scale
	lat := (math.Atan(math.Exp(my/1.25)) - math.Pi/4) / 0.4
	return model.LatLng{Lat: lat * 180 / math.Pi, Lng: mx * 180 / math.Pi}
}
