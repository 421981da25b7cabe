package geomap

import "github.com/Dicklesworthstone/dplace_viewer/pkg/model"

// BBox is minLon, minLat, maxLon, maxLat.
type BBox [4]float64

func emptyBBox() BBox {
	return BBox{180, 90, -180, -90}
}

func (b *BBox) extend(p model.LonLat) {
	if p.Lon() < b[0] {
		b[0] = p.Lon()
	}
	if p.Lat() < b[1] {
		b[1] = p.Lat()
	}
	if p.Lon() > b[2] {
		b[2] = p.Lon()
	}
	if p.Lat() > b[3] {
		b[3] = p.Lat()
	}
}

func (b BBox) union(o BBox) BBox {
	return BBox{min(b[0], o[0]), min(b[1], o[1]), max(b[2], o[2]), max(b[3], o[3])}
}

// Contains reports whether the coordinate lies inside the box.
func (b BBox) Contains(ll model.LatLng) bool {
	return ll.Lng >= b[0] && ll.Lng <= b[2] && ll.Lat >= b[1] && ll.Lat <= b[3]
}

// Polygon is a GeoJSON polygon: the first ring is the outer boundary, the
// rest are holes.
type Polygon struct {
	Rings [][]model.LonLat
	BBox  BBox
}

func newPolygon(rings [][]model.LonLat) Polygon {
	p := Polygon{Rings: rings, BBox: emptyBBox()}
	for _, r := range rings {
		for _, pt := range r {
			p.BBox.extend(pt)
		}
	}
	return p
}

// Contains reports whether ll is inside the outer ring and outside every hole.
func (p Polygon) Contains(ll model.LatLng) bool {
	if len(p.Rings) == 0 || !p.BBox.Contains(ll) {
		return false
	}
	if !inRing(ll, p.Rings[0]) {
		return false
	}
	for _, hole := range p.Rings[1:] {
		if inRing(ll, hole) {
			return false
		}
	}
	return true
}

// inRing is the even-odd ray casting test.
func inRing(ll model.LatLng, ring []model.LonLat) bool {
	n := len(ring)
	if n < 3 {
		return false
	}
	inside := false
	x, y := ll.Lng, ll.Lat
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := ring[i].Lon(), ring[i].Lat()
		xj, yj := ring[j].Lon(), ring[j].Lat()
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}
