package model

import (
	"fmt"
	"math"
)

// LonLat is a coordinate pair in GeoJSON order: [longitude, latitude].
type LonLat [2]float64

// Lon returns the longitude.
func (c LonLat) Lon() float64 { return c[0] }

// Lat returns the latitude.
func (c LonLat) Lat() float64 { return c[1] }

// Validate reports coordinates outside the WGS84 range.
func (c LonLat) Validate() error {
	if math.IsNaN(c[0]) || math.IsNaN(c[1]) {
		return fmt.Errorf("coordinates contain NaN")
	}
	if c[0] < -180 || c[0] > 180 {
		return fmt.Errorf("longitude %v out of range", c[0])
	}
	if c[1] < -90 || c[1] > 90 {
		return fmt.Errorf("latitude %v out of range", c[1])
	}
	return nil
}

// LatLng is a coordinate pair in map-surface order.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ToLatLng converts stored [lon, lat] coordinates into the latitude-first
// order map surfaces expect. This is the only place the axis order flips.
func ToLatLng(c LonLat) LatLng {
	return LatLng{Lat: c[1], Lng: c[0]}
}
