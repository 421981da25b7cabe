package geomap

import (
	"fmt"
	"slices"

	"github.com/Dicklesworthstone/dplace_viewer/pkg/model"
)

// Surface is a mounted vector map. Widgets drive it through this interface
// only; hosts decide what concrete surface they hand out.
type Surface interface {
	AddMarker(id string, m Marker)
	RemoveAllMarkers()
	// SetMarkerColors sets marker fill colors by marker id.
	SetMarkerColors(colors map[string]string)

	ClearSelectedRegions()
	SetSelectedRegions(codes []string)
	SelectedRegions() []string
	RegionName(code string) string

	// OnRegionOver registers the single region-over listener.
	OnRegionOver(fn func(code string))
	// OnRegionSelected registers the single selection listener. It receives
	// the code that changed, its new state, and the full selection.
	OnRegionSelected(fn func(code string, selected bool, selection []string))

	UpdateSize()
	Remove()
}

// Marker is a point drawn on the map.
type Marker struct {
	ID     string
	Name   string
	LatLng model.LatLng
	Color  string
}

// Style holds the colors a surface is drawn with.
type Style struct {
	Background   string
	Fill         string
	FillOpacity  float64
	Stroke       string
	StrokeWidth  float64
	HoverOpacity float64
	SelectedFill string
	MarkerFill   string
	MarkerStroke string
	MarkerRadius float64
}

// DefaultStyle is the region style of the results page map.
func DefaultStyle() Style {
	return Style{
		Background:   "white",
		Fill:         "#428bca",
		FillOpacity:  1,
		Stroke:       "#357ebd",
		StrokeWidth:  0,
		HoverOpacity: 0.8,
		SelectedFill: "#113",
		MarkerFill:   "#777777",
		MarkerStroke: "#505050",
		MarkerRadius: 4,
	}
}

// SurfaceOptions configures a mount.
type SurfaceOptions struct {
	Style             Style
	RegionsSelectable bool
}

// VectorSurface is the in-process Surface: an atlas of selectable regions
// plus markers, projected into its container's size.
type VectorSurface struct {
	id        string
	container *Container
	atlas     *Atlas
	opts      SurfaceOptions
	proj      Projection

	markers  map[string]*Marker
	order    []string
	selected []string
	hovered  string
	removed  bool

	onOver     func(code string)
	onSelected func(code string, selected bool, selection []string)
}

var _ Surface = (*VectorSurface)(nil)

// ID returns the element id the surface is mounted under.
func (s *VectorSurface) ID() string { return s.id }

// Atlas returns the regions drawn by the surface.
func (s *VectorSurface) Atlas() *Atlas { return s.atlas }

// Projection returns the current pixel projection.
func (s *VectorSurface) Projection() Projection { return s.proj }

// Style returns the surface style.
func (s *VectorSurface) Style() Style { return s.opts.Style }

// Removed reports whether Remove has been called.
func (s *VectorSurface) Removed() bool { return s.removed }

// Hovered returns the code of the region last hovered, if any.
func (s *VectorSurface) Hovered() string { return s.hovered }

func (s *VectorSurface) AddMarker(id string, m Marker) {
	if s.removed {
		return
	}
	m.ID = id
	if _, ok := s.markers[id]; !ok {
		s.order = append(s.order, id)
	}
	s.markers[id] = &m
}

func (s *VectorSurface) RemoveAllMarkers() {
	if s.removed {
		return
	}
	s.markers = make(map[string]*Marker)
	s.order = nil
}

func (s *VectorSurface) SetMarkerColors(colors map[string]string) {
	for id, c := range colors {
		if m, ok := s.markers[id]; ok {
			m.Color = c
		}
	}
}

// Markers returns copies of the markers in insertion order.
func (s *VectorSurface) Markers() []Marker {
	out := make([]Marker, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.markers[id])
	}
	return out
}

// Marker looks up a marker by id.
func (s *VectorSurface) Marker(id string) (Marker, bool) {
	m, ok := s.markers[id]
	if !ok {
		return Marker{}, false
	}
	return *m, true
}

// ClearSelectedRegions deselects everything, notifying the selection
// listener once per deselected region.
func (s *VectorSurface) ClearSelectedRegions() {
	if s.removed {
		return
	}
	prev := s.selected
	s.selected = nil
	for _, code := range prev {
		s.emitSelected(code, false)
	}
}

// SetSelectedRegions adds codes to the selection, notifying the selection
// listener once per newly selected region. Unknown codes are ignored.
func (s *VectorSurface) SetSelectedRegions(codes []string) {
	if s.removed {
		return
	}
	for _, code := range codes {
		if s.add(code) {
			s.emitSelected(code, true)
		}
	}
}

// SelectedRegions returns the selected codes in selection order.
func (s *VectorSurface) SelectedRegions() []string {
	return slices.Clone(s.selected)
}

// IsSelected reports whether code is selected.
func (s *VectorSurface) IsSelected(code string) bool {
	return slices.Contains(s.selected, code)
}

func (s *VectorSurface) RegionName(code string) string {
	if r, ok := s.atlas.Region(code); ok {
		return r.Name
	}
	return ""
}

func (s *VectorSurface) OnRegionOver(fn func(code string)) {
	s.onOver = fn
}

func (s *VectorSurface) OnRegionSelected(fn func(code string, selected bool, selection []string)) {
	s.onSelected = fn
}

// UpdateSize refits the projection to the container's current size.
func (s *VectorSurface) UpdateSize() {
	if s.removed {
		return
	}
	s.proj = NewProjection(s.container.Width, s.container.Height)
}

// Remove unmounts the surface from its container. Later calls are no-ops.
func (s *VectorSurface) Remove() {
	if s.removed {
		return
	}
	s.removed = true
	s.onOver = nil
	s.onSelected = nil
	s.container.release(s)
}

// Hover moves the pointer over a region.
func (s *VectorSurface) Hover(code string) error {
	if s.removed {
		return ErrSurfaceRemoved
	}
	if _, ok := s.atlas.Region(code); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownRegion, code)
	}
	s.hovered = code
	if s.onOver != nil {
		s.onOver(code)
	}
	return nil
}

// HoverAt hovers the region under a coordinate. It reports false when the
// coordinate is over no region.
func (s *VectorSurface) HoverAt(ll model.LatLng) (string, bool, error) {
	if s.removed {
		return "", false, ErrSurfaceRemoved
	}
	r, ok := s.atlas.RegionAt(ll)
	if !ok {
		s.hovered = ""
		return "", false, nil
	}
	return r.Code, true, s.Hover(r.Code)
}

// ToggleRegion flips the selection state of a region, as a click would.
func (s *VectorSurface) ToggleRegion(code string) error {
	if err := s.userSelectable(code); err != nil {
		return err
	}
	if s.IsSelected(code) {
		s.selected = slices.DeleteFunc(s.selected, func(c string) bool { return c == code })
		s.emitSelected(code, false)
		return nil
	}
	s.add(code)
	s.emitSelected(code, true)
	return nil
}

// SelectRegions selects several regions in one user action, notifying the
// selection listener once.
func (s *VectorSurface) SelectRegions(codes ...string) error {
	for _, code := range codes {
		if err := s.userSelectable(code); err != nil {
			return err
		}
	}
	last := ""
	for _, code := range codes {
		if s.add(code) {
			last = code
		}
	}
	if last != "" {
		s.emitSelected(last, true)
	}
	return nil
}

func (s *VectorSurface) userSelectable(code string) error {
	if s.removed {
		return ErrSurfaceRemoved
	}
	if !s.opts.RegionsSelectable {
		return fmt.Errorf("geomap: regions are not selectable on %q", s.id)
	}
	if _, ok := s.atlas.Region(code); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownRegion, code)
	}
	return nil
}

func (s *VectorSurface) add(code string) bool {
	if _, ok := s.atlas.Region(code); !ok || s.IsSelected(code) {
		return false
	}
	s.selected = append(s.selected, code)
	return true
}

func (s *VectorSurface) emitSelected(code string, selected bool) {
	if s.onSelected != nil {
		s.onSelected(code, selected, s.SelectedRegions())
	}
}
