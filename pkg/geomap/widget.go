// Package geomap renders geocoded societies on a selectable region map and
// keeps the map's region selection in two-way sync with a bound list.
//
// A Widget owns at most one Surface at a time. It mounts one into its Host
// when it becomes visible and removes it when hidden, so toggling visibility
// never leaves stale surfaces behind.
package geomap

import (
	"slices"

	"github.com/Dicklesworthstone/dplace_viewer/pkg/binding"
	"github.com/Dicklesworthstone/dplace_viewer/pkg/colormap"
	"github.com/Dicklesworthstone/dplace_viewer/pkg/debug"
	"github.com/Dicklesworthstone/dplace_viewer/pkg/model"
	"github.com/Dicklesworthstone/dplace_viewer/pkg/render"
)

const widgetName = "map"

// Visibility is the widget's mount state.
type Visibility int

const (
	Hidden Visibility = iota
	Visible
)

func (v Visibility) String() string {
	if v == Visible {
		return "visible"
	}
	return "hidden"
}

// syncState guards region selection sync against feedback loops. Surface
// events and binding changes are only acted on in syncIdle.
type syncState int

const (
	syncIdle syncState = iota
	syncPropagatingOut
	syncApplyingExternal
)

func (s syncState) String() string {
	switch s {
	case syncPropagatingOut:
		return "propagating-out"
	case syncApplyingExternal:
		return "applying-external"
	default:
		return "idle"
	}
}

// Bindings are the values a widget is wired to. Every field is optional.
type Bindings struct {
	Societies       *binding.Value[[]model.SocietyResult]
	Region          *binding.Value[string]
	SelectedRegions *binding.Value[[]model.Region]
	Visible         *binding.Value[bool]
}

// Options configures a widget.
type Options struct {
	ID    string // Element id to mount into; defaults to DefaultElementID
	Style *Style // Region style; defaults to DefaultStyle()
}

// Widget is the map view.
type Widget struct {
	host Host
	b    Bindings
	opts Options

	vis          Visibility
	surface      Surface
	localRegions []model.Region
	sync         syncState
	err          error

	watches   []func()
	visCancel func()
	closed    bool
}

// NewWidget wires a widget to its bindings. Without a Visible binding the
// widget shows immediately and stays visible until Close.
func NewWidget(host Host, b Bindings, opts Options) *Widget {
	if opts.ID == "" {
		opts.ID = DefaultElementID
	}
	w := &Widget{host: host, b: b, opts: opts}

	if b.Visible == nil {
		w.show()
		return w
	}
	w.visCancel = b.Visible.Watch(func(v bool) {
		if v {
			w.show()
		} else {
			w.hide()
		}
	})
	if b.Visible.Get() {
		w.show()
	}
	return w
}

// State returns the current visibility.
func (w *Widget) State() Visibility { return w.vis }

// Surface returns the mounted surface, or nil while hidden.
func (w *Widget) Surface() Surface { return w.surface }

// Err returns the failure of the last show or marker pass, if any. It always
// matches render.ErrRenderFailed.
func (w *Widget) Err() error { return w.err }

// LocalRegions returns the selection as last reconciled by the widget.
func (w *Widget) LocalRegions() []model.Region { return slices.Clone(w.localRegions) }

// Close hides the widget and stops following the Visible binding.
func (w *Widget) Close() {
	if w.visCancel != nil {
		w.visCancel()
		w.visCancel = nil
	}
	w.hide()
	w.closed = true
}

func (w *Widget) show() {
	if w.closed || w.vis == Visible {
		return
	}
	if w.host == nil {
		w.fail("mount", ErrNoHost)
		return
	}

	style := DefaultStyle()
	if w.opts.Style != nil {
		style = *w.opts.Style
	}
	s, err := w.host.Mount(w.opts.ID, SurfaceOptions{Style: style, RegionsSelectable: true})
	if err != nil {
		w.fail("mount", err)
		return
	}
	w.err = nil
	w.surface = s
	w.vis = Visible
	s.OnRegionOver(w.regionOver)
	s.OnRegionSelected(w.regionSelected)

	if w.b.Societies != nil {
		w.watches = append(w.watches, w.b.Societies.Watch(w.syncMarkers))
		w.syncMarkers(w.b.Societies.Get())
	}
	if w.b.SelectedRegions != nil {
		w.watches = append(w.watches, w.b.SelectedRegions.Watch(w.applyExternal))
		w.applyExternal(w.b.SelectedRegions.Get())
	}
	s.UpdateSize()
	debug.Log("geomap: mounted %q", w.opts.ID)
}

func (w *Widget) hide() {
	if w.vis == Hidden {
		return
	}
	for _, cancel := range w.watches {
		cancel()
	}
	w.watches = nil
	w.surface.Remove()
	w.surface = nil
	// A fresh surface starts unselected; reconcile from scratch on next show.
	w.localRegions = nil
	w.sync = syncIdle
	w.vis = Hidden
	debug.Log("geomap: removed %q", w.opts.ID)
}

func (w *Widget) fail(phase string, err error) {
	w.err = render.Fail(widgetName, phase, err)
	lg := debug.Component("geomap")
	lg.Warn().Err(w.err).Msg("map render failed")
}

// syncMarkers rebuilds every marker from the current society list.
func (w *Widget) syncMarkers(societies []model.SocietyResult) {
	s := w.surface
	if s == nil {
		return
	}
	err := render.Safe(widgetName, "markers", func() error {
		s.RemoveAllMarkers()
		ids := make([]string, 0, len(societies))
		for _, sr := range societies {
			soc := sr.Society
			id := soc.MarkerID()
			ids = append(ids, id)
			s.AddMarker(id, Marker{Name: soc.Name, LatLng: model.ToLatLng(soc.Location.Coordinates)})
		}
		s.SetMarkerColors(colormap.Generate(ids).Hex())
		return nil
	})
	if err != nil {
		w.err = err
	}
}

func (w *Widget) regionOver(code string) {
	if w.b.Region != nil {
		w.b.Region.Set(code)
	}
}

// regionSelected propagates a user selection out to the bound list.
func (w *Widget) regionSelected(_ string, _ bool, selection []string) {
	if w.sync != syncIdle || w.b.SelectedRegions == nil || w.surface == nil {
		return
	}
	regions := make([]model.Region, 0, len(selection))
	for _, code := range selection {
		regions = append(regions, model.Region{Code: code, Name: w.surface.RegionName(code)})
	}
	w.localRegions = regions
	if regionsEqual(regions, w.b.SelectedRegions.Get()) {
		return
	}
	w.sync = syncPropagatingOut
	w.b.SelectedRegions.Set(slices.Clone(regions))
	w.sync = syncIdle
}

// applyExternal pushes a changed bound list into the surface selection.
func (w *Widget) applyExternal(external []model.Region) {
	if w.sync != syncIdle || w.surface == nil {
		return
	}
	if regionsEqual(external, w.localRegions) {
		return
	}
	w.sync = syncApplyingExternal
	w.localRegions = slices.Clone(external)
	w.surface.ClearSelectedRegions()
	w.surface.SetSelectedRegions(model.RegionCodes(w.localRegions))
	w.sync = syncIdle
}

// regionsEqual treats nil and empty as equal.
func regionsEqual(a, b []model.Region) bool {
	return slices.Equal(a, b)
}
