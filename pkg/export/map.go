package export

import (
	"bytes"
	"fmt"
	"html"
	"image/color"
	"image/png"
	"io"
	"strings"

	"git.sr.ht/~sbinet/gg"
	"github.com/ajstarks/svgo"
	"golang.org/x/image/font/basicfont"

	"github.com/Dicklesworthstone/dplace_viewer/pkg/binding"
	"github.com/Dicklesworthstone/dplace_viewer/pkg/geomap"
	"github.com/Dicklesworthstone/dplace_viewer/pkg/model"
	"github.com/Dicklesworthstone/dplace_viewer/pkg/render"
)

const mapTitleHeight = 28.0

// MapOptions configures map snapshots.
type MapOptions struct {
	Title string
}

// MapView is a map widget mounted into its own container, fed from a results
// payload. It is how snapshots and the preview server draw maps.
type MapView struct {
	Container *geomap.Container
	Widget    *geomap.Widget
	Societies *binding.Value[[]model.SocietyResult]
	Selected  *binding.Value[[]model.Region]
	Region    *binding.Value[string]
}

// NewMapView mounts a widget showing the societies in results with the given
// regions selected. width and height of zero use the container defaults.
func NewMapView(results *model.Results, selected []model.Region, atlas *geomap.Atlas, width, height float64) (*MapView, error) {
	var societies []model.SocietyResult
	if results != nil {
		societies = results.Societies
	}
	v := &MapView{
		Container: geomap.NewContainer(geomap.DefaultElementID, width, height, atlas),
		Societies: binding.New(societies),
		Selected:  binding.New(selected),
		Region:    binding.New(""),
	}
	v.Widget = geomap.NewWidget(v.Container, geomap.Bindings{
		Societies:       v.Societies,
		Region:          v.Region,
		SelectedRegions: v.Selected,
	}, geomap.Options{ID: geomap.DefaultElementID})
	if err := v.Widget.Err(); err != nil {
		return nil, err
	}
	return v, nil
}

// Surface returns the mounted surface.
func (v *MapView) Surface() *geomap.VectorSurface {
	s, _ := v.Container.Current()
	return s
}

// Close unmounts the widget.
func (v *MapView) Close() {
	v.Widget.Close()
}

// RenderMap draws the current state of a surface (regions, selection, hover
// and markers) as an SVG document into w.
func RenderMap(w io.Writer, s *geomap.VectorSurface, opts MapOptions) error {
	if s == nil || s.Removed() {
		return render.Fail("map", "draw", geomap.ErrSurfaceRemoved)
	}
	var buf bytes.Buffer
	if err := render.Safe("map", "draw", func() error {
		renderMapSVG(&buf, s, opts)
		return nil
	}); err != nil {
		return err
	}
	_, err := buf.WriteTo(w)
	return render.Fail("map", "write", err)
}

// RenderMapPNG draws the surface as a PNG image into w.
func RenderMapPNG(w io.Writer, s *geomap.VectorSurface, opts MapOptions) error {
	if s == nil || s.Removed() {
		return render.Fail("map", "draw", geomap.ErrSurfaceRemoved)
	}
	var buf bytes.Buffer
	if err := render.Safe("map", "draw", func() error {
		return renderMapPNG(&buf, s, opts)
	}); err != nil {
		return err
	}
	_, err := buf.WriteTo(w)
	return render.Fail("map", "write", err)
}

func mapTop(opts MapOptions) float64 {
	if opts.Title == "" {
		return 0
	}
	return mapTitleHeight
}

// ringPath projects a ring into SVG path data.
func ringPath(p geomap.Projection, ring []model.LonLat) string {
	var sb strings.Builder
	for i, pt := range ring {
		x, y := p.Point(model.ToLatLng(pt))
		if i == 0 {
			sb.WriteString("M")
		} else {
			sb.WriteString(" L")
		}
		fmt.Fprintf(&sb, "%.1f,%.1f", x, y)
	}
	sb.WriteString(" Z")
	return sb.String()
}

func regionFill(s *geomap.VectorSurface, code string) (fill string, opacity float64) {
	st := s.Style()
	fill, opacity = st.Fill, st.FillOpacity
	if s.IsSelected(code) {
		fill = st.SelectedFill
	}
	if s.Hovered() == code {
		opacity = st.HoverOpacity
	}
	return fill, opacity
}

func markerFill(s *geomap.VectorSurface, m geomap.Marker) string {
	if m.Color != "" {
		return m.Color
	}
	return s.Style().MarkerFill
}

func selectedNames(s *geomap.VectorSurface) []string {
	var names []string
	for _, code := range s.SelectedRegions() {
		name := s.RegionName(code)
		if name == "" {
			name = code
		}
		names = append(names, name)
	}
	return names
}

func renderMapSVG(w io.Writer, s *geomap.VectorSurface, opts MapOptions) {
	p := s.Projection()
	st := s.Style()
	top := mapTop(opts)
	width, height := ceil(p.Width), ceil(p.Height+top)

	canvas := svg.New(w)
	canvas.Start(width, height)
	canvas.Rect(0, 0, width, height, fmt.Sprintf(`fill="%s"`, html.EscapeString(st.Background)))
	if opts.Title != "" {
		canvas.Text(8, 20, opts.Title, `class="title"`,
			fmt.Sprintf("fill:%s;font-size:16px;font-family:Arial;font-weight:bold", css(colorText)))
	}

	canvas.Gtransform(fmt.Sprintf("translate(0, %s)", num(top)))
	canvas.Gid("regions")
	for _, r := range s.Atlas().Regions() {
		var d []string
		for _, poly := range r.Polygons {
			for _, ring := range poly.Rings {
				d = append(d, ringPath(p, ring))
			}
		}
		fill, opacity := regionFill(s, r.Code)
		class := "region"
		if s.IsSelected(r.Code) {
			class += " selected"
		}
		fmt.Fprintf(canvas.Writer,
			`<path class="%s" data-code="%s" d="%s" fill="%s" fill-opacity="%s" fill-rule="evenodd" stroke="%s" stroke-width="%s"><title>%s</title></path>`+"\n",
			class, html.EscapeString(r.Code), strings.Join(d, " "), html.EscapeString(fill), num(opacity),
			html.EscapeString(st.Stroke), num(st.StrokeWidth), html.EscapeString(r.Name))
	}
	canvas.Gend()

	canvas.Gid("markers")
	for _, m := range s.Markers() {
		x, y := p.Point(m.LatLng)
		fmt.Fprintf(canvas.Writer,
			`<circle class="marker" data-id="%s" cx="%.1f" cy="%.1f" r="%s" fill="%s" stroke="%s" stroke-width="1"><title>%s</title></circle>`+"\n",
			html.EscapeString(m.ID), x, y, num(st.MarkerRadius), html.EscapeString(markerFill(s, m)),
			html.EscapeString(st.MarkerStroke), html.EscapeString(m.Name))
	}
	canvas.Gend()
	canvas.Gend()

	if names := selectedNames(s); len(names) > 0 {
		canvas.Text(8, height-8, "Selected: "+strings.Join(names, ", "), `class="selection"`,
			fmt.Sprintf("fill:%s;font-size:12px;font-family:Arial", css(colorSubtle)))
	}
	canvas.End()
}

func renderMapPNG(w io.Writer, s *geomap.VectorSurface, opts MapOptions) error {
	p := s.Projection()
	st := s.Style()
	top := mapTop(opts)
	width, height := ceil(p.Width), ceil(p.Height+top)

	dc := gg.NewContext(width, height)
	dc.SetColor(parseColor(st.Background, colorBackdrop))
	dc.Clear()
	dc.SetFontFace(basicfont.Face7x13)
	if opts.Title != "" {
		dc.SetColor(colorText)
		dc.DrawStringAnchored(opts.Title, 8, 14, 0, 0.5)
	}

	dc.Push()
	dc.Translate(0, top)
	dc.SetFillRuleEvenOdd()
	for _, r := range s.Atlas().Regions() {
		for _, poly := range r.Polygons {
			for _, ring := range poly.Rings {
				dc.NewSubPath()
				for i, pt := range ring {
					x, y := p.Point(model.ToLatLng(pt))
					if i == 0 {
						dc.MoveTo(x, y)
					} else {
						dc.LineTo(x, y)
					}
				}
				dc.ClosePath()
			}
		}
		fill, opacity := regionFill(s, r.Code)
		c := parseColor(fill, colorSubtle)
		dc.SetColor(color.NRGBA{c.R, c.G, c.B, uint8(opacity * 255)})
		dc.Fill()
	}

	for _, m := range s.Markers() {
		x, y := p.Point(m.LatLng)
		dc.DrawCircle(x, y, st.MarkerRadius)
		dc.SetColor(parseColor(markerFill(s, m), colorSubtle))
		dc.FillPreserve()
		dc.SetColor(parseColor(st.MarkerStroke, colorMarkerRim))
		dc.SetLineWidth(1)
		dc.Stroke()
	}
	dc.Pop()

	if names := selectedNames(s); len(names) > 0 {
		dc.SetColor(colorSubtle)
		dc.DrawStringAnchored(truncate("Selected: "+strings.Join(names, ", "), width/7), 8, float64(height)-10, 0, 0.5)
	}
	return png.Encode(w, dc.Image())
}
