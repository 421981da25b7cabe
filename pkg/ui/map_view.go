package ui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/Dicklesworthstone/dplace_viewer/pkg/geomap"
	"github.com/Dicklesworthstone/dplace_viewer/pkg/model"
)

const (
	regionListWidth = 34
	// Terminal cells are about twice as tall as wide.
	cellAspect = 2.0
)

// MapPane draws a mounted map surface as a character raster next to a
// region list. The pane never owns the surface; it only reads it and
// forwards cursor actions to it.
type MapPane struct {
	theme  Theme
	width  int
	height int
	cursor int

	// Region code per raster cell, rebuilt when the size or atlas changes.
	raster      [][]string
	rasterAtlas *geomap.Atlas
	rasterProj  geomap.Projection

	counts map[string]int // Societies per region code
}

// NewMapPane creates an empty map pane.
func NewMapPane(theme Theme) MapPane {
	return MapPane{theme: theme}
}

// SetSize updates the pane dimensions.
func (p *MapPane) SetSize(width, height int) {
	if width != p.width || height != p.height {
		p.raster = nil
	}
	p.width = width
	p.height = height
}

// GridSize returns the raster size in cells for the current pane size.
func (p *MapPane) GridSize() (cols, rows int) {
	cols = p.width - regionListWidth - 1
	if cols < 20 {
		cols = 20
	}
	rows = p.height
	if rows < 5 {
		rows = 5
	}
	return cols, rows
}

// PixelSize is the container size that makes one raster cell span one
// projected pixel horizontally and cellAspect pixels vertically.
func (p *MapPane) PixelSize() (width, height float64) {
	cols, rows := p.GridSize()
	return float64(cols), float64(rows) * cellAspect
}

// CountSocieties tallies societies per atlas region.
func (p *MapPane) CountSocieties(atlas *geomap.Atlas, societies []model.SocietyResult) {
	p.counts = make(map[string]int)
	if atlas == nil {
		return
	}
	for _, sr := range societies {
		if r, ok := atlas.RegionAt(model.ToLatLng(sr.Society.Location.Coordinates)); ok {
			p.counts[r.Code]++
		}
	}
}

// Cursor returns the index of the highlighted region.
func (p *MapPane) Cursor() int { return p.cursor }

// MoveUp moves the region cursor up.
func (p *MapPane) MoveUp() {
	if p.cursor > 0 {
		p.cursor--
	}
}

// MoveDown moves the region cursor down within n regions.
func (p *MapPane) MoveDown(n int) {
	if p.cursor < n-1 {
		p.cursor++
	}
}

// CursorRegion returns the region under the cursor.
func (p *MapPane) CursorRegion(atlas *geomap.Atlas) (*geomap.Region, bool) {
	if atlas == nil {
		return nil, false
	}
	regions := atlas.Regions()
	if p.cursor < 0 || p.cursor >= len(regions) {
		return nil, false
	}
	return regions[p.cursor], true
}

func (p *MapPane) ensureRaster(s *geomap.VectorSurface) {
	proj := s.Projection()
	if p.raster != nil && p.rasterAtlas == s.Atlas() && p.rasterProj == proj {
		return
	}
	cols, rows := p.GridSize()
	atlas := s.Atlas()
	p.raster = make([][]string, rows)
	for y := 0; y < rows; y++ {
		p.raster[y] = make([]string, cols)
		for x := 0; x < cols; x++ {
			ll := proj.Invert(float64(x)+0.5, (float64(y)+0.5)*cellAspect)
			if r, ok := atlas.RegionAt(ll); ok {
				p.raster[y][x] = r.Code
			}
		}
	}
	p.rasterAtlas = atlas
	p.rasterProj = proj
}

// View renders the pane. A nil surface renders the failure or a hint.
func (p *MapPane) View(s *geomap.VectorSurface, err error) string {
	if s == nil {
		msg := "Map hidden."
		if err != nil {
			return p.theme.ErrorText.Render("Map unavailable: " + err.Error())
		}
		return p.theme.MutedText.Render(msg)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, p.renderRaster(s), " ", p.renderRegionList(s))
}

func (p *MapPane) renderRaster(s *geomap.VectorSurface) string {
	p.ensureRaster(s)
	cols, rows := p.GridSize()

	type cell struct {
		glyph string
		color lipgloss.TerminalColor
	}
	grid := make([][]cell, rows)
	for y := range grid {
		grid[y] = make([]cell, cols)
		for x := range grid[y] {
			code := p.raster[y][x]
			switch {
			case code == "":
				grid[y][x] = cell{" ", nil}
			case s.IsSelected(code):
				grid[y][x] = cell{"█", p.theme.Selected}
			case code == s.Hovered():
				grid[y][x] = cell{"▓", p.theme.Hovered}
			default:
				grid[y][x] = cell{"░", p.theme.Land}
			}
		}
	}

	proj := s.Projection()
	for _, m := range s.Markers() {
		px, py := proj.Point(m.LatLng)
		x := int(math.Floor(px))
		y := int(math.Floor(py / cellAspect))
		if x < 0 || x >= cols || y < 0 || y >= rows {
			continue
		}
		color := m.Color
		if color == "" {
			color = s.Style().MarkerFill
		}
		grid[y][x] = cell{"●", ThemeFg(color)}
	}

	// Render runs of same-colored cells together.
	r := p.theme.Renderer
	var sb strings.Builder
	for y, row := range grid {
		var run strings.Builder
		var runColor lipgloss.TerminalColor
		flush := func() {
			if run.Len() == 0 {
				return
			}
			if runColor == nil {
				sb.WriteString(run.String())
			} else {
				sb.WriteString(r.NewStyle().Foreground(runColor).Render(run.String()))
			}
			run.Reset()
		}
		for _, c := range row {
			if c.color != runColor {
				flush()
				runColor = c.color
			}
			run.WriteString(c.glyph)
		}
		flush()
		if y < rows-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func (p *MapPane) renderRegionList(s *geomap.VectorSurface) string {
	t := p.theme
	var lines []string
	lines = append(lines, t.PrimaryBold.Render("Regions"))

	for i, region := range s.Atlas().Regions() {
		check := "[ ]"
		if s.IsSelected(region.Code) {
			check = "[x]"
		}
		name := runewidth.Truncate(region.Name, regionListWidth-14, "…")
		line := fmt.Sprintf("%s %-3s %s", check, region.Code, name)
		if n := p.counts[region.Code]; n > 0 {
			line += t.MutedText.Render(fmt.Sprintf(" (%d)", n))
		}
		prefix := "  "
		if i == p.cursor {
			prefix = "> "
			line = t.Cursor.Render(line)
		}
		lines = append(lines, prefix+line)
	}

	selected := s.SelectedRegions()
	lines = append(lines, "")
	if len(selected) == 0 {
		lines = append(lines, t.MutedText.Render("Selected: none"))
	} else {
		lines = append(lines, t.SecondaryText.Render("Selected: "+strings.Join(selected, ", ")))
	}
	return strings.Join(lines, "\n")
}
