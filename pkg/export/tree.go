package export

import (
	"bytes"
	"errors"
	"fmt"
	"image/png"
	"io"
	"strconv"

	"git.sr.ht/~sbinet/gg"
	"github.com/ajstarks/svgo"
	"golang.org/x/image/font/basicfont"

	"github.com/Dicklesworthstone/dplace_viewer/pkg/debug"
	"github.com/Dicklesworthstone/dplace_viewer/pkg/model"
	"github.com/Dicklesworthstone/dplace_viewer/pkg/newick"
	"github.com/Dicklesworthstone/dplace_viewer/pkg/phylo"
	"github.com/Dicklesworthstone/dplace_viewer/pkg/render"
)

// Tree canvas geometry.
const (
	treeMarginLeft  = 40.0
	treeLabelRoom   = 300.0
	treeBottomRoom  = 30.0
	treeTitleHeight = 28.0
)

// TreeOptions configures tree rendering.
type TreeOptions struct {
	Layout    phylo.Options
	HideTitle bool // Omit the tree name above the diagram
}

// treeCanvas is a diagram placed on a canvas.
type treeCanvas struct {
	d      *phylo.Diagram
	width  int
	height int
	top    float64
	title  string
}

func newTreeCanvas(d *phylo.Diagram, opts TreeOptions) treeCanvas {
	c := treeCanvas{d: d}
	if !opts.HideTitle && d.Name != "" {
		c.title = d.Name
		c.top = treeTitleHeight
	}
	w := d.Layout.Width + treeLabelRoom
	for _, leaf := range d.Leaves {
		right := leaf.Leaf.Y + leaf.LabelOffset + labelWidth(leaf.Leaf.Name) + 8
		w = max(w, right)
	}
	c.width = ceil(w + treeMarginLeft)
	c.height = ceil(d.Layout.Height + treeBottomRoom + c.top)
	return c
}

// RenderTree draws tree as an SVG document into w, decorating leaves with the
// coded values in results. Every call writes a complete, fresh document;
// nothing is written when rendering fails.
func RenderTree(w io.Writer, tree model.LanguageTree, results *model.Results, opts TreeOptions) error {
	d, err := buildDiagram(tree, results, opts)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := render.Safe("tree", "draw", func() error {
		renderTreeSVG(&buf, newTreeCanvas(d, opts))
		return nil
	}); err != nil {
		return err
	}
	_, err = buf.WriteTo(w)
	return render.Fail("tree", "write", err)
}

// RenderTreePNG draws tree as a PNG image into w.
func RenderTreePNG(w io.Writer, tree model.LanguageTree, results *model.Results, opts TreeOptions) error {
	d, err := buildDiagram(tree, results, opts)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := render.Safe("tree", "draw", func() error {
		return renderTreePNG(&buf, newTreeCanvas(d, opts))
	}); err != nil {
		return err
	}
	_, err = buf.WriteTo(w)
	return render.Fail("tree", "write", err)
}

func buildDiagram(tree model.LanguageTree, results *model.Results, opts TreeOptions) (*phylo.Diagram, error) {
	var d *phylo.Diagram
	var buildErr error
	if err := render.Safe("tree", "layout", func() error {
		d, buildErr = phylo.Build(tree, results, opts.Layout)
		return nil
	}); err != nil {
		return nil, err
	}
	var pe *newick.ParseError
	if errors.As(buildErr, &pe) {
		return nil, render.Fail("tree", "parse", buildErr)
	}
	if buildErr != nil {
		return nil, render.Fail("tree", "layout", buildErr)
	}
	debug.LogIf(d.MarkerCount() == 0, "export: tree %q has no coded-value markers", tree.Name)
	return d, nil
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func renderTreeSVG(w io.Writer, c treeCanvas) {
	canvas := svg.New(w)
	canvas.Start(c.width, c.height)
	canvas.Rect(0, 0, c.width, c.height, fmt.Sprintf("fill:%s", css(colorBackdrop)))
	if c.title != "" {
		canvas.Text(int(treeMarginLeft), 20, c.title, `class="title"`,
			fmt.Sprintf("fill:%s;font-size:16px;font-family:Arial;font-weight:bold", css(colorText)))
	}

	canvas.Gtransform(fmt.Sprintf("translate(%s, %s)", num(treeMarginLeft), num(c.top)))
	for _, link := range c.d.Layout.Links {
		canvas.Path(phylo.RightAnglePath(link), `class="link"`, `fill="none"`,
			fmt.Sprintf(`stroke="%s"`, css(colorLink)), `stroke-width="4px"`)
	}
	for _, leaf := range c.d.Leaves {
		n := leaf.Leaf
		canvas.Gtransform(fmt.Sprintf("translate(%s, %s)", num(n.Y), num(n.X)))
		for _, m := range leaf.Markers {
			fmt.Fprintf(canvas.Writer, `<circle class="marker" r="%s" stroke="%s" stroke-width="0.5" transform="translate(%s, 0)" fill="%s" />`+"\n",
				num(phylo.MarkerRadius), css(colorMarkerRim), num(m.Offset), phylo.HSL(m.Hue))
		}
		canvas.Text(0, 0, n.Name, `class="label"`, fmt.Sprintf(`dx="%s"`, num(leaf.LabelOffset)),
			`dy="4"`, `font-size="14px"`, `font-family="Arial"`)
		canvas.Gend()
	}
	canvas.Gend()
	canvas.End()
}

func renderTreePNG(w io.Writer, c treeCanvas) error {
	dc := gg.NewContext(c.width, c.height)
	dc.SetColor(colorBackdrop)
	dc.Clear()
	dc.SetFontFace(basicfont.Face7x13)

	if c.title != "" {
		dc.SetColor(colorText)
		dc.DrawStringAnchored(c.title, treeMarginLeft, 14, 0, 0.5)
	}

	dc.Translate(treeMarginLeft, c.top)
	dc.SetColor(colorLink)
	dc.SetLineWidth(4)
	for _, link := range c.d.Layout.Links {
		s, t := link.Source, link.Target
		dc.MoveTo(s.Y, s.X)
		dc.LineTo(s.Y, t.X)
		dc.LineTo(t.Y, t.X)
		dc.Stroke()
	}

	for _, leaf := range c.d.Leaves {
		n := leaf.Leaf
		for _, m := range leaf.Markers {
			dc.DrawCircle(n.Y+m.Offset, n.X, phylo.MarkerRadius)
			dc.SetColor(phylo.HueColor(m.Hue).Clamped())
			dc.FillPreserve()
			dc.SetColor(colorMarkerRim)
			dc.SetLineWidth(0.5)
			dc.Stroke()
		}
		dc.SetColor(colorText)
		dc.DrawStringAnchored(n.Name, n.Y+leaf.LabelOffset, n.X, 0, 0.5)
	}
	return png.Encode(w, dc.Image())
}
