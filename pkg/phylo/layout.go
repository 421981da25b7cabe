// Package phylo computes the rectangular cluster layout used to draw language
// phylogenies: leaves on evenly spaced rows, internal nodes centered on their
// children, and horizontal offsets proportional to cumulative branch length.
package phylo

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/Dicklesworthstone/dplace_viewer/pkg/newick"
)

// Default layout constants.
const (
	DefaultWidth       = 700.0
	DefaultLeafSpacing = 18.0
	DefaultSeparation  = 8.0
)

// Options configures Cluster.
type Options struct {
	Width       float64 // Horizontal extent of the deepest leaf (pixels)
	LeafSpacing float64 // Canvas height contributed by each leaf
	Separation  float64 // Relative gap between adjacent leaves
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.LeafSpacing <= 0 {
		o.LeafSpacing = DefaultLeafSpacing
	}
	if o.Separation <= 0 {
		o.Separation = DefaultSeparation
	}
	return o
}

// LayoutNode is a tree node decorated with layout coordinates. X is the row
// position (vertical on screen); Y is the horizontal offset.
type LayoutNode struct {
	Name     string
	Length   float64
	RootDist float64
	Depth    int
	X        float64
	Y        float64
	Parent   *LayoutNode
	Children []*LayoutNode
}

// IsLeaf reports whether the node has no children.
func (n *LayoutNode) IsLeaf() bool {
	return len(n.Children) == 0
}

// Link is one parent-child edge.
type Link struct {
	Source *LayoutNode
	Target *LayoutNode
}

// Layout is the result of Cluster.
type Layout struct {
	Root   *LayoutNode
	Nodes  []*LayoutNode // Pre-order
	Leaves []*LayoutNode // Row order
	Links  []Link
	Width  float64
	Height float64
	Scale  LinearScale
}

// Cluster lays out the tree rooted at root.
func Cluster(root *newick.Node, opts Options) (*Layout, error) {
	if root == nil {
		return nil, fmt.Errorf("phylo: nil tree")
	}
	opts = opts.withDefaults()

	l := &Layout{Width: opts.Width}
	l.Root = l.build(root, nil, 0)

	l.Height = float64(len(l.Leaves)) * opts.LeafSpacing
	l.placeRows(opts.Separation)

	rootDists := make([]float64, len(l.Nodes))
	for i, n := range l.Nodes {
		rootDists[i] = n.RootDist
	}
	l.Scale = LinearScale{
		Domain: [2]float64{0, floats.Max(rootDists)},
		Range:  [2]float64{0, opts.Width},
	}
	for _, n := range l.Nodes {
		n.Y = l.Scale.Map(n.RootDist)
	}
	return l, nil
}

// build copies the parsed tree, sorting siblings ascending by branch length
// and accumulating root distances on the way down.
func (l *Layout) build(src *newick.Node, parent *LayoutNode, depth int) *LayoutNode {
	n := &LayoutNode{
		Name:   src.Name,
		Length: src.Length,
		Depth:  depth,
		Parent: parent,
	}
	if parent != nil {
		n.RootDist = parent.RootDist + src.Length
	}
	l.Nodes = append(l.Nodes, n)
	if parent != nil {
		l.Links = append(l.Links, Link{Source: parent, Target: n})
	}

	children := append([]*newick.Node(nil), src.Children...)
	sort.SliceStable(children, func(i, j int) bool {
		return children[i].Length < children[j].Length
	})
	for _, c := range children {
		n.Children = append(n.Children, l.build(c, n, depth+1))
	}
	if n.IsLeaf() {
		l.Leaves = append(l.Leaves, n)
	}
	return n
}

// placeRows assigns leaf rows with a constant separation, centers internal
// nodes on the mean of their children, then normalizes rows to [0, Height].
func (l *Layout) placeRows(separation float64) {
	if len(l.Leaves) == 0 {
		return
	}
	for i, leaf := range l.Leaves {
		leaf.X = float64(i) * separation
	}
	var center func(n *LayoutNode)
	center = func(n *LayoutNode) {
		if n.IsLeaf() {
			return
		}
		sum := 0.0
		for _, c := range n.Children {
			center(c)
			sum += c.X
		}
		n.X = sum / float64(len(n.Children))
	}
	center(l.Root)

	// Half a separation of padding on either side, as in d3's cluster layout.
	x0 := l.Leaves[0].X - separation/2
	x1 := l.Leaves[len(l.Leaves)-1].X + separation/2
	for _, n := range l.Nodes {
		n.X = (n.X - x0) / (x1 - x0) * l.Height
	}
}

// LinearScale maps a continuous domain onto a continuous range.
type LinearScale struct {
	Domain [2]float64
	Range  [2]float64
}

// Map applies the scale. A degenerate domain maps everything to Range[0].
func (s LinearScale) Map(v float64) float64 {
	span := s.Domain[1] - s.Domain[0]
	if span == 0 {
		return s.Range[0]
	}
	t := (v - s.Domain[0]) / span
	return s.Range[0] + t*(s.Range[1]-s.Range[0])
}
