package phylo

import (
	"fmt"
	"strings"

	"github.com/Dicklesworthstone/dplace_viewer/pkg/model"
	"github.com/Dicklesworthstone/dplace_viewer/pkg/newick"
)

// Diagram is a laid-out, decorated tree ready to be drawn.
type Diagram struct {
	Name   string
	Layout *Layout
	Leaves []LeafDecoration
}

// Build parses a language tree, lays it out and decorates its leaves with the
// coded values in results. results may be nil.
func Build(tree model.LanguageTree, results *model.Results, opts Options) (*Diagram, error) {
	if strings.TrimSpace(tree.NewickString) == "" {
		return nil, fmt.Errorf("tree %q has no newick string", tree.Name)
	}
	root, err := newick.Parse(tree.NewickString)
	if err != nil {
		return nil, fmt.Errorf("tree %q: %w", tree.Name, err)
	}
	layout, err := Cluster(root, opts)
	if err != nil {
		return nil, fmt.Errorf("tree %q: %w", tree.Name, err)
	}
	return &Diagram{
		Name:   tree.Name,
		Layout: layout,
		Leaves: Decorate(layout, results),
	}, nil
}

// MarkerCount returns the number of value markers across all leaves.
func (d *Diagram) MarkerCount() int {
	n := 0
	for _, leaf := range d.Leaves {
		n += len(leaf.Markers)
	}
	return n
}
