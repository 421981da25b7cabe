// tree.go - Expandable clade view of a language phylogeny
package ui

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/goccy/go-json"
	"github.com/mattn/go-runewidth"

	"github.com/Dicklesworthstone/dplace_viewer/pkg/config"
	"github.com/Dicklesworthstone/dplace_viewer/pkg/debug"
	"github.com/Dicklesworthstone/dplace_viewer/pkg/phylo"
)

// TreeState is the persisted collapse state of the tree view, saved to
// .dv/tree-state.json so clades stay folded across sessions.
//
//	{
//	  "version": 1,
//	  "collapsed": {
//	    "bantu": {"0.1": true}
//	  }
//	}
//
// Keys are tree names, then clade paths (child indexes from the root).
// Clades are expanded unless listed. A corrupt or missing file means
// everything starts expanded.
type TreeState struct {
	Version   int                        `json:"version"`
	Collapsed map[string]map[string]bool `json:"collapsed"`
}

// TreeStateVersion is the current schema version for tree persistence
const TreeStateVersion = 1

// DefaultTreeState returns an empty TreeState.
func DefaultTreeState() *TreeState {
	return &TreeState{
		Version:   TreeStateVersion,
		Collapsed: make(map[string]map[string]bool),
	}
}

const treeStateFileName = "tree-state.json"

// TreeStatePath returns the path to the tree state file inside stateDir,
// defaulting to .dv in the current directory.
func TreeStatePath(stateDir string) string {
	if stateDir == "" {
		stateDir = config.Dir
	}
	return filepath.Join(stateDir, treeStateFileName)
}

// CladeNode is one row of the tree view.
type CladeNode struct {
	Layout     *phylo.LayoutNode
	Decoration *phylo.LeafDecoration // Set on leaves only
	Children   []*CladeNode
	Parent     *CladeNode
	Expanded   bool
	Depth      int
	Path       string
	Leaves     int
}

// TreeModel manages the clade view of one diagram.
type TreeModel struct {
	diagram  *phylo.Diagram
	root     *CladeNode
	flatList []*CladeNode
	cursor   int
	theme    Theme
	width    int
	height   int
	offset   int // Index of first visible row

	stateDir string
	persist  bool
}

// NewTreeModel creates an empty tree model
func NewTreeModel(theme Theme) TreeModel {
	return TreeModel{theme: theme}
}

// SetStateDir enables persistence of collapse state under dir.
func (t *TreeModel) SetStateDir(dir string) {
	t.stateDir = dir
	t.persist = true
}

// SetSize updates the available dimensions for the tree view
func (t *TreeModel) SetSize(width, height int) {
	t.width = width
	t.height = height
	t.ensureVisible()
}

// Build replaces the displayed diagram. A nil diagram clears the view.
func (t *TreeModel) Build(d *phylo.Diagram) {
	t.diagram = d
	t.root = nil
	t.flatList = nil
	t.cursor = 0
	t.offset = 0
	if d == nil || d.Layout == nil || d.Layout.Root == nil {
		return
	}

	decorations := make(map[*phylo.LayoutNode]*phylo.LeafDecoration, len(d.Leaves))
	for i := range d.Leaves {
		decorations[d.Leaves[i].Leaf] = &d.Leaves[i]
	}

	var build func(n *phylo.LayoutNode, parent *CladeNode, path string) *CladeNode
	build = func(n *phylo.LayoutNode, parent *CladeNode, path string) *CladeNode {
		node := &CladeNode{
			Layout:     n,
			Decoration: decorations[n],
			Parent:     parent,
			Expanded:   true,
			Depth:      n.Depth,
			Path:       path,
		}
		if n.IsLeaf() {
			node.Leaves = 1
		}
		for i, c := range n.Children {
			child := build(c, node, path+"."+strconv.Itoa(i))
			node.Children = append(node.Children, child)
			node.Leaves += child.Leaves
		}
		return node
	}
	t.root = build(d.Layout.Root, nil, "0")

	if t.persist {
		t.loadState()
	}
	t.rebuildFlatList()
}

// Diagram returns the diagram on screen, or nil.
func (t *TreeModel) Diagram() *phylo.Diagram {
	return t.diagram
}

func (t *TreeModel) treeName() string {
	if t.diagram == nil {
		return ""
	}
	return t.diagram.Name
}

// saveState persists collapse state for the current tree, leaving other
// trees' entries alone. Failures are logged and otherwise ignored.
func (t *TreeModel) saveState() {
	if !t.persist || t.root == nil {
		return
	}
	log := debug.Component("tree")
	path := TreeStatePath(t.stateDir)

	state := readTreeState(path)
	collapsed := make(map[string]bool)
	t.walk(func(n *CladeNode) {
		if len(n.Children) > 0 && !n.Expanded {
			collapsed[n.Path] = true
		}
	})
	if len(collapsed) == 0 {
		delete(state.Collapsed, t.treeName())
	} else {
		state.Collapsed[t.treeName()] = collapsed
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		log.Warn().Err(err).Msg("failed to marshal tree state")
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("failed to create state directory")
		return
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("failed to write tree state")
	}
}

// readTreeState loads the state file, falling back to an empty state.
func readTreeState(path string) *TreeState {
	state := DefaultTreeState()
	data, err := os.ReadFile(path)
	if err != nil {
		return state
	}
	if err := json.Unmarshal(data, state); err != nil {
		lg := debug.Component("tree")
		lg.Warn().Err(err).Msg("invalid tree state file, using defaults")
		return DefaultTreeState()
	}
	if state.Collapsed == nil {
		state.Collapsed = make(map[string]map[string]bool)
	}
	return state
}

func (t *TreeModel) loadState() {
	collapsed := readTreeState(TreeStatePath(t.stateDir)).Collapsed[t.treeName()]
	if len(collapsed) == 0 {
		return
	}
	// Paths that no longer exist in an edited tree are ignored.
	t.walk(func(n *CladeNode) {
		if collapsed[n.Path] && len(n.Children) > 0 {
			n.Expanded = false
		}
	})
}

func (t *TreeModel) walk(fn func(*CladeNode)) {
	var visit func(n *CladeNode)
	visit = func(n *CladeNode) {
		fn(n)
		for _, c := range n.Children {
			visit(c)
		}
	}
	if t.root != nil {
		visit(t.root)
	}
}

// View renders the visible rows.
func (t *TreeModel) View() string {
	if len(t.flatList) == 0 {
		return t.renderEmptyState()
	}

	start, end := t.visibleRange()
	var sb strings.Builder
	for i := start; i < end; i++ {
		line := t.renderNode(t.flatList[i])
		if i == t.cursor {
			line = t.theme.Cursor.Render(line)
		}
		sb.WriteString(line)
		if i < end-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func (t *TreeModel) renderEmptyState() string {
	var sb strings.Builder
	sb.WriteString(t.theme.PrimaryBold.Render("Tree View"))
	sb.WriteString("\n\n")
	sb.WriteString(t.theme.MutedText.Render("No language tree to display."))
	sb.WriteString("\n")
	sb.WriteString(t.theme.MutedText.Render("Press t to pick one from the payload."))
	return sb.String()
}

// renderNode draws one row: branch prefix, indicator, value markers, label
// and branch length.
func (t *TreeModel) renderNode(node *CladeNode) string {
	r := t.theme.Renderer
	var sb strings.Builder

	prefix := t.buildTreePrefix(node)
	sb.WriteString(prefix)
	sb.WriteString(t.theme.SecondaryText.Render(expandIndicator(node)))
	sb.WriteString(" ")

	if d := node.Decoration; d != nil {
		for _, m := range d.Markers {
			dot := r.NewStyle().Foreground(ThemeFg(phylo.HueColor(m.Hue).Hex()))
			sb.WriteString(dot.Render("●"))
		}
		if len(d.Markers) > 0 {
			sb.WriteString(" ")
		}
	}

	label := node.Layout.Name
	if len(node.Children) > 0 {
		if label == "" {
			label = "clade"
		}
		label = fmt.Sprintf("%s (%d)", label, node.Leaves)
	}
	maxLabel := t.width - lipgloss.Width(sb.String()) - 12
	if maxLabel < 12 {
		maxLabel = 12
	}
	label = runewidth.Truncate(label, maxLabel, "…")
	if len(node.Children) > 0 {
		sb.WriteString(t.theme.PrimaryBold.Render(label))
	} else {
		sb.WriteString(label)
	}

	if node.Parent != nil {
		sb.WriteString(t.theme.MutedText.Render(":" + strconv.FormatFloat(node.Layout.Length, 'g', 4, 64)))
	}
	if d := node.Decoration; d != nil && len(d.Societies) > 0 {
		names := make([]string, 0, len(d.Societies))
		for _, s := range d.Societies {
			names = append(names, s.Name)
		}
		sb.WriteString(t.theme.MutedText.Render("  " + strings.Join(names, ", ")))
	}
	return sb.String()
}

func expandIndicator(node *CladeNode) string {
	if len(node.Children) == 0 {
		return "•"
	}
	if node.Expanded {
		return "▾"
	}
	return "▸"
}

// buildTreePrefix builds the indentation and branch characters for a node.
func (t *TreeModel) buildTreePrefix(node *CladeNode) string {
	if node.Parent == nil {
		return ""
	}
	var parts []string
	for a := node.Parent; a.Parent != nil; a = a.Parent {
		if isLastChild(a) {
			parts = append(parts, "    ")
		} else {
			parts = append(parts, "│   ")
		}
	}
	// Collected bottom-up; print top-down.
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	if isLastChild(node) {
		parts = append(parts, "└── ")
	} else {
		parts = append(parts, "├── ")
	}
	return t.theme.MutedText.Render(strings.Join(parts, ""))
}

func isLastChild(node *CladeNode) bool {
	if node.Parent == nil {
		return true
	}
	siblings := node.Parent.Children
	return siblings[len(siblings)-1] == node
}

// SelectedNode returns the node under the cursor, or nil.
func (t *TreeModel) SelectedNode() *CladeNode {
	if t.cursor >= 0 && t.cursor < len(t.flatList) {
		return t.flatList[t.cursor]
	}
	return nil
}

// MoveDown moves the cursor down in the flat list.
func (t *TreeModel) MoveDown() {
	if t.cursor < len(t.flatList)-1 {
		t.cursor++
	}
	t.ensureVisible()
}

// MoveUp moves the cursor up in the flat list.
func (t *TreeModel) MoveUp() {
	if t.cursor > 0 {
		t.cursor--
	}
	t.ensureVisible()
}

// ToggleExpand expands or collapses the clade under the cursor.
func (t *TreeModel) ToggleExpand() {
	node := t.SelectedNode()
	if node != nil && len(node.Children) > 0 {
		node.Expanded = !node.Expanded
		t.rebuildFlatList()
		t.saveState()
	}
}

// ExpandAll expands every clade.
func (t *TreeModel) ExpandAll() {
	t.setExpanded(true)
}

// CollapseAll collapses every clade, leaving only the root row.
func (t *TreeModel) CollapseAll() {
	t.setExpanded(false)
}

func (t *TreeModel) setExpanded(expanded bool) {
	if t.root == nil {
		return
	}
	t.walk(func(n *CladeNode) {
		if len(n.Children) > 0 {
			n.Expanded = expanded
		}
	})
	t.rebuildFlatList()
	t.saveState()
}

// JumpToTop moves cursor to the first row.
func (t *TreeModel) JumpToTop() {
	t.cursor = 0
	t.ensureVisible()
}

// JumpToBottom moves cursor to the last row.
func (t *TreeModel) JumpToBottom() {
	if len(t.flatList) > 0 {
		t.cursor = len(t.flatList) - 1
	}
	t.ensureVisible()
}

// ExpandOrMoveToChild expands a collapsed clade, or steps into an expanded one.
func (t *TreeModel) ExpandOrMoveToChild() {
	node := t.SelectedNode()
	if node == nil || len(node.Children) == 0 {
		return
	}
	if !node.Expanded {
		node.Expanded = true
		t.rebuildFlatList()
		t.saveState()
		return
	}
	t.selectNode(node.Children[0])
}

// CollapseOrJumpToParent collapses an expanded clade, otherwise moves to
// the parent.
func (t *TreeModel) CollapseOrJumpToParent() {
	node := t.SelectedNode()
	if node == nil {
		return
	}
	if len(node.Children) > 0 && node.Expanded {
		node.Expanded = false
		t.rebuildFlatList()
		t.saveState()
		return
	}
	if node.Parent != nil {
		t.selectNode(node.Parent)
	}
}

// PageDown moves cursor down by half a screen.
func (t *TreeModel) PageDown() {
	t.cursor += t.pageSize()
	if t.cursor >= len(t.flatList) {
		t.cursor = len(t.flatList) - 1
	}
	if t.cursor < 0 {
		t.cursor = 0
	}
	t.ensureVisible()
}

// PageUp moves cursor up by half a screen.
func (t *TreeModel) PageUp() {
	t.cursor -= t.pageSize()
	if t.cursor < 0 {
		t.cursor = 0
	}
	t.ensureVisible()
}

func (t *TreeModel) pageSize() int {
	if t.height/2 < 1 {
		return 5
	}
	return t.height / 2
}

func (t *TreeModel) selectNode(target *CladeNode) {
	for i, n := range t.flatList {
		if n == target {
			t.cursor = i
			t.ensureVisible()
			return
		}
	}
}

// visibleRange returns the [start, end) rows that fit on screen.
func (t *TreeModel) visibleRange() (start, end int) {
	if len(t.flatList) == 0 {
		return 0, 0
	}
	visible := t.height
	if visible <= 0 {
		visible = 20
	}
	start = t.offset
	end = start + visible
	if end > len(t.flatList) {
		end = len(t.flatList)
		start = end - visible
		if start < 0 {
			start = 0
		}
	}
	return start, end
}

// ensureVisible scrolls so the cursor row is on screen.
func (t *TreeModel) ensureVisible() {
	visible := t.height
	if visible <= 0 {
		visible = 20
	}
	if t.cursor < t.offset {
		t.offset = t.cursor
	}
	if t.cursor >= t.offset+visible {
		t.offset = t.cursor - visible + 1
	}
	if t.offset < 0 {
		t.offset = 0
	}
}

func (t *TreeModel) rebuildFlatList() {
	t.flatList = t.flatList[:0]
	var visit func(n *CladeNode)
	visit = func(n *CladeNode) {
		t.flatList = append(t.flatList, n)
		if n.Expanded {
			for _, c := range n.Children {
				visit(c)
			}
		}
	}
	if t.root != nil {
		visit(t.root)
	}
	if t.cursor >= len(t.flatList) {
		t.cursor = len(t.flatList) - 1
	}
	if t.cursor < 0 {
		t.cursor = 0
	}
	t.ensureVisible()
}

// NodeCount returns the number of visible rows.
func (t *TreeModel) NodeCount() int {
	return len(t.flatList)
}

// LeafCount returns the number of leaves in the diagram.
func (t *TreeModel) LeafCount() int {
	if t.root == nil {
		return 0
	}
	return t.root.Leaves
}
