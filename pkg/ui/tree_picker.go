package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/Dicklesworthstone/dplace_viewer/pkg/model"
)

// TreeSelectedMsg is emitted when a language tree is chosen for display.
type TreeSelectedMsg struct {
	Tree model.LanguageTree
}

// TreePickerModel provides a quick tree selection modal
type TreePickerModel struct {
	trees         []model.LanguageTree
	current       string // Name of the tree on screen
	selectedIndex int
	width         int
	height        int
	theme         Theme
}

// NewTreePickerModel creates a picker over trees with current highlighted.
func NewTreePickerModel(trees []model.LanguageTree, current string, theme Theme) TreePickerModel {
	selectedIdx := 0
	for i, t := range trees {
		if t.Name == current {
			selectedIdx = i
			break
		}
	}
	return TreePickerModel{
		trees:         trees,
		current:       current,
		selectedIndex: selectedIdx,
		theme:         theme,
	}
}

// SetSize updates the picker dimensions
func (m *TreePickerModel) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// MoveUp moves selection up
func (m *TreePickerModel) MoveUp() {
	if m.selectedIndex > 0 {
		m.selectedIndex--
	}
}

// MoveDown moves selection down
func (m *TreePickerModel) MoveDown() {
	if m.selectedIndex < len(m.trees)-1 {
		m.selectedIndex++
	}
}

// SelectedTree returns the highlighted tree.
func (m *TreePickerModel) SelectedTree() (model.LanguageTree, bool) {
	if m.selectedIndex >= 0 && m.selectedIndex < len(m.trees) {
		return m.trees[m.selectedIndex], true
	}
	return model.LanguageTree{}, false
}

// Choose returns a command emitting TreeSelectedMsg for the highlighted tree,
// or nil when there is nothing to choose.
func (m *TreePickerModel) Choose() tea.Cmd {
	tree, ok := m.SelectedTree()
	if !ok {
		return nil
	}
	return func() tea.Msg { return TreeSelectedMsg{Tree: tree} }
}

// View renders the tree picker overlay
func (m *TreePickerModel) View() string {
	if m.width == 0 {
		m.width = 60
	}
	if m.height == 0 {
		m.height = 20
	}

	t := m.theme

	boxWidth := 44
	if m.width < 54 {
		boxWidth = m.width - 10
	}
	if boxWidth < 25 {
		boxWidth = 25
	}

	var lines []string

	titleStyle := t.Renderer.NewStyle().
		Foreground(t.Primary).
		Bold(true).
		MarginBottom(1)
	lines = append(lines, titleStyle.Render("Language Trees"))
	lines = append(lines, "")

	if len(m.trees) == 0 {
		lines = append(lines, t.MutedText.Render("No trees in this payload"))
	}

	// Keep the highlighted row visible in short terminals.
	visible := m.height - 10
	if visible < 3 {
		visible = 3
	}
	start := 0
	if m.selectedIndex >= visible {
		start = m.selectedIndex - visible + 1
	}
	end := start + visible
	if end > len(m.trees) {
		end = len(m.trees)
	}

	for i := start; i < end; i++ {
		tree := m.trees[i]
		isSelected := i == m.selectedIndex

		itemStyle := t.Renderer.NewStyle()
		if isSelected {
			itemStyle = itemStyle.Foreground(t.Primary).Bold(true)
		} else {
			itemStyle = itemStyle.Foreground(t.Base.GetForeground())
		}

		prefix := "  "
		if isSelected {
			prefix = "> "
		}

		suffix := ""
		if tree.Name == m.current {
			suffix = " " + t.SecondaryText.Render("✓")
		}

		name := runewidth.Truncate(tree.Name, boxWidth-10, "…")
		lines = append(lines, itemStyle.Render(prefix+name)+suffix)
	}
	if len(m.trees) > end-start {
		lines = append(lines, t.MutedText.Render(fmt.Sprintf("  %d of %d", m.selectedIndex+1, len(m.trees))))
	}

	lines = append(lines, "")
	footerStyle := t.Renderer.NewStyle().
		Foreground(t.Secondary).
		Italic(true)
	lines = append(lines, footerStyle.Render("j/k: navigate | enter: show | esc: cancel"))

	content := strings.Join(lines, "\n")

	boxStyle := t.Renderer.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Primary).
		Padding(1, 2).
		Width(boxWidth)

	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		boxStyle.Render(content),
	)
}
