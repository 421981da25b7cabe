package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ContextHelpContent contains compact help content for each context.
// Content should fit on one screen (~20 lines) without scrolling.
var ContextHelpContent = map[Context]string{
	ContextTree:       contextHelpTree,
	ContextMap:        contextHelpMap,
	ContextReport:     contextHelpReport,
	ContextTreePicker: contextHelpTreePicker,
	ContextHelp:       contextHelpHelp,
}

// GetContextHelp returns the help content for a given context.
// Falls back to generic help if the context has no specific content.
func GetContextHelp(ctx Context) string {
	if content, ok := ContextHelpContent[ctx]; ok {
		return content
	}
	return contextHelpGeneric
}

// RenderContextHelp renders the context-specific help modal.
func RenderContextHelp(ctx Context, theme Theme, width, height int) string {
	content := GetContextHelp(ctx)

	r := theme.Renderer

	modalWidth := 60
	if modalWidth > width-4 {
		modalWidth = width - 4
	}
	if modalWidth < 20 {
		modalWidth = 20
	}

	titleStyle := r.NewStyle().
		Bold(true).
		Foreground(theme.Primary)
	contentStyle := r.NewStyle().
		Foreground(theme.Subtext)
	footerStyle := r.NewStyle().
		Foreground(theme.Muted).
		Italic(true)

	var b strings.Builder
	b.WriteString(titleStyle.Render("Quick Reference"))
	b.WriteString("\n")
	b.WriteString(r.NewStyle().Foreground(theme.Border).Render(strings.Repeat("─", modalWidth-4)))
	b.WriteString("\n\n")
	b.WriteString(contentStyle.Render(content))
	b.WriteString("\n\n")
	b.WriteString(footerStyle.Render("? or Esc to close"))

	modalStyle := r.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.Secondary).
		Padding(1, 2).
		Width(modalWidth)

	modal := modalStyle.Render(b.String())
	if width <= 0 || height <= 0 {
		return modal
	}
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, modal)
}

const contextHelpTree = `## Tree

**Navigation**
  j/k       Scroll
  g/G       Top/bottom
  t         Pick another tree
  [ / ]     Previous/next tree

**Reading the Tree**
• Branch length sets the depth of each leaf
• One dot per coded value before the label
• Dot hue = value × 240 / distinct codes

**Switch Tabs**
  1/2/3     Tree / Map / Report
  Tab       Next tab`

const contextHelpMap = `## Map

**Navigation**
  j/k       Move the region cursor
  Space     Select/deselect region
  c         Clear the selection
  y         Copy selected region codes

**Reading the Map**
• ● marks a society, colored by id
• Selected regions are highlighted
• The hovered region is the cursor row

Hiding the map releases its surface.`

const contextHelpReport = `## Report

**Navigation**
  j/k       Scroll
  g/G       Top/bottom

The report summarizes societies, variables,
trees and the selected regions. It is
rebuilt when the payload or the selection
changes.`

const contextHelpTreePicker = `## Tree Picker

  j/k       Move
  Enter     Show tree
  Esc       Cancel`

const contextHelpHelp = `## Help

  ?         Close help
  q         Quit`

const contextHelpGeneric = `## Keys

  1/2/3     Tree / Map / Report
  ?         Help
  q         Quit`
