package ui

import (
	"os"

	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/lipgloss"
)

// TermProfile holds the detected terminal color profile.
var TermProfile colorprofile.Profile

func init() {
	TermProfile = colorprofile.Detect(os.Stdout, os.Environ())
}

// ThemeFg returns the given hex color for ANSI256+ terminals and ANSI white
// for anything less capable.
func ThemeFg(hex string) lipgloss.TerminalColor {
	if TermProfile < colorprofile.ANSI256 {
		return lipgloss.ANSIColor(7)
	}
	return lipgloss.Color(hex)
}

type Theme struct {
	Renderer *lipgloss.Renderer

	// Colors
	Primary   lipgloss.AdaptiveColor
	Secondary lipgloss.AdaptiveColor
	Subtext   lipgloss.AdaptiveColor

	// Map
	Land     lipgloss.AdaptiveColor
	Hovered  lipgloss.AdaptiveColor
	Selected lipgloss.AdaptiveColor

	// UI Elements
	Border    lipgloss.AdaptiveColor
	Highlight lipgloss.AdaptiveColor
	Muted     lipgloss.AdaptiveColor
	Error     lipgloss.AdaptiveColor

	// Styles
	Base      lipgloss.Style
	Header    lipgloss.Style
	TabActive lipgloss.Style
	Tab       lipgloss.Style
	Cursor    lipgloss.Style

	MutedText     lipgloss.Style
	SecondaryText lipgloss.Style
	PrimaryBold   lipgloss.Style
	ErrorText     lipgloss.Style
}

// DefaultTheme returns the standard Dracula-inspired theme (adaptive).
// Map colors follow the region style of the results page.
func DefaultTheme(r *lipgloss.Renderer) Theme {
	t := Theme{
		Renderer: r,

		Primary:   lipgloss.AdaptiveColor{Light: "#6B47D9", Dark: "#BD93F9"},
		Secondary: lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"},
		Subtext:   lipgloss.AdaptiveColor{Light: "#666666", Dark: "#BFBFBF"},

		Land:     lipgloss.AdaptiveColor{Light: "#428bca", Dark: "#428bca"},
		Hovered:  lipgloss.AdaptiveColor{Light: "#357ebd", Dark: "#8BE9FD"},
		Selected: lipgloss.AdaptiveColor{Light: "#111133", Dark: "#FFB86C"},

		Border:    lipgloss.AdaptiveColor{Light: "#AAAAAA", Dark: "#44475A"},
		Highlight: lipgloss.AdaptiveColor{Light: "#E0E0E0", Dark: "#44475A"},
		Muted:     lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"},
		Error:     lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF5555"},
	}

	t.Base = r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#F8F8F2"})

	t.Header = r.NewStyle().
		Background(t.Primary).
		Foreground(lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#282A36"}).
		Bold(true).
		Padding(0, 1)

	t.TabActive = r.NewStyle().
		Foreground(t.Primary).
		Bold(true).
		Underline(true).
		Padding(0, 1)
	t.Tab = r.NewStyle().
		Foreground(t.Secondary).
		Padding(0, 1)

	t.Cursor = r.NewStyle().
		Background(t.Highlight).
		Bold(true)

	t.MutedText = r.NewStyle().Foreground(t.Muted)
	t.SecondaryText = r.NewStyle().Foreground(t.Secondary)
	t.PrimaryBold = r.NewStyle().Foreground(t.Primary).Bold(true)
	t.ErrorText = r.NewStyle().Foreground(t.Error).Bold(true)

	return t
}

// TestTheme returns a theme suitable for use in tests.
func TestTheme() Theme {
	return DefaultTheme(lipgloss.NewRenderer(os.Stdout))
}
