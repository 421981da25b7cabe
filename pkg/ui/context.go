package ui

// Context represents the current UI context for context-sensitive help
type Context string

const (
	// Overlays (highest priority)
	ContextHelp       Context = "help"
	ContextTreePicker Context = "tree-picker"

	// Tabs
	ContextTree   Context = "tree"
	ContextMap    Context = "map"
	ContextReport Context = "report"
)

// CurrentContext returns the current UI context identifier.
// Overlays win over the active tab.
func (m Model) CurrentContext() Context {
	if m.showHelp {
		return ContextHelp
	}
	if m.showTreePicker {
		return ContextTreePicker
	}
	switch m.activeTab {
	case tabMap:
		return ContextMap
	case tabReport:
		return ContextReport
	default:
		return ContextTree
	}
}
