package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Quit     key.Binding
	Help     key.Binding
	NextTab  key.Binding
	PrevTab  key.Binding
	TreeTab  key.Binding
	MapTab   key.Binding
	Report   key.Binding
	Up       key.Binding
	Down     key.Binding
	Left     key.Binding
	Right    key.Binding
	Top      key.Binding
	Bottom   key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Toggle   key.Binding
	Expand   key.Binding
	Collapse key.Binding
	Pick     key.Binding
	PrevTree key.Binding
	NextTree key.Binding
	Clear    key.Binding
	Copy     key.Binding
	Confirm  key.Binding
	Cancel   key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		NextTab:  key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next tab")),
		PrevTab:  key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev tab")),
		TreeTab:  key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "tree")),
		MapTab:   key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "map")),
		Report:   key.NewBinding(key.WithKeys("3"), key.WithHelp("3", "report")),
		Up:       key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "up")),
		Down:     key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "down")),
		Left:     key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h/←", "collapse")),
		Right:    key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("l/→", "expand")),
		Top:      key.NewBinding(key.WithKeys("g", "home"), key.WithHelp("g", "top")),
		Bottom:   key.NewBinding(key.WithKeys("G", "end"), key.WithHelp("G", "bottom")),
		PageUp:   key.NewBinding(key.WithKeys("pgup", "ctrl+u"), key.WithHelp("ctrl+u", "page up")),
		PageDown: key.NewBinding(key.WithKeys("pgdown", "ctrl+d"), key.WithHelp("ctrl+d", "page down")),
		Toggle:   key.NewBinding(key.WithKeys(" ", "enter"), key.WithHelp("space", "toggle")),
		Expand:   key.NewBinding(key.WithKeys("E"), key.WithHelp("E", "expand all")),
		Collapse: key.NewBinding(key.WithKeys("C"), key.WithHelp("C", "collapse all")),
		Pick:     key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "pick tree")),
		PrevTree: key.NewBinding(key.WithKeys("["), key.WithHelp("[", "prev tree")),
		NextTree: key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "next tree")),
		Clear:    key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear selection")),
		Copy:     key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy codes")),
		Confirm:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "show")),
		Cancel:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
	}
}

// shortHelp returns the footer bindings for a context.
func (k keyMap) shortHelp(ctx Context) []key.Binding {
	switch ctx {
	case ContextMap:
		return []key.Binding{k.Up, k.Down, k.Toggle, k.Clear, k.Copy, k.NextTab, k.Help, k.Quit}
	case ContextReport:
		return []key.Binding{k.Up, k.Down, k.PageDown, k.NextTab, k.Help, k.Quit}
	case ContextTreePicker:
		return []key.Binding{k.Up, k.Down, k.Confirm, k.Cancel}
	default:
		return []key.Binding{k.Up, k.Down, k.Toggle, k.Pick, k.NextTree, k.NextTab, k.Help, k.Quit}
	}
}
