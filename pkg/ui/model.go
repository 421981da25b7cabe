package ui

import (
	"fmt"
	"slices"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/Dicklesworthstone/dplace_viewer/pkg/binding"
	"github.com/Dicklesworthstone/dplace_viewer/pkg/debug"
	"github.com/Dicklesworthstone/dplace_viewer/pkg/export"
	"github.com/Dicklesworthstone/dplace_viewer/pkg/geomap"
	"github.com/Dicklesworthstone/dplace_viewer/pkg/model"
)

type tab int

const (
	tabTree tab = iota
	tabMap
	tabReport
	tabCount
)

func (t tab) String() string {
	switch t {
	case tabMap:
		return "Map"
	case tabReport:
		return "Report"
	default:
		return "Tree"
	}
}

// Options configures NewModel.
type Options struct {
	Snapshot *PayloadSnapshot
	Atlas    *geomap.Atlas
	Selected []model.Region // Initial region selection
	Tree     string         // Tree to show first; defaults to the first tree
	StateDir string         // Where tree collapse state persists; empty disables it
	Title    string
	Theme    *Theme
}

// Model is the root bubbletea model: a tree tab, a map tab and a report tab
// over one payload snapshot.
type Model struct {
	theme Theme
	keys  keyMap
	help  help.Model
	title string

	snapshot *PayloadSnapshot
	atlas    *geomap.Atlas

	// Map widget wiring. The widget mounts into container while the map tab
	// is active and releases its surface otherwise.
	societies *binding.Value[[]model.SocietyResult]
	region    *binding.Value[string]
	selected  *binding.Value[[]model.Region]
	visible   *binding.Value[bool]
	container *geomap.Container
	mapWidget *geomap.Widget

	activeTab   tab
	tree        TreeModel
	currentTree string
	mapPane     MapPane

	treePicker     TreePickerModel
	showTreePicker bool
	showHelp       bool

	report        viewport.Model
	reportVersion uint64 // selected.Version() the report was built for
	reportFor     *PayloadSnapshot
	mdRenderer    *glamour.TermRenderer

	width  int
	height int
	ready  bool

	statusMsg     string
	statusIsError bool

	copyToClipboard func(string) error
}

// NewModel creates the root model.
func NewModel(opts Options) Model {
	theme := DefaultTheme(lipgloss.DefaultRenderer())
	if opts.Theme != nil {
		theme = *opts.Theme
	}
	title := opts.Title
	if title == "" {
		title = "D-PLACE"
	}

	m := Model{
		theme:           theme,
		keys:            defaultKeyMap(),
		help:            help.New(),
		title:           title,
		atlas:           opts.Atlas,
		societies:       binding.New[[]model.SocietyResult](nil),
		region:          binding.New(""),
		selected:        binding.New(slices.Clone(opts.Selected)),
		visible:         binding.New(false),
		tree:            NewTreeModel(theme),
		mapPane:         NewMapPane(theme),
		report:          viewport.New(80, 20),
		copyToClipboard: clipboard.WriteAll,
	}
	if opts.StateDir != "" {
		m.tree.SetStateDir(opts.StateDir)
	}

	m.container = geomap.NewContainer(geomap.DefaultElementID, 0, 0, opts.Atlas)
	m.mapWidget = geomap.NewWidget(m.container, geomap.Bindings{
		Societies:       m.societies,
		Region:          m.region,
		SelectedRegions: m.selected,
		Visible:         m.visible,
	}, geomap.Options{ID: geomap.DefaultElementID})

	if opts.Snapshot != nil {
		m.applySnapshot(opts.Snapshot, opts.Tree)
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.SetWindowTitle("dv: " + m.title)
}

// Close releases the map surface. Call it once the program has exited.
func (m Model) Close() {
	m.mapWidget.Close()
}

// SelectedRegions returns the bound region selection.
func (m Model) SelectedRegions() []model.Region {
	return slices.Clone(m.selected.Get())
}

// HoveredRegion returns the code of the last hovered region.
func (m Model) HoveredRegion() string {
	return m.region.Get()
}

// MapVisible reports whether the map widget currently holds a surface.
func (m Model) MapVisible() bool {
	return m.mapWidget.State() == geomap.Visible
}

// ActiveSurfaces returns how many map surfaces are mounted.
func (m Model) ActiveSurfaces() int {
	return len(m.container.Active())
}

// CurrentTree returns the name of the tree on screen.
func (m Model) CurrentTree() string {
	return m.currentTree
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ready = true
		m.layout()
		return m, nil

	case SnapshotReadyMsg:
		m.applySnapshot(msg.Snapshot, m.currentTree)
		m.setStatus(fmt.Sprintf("Reloaded: %d societies, %d trees",
			len(msg.Snapshot.Results.Societies), len(msg.Snapshot.Results.Trees)), false)
		return m, nil

	case SnapshotErrorMsg:
		m.setStatus(fmt.Sprintf("Reload failed: %v", msg.Err), true)
		return m, nil

	case TreeSelectedMsg:
		m.showTreePicker = false
		m.showTree(msg.Tree.Name)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.activeTab == tabReport {
		var cmd tea.Cmd
		m.report, cmd = m.report.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) setStatus(s string, isErr bool) {
	m.statusMsg = s
	m.statusIsError = isErr
}

// bodyHeight is the height left after the header, tab bar and footer.
func (m *Model) bodyHeight() int {
	h := m.height - 3
	if h < 1 {
		h = 1
	}
	return h
}

func (m *Model) layout() {
	h := m.bodyHeight()
	m.tree.SetSize(m.width, h)
	m.mapPane.SetSize(m.width, h)
	w, ph := m.mapPane.PixelSize()
	m.container.Resize(w, ph)
	m.treePicker.SetSize(m.width, m.height)
	m.report.Width = m.width
	m.report.Height = h
	m.help.Width = m.width

	wrap := m.width - 4
	if wrap < 20 {
		wrap = 20
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		lg := debug.Component("ui")
		lg.Warn().Err(err).Msg("markdown renderer unavailable")
		r = nil
	}
	m.mdRenderer = r
	m.reportFor = nil
	m.refreshReport()
}

// applySnapshot swaps in a new payload, keeping the current tree when the
// new payload still has it.
func (m *Model) applySnapshot(s *PayloadSnapshot, preferTree string) {
	m.snapshot = s
	m.societies.Set(s.Results.Societies)
	m.mapPane.CountSocieties(m.atlas, s.Results.Societies)

	name := preferTree
	if _, ok := s.Results.FindTree(name); !ok || name == "" {
		name = ""
		if len(s.Results.Trees) > 0 {
			name = s.Results.Trees[0].Name
		}
	}
	m.showTree(name)
	m.refreshReport()
}

func (m *Model) showTree(name string) {
	m.currentTree = name
	if m.snapshot == nil || name == "" {
		m.tree.Build(nil)
		return
	}
	if err := m.snapshot.TreeErrors[name]; err != nil {
		m.tree.Build(nil)
		m.setStatus(fmt.Sprintf("Tree %s: %v", name, err), true)
		return
	}
	m.tree.Build(m.snapshot.Diagrams[name])
}

// stepTree moves to the previous or next tree in payload order.
func (m *Model) stepTree(delta int) {
	if m.snapshot == nil || len(m.snapshot.Results.Trees) == 0 {
		return
	}
	trees := m.snapshot.Results.Trees
	idx := 0
	for i, t := range trees {
		if t.Name == m.currentTree {
			idx = i
			break
		}
	}
	idx = (idx + delta + len(trees)) % len(trees)
	m.showTree(trees[idx].Name)
}

// setTab switches tabs. The Visible binding follows the map tab, so the
// widget mounts a surface on entry and removes it on exit.
func (m *Model) setTab(t tab) {
	m.activeTab = t
	m.visible.Set(t == tabMap)
	if t == tabMap {
		if err := m.mapWidget.Err(); err != nil {
			m.setStatus(err.Error(), true)
		}
	}
	if t == tabReport {
		m.refreshReport()
	}
}

func (m *Model) surface() *geomap.VectorSurface {
	s, _ := m.mapWidget.Surface().(*geomap.VectorSurface)
	return s
}

// refreshReport regenerates the report when the payload or the selection
// changed since it was last built.
func (m *Model) refreshReport() {
	if m.snapshot == nil {
		m.report.SetContent(m.theme.MutedText.Render("No payload loaded."))
		return
	}
	if m.reportFor == m.snapshot && m.reportVersion == m.selected.Version() {
		return
	}
	md, err := export.GenerateReport(m.snapshot.Results, export.ReportOptions{
		Title:    m.title,
		Selected: m.selected.Get(),
	})
	if err != nil {
		m.report.SetContent(m.theme.ErrorText.Render(err.Error()))
		return
	}
	content := md
	if m.mdRenderer != nil {
		if out, err := m.mdRenderer.Render(md); err == nil {
			content = out
		}
	}
	m.report.SetContent(content)
	m.reportFor = m.snapshot
	m.reportVersion = m.selected.Version()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) && msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	if m.showHelp {
		if key.Matches(msg, m.keys.Help, m.keys.Cancel) {
			m.showHelp = false
		} else if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
		return m, nil
	}

	if m.showTreePicker {
		switch {
		case key.Matches(msg, m.keys.Up):
			m.treePicker.MoveUp()
		case key.Matches(msg, m.keys.Down):
			m.treePicker.MoveDown()
		case key.Matches(msg, m.keys.Confirm):
			return m, m.treePicker.Choose()
		case key.Matches(msg, m.keys.Cancel, m.keys.Quit):
			m.showTreePicker = false
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil
	case key.Matches(msg, m.keys.TreeTab):
		m.setTab(tabTree)
		return m, nil
	case key.Matches(msg, m.keys.MapTab):
		m.setTab(tabMap)
		return m, nil
	case key.Matches(msg, m.keys.Report):
		m.setTab(tabReport)
		return m, nil
	case key.Matches(msg, m.keys.NextTab):
		m.setTab((m.activeTab + 1) % tabCount)
		return m, nil
	case key.Matches(msg, m.keys.PrevTab):
		m.setTab((m.activeTab + tabCount - 1) % tabCount)
		return m, nil
	}

	switch m.activeTab {
	case tabTree:
		m.handleTreeKey(msg)
	case tabMap:
		m.handleMapKey(msg)
	case tabReport:
		var cmd tea.Cmd
		switch {
		case key.Matches(msg, m.keys.Top):
			m.report.GotoTop()
		case key.Matches(msg, m.keys.Bottom):
			m.report.GotoBottom()
		default:
			m.report, cmd = m.report.Update(msg)
		}
		return m, cmd
	}
	return m, nil
}

func (m *Model) handleTreeKey(msg tea.KeyMsg) {
	switch {
	case key.Matches(msg, m.keys.Up):
		m.tree.MoveUp()
	case key.Matches(msg, m.keys.Down):
		m.tree.MoveDown()
	case key.Matches(msg, m.keys.Left):
		m.tree.CollapseOrJumpToParent()
	case key.Matches(msg, m.keys.Right):
		m.tree.ExpandOrMoveToChild()
	case key.Matches(msg, m.keys.Toggle):
		m.tree.ToggleExpand()
	case key.Matches(msg, m.keys.Top):
		m.tree.JumpToTop()
	case key.Matches(msg, m.keys.Bottom):
		m.tree.JumpToBottom()
	case key.Matches(msg, m.keys.PageDown):
		m.tree.PageDown()
	case key.Matches(msg, m.keys.PageUp):
		m.tree.PageUp()
	case key.Matches(msg, m.keys.Expand):
		m.tree.ExpandAll()
	case key.Matches(msg, m.keys.Collapse):
		m.tree.CollapseAll()
	case key.Matches(msg, m.keys.PrevTree):
		m.stepTree(-1)
	case key.Matches(msg, m.keys.NextTree):
		m.stepTree(1)
	case key.Matches(msg, m.keys.Pick):
		var trees []model.LanguageTree
		if m.snapshot != nil {
			trees = m.snapshot.Results.Trees
		}
		m.treePicker = NewTreePickerModel(trees, m.currentTree, m.theme)
		m.treePicker.SetSize(m.width, m.height)
		m.showTreePicker = true
	}
}

func (m *Model) handleMapKey(msg tea.KeyMsg) {
	s := m.surface()
	switch {
	case key.Matches(msg, m.keys.Up):
		m.mapPane.MoveUp()
		m.hoverCursor(s)
	case key.Matches(msg, m.keys.Down):
		if m.atlas != nil {
			m.mapPane.MoveDown(m.atlas.Len())
		}
		m.hoverCursor(s)
	case key.Matches(msg, m.keys.Toggle):
		r, ok := m.mapPane.CursorRegion(m.atlas)
		if s == nil || !ok {
			return
		}
		if err := s.ToggleRegion(r.Code); err != nil {
			m.setStatus(err.Error(), true)
			return
		}
		m.setStatus(fmt.Sprintf("%d regions selected", len(m.selected.Get())), false)
	case key.Matches(msg, m.keys.Clear):
		m.selected.Set(nil)
		m.setStatus("Selection cleared", false)
	case key.Matches(msg, m.keys.Copy):
		codes := model.RegionCodes(m.selected.Get())
		if len(codes) == 0 {
			m.setStatus("No regions selected", true)
			return
		}
		text := strings.Join(codes, ",")
		if err := m.copyToClipboard(text); err != nil {
			m.setStatus(fmt.Sprintf("Clipboard error: %v", err), true)
			return
		}
		m.setStatus("Copied "+text+" to clipboard", false)
	}
}

// hoverCursor points the surface at the cursor region, which updates the
// Region binding through the widget.
func (m *Model) hoverCursor(s *geomap.VectorSurface) {
	r, ok := m.mapPane.CursorRegion(m.atlas)
	if s == nil || !ok {
		return
	}
	if err := s.Hover(r.Code); err != nil {
		m.setStatus(err.Error(), true)
	}
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	if m.showHelp {
		return RenderContextHelp(m.tabContext(), m.theme, m.width, m.height)
	}
	if m.showTreePicker {
		return m.treePicker.View()
	}

	var body string
	switch m.activeTab {
	case tabMap:
		body = m.mapPane.View(m.surface(), m.mapWidget.Err())
	case tabReport:
		body = m.report.View()
	default:
		body = m.tree.View()
	}
	body = lipgloss.NewStyle().Height(m.bodyHeight()).MaxHeight(m.bodyHeight()).Render(body)

	return lipgloss.JoinVertical(lipgloss.Left, m.renderHeader(), body, m.renderFooter())
}

// tabContext is the help context of the active tab, ignoring overlays.
func (m Model) tabContext() Context {
	switch m.activeTab {
	case tabMap:
		return ContextMap
	case tabReport:
		return ContextReport
	default:
		return ContextTree
	}
}

func (m Model) renderHeader() string {
	t := m.theme
	title := t.Header.Render(m.title)
	var tabs []string
	for i := tab(0); i < tabCount; i++ {
		label := fmt.Sprintf("%d %s", int(i)+1, i)
		if i == m.activeTab {
			tabs = append(tabs, t.TabActive.Render(label))
		} else {
			tabs = append(tabs, t.Tab.Render(label))
		}
	}
	info := ""
	switch {
	case m.activeTab == tabTree && m.currentTree != "":
		info = t.MutedText.Render(fmt.Sprintf("  %s · %d leaves", m.currentTree, m.tree.LeafCount()))
	case m.activeTab == tabMap:
		if code := m.region.Get(); code != "" && m.atlas != nil {
			if r, ok := m.atlas.Region(code); ok {
				info = t.MutedText.Render("  Region: " + r.Name)
			}
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, title, " ", strings.Join(tabs, ""), info)
}

func (m Model) renderFooter() string {
	if m.statusMsg != "" {
		if m.statusIsError {
			return m.theme.ErrorText.Render(m.statusMsg)
		}
		return m.theme.SecondaryText.Render(m.statusMsg)
	}
	return m.help.ShortHelpView(m.keys.shortHelp(m.CurrentContext()))
}
