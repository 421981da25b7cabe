package ui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Dicklesworthstone/dplace_viewer/pkg/geomap"
	"github.com/Dicklesworthstone/dplace_viewer/pkg/loader"
	"github.com/Dicklesworthstone/dplace_viewer/pkg/model"
	"github.com/Dicklesworthstone/dplace_viewer/pkg/phylo"
)

func testSnapshot(t *testing.T, payload string) *PayloadSnapshot {
	t.Helper()
	results, err := loader.Decode([]byte(payload))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return NewPayloadSnapshot(&loader.Payload{Path: "results.json", Hash: "h", Results: results}, phylo.Options{})
}

func newTestModel(t *testing.T, opts Options) Model {
	t.Helper()
	atlas, err := geomap.DefaultAtlas()
	if err != nil {
		t.Fatalf("DefaultAtlas: %v", err)
	}
	if opts.Snapshot == nil {
		opts.Snapshot = testSnapshot(t, testPayload)
	}
	opts.Atlas = atlas
	theme := TestTheme()
	opts.Theme = &theme
	m := NewModel(opts)
	t.Cleanup(m.Close)
	return update(t, m, tea.WindowSizeMsg{Width: 120, Height: 30})
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	nm, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return nm
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m Model, keys ...tea.KeyMsg) Model {
	t.Helper()
	for _, k := range keys {
		m = update(t, m, k)
	}
	return m
}

func TestModel_InitialState(t *testing.T) {
	m := newTestModel(t, Options{})

	if m.CurrentTree() != "family" {
		t.Errorf("CurrentTree = %q, want first tree", m.CurrentTree())
	}
	if m.MapVisible() || m.ActiveSurfaces() != 0 {
		t.Error("map should start hidden with no surface")
	}
	if m.CurrentContext() != ContextTree {
		t.Errorf("context = %s", m.CurrentContext())
	}
	view := m.View()
	for _, want := range []string{"D-PLACE", "1 Tree", "2 Map", "3 Report", "family · 3 leaves", "Root (3)"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q", want)
		}
	}
}

func TestModel_LoadingBeforeSize(t *testing.T) {
	m := NewModel(Options{})
	defer m.Close()
	if m.View() != "Loading..." {
		t.Errorf("View() = %q", m.View())
	}
}

func TestModel_InitialTreeOption(t *testing.T) {
	m := newTestModel(t, Options{Tree: "pair"})
	if m.CurrentTree() != "pair" {
		t.Errorf("CurrentTree = %q, want pair", m.CurrentTree())
	}
}

func TestModel_MapVisibilityFollowsTab(t *testing.T) {
	m := newTestModel(t, Options{})

	m = press(t, m, keyRunes("2"))
	if !m.MapVisible() || m.ActiveSurfaces() != 1 {
		t.Fatalf("map tab: visible=%v surfaces=%d", m.MapVisible(), m.ActiveSurfaces())
	}
	m = press(t, m, keyRunes("1"))
	if m.MapVisible() || m.ActiveSurfaces() != 0 {
		t.Fatalf("tree tab: visible=%v surfaces=%d", m.MapVisible(), m.ActiveSurfaces())
	}
	m = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.ActiveSurfaces() != 1 {
		t.Errorf("expected exactly one surface after re-showing, got %d", m.ActiveSurfaces())
	}
	m = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.activeTab != tabReport || m.ActiveSurfaces() != 0 {
		t.Errorf("report tab: tab=%s surfaces=%d", m.activeTab, m.ActiveSurfaces())
	}
	m = press(t, m, tea.KeyMsg{Type: tea.KeyShiftTab})
	if m.activeTab != tabMap {
		t.Errorf("shift+tab should go back to the map, on %s", m.activeTab)
	}
}

func TestModel_MapHoverAndSelect(t *testing.T) {
	m := newTestModel(t, Options{})
	m = press(t, m, keyRunes("2"))

	// Regions are sorted by code; the seventh is Northern America.
	for i := 0; i < 6; i++ {
		m = press(t, m, keyRunes("j"))
	}
	if got := m.HoveredRegion(); got != "7" {
		t.Fatalf("HoveredRegion = %q, want 7", got)
	}
	if !strings.Contains(m.View(), "Region: Northern America") {
		t.Error("header should name the hovered region")
	}

	m = press(t, m, tea.KeyMsg{Type: tea.KeySpace})
	want := []model.Region{{Code: "7", Name: "Northern America"}}
	if got := m.SelectedRegions(); len(got) != 1 || got[0] != want[0] {
		t.Fatalf("SelectedRegions = %v, want %v", got, want)
	}
	view := m.View()
	if !strings.Contains(view, "[x] 7") || !strings.Contains(view, "Selected: 7") {
		t.Errorf("map view does not show the selection:\n%s", view)
	}

	m = press(t, m, tea.KeyMsg{Type: tea.KeySpace})
	if len(m.SelectedRegions()) != 0 {
		t.Errorf("second toggle should deselect, got %v", m.SelectedRegions())
	}
}

func TestModel_ClearSelection(t *testing.T) {
	m := newTestModel(t, Options{Selected: []model.Region{{Code: "1", Name: "Europe"}}})
	m = press(t, m, keyRunes("2"))

	s := m.surface()
	if s == nil || !s.IsSelected("1") {
		t.Fatal("initial selection should reach the mounted surface")
	}
	m = press(t, m, keyRunes("c"))
	if len(m.SelectedRegions()) != 0 || s.IsSelected("1") {
		t.Error("clear should empty both the binding and the surface")
	}
}

func TestModel_SelectionSurvivesHide(t *testing.T) {
	m := newTestModel(t, Options{})
	m = press(t, m, keyRunes("2"), tea.KeyMsg{Type: tea.KeySpace})
	m = press(t, m, keyRunes("1"), keyRunes("2"))

	if s := m.surface(); s == nil || !s.IsSelected("1") {
		t.Error("a remounted surface should pick up the bound selection")
	}
}

func TestModel_CopySelection(t *testing.T) {
	m := newTestModel(t, Options{Selected: []model.Region{
		{Code: "7", Name: "Northern America"},
		{Code: "1", Name: "Europe"},
	}})
	var copied string
	m.copyToClipboard = func(s string) error {
		copied = s
		return nil
	}
	m = press(t, m, keyRunes("2"), keyRunes("y"))
	if copied != "7,1" {
		t.Errorf("copied %q, want 7,1", copied)
	}
	if m.statusIsError || !strings.Contains(m.statusMsg, "Copied 7,1") {
		t.Errorf("status = %q", m.statusMsg)
	}

	m.copyToClipboard = func(string) error { return errors.New("no display") }
	m = press(t, m, keyRunes("y"))
	if !m.statusIsError || !strings.Contains(m.statusMsg, "no display") {
		t.Errorf("status = %q", m.statusMsg)
	}
}

func TestModel_CopyWithoutSelection(t *testing.T) {
	m := newTestModel(t, Options{})
	called := false
	m.copyToClipboard = func(string) error {
		called = true
		return nil
	}
	m = press(t, m, keyRunes("2"), keyRunes("y"))
	if called {
		t.Error("nothing should be copied without a selection")
	}
	if !m.statusIsError {
		t.Error("expected an error status")
	}
}

func TestModel_TreePicker(t *testing.T) {
	m := newTestModel(t, Options{})

	m = press(t, m, keyRunes("t"))
	if !m.showTreePicker || m.CurrentContext() != ContextTreePicker {
		t.Fatal("t should open the tree picker")
	}
	if !strings.Contains(m.View(), "Language Trees") {
		t.Error("picker overlay not rendered")
	}

	m = press(t, m, keyRunes("j"))
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("enter should produce a command")
	}
	msg, ok := cmd().(TreeSelectedMsg)
	if !ok || msg.Tree.Name != "pair" {
		t.Fatalf("unexpected message %#v", cmd())
	}
	m = update(t, m, msg)
	if m.showTreePicker || m.CurrentTree() != "pair" {
		t.Errorf("picker open=%v tree=%q", m.showTreePicker, m.CurrentTree())
	}
	if m.tree.LeafCount() != 2 {
		t.Errorf("expected the pair tree on screen, %d leaves", m.tree.LeafCount())
	}
}

func TestModel_TreePickerCancel(t *testing.T) {
	m := newTestModel(t, Options{})
	m = press(t, m, keyRunes("t"), tea.KeyMsg{Type: tea.KeyEsc})
	if m.showTreePicker || m.CurrentTree() != "family" {
		t.Errorf("esc should close the picker without changing the tree")
	}
}

func TestModel_StepTrees(t *testing.T) {
	m := newTestModel(t, Options{})
	m = press(t, m, keyRunes("]"))
	if m.CurrentTree() != "pair" {
		t.Errorf("] -> %q", m.CurrentTree())
	}
	m = press(t, m, keyRunes("]"))
	if m.CurrentTree() != "family" {
		t.Errorf("] should wrap around, got %q", m.CurrentTree())
	}
	m = press(t, m, keyRunes("["))
	if m.CurrentTree() != "pair" {
		t.Errorf("[ -> %q", m.CurrentTree())
	}
}

func TestModel_BrokenTreeShowsError(t *testing.T) {
	snap := testSnapshot(t, strings.Replace(testPayload, `"(A:1,B:2)Root:0;"`, `"((A,B);"`, 1))
	m := newTestModel(t, Options{Snapshot: snap})

	m = press(t, m, keyRunes("]"))
	if !m.statusIsError || !strings.Contains(m.statusMsg, "Tree pair") {
		t.Errorf("status = %q", m.statusMsg)
	}
	if !strings.Contains(m.View(), "No language tree to display") {
		t.Error("a broken tree should leave the empty state on screen")
	}
}

func TestModel_SnapshotReload(t *testing.T) {
	m := newTestModel(t, Options{Tree: "pair"})
	m = press(t, m, keyRunes("2"))

	changed := strings.Replace(testPayload, `"coordinates": [2.35, 48.85]`, `"coordinates": [-100.0, 45.0]`, 1)
	m = update(t, m, SnapshotReadyMsg{Snapshot: testSnapshot(t, changed)})

	if m.CurrentTree() != "pair" {
		t.Errorf("reload should keep the current tree, got %q", m.CurrentTree())
	}
	if m.statusIsError || !strings.Contains(m.statusMsg, "Reloaded: 2 societies, 2 trees") {
		t.Errorf("status = %q", m.statusMsg)
	}
	if got := len(m.surface().Markers()); got != 2 {
		t.Errorf("markers after reload = %d, want 2", got)
	}
	if m.mapPane.counts["7"] != 2 || m.mapPane.counts["1"] != 0 {
		t.Errorf("region counts = %v", m.mapPane.counts)
	}
}

func TestModel_SnapshotError(t *testing.T) {
	m := newTestModel(t, Options{})
	m = update(t, m, SnapshotErrorMsg{Err: errors.New("bad json"), Recoverable: true})
	if !m.statusIsError || !strings.Contains(m.View(), "Reload failed: bad json") {
		t.Errorf("status = %q", m.statusMsg)
	}
}

func TestModel_ReportFollowsSelection(t *testing.T) {
	m := newTestModel(t, Options{})
	m = press(t, m, keyRunes("3"), keyRunes("G"))
	if !strings.Contains(m.report.View(), "None selected") {
		t.Errorf("report should show an empty selection:\n%s", m.report.View())
	}

	m = press(t, m, keyRunes("2"), tea.KeyMsg{Type: tea.KeySpace}, keyRunes("3"), keyRunes("G"))
	if !strings.Contains(m.report.View(), "Europe") {
		t.Errorf("report should list the selected region:\n%s", m.report.View())
	}
}

func TestModel_HelpOverlay(t *testing.T) {
	m := newTestModel(t, Options{})
	m = press(t, m, keyRunes("2"), keyRunes("?"))
	if m.CurrentContext() != ContextHelp {
		t.Fatalf("context = %s", m.CurrentContext())
	}
	view := m.View()
	if !strings.Contains(view, "Quick Reference") || !strings.Contains(view, "## Map") {
		t.Errorf("help overlay should show map help:\n%s", view)
	}
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.showHelp {
		t.Error("esc should close help")
	}
}

func TestModel_Quit(t *testing.T) {
	m := newTestModel(t, Options{})
	_, cmd := m.Update(keyRunes("q"))
	if cmd == nil {
		t.Fatal("q should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Errorf("expected QuitMsg, got %T", cmd())
	}
}

func TestGetContextHelp(t *testing.T) {
	for _, ctx := range []Context{ContextTree, ContextMap, ContextReport, ContextTreePicker, ContextHelp} {
		if GetContextHelp(ctx) == contextHelpGeneric {
			t.Errorf("context %s has no specific help", ctx)
		}
	}
	if GetContextHelp(Context("unknown")) != contextHelpGeneric {
		t.Error("unknown contexts should fall back to generic help")
	}
}
