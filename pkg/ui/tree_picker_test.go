package ui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"

	"github.com/Dicklesworthstone/dplace_viewer/pkg/model"
)

func pickerTrees() []model.LanguageTree {
	return []model.LanguageTree{
		{Name: "austronesian", NewickString: "(A:1,B:2)Root:0;"},
		{Name: "bantu", NewickString: "(C:1,D:2)Root:0;"},
		{Name: "uralic", NewickString: "(E:1,F:2)Root:0;"},
	}
}

func TestNewTreePickerModel(t *testing.T) {
	theme := DefaultTheme(lipgloss.DefaultRenderer())
	picker := NewTreePickerModel(pickerTrees(), "bantu", theme)

	if picker.selectedIndex != 1 {
		t.Errorf("Expected current tree to be highlighted, got index %d", picker.selectedIndex)
	}
	tree, ok := picker.SelectedTree()
	if !ok || tree.Name != "bantu" {
		t.Errorf("SelectedTree() = %q, %v; want bantu", tree.Name, ok)
	}
}

func TestNewTreePickerModelUnknownCurrent(t *testing.T) {
	theme := DefaultTheme(lipgloss.DefaultRenderer())
	picker := NewTreePickerModel(pickerTrees(), "missing", theme)

	if picker.selectedIndex != 0 {
		t.Errorf("Expected selectedIndex 0 for unknown tree, got %d", picker.selectedIndex)
	}
}

func TestTreePickerNavigation(t *testing.T) {
	theme := DefaultTheme(lipgloss.DefaultRenderer())
	picker := NewTreePickerModel(pickerTrees(), "", theme)

	picker.MoveUp()
	if picker.selectedIndex != 0 {
		t.Errorf("MoveUp at top should stay at 0, got %d", picker.selectedIndex)
	}
	picker.MoveDown()
	picker.MoveDown()
	picker.MoveDown()
	if picker.selectedIndex != 2 {
		t.Errorf("MoveDown should stop at the last tree, got %d", picker.selectedIndex)
	}
	if tree, _ := picker.SelectedTree(); tree.Name != "uralic" {
		t.Errorf("Expected uralic, got %q", tree.Name)
	}
}

func TestTreePickerChoose(t *testing.T) {
	theme := DefaultTheme(lipgloss.DefaultRenderer())
	picker := NewTreePickerModel(pickerTrees(), "uralic", theme)

	cmd := picker.Choose()
	if cmd == nil {
		t.Fatal("Expected a command from Choose")
	}
	msg, ok := cmd().(TreeSelectedMsg)
	if !ok {
		t.Fatalf("Expected TreeSelectedMsg, got %T", cmd())
	}
	if msg.Tree.Name != "uralic" || msg.Tree.NewickString != "(E:1,F:2)Root:0;" {
		t.Errorf("Unexpected tree in message: %+v", msg.Tree)
	}

	empty := NewTreePickerModel(nil, "", theme)
	if empty.Choose() != nil {
		t.Error("Expected nil command for an empty picker")
	}
}

func TestTreePickerView(t *testing.T) {
	theme := DefaultTheme(lipgloss.DefaultRenderer())
	picker := NewTreePickerModel(pickerTrees(), "bantu", theme)
	picker.SetSize(80, 40)

	output := picker.View()

	mustContain := []string{
		"Language Trees",
		"austronesian",
		"bantu",
		"uralic",
		"✓",
		"j/k: navigate",
		"esc: cancel",
		"> ",
	}
	for _, expected := range mustContain {
		if !strings.Contains(output, expected) {
			t.Errorf("Expected View() to contain %q, but it didn't", expected)
		}
	}

	for _, line := range strings.Split(output, "\n") {
		if strings.Contains(line, "✓") && !strings.Contains(line, "bantu") {
			t.Errorf("Checkmark on the wrong row: %q", line)
		}
	}
}

func TestTreePickerViewEmpty(t *testing.T) {
	theme := DefaultTheme(lipgloss.DefaultRenderer())
	picker := NewTreePickerModel(nil, "", theme)

	if !strings.Contains(picker.View(), "No trees in this payload") {
		t.Error("Expected an empty-state message")
	}
}
