package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Dicklesworthstone/dplace_viewer/pkg/config"
	"github.com/Dicklesworthstone/dplace_viewer/pkg/geomap"
	"github.com/Dicklesworthstone/dplace_viewer/pkg/loader"
	"github.com/Dicklesworthstone/dplace_viewer/pkg/model"
)

const testPayload = `{
  "societies": [
    {
      "society": {"id": 1, "name": "Society A", "iso_code": "A",
                  "location": {"type": "Point", "coordinates": [-98.0, 38.0]}},
      "variable_coded_values": [{"variable": 1, "variable_name": "Subsistence", "coded_value": "1"}]
    },
    {
      "society": {"id": 2, "name": "Society C", "iso_code": "C",
                  "location": {"type": "Point", "coordinates": [2.35, 48.85]}},
      "variable_coded_values": [{"variable": 1, "coded_value": "2"}]
    }
  ],
  "code_ids": {"1": [{"code": "1"}, {"code": "2"}]},
  "trees": [
    {"name": "family", "newick_string": "((A:1,B:2)AB:1,C:3)Root:0;"},
    {"name": "pair", "newick_string": "(A:1,B:2)Root:0;"}
  ]
}`

// project creates a directory holding a payload and a .dv/config.yaml that
// points at it. It returns the directory and the config path.
func project(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "results.json"), []byte(testPayload), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := config.DefaultConfig()
	cfg.Payload = "results.json"
	path, err := config.Write(dir, cfg)
	if err != nil {
		t.Fatalf("config.Write: %v", err)
	}
	return dir, path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := newApp(&out).Run(context.Background(), append([]string{"dv"}, args...))
	return out.String(), err
}

func TestOutputFormat(t *testing.T) {
	tests := []struct {
		output, format string
		want           string
		wantErr        bool
	}{
		{"", "", formatSVG, false},
		{"tree.svg", "", formatSVG, false},
		{"tree.PNG", "", formatPNG, false},
		{"tree.svg", "png", formatPNG, false},
		{"tree", "both", formatBoth, false},
		{"", "both", "", true},
		{"-", "both", "", true},
		{"tree.svg", "gif", "", true},
	}
	for _, tt := range tests {
		got, err := outputFormat(tt.output, tt.format)
		if (err != nil) != tt.wantErr {
			t.Errorf("outputFormat(%q, %q) error = %v", tt.output, tt.format, err)
			continue
		}
		if got != tt.want {
			t.Errorf("outputFormat(%q, %q) = %q, want %q", tt.output, tt.format, got, tt.want)
		}
	}
}

func TestOutputPaths(t *testing.T) {
	if got := outputPaths("-", formatSVG); len(got) != 1 || got[0] != "" {
		t.Errorf("stdout paths = %q", got)
	}
	got := outputPaths("out/family.svg", formatBoth)
	if len(got) != 2 || got[0] != "out/family.svg" || got[1] != "out/family.png" {
		t.Errorf("both paths = %q", got)
	}
}

func TestSelection(t *testing.T) {
	atlas, err := geomap.DefaultAtlas()
	if err != nil {
		t.Fatal(err)
	}

	got, err := selection(atlas, "", []string{"7, 1", "7"})
	if err != nil {
		t.Fatalf("selection: %v", err)
	}
	want := []model.Region{{Code: "7", Name: "Northern America"}, {Code: "1", Name: "Europe"}}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("selection = %v, want %v", got, want)
	}

	file := filepath.Join(t.TempDir(), "regions.json")
	if err := os.WriteFile(file, []byte(`[{"code": "2", "name": "Afrique"}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err = selection(atlas, file, nil)
	if err != nil {
		t.Fatalf("selection from file: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Afrique" {
		t.Errorf("names from the file should be kept, got %v", got)
	}

	if _, err := selection(atlas, "", []string{"XX"}); !errors.Is(err, geomap.ErrUnknownRegion) {
		t.Errorf("expected ErrUnknownRegion, got %v", err)
	}
}

func TestChooseTree(t *testing.T) {
	results, err := loader.Decode([]byte(testPayload))
	if err != nil {
		t.Fatal(err)
	}
	f := &Flags{interactive: func() bool { return false }}

	tree, err := f.chooseTree(results, "pair")
	if err != nil || tree.Name != "pair" {
		t.Errorf("named tree: %v, %v", tree.Name, err)
	}
	if _, err := f.chooseTree(results, "nope"); err == nil || !strings.Contains(err.Error(), "family, pair") {
		t.Errorf("missing tree should list the available ones, got %v", err)
	}
	if tree, _ := f.chooseTree(results, ""); tree.Name != "family" {
		t.Errorf("non-interactive default = %q, want first tree", tree.Name)
	}

	var offered []string
	f.interactive = func() bool { return true }
	f.pickTree = func(trees []model.LanguageTree) (string, error) {
		offered = treeNames(trees)
		return "pair", nil
	}
	if tree, _ := f.chooseTree(results, ""); tree.Name != "pair" {
		t.Errorf("interactive pick = %q", tree.Name)
	}
	if strings.Join(offered, ",") != "family,pair" {
		t.Errorf("offered %v", offered)
	}

	f.pickTree = func([]model.LanguageTree) (string, error) { return "", errors.New("cancelled") }
	if _, err := f.chooseTree(results, ""); err == nil {
		t.Error("a cancelled pick should fail")
	}

	if _, err := f.chooseTree(&model.Results{}, ""); err == nil {
		t.Error("a payload without trees should fail")
	}
}

func TestPayloadPath(t *testing.T) {
	f := &Flags{}
	if _, err := f.payloadPath(""); !errors.Is(err, errNoPayload) {
		t.Errorf("expected errNoPayload, got %v", err)
	}
	f.Config = &config.Config{Payload: "results.json", Root: "/data"}
	if got, _ := f.payloadPath(""); got != filepath.Join("/data", "results.json") {
		t.Errorf("configured payload = %q", got)
	}
	if got, _ := f.payloadPath("other.json"); got != "other.json" {
		t.Errorf("argument should win, got %q", got)
	}
}

func TestTreeCommand_SVG(t *testing.T) {
	dir, cfg := project(t)
	out := filepath.Join(dir, "family.svg")

	if _, err := run(t, "--config", cfg, "tree", "--tree", "family", "-o", out); err != nil {
		t.Fatalf("tree: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "<svg") || !strings.Contains(string(data), "family") {
		t.Errorf("unexpected SVG:\n%s", data)
	}
}

func TestTreeCommand_Stdout(t *testing.T) {
	dir, cfg := project(t)
	out, err := run(t, "--config", cfg, "tree", "--tree", "pair", "--no-title", filepath.Join(dir, "results.json"))
	if err != nil {
		t.Fatalf("tree: %v", err)
	}
	if !strings.Contains(out, "<svg") {
		t.Errorf("expected SVG on stdout, got %q", out)
	}
}

func TestTreeCommand_BothFormats(t *testing.T) {
	dir, cfg := project(t)
	base := filepath.Join(dir, "out", "family")
	if err := os.MkdirAll(filepath.Dir(base), 0o755); err != nil {
		t.Fatal(err)
	}

	if _, err := run(t, "--config", cfg, "tree", "--tree", "family", "--format", "both", "-o", base); err != nil {
		t.Fatalf("tree: %v", err)
	}
	svg, err := os.ReadFile(base + ".svg")
	if err != nil || !strings.Contains(string(svg), "<svg") {
		t.Errorf("svg missing or invalid: %v", err)
	}
	png, err := os.ReadFile(base + ".png")
	if err != nil || !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Errorf("png missing or invalid: %v", err)
	}
}

func TestTreeCommand_Errors(t *testing.T) {
	dir, cfg := project(t)

	_, err := run(t, "--config", cfg, "tree", "--tree", "nope")
	if err == nil || !strings.Contains(err.Error(), `no tree named "nope"`) {
		t.Errorf("unknown tree: %v", err)
	}

	broken := filepath.Join(dir, "broken.json")
	if err := os.WriteFile(broken, []byte(`{"trees": [{"name": "bad", "newick_string": "((A,B);"}]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "bad.svg")
	if _, err := run(t, "--config", cfg, "tree", "-o", out, broken); err == nil {
		t.Error("a malformed tree should fail")
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("a failed render should not leave a file behind")
	}
}

func TestMapCommand(t *testing.T) {
	_, cfg := project(t)
	out, err := run(t, "--config", cfg, "map", "--select", "1", "--title", "Societies")
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	if !strings.Contains(out, "<svg") || !strings.Contains(out, "Societies") {
		t.Errorf("unexpected map output:\n%s", out)
	}

	if _, err := run(t, "--config", cfg, "map", "--select", "XX"); !errors.Is(err, geomap.ErrUnknownRegion) {
		t.Errorf("expected ErrUnknownRegion, got %v", err)
	}
}

func TestMapCommand_BothFormats(t *testing.T) {
	dir, cfg := project(t)
	base := filepath.Join(dir, "world")
	if _, err := run(t, "--config", cfg, "map", "--select", "7", "--format", "both", "-o", base); err != nil {
		t.Fatalf("map: %v", err)
	}
	svg, err := os.ReadFile(base + ".svg")
	if err != nil || !strings.Contains(string(svg), "<svg") {
		t.Errorf("svg missing or invalid: %v", err)
	}
	png, err := os.ReadFile(base + ".png")
	if err != nil || !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Errorf("png missing or invalid: %v", err)
	}
}

func TestWriteBoth_FailureRemovesFile(t *testing.T) {
	dir := t.TempDir()
	paths := []string{filepath.Join(dir, "a.svg"), filepath.Join(dir, "a.png")}
	f := &Flags{Out: io.Discard}
	err := f.writeBoth(context.Background(), paths, map[string]func(io.Writer) error{
		formatSVG: func(w io.Writer) error { _, err := io.WriteString(w, "<svg/>"); return err },
		formatPNG: func(io.Writer) error { return errors.New("boom") },
	})
	if err == nil || !strings.Contains(err.Error(), "a.png") {
		t.Fatalf("expected error naming a.png, got %v", err)
	}
	if _, err := os.Stat(paths[0]); err != nil {
		t.Errorf("svg should still be written: %v", err)
	}
	if _, err := os.Stat(paths[1]); !os.IsNotExist(err) {
		t.Error("failed png should not leave a file behind")
	}
}

func TestReportCommand(t *testing.T) {
	dir, cfg := project(t)
	out, err := run(t, "--config", cfg, "report", "--select", "1")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	for _, want := range []string{"## Selected Regions", "Europe", "Society A"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}

	file := filepath.Join(dir, "report.md")
	if _, err := run(t, "--config", cfg, "report", "-o", file); err != nil {
		t.Fatalf("report -o: %v", err)
	}
	if data, err := os.ReadFile(file); err != nil || !strings.Contains(string(data), "None selected") {
		t.Errorf("report file: %v", err)
	}
}

func TestPageCommand(t *testing.T) {
	dir, cfg := project(t)
	file := filepath.Join(dir, "page.html")
	out, err := run(t, "--config", cfg, "page", "-o", file)
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if !strings.Contains(out, file) {
		t.Errorf("output should name the page, got %q", out)
	}
	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "<svg") {
		t.Error("page should embed the diagrams")
	}
}

func TestDiscoverCommand(t *testing.T) {
	dir, cfg := project(t)
	if err := os.WriteFile(filepath.Join(dir, "notes.json"), []byte(`{"a": 1}`), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "--config", cfg, "discover")
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if !strings.Contains(out, "results.json") || strings.Contains(out, "notes.json") {
		t.Errorf("unexpected listing:\n%s", out)
	}

	out, err = run(t, "--config", cfg, "discover", "--all", "--json", dir)
	if err != nil {
		t.Fatalf("discover --all: %v", err)
	}
	if !strings.Contains(out, `"rel": "notes.json"`) || !strings.Contains(out, `"payload": false`) {
		t.Errorf("unexpected JSON:\n%s", out)
	}
}

func TestInitCommand(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "results.json"), []byte(testPayload), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "init", dir)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if !strings.Contains(out, "Default payload: results.json") {
		t.Errorf("init should pick up the payload, got %q", out)
	}
	cfg, err := config.Load(filepath.Join(dir, config.Dir, config.FileName))
	if err != nil {
		t.Fatalf("written config does not load: %v", err)
	}
	if cfg.Payload != "results.json" {
		t.Errorf("payload = %q", cfg.Payload)
	}

	if _, err := run(t, "init", dir); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Errorf("second init should refuse to overwrite, got %v", err)
	}
}

func TestBuild(t *testing.T) {
	if got := build(); !strings.HasPrefix(got, "dev") && !strings.HasPrefix(got, "v") {
		t.Errorf("build() = %q", got)
	}
}
