package export

import (
	"bytes"
	"encoding/xml"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/Dicklesworthstone/dplace_viewer/pkg/geomap"
	"github.com/Dicklesworthstone/dplace_viewer/pkg/model"
	"github.com/Dicklesworthstone/dplace_viewer/pkg/render"
)

func sampleResults() *model.Results {
	return &model.Results{
		Societies: []model.SocietyResult{
			{
				Society: model.Society{ID: 1, Name: "Society A", ISOCode: "A",
					Location: model.Location{Type: "Point", Coordinates: model.LonLat{-98, 38}}},
				VariableCodedValues: []model.VariableCodedValue{
					{Variable: 1, VariableName: "Subsistence", CodedValue: "1"},
				},
			},
			{
				Society: model.Society{ID: 2, Name: "Society C", ISOCode: "C",
					Location: model.Location{Type: "Point", Coordinates: model.LonLat{2.35, 48.85}}},
				VariableCodedValues: []model.VariableCodedValue{
					{Variable: 1, VariableName: "Subsistence", CodedValue: "2"},
				},
			},
		},
		CodeIDs: map[string][]model.CodeDescription{"1": {{Code: "1"}, {Code: "2"}}},
		Variables: []model.VariableDescription{{ID: 1, Name: "Subsistence"}},
		Trees: []model.LanguageTree{
			{Name: "family", NewickString: "((A:1,B:2)AB:1,C:3)Root:0;"},
			{Name: "pair", NewickString: "(A:1,B:2)Root:0;"},
		},
	}
}

// assertWellFormed fails when s is not a well-formed XML document.
func assertWellFormed(t *testing.T, s string) {
	t.Helper()
	var anyXML struct{}
	if err := xml.Unmarshal([]byte(s), &anyXML); err != nil {
		t.Fatalf("output is not well-formed XML: %v", err)
	}
}

func svgSize(t *testing.T, s string) (int, int) {
	t.Helper()
	m := regexp.MustCompile(`<svg[^>]*width="(\d+)"[^>]*height="(\d+)"`).FindStringSubmatch(s)
	if m == nil {
		t.Fatalf("no width/height on svg element")
	}
	w, _ := strconv.Atoi(m[1])
	h, _ := strconv.Atoi(m[2])
	return w, h
}

func TestRenderTree_SVG(t *testing.T) {
	results := sampleResults()
	var buf bytes.Buffer
	if err := RenderTree(&buf, results.Trees[0], results, TreeOptions{}); err != nil {
		t.Fatalf("RenderTree: %v", err)
	}
	out := buf.String()
	assertWellFormed(t, out)

	w, h := svgSize(t, out)
	// 700 + 300 label room + 40 margin; 3 leaves * 18 + 30 + title.
	if w < 1040 {
		t.Errorf("width = %d, want at least 1040", w)
	}
	if h != 3*18+30+28 {
		t.Errorf("height = %d, want %d", h, 3*18+30+28)
	}

	if got := strings.Count(out, `class="marker"`); got != 2 {
		t.Errorf("marker count = %d, want 2 (A and C)", got)
	}
	if got := strings.Count(out, `class="label"`); got != 3 {
		t.Errorf("label count = %d, want 3", got)
	}
	if got := strings.Count(out, `class="link"`); got != 4 {
		t.Errorf("link count = %d, want 4", got)
	}
	if !strings.Contains(out, "hsl(120,100%,50%)") || !strings.Contains(out, "hsl(240,100%,50%)") {
		t.Error("expected marker hues 120 and 240")
	}
	if !strings.Contains(out, `>family</text>`) {
		t.Error("expected tree title")
	}
	if !strings.Contains(out, `stroke="#cccccc"`) {
		t.Error("expected link stroke color")
	}
}

func TestRenderTree_HideTitle(t *testing.T) {
	results := sampleResults()
	var buf bytes.Buffer
	if err := RenderTree(&buf, results.Trees[1], results, TreeOptions{HideTitle: true}); err != nil {
		t.Fatalf("RenderTree: %v", err)
	}
	out := buf.String()
	if strings.Contains(out, `class="title"`) {
		t.Error("title rendered despite HideTitle")
	}
	if _, h := svgSize(t, out); h != 2*18+30 {
		t.Errorf("height = %d, want %d", h, 2*18+30)
	}
}

func TestRenderTree_FreshDocumentEachCall(t *testing.T) {
	results := sampleResults()
	var first, second bytes.Buffer
	if err := RenderTree(&first, results.Trees[0], results, TreeOptions{}); err != nil {
		t.Fatal(err)
	}
	if err := RenderTree(&second, results.Trees[0], results, TreeOptions{}); err != nil {
		t.Fatal(err)
	}
	if first.String() != second.String() {
		t.Error("rendering the same tree twice produced different documents")
	}
	if strings.Count(second.String(), "<svg") != 1 {
		t.Error("expected exactly one svg element per render")
	}
}

func TestRenderTree_Errors(t *testing.T) {
	tests := []struct {
		name  string
		tree  model.LanguageTree
		phase string
	}{
		{"BadNewick", model.LanguageTree{Name: "bad", NewickString: "((A,B);"}, "parse"},
		{"EmptyNewick", model.LanguageTree{Name: "empty"}, "layout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := RenderTree(&buf, tt.tree, sampleResults(), TreeOptions{})
			if !errors.Is(err, render.ErrRenderFailed) {
				t.Fatalf("expected ErrRenderFailed, got %v", err)
			}
			var re *render.Error
			if !errors.As(err, &re) || re.Widget != "tree" || re.Phase != tt.phase {
				t.Errorf("unexpected render error %+v", re)
			}
			if buf.Len() != 0 {
				t.Errorf("failed render wrote %d bytes", buf.Len())
			}
		})
	}
}

func TestRenderTree_UnmatchedLeavesHaveNoMarkers(t *testing.T) {
	var buf bytes.Buffer
	tree := model.LanguageTree{Name: "x", NewickString: "(X:1,Y:1);"}
	if err := RenderTree(&buf, tree, sampleResults(), TreeOptions{}); err != nil {
		t.Fatalf("RenderTree: %v", err)
	}
	if strings.Contains(buf.String(), `class="marker"`) {
		t.Error("unexpected markers for leaves without societies")
	}
}

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func TestRenderTreePNG(t *testing.T) {
	results := sampleResults()
	var buf bytes.Buffer
	if err := RenderTreePNG(&buf, results.Trees[0], results, TreeOptions{}); err != nil {
		t.Fatalf("RenderTreePNG: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), pngMagic) {
		t.Error("output is not a PNG")
	}
}

func newSampleMap(t *testing.T, selected []model.Region) *MapView {
	t.Helper()
	atlas, err := geomap.DefaultAtlas()
	if err != nil {
		t.Fatalf("DefaultAtlas: %v", err)
	}
	view, err := NewMapView(sampleResults(), selected, atlas, 0, 0)
	if err != nil {
		t.Fatalf("NewMapView: %v", err)
	}
	t.Cleanup(view.Close)
	return view
}

func TestRenderMap_SVG(t *testing.T) {
	view := newSampleMap(t, []model.Region{{Code: "7", Name: "Northern America"}})

	var buf bytes.Buffer
	if err := RenderMap(&buf, view.Surface(), MapOptions{Title: "Results"}); err != nil {
		t.Fatalf("RenderMap: %v", err)
	}
	out := buf.String()
	assertWellFormed(t, out)

	if got := strings.Count(out, `class="marker"`); got != 2 {
		t.Errorf("marker count = %d, want 2", got)
	}
	if got := strings.Count(out, `class="region`); got != 9 {
		t.Errorf("region count = %d, want 9", got)
	}
	if got := strings.Count(out, `class="region selected"`); got != 1 {
		t.Errorf("selected regions = %d, want 1", got)
	}
	if !strings.Contains(out, `data-code="7"`) || !strings.Contains(out, `fill="#113"`) {
		t.Error("selected region not drawn with the selected fill")
	}
	if !strings.Contains(out, "Selected: Northern America") {
		t.Error("expected selection caption")
	}
	if w, _ := svgSize(t, out); w != geomap.DefaultWidth {
		t.Errorf("width = %d, want %v", w, geomap.DefaultWidth)
	}
}

func TestRenderMap_HoverOpacity(t *testing.T) {
	view := newSampleMap(t, nil)
	if err := view.Surface().Hover("2"); err != nil {
		t.Fatalf("Hover: %v", err)
	}
	if got := view.Region.Get(); got != "2" {
		t.Errorf("hovered region output = %q, want 2", got)
	}
	var buf bytes.Buffer
	if err := RenderMap(&buf, view.Surface(), MapOptions{}); err != nil {
		t.Fatal(err)
	}
	if !regexp.MustCompile(`data-code="2"[^>]*fill-opacity="0.8"`).MatchString(buf.String()) {
		t.Error("hovered region not drawn at hover opacity")
	}
}

func TestRenderMap_RemovedSurface(t *testing.T) {
	view := newSampleMap(t, nil)
	s := view.Surface()
	view.Close()

	var buf bytes.Buffer
	err := RenderMap(&buf, s, MapOptions{})
	if !errors.Is(err, render.ErrRenderFailed) || !errors.Is(err, geomap.ErrSurfaceRemoved) {
		t.Fatalf("expected render failure wrapping ErrSurfaceRemoved, got %v", err)
	}
	if err := RenderMap(&buf, nil, MapOptions{}); !errors.Is(err, render.ErrRenderFailed) {
		t.Errorf("nil surface: got %v", err)
	}
	if buf.Len() != 0 {
		t.Error("failed render wrote output")
	}
}

func TestRenderMapPNG(t *testing.T) {
	view := newSampleMap(t, []model.Region{{Code: "1"}})
	var buf bytes.Buffer
	if err := RenderMapPNG(&buf, view.Surface(), MapOptions{Title: "x"}); err != nil {
		t.Fatalf("RenderMapPNG: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), pngMagic) {
		t.Error("output is not a PNG")
	}
}

func TestMapView_UserSelectionReachesBinding(t *testing.T) {
	view := newSampleMap(t, nil)
	if err := view.Surface().SelectRegions("7", "1"); err != nil {
		t.Fatalf("SelectRegions: %v", err)
	}
	got := view.Selected.Get()
	want := []model.Region{{Code: "7", Name: "Northern America"}, {Code: "1", Name: "Europe"}}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("selected = %v, want %v", got, want)
	}
}
