package export

import (
	"bytes"
	"fmt"
	"html"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"github.com/Dicklesworthstone/dplace_viewer/pkg/geomap"
	"github.com/Dicklesworthstone/dplace_viewer/pkg/model"
)

// PageOptions configures GeneratePageHTML.
type PageOptions struct {
	Results     *model.Results
	Selected    []model.Region
	Atlas       *geomap.Atlas // Defaults to the embedded atlas
	Title       string
	Path        string // Output path for SavePage; auto-generated when empty
	ProjectName string // Used for auto-naming
	Tree        TreeOptions
	MapWidth    float64
	MapHeight   float64
}

// pageData is embedded in the page as JSON for its script.
type pageData struct {
	Trees    []string       `json:"trees"`
	Selected []model.Region `json:"selected"`
	Regions  []model.Region `json:"regions"`
}

// GeneratePageFilename creates an auto-generated filename.
// Format: {project}_{YYYYMMDD}_{HHMMSS}_{gitshort}.html
func GeneratePageFilename(projectName string) string {
	dateStr := time.Now().Format("20060102_150405")

	gitShort := "nogit"
	cmd := exec.Command("git", "rev-parse", "--short", "HEAD")
	if output, err := cmd.Output(); err == nil {
		gitShort = strings.TrimSpace(string(output))
	}

	safeName := strings.ReplaceAll(projectName, " ", "_")
	safeName = strings.ReplaceAll(safeName, "/", "_")

	return fmt.Sprintf("%s_%s_%s.html", safeName, dateStr, gitShort)
}

// GeneratePageHTML renders a self-contained HTML page holding every tree of
// the payload and the map with the selected regions. Trees and the map are
// rendered concurrently.
func GeneratePageHTML(opts PageOptions) (string, error) {
	if opts.Results == nil {
		return "", fmt.Errorf("no results to export")
	}
	atlas := opts.Atlas
	if atlas == nil {
		var err error
		if atlas, err = geomap.DefaultAtlas(); err != nil {
			return "", err
		}
	}

	trees := opts.Results.Trees
	treeSVG := make([]string, len(trees))
	var mapSVG string
	var selected []model.Region

	var g errgroup.Group
	for i, t := range trees {
		g.Go(func() error {
			var buf bytes.Buffer
			if err := RenderTree(&buf, t, opts.Results, opts.Tree); err != nil {
				return err
			}
			treeSVG[i] = stripXMLHeader(buf.String())
			return nil
		})
	}
	g.Go(func() error {
		view, err := NewMapView(opts.Results, opts.Selected, atlas, opts.MapWidth, opts.MapHeight)
		if err != nil {
			return err
		}
		defer view.Close()
		var buf bytes.Buffer
		if err := RenderMap(&buf, view.Surface(), MapOptions{}); err != nil {
			return err
		}
		mapSVG = stripXMLHeader(buf.String())
		selected = view.Selected.Get()
		return nil
	})
	if err := g.Wait(); err != nil {
		return "", err
	}

	data := pageData{Selected: selected}
	for _, t := range trees {
		data.Trees = append(data.Trees, t.Name)
	}
	for _, r := range atlas.Regions() {
		data.Regions = append(data.Regions, model.Region{Code: r.Code, Name: r.Name})
	}
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal page data: %w", err)
	}

	title := opts.Title
	if title == "" {
		title = "D-PLACE Results"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, pageHead, html.EscapeString(title), html.EscapeString(title),
		len(opts.Results.Societies), len(trees), time.Now().Format(time.RFC1123))

	sb.WriteString(`<section id="trees">` + "\n")
	if len(trees) == 0 {
		sb.WriteString(`<p class="empty">No trees in this payload.</p>` + "\n")
	}
	if len(trees) > 1 {
		sb.WriteString(`<nav class="tree-tabs">`)
		for i, t := range trees {
			fmt.Fprintf(&sb, `<button data-tree="%d">%s</button>`, i, html.EscapeString(t.Name))
		}
		sb.WriteString("</nav>\n")
	}
	for i, svg := range treeSVG {
		fmt.Fprintf(&sb, `<figure class="tree" data-tree="%d">%s</figure>`+"\n", i, svg)
	}
	sb.WriteString("</section>\n")

	fmt.Fprintf(&sb, `<section id="map"><figure>%s</figure><ul id="selected"></ul></section>`+"\n", mapSVG)
	fmt.Fprintf(&sb, pageTail, string(dataJSON))
	return sb.String(), nil
}

// SavePage writes the page to opts.Path (or an auto-generated name) and
// returns the path written.
func SavePage(opts PageOptions) (string, error) {
	content, err := GeneratePageHTML(opts)
	if err != nil {
		return "", err
	}

	outputPath := opts.Path
	if outputPath == "" {
		projectName := opts.ProjectName
		if projectName == "" {
			projectName = "dplace"
		}
		outputPath = GeneratePageFilename(projectName)
	}
	if !strings.HasSuffix(strings.ToLower(outputPath), ".html") {
		outputPath = strings.TrimSuffix(outputPath, filepath.Ext(outputPath)) + ".html"
	}

	if err := os.WriteFile(outputPath, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("write page: %w", err)
	}
	return outputPath, nil
}

func stripXMLHeader(s string) string {
	if strings.HasPrefix(s, "<?xml") {
		if i := strings.Index(s, "?>"); i >= 0 {
			s = s[i+2:]
		}
	}
	return strings.TrimSpace(s)
}

const pageHead = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: Arial, sans-serif; margin: 24px; color: #333; background: #fff; }
header .meta { color: #777; font-size: 13px; }
.tree-tabs button { margin-right: 4px; padding: 4px 10px; border: 1px solid #ccc; background: #f7f7f7; cursor: pointer; }
.tree-tabs button.active { background: #428bca; color: #fff; border-color: #357ebd; }
figure { margin: 12px 0; overflow-x: auto; }
path.region { cursor: pointer; }
path.region:hover { fill-opacity: 0.8; }
#selected li { font-size: 13px; }
.empty { color: #777; font-style: italic; }
</style>
</head>
<body>
<header>
<h1>%s</h1>
<p class="meta">%d societies, %d trees. Generated %s.</p>
</header>
`

const pageTail = `<script>
const DATA = %s;
const names = {};
DATA.regions.forEach(r => { names[r.code] = r.name; });
let selected = (DATA.selected || []).map(r => r.code);

function showTree(i) {
  document.querySelectorAll('figure.tree').forEach(f => {
    f.style.display = (DATA.trees.length < 2 || f.dataset.tree === String(i)) ? '' : 'none';
  });
  document.querySelectorAll('.tree-tabs button').forEach(b => {
    b.classList.toggle('active', b.dataset.tree === String(i));
  });
}
document.querySelectorAll('.tree-tabs button').forEach(b => {
  b.onclick = () => showTree(b.dataset.tree);
});
showTree(0);

function renderSelected() {
  const ul = document.getElementById('selected');
  ul.innerHTML = '';
  selected.forEach(code => {
    const li = document.createElement('li');
    li.textContent = code + ' ' + (names[code] || '');
    ul.appendChild(li);
  });
  document.querySelectorAll('path.region').forEach(p => {
    const on = selected.includes(p.dataset.code);
    p.classList.toggle('selected', on);
    p.setAttribute('fill', on ? '#113' : '#428bca');
  });
}
document.querySelectorAll('path.region').forEach(p => {
  p.onclick = () => {
    const code = p.dataset.code;
    selected = selected.includes(code) ? selected.filter(c => c !== code) : selected.concat([code]);
    renderSelected();
    if (location.protocol.startsWith('http')) {
      fetch('/regions', { method: 'POST', headers: { 'Content-Type': 'application/json' }, body: JSON.stringify(selected) });
    }
  };
});
renderSelected();
</script>
</body>
</html>
`
