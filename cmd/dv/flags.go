package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/Dicklesworthstone/dplace_viewer/pkg/config"
	"github.com/Dicklesworthstone/dplace_viewer/pkg/export"
	"github.com/Dicklesworthstone/dplace_viewer/pkg/geomap"
	"github.com/Dicklesworthstone/dplace_viewer/pkg/loader"
	"github.com/Dicklesworthstone/dplace_viewer/pkg/model"
	"github.com/Dicklesworthstone/dplace_viewer/pkg/phylo"
)

// Flags holds the global flags and the state the Before hook prepares.
type Flags struct {
	LogLevel   string
	LogFile    string
	ConfigPath string

	// Config is loaded in the Before hook and available to all commands
	Config *config.Config

	Out io.Writer

	// interactive reports whether prompts may be shown; tests replace it
	interactive func() bool
	// pickTree asks the user for a tree; tests replace it
	pickTree func(trees []model.LanguageTree) (string, error)
}

var errNoPayload = errors.New("no payload: pass a results file or set payload in .dv/config.yaml")

// payloadPath resolves the payload argument, falling back to the configured
// payload.
func (f *Flags) payloadPath(arg string) (string, error) {
	if arg != "" {
		return arg, nil
	}
	if f.Config != nil {
		if p := f.Config.PayloadPath(); p != "" {
			return p, nil
		}
	}
	return "", errNoPayload
}

func (f *Flags) loadPayload(arg string) (*loader.Payload, error) {
	path, err := f.payloadPath(arg)
	if err != nil {
		return nil, err
	}
	return loader.Load(path)
}

// atlas loads the configured atlas, or the embedded one.
func (f *Flags) atlas() (*geomap.Atlas, error) {
	if f.Config == nil || f.Config.AtlasPath() == "" {
		return geomap.DefaultAtlas()
	}
	return geomap.LoadAtlasFile(f.Config.AtlasPath(), geomap.AtlasOptions{
		CodeKey: f.Config.Map.CodeKey,
		NameKey: f.Config.Map.NameKey,
	})
}

func (f *Flags) treeOptions() export.TreeOptions {
	if f.Config == nil {
		return export.TreeOptions{}
	}
	t := f.Config.Tree
	return export.TreeOptions{
		Layout: phylo.Options{
			Width:       t.Width,
			LeafSpacing: t.LeafSpacing,
			Separation:  t.Separation,
		},
		HideTitle: t.HideTitle,
	}
}

func (f *Flags) mapSize() (float64, float64) {
	if f.Config == nil {
		return 0, 0
	}
	return f.Config.Map.Width, f.Config.Map.Height
}

// selection builds the region selection from a regions file and explicit
// codes. Names missing from the file are filled in from the atlas; codes the
// atlas does not know are rejected.
func selection(atlas *geomap.Atlas, file string, codes []string) ([]model.Region, error) {
	var regions []model.Region
	if file != "" {
		var err error
		if regions, err = loader.LoadRegions(file); err != nil {
			return nil, err
		}
	}
	for _, c := range codes {
		for _, code := range strings.Split(c, ",") {
			if code = strings.TrimSpace(code); code != "" {
				regions = append(regions, model.Region{Code: code})
			}
		}
	}

	seen := make(map[string]bool, len(regions))
	out := regions[:0]
	for _, r := range regions {
		if seen[r.Code] {
			continue
		}
		seen[r.Code] = true
		known, ok := atlas.Region(r.Code)
		if !ok {
			return nil, fmt.Errorf("%w: %q", geomap.ErrUnknownRegion, r.Code)
		}
		if r.Name == "" {
			r.Name = known.Name
		}
		out = append(out, r)
	}
	return out, nil
}

// chooseTree picks the tree to render: the named one, the only one, the
// user's pick on a terminal, or the first one.
func (f *Flags) chooseTree(results *model.Results, name string) (model.LanguageTree, error) {
	if name != "" {
		if t, ok := results.FindTree(name); ok {
			return t, nil
		}
		return model.LanguageTree{}, fmt.Errorf("no tree named %q (have: %s)", name, strings.Join(treeNames(results.Trees), ", "))
	}
	switch len(results.Trees) {
	case 0:
		return model.LanguageTree{}, errors.New("payload has no language trees")
	case 1:
		return results.Trees[0], nil
	}

	interactive := f.interactive
	if interactive == nil {
		interactive = isTerminal
	}
	if !interactive() {
		return results.Trees[0], nil
	}
	pick := f.pickTree
	if pick == nil {
		pick = pickTreeForm
	}
	chosen, err := pick(results.Trees)
	if err != nil {
		return model.LanguageTree{}, err
	}
	t, _ := results.FindTree(chosen)
	return t, nil
}

func treeNames(trees []model.LanguageTree) []string {
	names := make([]string, len(trees))
	for i, t := range trees {
		names[i] = t.Name
	}
	return names
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stderr.Fd()))
}

// pickTreeForm shows a select prompt on stderr so stdout stays clean for
// rendered output.
func pickTreeForm(trees []model.LanguageTree) (string, error) {
	options := make([]huh.Option[string], 0, len(trees))
	for _, t := range trees {
		options = append(options, huh.NewOption(t.Name, t.Name))
	}
	choice := trees[0].Name
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Language tree").
				Description(fmt.Sprintf("%d trees in this payload", len(trees))).
				Options(options...).
				Value(&choice),
		),
	).WithTheme(huh.ThemeDracula()).WithOutput(os.Stderr)

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return "", errors.New("cancelled")
		}
		return "", err
	}
	return choice, nil
}

// Output formats.
const (
	formatSVG  = "svg"
	formatPNG  = "png"
	formatBoth = "both"
)

// outputFormat resolves the format from the flag, then the output extension.
func outputFormat(output, format string) (string, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	switch format {
	case formatSVG, formatPNG:
		return format, nil
	case formatBoth:
		if output == "" || output == "-" {
			return "", errors.New("--format both needs --output")
		}
		return format, nil
	case "":
	default:
		return "", fmt.Errorf("unknown format %q (want svg, png or both)", format)
	}
	if strings.EqualFold(filepath.Ext(output), ".png") {
		return formatPNG, nil
	}
	return formatSVG, nil
}

// outputPaths lists the files to write for a format. "" means f.Out.
func outputPaths(output, format string) []string {
	if format != formatBoth {
		if output == "-" {
			output = ""
		}
		return []string{output}
	}
	base := strings.TrimSuffix(output, filepath.Ext(output))
	return []string{base + ".svg", base + ".png"}
}

// writeOutput writes through render into path, or into f.Out when path is
// empty. A failed render leaves no partial file behind.
func (f *Flags) writeOutput(path string, render func(io.Writer) error) error {
	if path == "" {
		return render(f.Out)
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := render(file); err != nil {
		file.Close()
		os.Remove(path)
		return err
	}
	return file.Close()
}

// writeBoth renders the SVG and PNG formats to paths[0] and paths[1]
// concurrently. The renderers must only read shared state.
func (f *Flags) writeBoth(ctx context.Context, paths []string, renderers map[string]func(io.Writer) error) error {
	g, _ := errgroup.WithContext(ctx)
	for i, format := range []string{formatSVG, formatPNG} {
		path, render := paths[i], renderers[format]
		g.Go(func() error {
			if err := f.writeOutput(path, render); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			return nil
		})
	}
	return g.Wait()
}
