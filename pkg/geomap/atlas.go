package geomap

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/goccy/go-json"

	"github.com/Dicklesworthstone/dplace_viewer/pkg/model"
)

// DefaultAtlasName identifies the built-in atlas.
const DefaultAtlasName = "tdwg-level1-coarse"

//go:embed atlas/tdwg-level1.geojson
var defaultAtlasJSON []byte

// Region is one selectable area of an atlas.
type Region struct {
	Code     string
	Name     string
	Polygons []Polygon
	BBox     BBox
}

// Contains reports whether ll falls inside any of the region's polygons.
func (r *Region) Contains(ll model.LatLng) bool {
	if !r.BBox.Contains(ll) {
		return false
	}
	for _, p := range r.Polygons {
		if p.Contains(ll) {
			return true
		}
	}
	return false
}

// Atlas is the set of regions a map surface draws and selects from.
type Atlas struct {
	Name    string
	regions []*Region
	byCode  map[string]*Region
}

// AtlasOptions names the feature properties holding region codes and names.
type AtlasOptions struct {
	Name    string
	CodeKey string
	NameKey string
}

func (o AtlasOptions) withDefaults() AtlasOptions {
	if o.CodeKey == "" {
		o.CodeKey = "code"
	}
	if o.NameKey == "" {
		o.NameKey = "name"
	}
	return o
}

type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

type feature struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
	Geometry   *geometry      `json:"geometry"`
}

type geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// LoadAtlas reads a GeoJSON FeatureCollection of Polygon and MultiPolygon
// features. Features without geometry are skipped; features without a code
// are an error.
func LoadAtlas(r io.Reader, opts AtlasOptions) (*Atlas, error) {
	opts = opts.withDefaults()

	var fc featureCollection
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return nil, fmt.Errorf("decode atlas: %w", err)
	}
	if !strings.EqualFold(fc.Type, "FeatureCollection") {
		return nil, fmt.Errorf("decode atlas: expected FeatureCollection, got %q", fc.Type)
	}

	a := &Atlas{Name: opts.Name, byCode: make(map[string]*Region, len(fc.Features))}
	for i, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		code := propString(f.Properties, opts.CodeKey)
		if code == "" {
			return nil, fmt.Errorf("feature %d: missing %q property", i, opts.CodeKey)
		}
		polys, err := decodeGeometry(f.Geometry)
		if err != nil {
			return nil, fmt.Errorf("feature %d (%s): %w", i, code, err)
		}
		if len(polys) == 0 {
			continue
		}

		region, ok := a.byCode[code]
		if !ok {
			region = &Region{Code: code, Name: propString(f.Properties, opts.NameKey), BBox: emptyBBox()}
			a.byCode[code] = region
			a.regions = append(a.regions, region)
		}
		for _, p := range polys {
			region.Polygons = append(region.Polygons, p)
			region.BBox = region.BBox.union(p.BBox)
		}
	}
	sort.SliceStable(a.regions, func(i, j int) bool {
		return a.regions[i].Code < a.regions[j].Code
	})
	return a, nil
}

// LoadAtlasFile reads an atlas from a GeoJSON file. The atlas is named after
// the file unless opts.Name is set.
func LoadAtlasFile(path string, opts AtlasOptions) (*Atlas, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open atlas: %w", err)
	}
	defer f.Close()
	if opts.Name == "" {
		opts.Name = path
	}
	return LoadAtlas(f, opts)
}

var (
	defaultAtlasOnce sync.Once
	defaultAtlas     *Atlas
	defaultAtlasErr  error
)

// DefaultAtlas returns the built-in coarse atlas of botanical continents
// (TDWG level 1). It is parsed once and shared; treat it as read-only.
func DefaultAtlas() (*Atlas, error) {
	defaultAtlasOnce.Do(func() {
		defaultAtlas, defaultAtlasErr = LoadAtlas(bytes.NewReader(defaultAtlasJSON), AtlasOptions{Name: DefaultAtlasName})
	})
	return defaultAtlas, defaultAtlasErr
}

// Regions returns the regions sorted by code.
func (a *Atlas) Regions() []*Region {
	return a.regions
}

// Len returns the number of regions.
func (a *Atlas) Len() int {
	return len(a.regions)
}

// Region looks up a region by code.
func (a *Atlas) Region(code string) (*Region, bool) {
	r, ok := a.byCode[code]
	return r, ok
}

// RegionAt returns the first region containing ll.
func (a *Atlas) RegionAt(ll model.LatLng) (*Region, bool) {
	for _, r := range a.regions {
		if r.Contains(ll) {
			return r, true
		}
	}
	return nil, false
}

func decodeGeometry(g *geometry) ([]Polygon, error) {
	switch strings.ToLower(g.Type) {
	case "polygon":
		var rings [][][]float64
		if err := json.Unmarshal(g.Coordinates, &rings); err != nil {
			return nil, fmt.Errorf("polygon coordinates: %w", err)
		}
		p, err := toPolygon(rings)
		if err != nil {
			return nil, err
		}
		return []Polygon{p}, nil
	case "multipolygon":
		var parts [][][][]float64
		if err := json.Unmarshal(g.Coordinates, &parts); err != nil {
			return nil, fmt.Errorf("multipolygon coordinates: %w", err)
		}
		out := make([]Polygon, 0, len(parts))
		for _, rings := range parts {
			p, err := toPolygon(rings)
			if err != nil {
				return nil, err
			}
			out = append(out, p)
		}
		return out, nil
	default:
		return nil, nil
	}
}

func toPolygon(raw [][][]float64) (Polygon, error) {
	rings := make([][]model.LonLat, 0, len(raw))
	for _, r := range raw {
		ring := make([]model.LonLat, 0, len(r))
		for _, pos := range r {
			if len(pos) < 2 {
				return Polygon{}, fmt.Errorf("position needs at least 2 values, got %d", len(pos))
			}
			ring = append(ring, model.LonLat{pos[0], pos[1]})
		}
		rings = append(rings, ring)
	}
	return newPolygon(rings), nil
}

func propString(props map[string]any, key string) string {
	v, ok := props[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return fmt.Sprint(v)
}
