package geomap

import (
	"fmt"
	"slices"
)

// DefaultElementID is the element id a widget mounts into when none is given.
const DefaultElementID = "mapDiv"

// Default container size in pixels.
const (
	DefaultWidth  = 1140.0
	DefaultHeight = 480.0
)

// Host is where a widget mounts its surface.
type Host interface {
	Mount(id string, opts SurfaceOptions) (Surface, error)
}

// Container is the explicit mount point for map surfaces: one element id,
// a size, and the atlas every surface mounted in it draws.
type Container struct {
	ID     string
	Width  float64
	Height float64
	Atlas  *Atlas

	active []*VectorSurface
}

var _ Host = (*Container)(nil)

// NewContainer returns a container with defaults applied for empty fields.
func NewContainer(id string, width, height float64, atlas *Atlas) *Container {
	if id == "" {
		id = DefaultElementID
	}
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	return &Container{ID: id, Width: width, Height: height, Atlas: atlas}
}

// Mount creates a VectorSurface under the element id.
func (c *Container) Mount(id string, opts SurfaceOptions) (Surface, error) {
	if id == "" {
		id = DefaultElementID
	}
	if id != c.ID {
		return nil, fmt.Errorf("%w: %q (container is %q)", ErrNoElement, id, c.ID)
	}
	if c.Atlas == nil {
		return nil, ErrNoAtlas
	}
	s := &VectorSurface{
		id:        id,
		container: c,
		atlas:     c.Atlas,
		opts:      opts,
		markers:   make(map[string]*Marker),
	}
	s.proj = NewProjection(c.Width, c.Height)
	c.active = append(c.active, s)
	return s, nil
}

// Active returns the surfaces currently mounted.
func (c *Container) Active() []*VectorSurface {
	return slices.Clone(c.active)
}

// Current returns the most recently mounted surface still active.
func (c *Container) Current() (*VectorSurface, bool) {
	if len(c.active) == 0 {
		return nil, false
	}
	return c.active[len(c.active)-1], true
}

// Resize changes the container size and refits every active surface.
func (c *Container) Resize(width, height float64) {
	c.Width, c.Height = width, height
	for _, s := range c.active {
		s.UpdateSize()
	}
}

func (c *Container) release(s *VectorSurface) {
	c.active = slices.DeleteFunc(c.active, func(x *VectorSurface) bool { return x == s })
}
