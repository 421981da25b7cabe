package geomap

import "errors"

// Failures surfaced through Widget.Err, always wrapped in a render.Error.
var (
	ErrNoHost         = errors.New("geomap: no host to mount into")
	ErrNoElement      = errors.New("geomap: mount element not found")
	ErrNoAtlas        = errors.New("geomap: no region atlas loaded")
	ErrSurfaceRemoved = errors.New("geomap: surface has been removed")
	ErrUnknownRegion  = errors.New("geomap: unknown region")
)
