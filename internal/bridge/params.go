package bridge

import (
	"fmt"

	"github.com/joeblew999/plat-mapbridge/internal/engine"
)

// LatLng is a geographic coordinate in degrees.
type LatLng struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// Display toggles engine chrome. Every toggle defaults to off.
type Display struct {
	Attribution    bool `json:"attribution,omitempty" yaml:"attribution,omitempty"`
	Logo           bool `json:"logo,omitempty" yaml:"logo,omitempty"`
	Compass        bool `json:"compass,omitempty" yaml:"compass,omitempty"`
	RotateGestures bool `json:"rotateGestures,omitempty" yaml:"rotateGestures,omitempty"`
	TiltGestures   bool `json:"tiltGestures,omitempty" yaml:"tiltGestures,omitempty"`
}

// UISettings converts the toggles to engine settings.
func (d Display) UISettings() engine.UISettings {
	return engine.UISettings{
		Attribution:    d.Attribution,
		Logo:           d.Logo,
		Compass:        d.Compass,
		RotateGestures: d.RotateGestures,
		TiltGestures:   d.TiltGestures,
	}
}

// Params are the construction parameters supplied by the hosting view.
type Params struct {
	StylePath     string   `json:"stylePath" yaml:"stylePath" doc:"Style file path, URI or inline style JSON"`
	PathGeoJSON   string   `json:"pathGeoJson" yaml:"pathGeoJson" doc:"Tour path GeoJSON"`
	PointsGeoJSON string   `json:"pointsGeoJson" yaml:"pointsGeoJson" doc:"Tour points GeoJSON"`
	PoisGeoJSON   string   `json:"poisGeoJson,omitempty" yaml:"poisGeoJson,omitempty" doc:"Points of interest GeoJSON" required:"false"`
	Center        *LatLng  `json:"center" yaml:"center" doc:"Initial map center"`
	Zoom          *float64 `json:"zoom" yaml:"zoom" doc:"Initial zoom in host units"`
	Display       Display  `json:"display,omitempty" yaml:"display,omitempty" required:"false"`
}

// Validate checks that every required parameter is present and in range.
// Content is parsed later, at construction.
func (p Params) Validate() error {
	switch {
	case p.StylePath == "":
		return NewError(CodeInvalidParams, "stylePath is required")
	case p.PathGeoJSON == "":
		return NewError(CodeInvalidParams, "pathGeoJson is required")
	case p.PointsGeoJSON == "":
		return NewError(CodeInvalidParams, "pointsGeoJson is required")
	case p.Center == nil:
		return NewError(CodeInvalidParams, "center is required")
	case p.Zoom == nil:
		return NewError(CodeInvalidParams, "zoom is required")
	}
	if err := checkLatLng(p.Center.Lat, p.Center.Lng); err != nil {
		return Wrap(CodeInvalidParams, "center", err)
	}
	return nil
}

func checkLatLng(lat, lng float64) error {
	if lat < -90 || lat > 90 {
		return fmt.Errorf("lat %g out of range", lat)
	}
	if lng < -180 || lng > 180 {
		return fmt.Errorf("lng %g out of range", lng)
	}
	return nil
}
