// Package engine defines the capability surface the bridge needs from a
// native map engine. Rendering, tile fetching and gesture recognition stay
// inside the engine; the bridge only drives it through Engine and observes
// it through Listener.
//
// One implementation exists per platform binding. The in-memory
// implementation in engine/memengine backs the host harness and the tests.
package engine

import (
	"errors"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

var (
	// ErrClosed is returned by engines that were released.
	ErrClosed = errors.New("engine: closed")
	// ErrStyleNotLive is returned when an operation targets a style that
	// has since been replaced.
	ErrStyleNotLive = errors.New("engine: style is not live")
	// ErrSourceReused is returned when a source object that was attached to
	// an earlier style is attached again.
	ErrSourceReused = errors.New("engine: source object reused across styles")
	// ErrSourceDetached is returned when updating a source whose style was
	// destroyed.
	ErrSourceDetached = errors.New("engine: source belongs to a destroyed style")
	// ErrDuplicateSource is returned when a style spec names a source twice.
	ErrDuplicateSource = errors.New("engine: duplicate source id")
)

// StyleHandle identifies one loaded style. Handles are never reused.
type StyleHandle uint64

// AnnotationID identifies an annotation created by the engine. Ids carry no
// meaning outside the style they were created for.
type AnnotationID int64

// Source is a named GeoJSON source. Engines may tear down a source together
// with its style, so a Source value is attached to at most one style and a
// fresh one must be built for every style load.
type Source struct {
	ID       string
	Data     []byte
	Features *geojson.FeatureCollection
}

// NewSource builds a source ready to be attached to one style.
func NewSource(id string, data []byte, fc *geojson.FeatureCollection) *Source {
	return &Source{ID: id, Data: data, Features: fc}
}

// StyleSpec describes a style to build: a style document location (or an
// inline document) plus every source to attach to it.
type StyleSpec struct {
	URI     string
	Inline  []byte
	Sources []*Source
}

// Camera is the engine camera. Zoom is in engine units.
type Camera struct {
	Center orb.Point
	Zoom   float64
}

// CircleStyle styles a hit-test circle.
type CircleStyle struct {
	Radius  float64
	Opacity float64
}

// UISettings toggles engine chrome and gestures.
type UISettings struct {
	Attribution    bool
	Logo           bool
	Compass        bool
	RotateGestures bool
	TiltGestures   bool
}

// GestureKind identifies the recognizer that produced a gesture callback.
type GestureKind string

const (
	GesturePan   GestureKind = "pan"
	GestureScale GestureKind = "scale"
)

// GesturePhase is the stage of a gesture.
type GesturePhase string

const (
	GestureBegin  GesturePhase = "begin"
	GestureUpdate GesturePhase = "update"
	GestureEnd    GesturePhase = "end"
)

// Listener receives engine callbacks. Engines deliver callbacks one at a
// time on their own goroutine and never from inside an Engine method call.
type Listener interface {
	OnMapReady()
	OnStyleLoaded(h StyleHandle)
	OnCameraChanged(cam Camera)
	OnGesture(kind GestureKind, phase GesturePhase)
	OnAnnotationClicked(id AnnotationID)
}

// Engine is a single live map instance.
type Engine interface {
	// Open registers the listener. The engine calls OnMapReady once the map
	// can accept styles and camera moves.
	Open(l Listener) error
	Configure(ui UISettings) error
	// LoadStyle replaces the current style with one built from spec. All
	// sources are attached atomically; OnStyleLoaded follows asynchronously.
	// On error the previous style stays live.
	LoadStyle(spec StyleSpec) (StyleHandle, error)
	// UpdateSource replaces the data of a source attached to the live style.
	UpdateSource(src *Source, data []byte, fc *geojson.FeatureCollection) error
	SetCenterZoom(center orb.Point, zoom float64, animated bool) error
	EaseCenter(center orb.Point, d time.Duration) error
	Camera() Camera
	// AddInvisibleHitCircle places an interactive, invisible circle over
	// geom on style h.
	AddInvisibleHitCircle(h StyleHandle, geom orb.Geometry, cs CircleStyle) (AnnotationID, error)
	// Close releases the native map resource.
	Close() error
}
