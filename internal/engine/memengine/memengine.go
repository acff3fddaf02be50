// Package memengine is an in-memory map engine. It keeps style, source,
// camera and annotation state without rendering anything and delivers
// listener callbacks on its own loop, like a native engine would on its
// render thread.
//
// It enforces the source lifecycle of real engines: a source attached to a
// destroyed style cannot be attached again or updated.
package memengine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-mapbridge/internal/engine"
	"github.com/joeblew999/plat-mapbridge/internal/loop"
)

// SDK is the process-wide setup hook of the in-memory engine.
type SDK struct {
	mu    sync.Mutex
	inits int
}

// DefaultSDK is shared by every engine in the process.
var DefaultSDK = &SDK{}

// Name returns the SDK name.
func (s *SDK) Name() string { return "memengine" }

// Init records an initialization.
func (s *SDK) Init() error {
	s.mu.Lock()
	s.inits++
	s.mu.Unlock()
	return nil
}

// Inits returns how many times Init ran.
func (s *SDK) Inits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inits
}

type styleState struct {
	handle      engine.StyleHandle
	uri         string
	inline      []byte
	sources     map[string]*engine.Source
	annotations map[engine.AnnotationID]annotation
	loaded      bool
}

type annotation struct {
	geom  orb.Geometry
	style engine.CircleStyle
}

// Engine is an in-memory engine.Engine.
type Engine struct {
	loop *loop.Loop

	mu       sync.Mutex
	listener engine.Listener
	ui       engine.UISettings
	camera   engine.Camera
	style    *styleState
	attached map[*engine.Source]engine.StyleHandle
	next     engine.StyleHandle
	nextAnn  engine.AnnotationID
	lastEase time.Duration
	closed   bool

	// FailNextLoad makes the next LoadStyle call fail with this error.
	FailNextLoad error
	// DeferReady keeps Open from scheduling OnMapReady; SignalReady
	// schedules it instead.
	DeferReady bool
}

// New creates an engine. The map becomes ready once Open is called.
func New() *Engine {
	return &Engine{
		loop:     loop.New(),
		attached: make(map[*engine.Source]engine.StyleHandle),
	}
}

var _ engine.Engine = (*Engine)(nil)

// Open registers the listener and schedules OnMapReady.
func (e *Engine) Open(l engine.Listener) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return engine.ErrClosed
	}
	if e.listener != nil {
		return fmt.Errorf("memengine: already opened")
	}
	e.listener = l
	if !e.DeferReady {
		e.post(func(l engine.Listener) { l.OnMapReady() })
	}
	return nil
}

// SignalReady schedules OnMapReady for an engine created with DeferReady.
func (e *Engine) SignalReady() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.post(func(l engine.Listener) { l.OnMapReady() })
}

// Configure stores UI settings.
func (e *Engine) Configure(ui engine.UISettings) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return engine.ErrClosed
	}
	e.ui = ui
	return nil
}

// LoadStyle replaces the live style.
func (e *Engine) LoadStyle(spec engine.StyleSpec) (engine.StyleHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return 0, engine.ErrClosed
	}
	if err := e.FailNextLoad; err != nil {
		e.FailNextLoad = nil
		return 0, err
	}
	if spec.URI == "" && len(spec.Inline) == 0 {
		return 0, fmt.Errorf("memengine: style has neither uri nor inline document")
	}

	sources := make(map[string]*engine.Source, len(spec.Sources))
	for _, src := range spec.Sources {
		if _, dup := sources[src.ID]; dup {
			return 0, fmt.Errorf("%w: %s", engine.ErrDuplicateSource, src.ID)
		}
		if _, used := e.attached[src]; used {
			return 0, fmt.Errorf("%w: %s", engine.ErrSourceReused, src.ID)
		}
		sources[src.ID] = src
	}

	e.next++
	st := &styleState{
		handle:      e.next,
		uri:         spec.URI,
		inline:      bytes.Clone(spec.Inline),
		sources:     sources,
		annotations: make(map[engine.AnnotationID]annotation),
	}
	for _, src := range spec.Sources {
		e.attached[src] = st.handle
	}
	e.style = st

	h := st.handle
	e.post(func(l engine.Listener) {
		e.mu.Lock()
		if e.style != nil && e.style.handle == h {
			e.style.loaded = true
		}
		e.mu.Unlock()
		l.OnStyleLoaded(h)
	})
	return h, nil
}

// UpdateSource replaces source data on the live style.
func (e *Engine) UpdateSource(src *engine.Source, data []byte, fc *geojson.FeatureCollection) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return engine.ErrClosed
	}
	h, ok := e.attached[src]
	if !ok || e.style == nil || e.style.handle != h {
		return fmt.Errorf("%w: %s", engine.ErrSourceDetached, src.ID)
	}
	src.Data = bytes.Clone(data)
	src.Features = fc
	return nil
}

// SetCenterZoom jumps the camera.
func (e *Engine) SetCenterZoom(center orb.Point, zoom float64, animated bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return engine.ErrClosed
	}
	e.camera = engine.Camera{Center: center, Zoom: zoom}
	e.postCamera()
	return nil
}

// EaseCenter moves the camera center, keeping zoom. The animation is not
// simulated; a single camera change at the target is reported.
func (e *Engine) EaseCenter(center orb.Point, d time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return engine.ErrClosed
	}
	e.camera.Center = center
	e.lastEase = d
	e.postCamera()
	return nil
}

// Camera returns the current camera.
func (e *Engine) Camera() engine.Camera {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.camera
}

// LastEase returns the duration of the most recent EaseCenter call.
func (e *Engine) LastEase() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastEase
}

// AddInvisibleHitCircle adds a hit-test circle to a loaded, live style.
func (e *Engine) AddInvisibleHitCircle(h engine.StyleHandle, geom orb.Geometry, cs engine.CircleStyle) (engine.AnnotationID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return 0, engine.ErrClosed
	}
	if e.style == nil || e.style.handle != h || !e.style.loaded {
		return 0, engine.ErrStyleNotLive
	}
	e.nextAnn++
	e.style.annotations[e.nextAnn] = annotation{geom: geom, style: cs}
	return e.nextAnn, nil
}

// Close releases the engine and stops callback delivery.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.style = nil
	e.mu.Unlock()

	e.loop.Close()
	return nil
}

// Sync waits until every callback scheduled so far has been delivered.
func (e *Engine) Sync() {
	e.loop.Sync()
}

// post schedules a listener callback. Callers hold e.mu.
func (e *Engine) post(fn func(l engine.Listener)) {
	l := e.listener
	if l == nil {
		return
	}
	e.loop.Post(func() { fn(l) })
}

func (e *Engine) postCamera() {
	cam := e.camera
	e.post(func(l engine.Listener) { l.OnCameraChanged(cam) })
}

// Snapshot is a read-only view of engine state.
type Snapshot struct {
	Style       engine.StyleHandle         `json:"style"`
	StyleURI    string                     `json:"styleUri,omitempty"`
	Inline      bool                       `json:"inline"`
	Loaded      bool                       `json:"loaded"`
	Sources     map[string]json.RawMessage `json:"sources"`
	Annotations []engine.AnnotationID      `json:"annotations"`
	Camera      CameraSnapshot             `json:"camera"`
	UI          engine.UISettings          `json:"ui"`
	Closed      bool                       `json:"closed"`

	sources map[string]*engine.Source
}

// CameraSnapshot is the camera in engine units.
type CameraSnapshot struct {
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	Zoom float64 `json:"zoom"`
}

// Snapshot returns the current engine state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := Snapshot{
		Sources: map[string]json.RawMessage{},
		Camera: CameraSnapshot{
			Lat:  e.camera.Center.Lat(),
			Lng:  e.camera.Center.Lon(),
			Zoom: e.camera.Zoom,
		},
		UI:          e.ui,
		Closed:      e.closed,
		Annotations: []engine.AnnotationID{},
		sources:     map[string]*engine.Source{},
	}
	if e.style == nil {
		return snap
	}
	snap.Style = e.style.handle
	snap.StyleURI = e.style.uri
	snap.Inline = len(e.style.inline) > 0
	snap.Loaded = e.style.loaded
	for id, src := range e.style.sources {
		snap.Sources[id] = json.RawMessage(bytes.Clone(src.Data))
		snap.sources[id] = src
	}
	for id := range e.style.annotations {
		snap.Annotations = append(snap.Annotations, id)
	}
	sort.Slice(snap.Annotations, func(i, j int) bool { return snap.Annotations[i] < snap.Annotations[j] })
	return snap
}

// Source returns the source object attached under id to the live style.
func (s Snapshot) Source(id string) (*engine.Source, bool) {
	src, ok := s.sources[id]
	return src, ok
}

// Annotation returns the geometry of a live annotation.
func (e *Engine) Annotation(id engine.AnnotationID) (orb.Geometry, engine.CircleStyle, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.style == nil {
		return nil, engine.CircleStyle{}, false
	}
	a, ok := e.style.annotations[id]
	return a.geom, a.style, ok
}
