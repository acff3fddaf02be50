package memengine

import (
	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-mapbridge/internal/engine"
)

// The methods below stand in for user input on a real map: touches,
// pinches and taps that the engine's recognizers would turn into callbacks.

// UserMove moves the camera as a user drag would, reporting a camera change
// without any gesture callbacks.
func (e *Engine) UserMove(center orb.Point, zoom float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.camera = engine.Camera{Center: center, Zoom: zoom}
	e.postCamera()
}

// Gesture reports a single gesture phase.
func (e *Engine) Gesture(kind engine.GestureKind, phase engine.GesturePhase) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.post(func(l engine.Listener) { l.OnGesture(kind, phase) })
}

// Pan performs a full pan gesture through the given centers: begin, then a
// camera change and update per frame, then end.
func (e *Engine) Pan(frames ...orb.Point) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.post(func(l engine.Listener) { l.OnGesture(engine.GesturePan, engine.GestureBegin) })
	for _, c := range frames {
		e.camera.Center = c
		e.postCamera()
		e.post(func(l engine.Listener) { l.OnGesture(engine.GesturePan, engine.GestureUpdate) })
	}
	e.post(func(l engine.Listener) { l.OnGesture(engine.GesturePan, engine.GestureEnd) })
}

// Pinch performs a full scale gesture through the given engine zoom levels.
func (e *Engine) Pinch(zooms ...float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.post(func(l engine.Listener) { l.OnGesture(engine.GestureScale, engine.GestureBegin) })
	for _, z := range zooms {
		e.camera.Zoom = z
		e.postCamera()
		e.post(func(l engine.Listener) { l.OnGesture(engine.GestureScale, engine.GestureUpdate) })
	}
	e.post(func(l engine.Listener) { l.OnGesture(engine.GestureScale, engine.GestureEnd) })
}

// Click reports a tap on an annotation. Like a real engine it reports
// whatever id it is given; resolving it is the listener's business.
func (e *Engine) Click(id engine.AnnotationID) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.post(func(l engine.Listener) { l.OnAnnotationClicked(id) })
}
