package bridge

import (
	"errors"
	"time"

	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-mapbridge/internal/engine"
	"github.com/joeblew999/plat-mapbridge/internal/event"
)

// zoomOffset converts engine zoom to host zoom. Host zoom levels are one
// above the engine's.
const zoomOffset = 1

func toEngineZoom(host float64) float64 { return host - zoomOffset }
func toHostZoom(eng float64) float64    { return eng + zoomOffset }

// initCamera jumps to the construction center and zoom. Callers hold b.mu.
func (b *Bridge) initCamera() {
	center := orb.Point{b.center.Lng, b.center.Lat}
	if err := b.eng.SetCenterZoom(center, toEngineZoom(b.zoom), false); err != nil {
		b.log.Warn("camera_init_failed", "error", err)
	}
}

// moveCamera eases the camera to a new center, keeping zoom. It does
// nothing until the map is ready.
func (b *Bridge) moveCamera(lat, lng float64, d time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed || !b.ready {
		return nil
	}
	if d < 0 {
		d = 0
	}
	err := b.eng.EaseCenter(orb.Point{lng, lat}, d)
	if err != nil && !errors.Is(err, engine.ErrClosed) {
		b.log.Warn("camera_move_failed", "error", err)
	}
	return nil
}

// OnCameraChanged forwards every camera change. Nothing is coalesced.
func (b *Bridge) OnCameraChanged(cam engine.Camera) {
	b.emitter.Emit(event.CameraPosition(cam.Center.Lat(), cam.Center.Lon(), toHostZoom(cam.Zoom)))
}

// OnGesture forwards pan and scale gestures into the same three events.
func (b *Bridge) OnGesture(kind engine.GestureKind, phase engine.GesturePhase) {
	switch phase {
	case engine.GestureBegin:
		b.emitter.Emit(event.MoveBegin())
	case engine.GestureUpdate:
		b.emitter.Emit(event.MoveUpdate())
	case engine.GestureEnd:
		b.emitter.Emit(event.MoveEnd())
	default:
		b.log.Debug("gesture_unknown_phase", "kind", kind, "phase", phase)
	}
}
