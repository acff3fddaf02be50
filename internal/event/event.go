// Package event defines the fixed vocabulary of map events sent to the host
// and the machinery that delivers them: an ordered, non-blocking Emitter
// and a fan-out Bus for stream subscribers.
package event

// Method names a host-facing event. The set is closed; nothing outside it
// is ever delivered.
type Method string

const (
	MethodCameraPosition Method = "updateCameraPosition"
	MethodMoveBegin      Method = "moveBegin"
	MethodMoveUpdate     Method = "moveUpdate"
	MethodMoveEnd        Method = "moveEnd"
	MethodPointClick     Method = "pointClick"
	MethodPoiClick       Method = "poiClick"
)

// Methods lists the vocabulary in a stable order.
var Methods = []Method{
	MethodCameraPosition,
	MethodMoveBegin,
	MethodMoveUpdate,
	MethodMoveEnd,
	MethodPointClick,
	MethodPoiClick,
}

// Known reports whether m belongs to the vocabulary.
func (m Method) Known() bool {
	switch m {
	case MethodCameraPosition, MethodMoveBegin, MethodMoveUpdate, MethodMoveEnd,
		MethodPointClick, MethodPoiClick:
		return true
	}
	return false
}

// Event is one message on the host channel.
type Event struct {
	Method    Method `json:"method"`
	Arguments any    `json:"arguments,omitempty"`
	// Seq is assigned by the Emitter in delivery order, starting at 1.
	Seq uint64 `json:"seq,omitempty"`
}

// CameraPositionArgs carries the camera in host units.
type CameraPositionArgs struct {
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	Zoom float64 `json:"zoom"`
}

// ClickArgs carries the ordinal of a clicked feature within its dataset.
type ClickArgs struct {
	Index int `json:"index"`
}

func CameraPosition(lat, lng, zoom float64) Event {
	return Event{Method: MethodCameraPosition, Arguments: CameraPositionArgs{Lat: lat, Lng: lng, Zoom: zoom}}
}

func MoveBegin() Event  { return Event{Method: MethodMoveBegin} }
func MoveUpdate() Event { return Event{Method: MethodMoveUpdate} }
func MoveEnd() Event    { return Event{Method: MethodMoveEnd} }

func PointClick(index int) Event {
	return Event{Method: MethodPointClick, Arguments: ClickArgs{Index: index}}
}

func PoiClick(index int) Event {
	return Event{Method: MethodPoiClick, Arguments: ClickArgs{Index: index}}
}

// Sink receives delivered events. Deliver is called from a single goroutine
// per Emitter and must not block for long.
type Sink interface {
	Deliver(e Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(e Event)

func (f SinkFunc) Deliver(e Event) { f(e) }

// Multi delivers to every sink in order. Nil sinks are skipped.
func Multi(sinks ...Sink) Sink {
	out := make(multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

type multi []Sink

func (m multi) Deliver(e Event) {
	for _, s := range m {
		s.Deliver(e)
	}
}
