package service

import (
	"sync"

	"github.com/joeblew999/plat-mapbridge/internal/event"
)

// ViewState is the host-side picture of a view, folded from its events.
type ViewState struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Zoom      float64 `json:"zoom"`
	Moving    bool    `json:"moving"`
	LastClick string  `json:"lastClick,omitempty"`
	LastIndex int     `json:"lastIndex"`
	Events    uint64  `json:"events"`
}

type stateTracker struct {
	mu sync.Mutex
	s  ViewState
}

func (t *stateTracker) Deliver(e event.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.s.Events++
	switch e.Method {
	case event.MethodCameraPosition:
		if a, ok := e.Arguments.(event.CameraPositionArgs); ok {
			t.s.Lat, t.s.Lng, t.s.Zoom = a.Lat, a.Lng, a.Zoom
		}
	case event.MethodMoveBegin, event.MethodMoveUpdate:
		t.s.Moving = true
	case event.MethodMoveEnd:
		t.s.Moving = false
	case event.MethodPointClick, event.MethodPoiClick:
		if a, ok := e.Arguments.(event.ClickArgs); ok {
			t.s.LastClick = string(e.Method)
			t.s.LastIndex = a.Index
		}
	}
}

func (t *stateTracker) snapshot() ViewState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.s
}
