package api

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/joeblew999/plat-mapbridge/internal/event"
	"github.com/joeblew999/plat-mapbridge/internal/humastar"
	"github.com/joeblew999/plat-mapbridge/internal/service"
)

// StreamHandler serves map events to hosts over SSE, either as raw event
// messages or as Datastar signal patches for a browser UI.
type StreamHandler struct {
	humastar.Handler
	svc *Services
}

func NewStreamHandler(svc *Services) *StreamHandler {
	return &StreamHandler{svc: svc}
}

type SignalsCommandInput struct {
	IDInput
	humastar.SignalsInput
}

func (h *StreamHandler) RegisterEvents(api huma.API) {
	sse.Register(api, huma.Operation{
		OperationID: "stream-map-events",
		Method:      "GET",
		Path:        "/api/v1/maps/{id}/events",
		Summary:     "Stream map events",
		Tags:        []string{humastar.StreamTag},
	}, map[string]any{
		"mapEvent": event.Event{},
	}, h.Events)
}

func (h *StreamHandler) RegisterSignals(api huma.API) {
	huma.Get(api, "/api/v1/maps/{id}/signals", h.Signals,
		huma.OperationTags(humastar.StreamTag),
	)
	huma.Post(api, "/api/v1/maps/{id}/signals/camera", h.MoveCamera,
		huma.OperationTags(humastar.StreamTag),
	)
}

// Events forwards every event of the view until the client goes away or the
// view is deleted.
func (h *StreamHandler) Events(ctx context.Context, input *IDInput, send sse.Sender) {
	v, ok := h.svc.Views.Get(input.ID)
	if !ok {
		return
	}
	ch := v.Bus.Subscribe()
	defer v.Bus.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			if err := send.Data(e); err != nil {
				return
			}
		}
	}
}

// Signals patches the view state into Datastar signals on every event and
// dispatches a map-event browser event alongside.
func (h *StreamHandler) Signals(ctx context.Context, input *IDInput) (*huma.StreamResponse, error) {
	v, ok := h.svc.Views.Get(input.ID)
	if !ok {
		return nil, huma.Error404NotFound("map view not found")
	}
	return h.Stream(func(s humastar.SSE) {
		ch := v.Bus.Subscribe()
		defer v.Bus.Unsubscribe(ch)

		if err := s.Signals(stateSignals(v.State())); err != nil {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-ch:
				if !ok {
					return
				}
				if err := s.Signals(stateSignals(v.State())); err != nil {
					return
				}
				s.Event("map-event", e)
			}
		}
	}), nil
}

// MoveCamera reads lat, lng and an optional duration in milliseconds from
// Datastar signals and sends a moveCamera command.
func (h *StreamHandler) MoveCamera(ctx context.Context, input *SignalsCommandInput) (*huma.StreamResponse, error) {
	v, ok := h.svc.Views.Get(input.ID)
	if !ok {
		return nil, huma.Error404NotFound("map view not found")
	}
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	return h.Stream(func(s humastar.SSE) {
		if !signals.Has("lat") || !signals.Has("lng") {
			s.Error("lat and lng are required")
			return
		}
		d := time.Duration(signals.Float("duration") * float64(time.Millisecond))
		if err := v.Bridge.MoveCamera(signals.Float("lat"), signals.Float("lng"), d); err != nil {
			s.Error(err.Error())
			return
		}
		s.Signals(map[string]any{"success": "camera moving"})
	}), nil
}

func stateSignals(st service.ViewState) map[string]any {
	return map[string]any{
		"lat":       st.Lat,
		"lng":       st.Lng,
		"zoom":      st.Zoom,
		"moving":    st.Moving,
		"lastClick": st.LastClick,
		"lastIndex": st.LastIndex,
		"events":    st.Events,
	}
}
