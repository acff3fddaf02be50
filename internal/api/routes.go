// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-mapbridge/internal/bridge"
	"github.com/joeblew999/plat-mapbridge/internal/engine"
	"github.com/joeblew999/plat-mapbridge/internal/engine/memengine"
	"github.com/joeblew999/plat-mapbridge/internal/humastar"
	"github.com/joeblew999/plat-mapbridge/internal/journal"
	"github.com/joeblew999/plat-mapbridge/internal/service"
)

// Services holds the service dependencies for API handlers.
type Services struct {
	Views *service.ViewService
	// Journal is nil when journaling is disabled.
	Journal *journal.Journal
}

// RegisterRoutes registers every REST and streaming route.
func RegisterRoutes(api huma.API, svc *Services) {
	huma.AutoRegister(api, NewAPIHandler(svc))
	huma.AutoRegister(api, NewStreamHandler(svc))
}

// Types

type IDInput struct {
	ID string `path:"id" doc:"Map view ID" example:"5f0c6a3e-8d0e-4c7b-9a77-0e1f2d3c4b5a"`
}

type ListInput struct {
	Offset int `query:"offset" minimum:"0" default:"0" doc:"Items to skip"`
	Limit  int `query:"limit" minimum:"1" maximum:"100" default:"20" doc:"Page size"`
}

// ViewBody describes one live map view.
type ViewBody struct {
	ID      string            `json:"id" doc:"Map view ID"`
	Created time.Time         `json:"created" doc:"Creation time"`
	Params  bridge.Params     `json:"params" doc:"Construction parameters"`
	Status  bridge.Status     `json:"status" doc:"Bridge status"`
	State   service.ViewState `json:"state" doc:"State folded from delivered events"`
}

// Actions implements humastar.Actor.
func (b ViewBody) Actions() []humastar.Action {
	if b.Status.Closed {
		return nil
	}
	return humastar.ActionsFor(b.ID, viewActions)
}

type ViewOutput struct {
	Body ViewBody
}

type ViewsOutput struct {
	Body humastar.PageBody[ViewBody]
}

type CreateViewOutput struct {
	Location string `header:"Location" doc:"URL of the created view"`
	Body     ViewBody
}

type MessageBody struct {
	Message string `json:"message" doc:"Result message"`
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"1.0.0"`
}

type CommandInput struct {
	IDInput
	Method  string `path:"method" doc:"Command name" example:"moveCamera"`
	RawBody []byte `contentType:"application/json" doc:"Command arguments as JSON"`
}

type CommandBody struct {
	OK     bool   `json:"ok" doc:"Whether the command was accepted"`
	Result any    `json:"result,omitempty" doc:"Command result"`
	Method string `json:"method" doc:"Command name"`
}

type CameraBody struct {
	Lat  float64 `json:"lat" minimum:"-90" maximum:"90" doc:"Latitude"`
	Lng  float64 `json:"lng" minimum:"-180" maximum:"180" doc:"Longitude"`
	Zoom float64 `json:"zoom" doc:"Zoom in engine units"`
}

type GestureBody struct {
	Kind   string          `json:"kind" enum:"pan,scale" doc:"Recognizer that fires"`
	Points []bridge.LatLng `json:"points,omitempty" required:"false" doc:"Camera centers of a pan, one per frame"`
	Zooms  []float64       `json:"zooms,omitempty" required:"false" doc:"Engine zooms of a pinch, one per frame"`
}

type ClickBody struct {
	Annotation int64 `json:"annotation" doc:"Engine annotation ID that was tapped"`
}

type JournalInput struct {
	IDInput
	Limit int `query:"limit" minimum:"1" maximum:"1000" default:"100" doc:"Maximum entries"`
}

type JournalOutput struct {
	Body []journal.Entry
}

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

// RegisterMaps registers map view lifecycle routes.
func (h *APIHandler) RegisterMaps(api huma.API) {
	huma.Get(api, "/api/v1/maps", h.ListViews, huma.OperationTags("maps"))
	huma.Post(api, "/api/v1/maps", h.CreateView, huma.OperationTags("maps"), func(o *huma.Operation) {
		o.DefaultStatus = http.StatusCreated
	})
	huma.Get(api, "/api/v1/maps/{id}", h.GetView, huma.OperationTags("maps"))
	huma.Delete(api, "/api/v1/maps/{id}", h.DeleteView, huma.OperationTags("maps"))
}

// RegisterCommands registers the host command channel.
func (h *APIHandler) RegisterCommands(api huma.API) {
	huma.Post(api, "/api/v1/maps/{id}/commands/{method}", h.Command, huma.OperationTags("commands"))
}

// RegisterSimulate registers routes that stand in for user input on the map.
func (h *APIHandler) RegisterSimulate(api huma.API) {
	huma.Post(api, "/api/v1/maps/{id}/simulate/camera", h.SimulateCamera, huma.OperationTags("simulate"))
	huma.Post(api, "/api/v1/maps/{id}/simulate/gesture", h.SimulateGesture, huma.OperationTags("simulate"))
	huma.Post(api, "/api/v1/maps/{id}/simulate/click", h.SimulateClick, huma.OperationTags("simulate"))
}

// RegisterInspect registers read-only engine and journal routes.
func (h *APIHandler) RegisterInspect(api huma.API) {
	huma.Get(api, "/api/v1/maps/{id}/engine", h.GetEngine, huma.OperationTags("inspect"))
	huma.Get(api, "/api/v1/maps/{id}/journal", h.GetJournal, huma.OperationTags("inspect"))
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: "1.0.0"}}, nil
}

func (h *APIHandler) ListViews(ctx context.Context, input *ListInput) (*ViewsOutput, error) {
	views := h.svc.Views.List()
	page := humastar.PageBody[ViewBody]{
		Total:  len(views),
		Offset: input.Offset,
		Limit:  input.Limit,
		Data:   []ViewBody{},
	}
	for i := input.Offset; i < len(views) && i < input.Offset+input.Limit; i++ {
		page.Data = append(page.Data, viewBody(views[i]))
	}
	return &ViewsOutput{Body: page}, nil
}

func (h *APIHandler) CreateView(ctx context.Context, input *struct{ Body bridge.Params }) (*CreateViewOutput, error) {
	v, err := h.svc.Views.Create(input.Body)
	if err != nil {
		return nil, toHumaError(err)
	}
	return &CreateViewOutput{
		Location: "/api/v1/maps/" + v.ID,
		Body:     viewBody(v),
	}, nil
}

func (h *APIHandler) GetView(ctx context.Context, input *IDInput) (*ViewOutput, error) {
	v, err := h.view(input.ID)
	if err != nil {
		return nil, err
	}
	return &ViewOutput{Body: viewBody(v)}, nil
}

func (h *APIHandler) DeleteView(ctx context.Context, input *IDInput) (*struct{ Body MessageBody }, error) {
	if err := h.svc.Views.Delete(input.ID); err != nil {
		return nil, toHumaError(err)
	}
	if h.svc.Journal != nil {
		if err := h.svc.Journal.Delete(ctx, input.ID); err != nil {
			return nil, huma.Error500InternalServerError("view deleted, journal kept", err)
		}
	}
	return &struct{ Body MessageBody }{Body: MessageBody{Message: "Map view deleted"}}, nil
}

func (h *APIHandler) Command(ctx context.Context, input *CommandInput) (*struct{ Body CommandBody }, error) {
	v, err := h.view(input.ID)
	if err != nil {
		return nil, err
	}
	call := bridge.MethodCall{Method: input.Method}
	if len(input.RawBody) > 0 {
		call.Arguments = json.RawMessage(input.RawBody)
	}
	result, err := v.Bridge.Dispatch(ctx, call)
	if err != nil {
		return nil, toHumaError(err)
	}
	return &struct{ Body CommandBody }{Body: CommandBody{OK: true, Result: result, Method: input.Method}}, nil
}

func (h *APIHandler) SimulateCamera(ctx context.Context, input *struct {
	IDInput
	Body CameraBody
}) (*ViewOutput, error) {
	v, err := h.view(input.ID)
	if err != nil {
		return nil, err
	}
	v.Engine.UserMove(point(input.Body.Lat, input.Body.Lng), input.Body.Zoom)
	return h.settled(v), nil
}

func (h *APIHandler) SimulateGesture(ctx context.Context, input *struct {
	IDInput
	Body GestureBody
}) (*ViewOutput, error) {
	v, err := h.view(input.ID)
	if err != nil {
		return nil, err
	}
	switch input.Body.Kind {
	case "pan":
		frames := make([]orb.Point, 0, len(input.Body.Points))
		for _, p := range input.Body.Points {
			frames = append(frames, point(p.Lat, p.Lng))
		}
		v.Engine.Pan(frames...)
	case "scale":
		v.Engine.Pinch(input.Body.Zooms...)
	default:
		return nil, huma.Error422UnprocessableEntity("unknown gesture kind " + input.Body.Kind)
	}
	return h.settled(v), nil
}

func (h *APIHandler) SimulateClick(ctx context.Context, input *struct {
	IDInput
	Body ClickBody
}) (*ViewOutput, error) {
	v, err := h.view(input.ID)
	if err != nil {
		return nil, err
	}
	v.Engine.Click(engine.AnnotationID(input.Body.Annotation))
	return h.settled(v), nil
}

func (h *APIHandler) GetEngine(ctx context.Context, input *IDInput) (*struct{ Body memengine.Snapshot }, error) {
	v, err := h.view(input.ID)
	if err != nil {
		return nil, err
	}
	return &struct{ Body memengine.Snapshot }{Body: v.Engine.Snapshot()}, nil
}

func (h *APIHandler) GetJournal(ctx context.Context, input *JournalInput) (*JournalOutput, error) {
	if h.svc.Journal == nil {
		return nil, huma.Error503ServiceUnavailable("journal not enabled")
	}
	if _, err := h.view(input.ID); err != nil {
		return nil, err
	}
	entries, err := h.svc.Journal.Recent(ctx, input.ID, input.Limit)
	if err != nil {
		return nil, huma.Error500InternalServerError("reading journal", err)
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	return &JournalOutput{Body: entries}, nil
}

// helpers

func (h *APIHandler) view(id string) (*service.View, error) {
	v, ok := h.svc.Views.Get(id)
	if !ok {
		return nil, huma.Error404NotFound("map view not found")
	}
	return v, nil
}

// settled waits for the simulated input to reach the bridge and the host
// before reporting the view.
func (h *APIHandler) settled(v *service.View) *ViewOutput {
	v.Engine.Sync()
	v.Bridge.Flush()
	return &ViewOutput{Body: viewBody(v)}
}

func point(lat, lng float64) orb.Point { return orb.Point{lng, lat} }

func viewBody(v *service.View) ViewBody {
	return ViewBody{
		ID:      v.ID,
		Created: v.Created,
		Params:  v.Params,
		Status:  v.Bridge.Status(),
		State:   v.State(),
	}
}

// toHumaError maps bridge and service errors to problem responses.
func toHumaError(err error) error {
	var be *bridge.Error
	switch {
	case errors.As(err, &be):
		return huma.NewError(be.Code.HTTPStatus(), string(be.Code)+": "+be.Error())
	case errors.Is(err, service.ErrViewNotFound):
		return huma.Error404NotFound("map view not found")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return huma.Error503ServiceUnavailable("request cancelled", err)
	}
	return huma.Error500InternalServerError("internal error", err)
}
