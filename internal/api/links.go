package api

import (
	"github.com/joeblew999/plat-mapbridge/internal/bridge"
	"github.com/joeblew999/plat-mapbridge/internal/humastar"
)

// viewActions are the state-dependent actions of a live map view, sent as
// RFC 8288 Link headers on view responses.
// Enables restish hypermedia navigation via `restish links <url>`.
var viewActions = append([]humastar.ActionDef{
	{Rel: "delete", Pattern: "/api/v1/maps/%s", Method: "DELETE", Title: "Close map view"},
	{Rel: "events", Pattern: "/api/v1/maps/%s/events", Method: "GET", Title: "Stream map events"},
	{Rel: "signals", Pattern: "/api/v1/maps/%s/signals", Method: "GET", Title: "Stream Datastar signals"},
	{Rel: "engine", Pattern: "/api/v1/maps/%s/engine", Method: "GET", Title: "Inspect engine state"},
	{Rel: "journal", Pattern: "/api/v1/maps/%s/journal", Method: "GET", Title: "Recent journal entries"},
}, commandActions()...)

func commandActions() []humastar.ActionDef {
	defs := make([]humastar.ActionDef, 0, len(bridge.Commands))
	for _, c := range bridge.Commands {
		defs = append(defs, humastar.ActionDef{
			Rel:     c,
			Pattern: "/api/v1/maps/%s/commands/" + c,
			Method:  "POST",
			Title:   "Send " + c,
		})
	}
	return defs
}
