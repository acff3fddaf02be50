package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-mapbridge/internal/bridge"
	"github.com/joeblew999/plat-mapbridge/internal/event"
)

type InfoHandler struct {
	dataDir string
	journal bool
}

func NewInfoHandler(dataDir string, journal bool) *InfoHandler {
	return &InfoHandler{dataDir: dataDir, journal: journal}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name     string   `json:"name" doc:"Service name"`
	Version  string   `json:"version" doc:"Service version"`
	DataDir  string   `json:"data_dir" doc:"Data directory path"`
	Journal  bool     `json:"journal" doc:"Whether the event journal is enabled"`
	Features []string `json:"features" doc:"Available features"`
	Commands []string `json:"commands" doc:"Accepted host commands"`
	Events   []string `json:"events" doc:"Event methods sent to the host"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	events := make([]string, len(event.Methods))
	for i, m := range event.Methods {
		events[i] = string(m)
	}
	features := []string{"styles", "geojson-overlays", "hit-test", "sse", "datastar"}
	if h.journal {
		features = append(features, "duckdb-journal")
	}
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:     "plat-mapbridge",
		Version:  "0.1.0",
		DataDir:  h.dataDir,
		Journal:  h.journal,
		Features: features,
		Commands: bridge.Commands,
		Events:   events,
	}}, nil
}
