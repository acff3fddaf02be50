package main

import (
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-mapbridge/internal/bridge"
	"github.com/joeblew999/plat-mapbridge/internal/engine/memengine"
)

// validateParams decodes YAML or JSON creation params and runs the full
// bridge construction against a throwaway engine.
func validateParams(data []byte, log *slog.Logger) (string, error) {
	var p bridge.Params
	if err := yaml.Unmarshal(data, &p); err != nil {
		return "", fmt.Errorf("decoding params: %w", err)
	}
	eng := memengine.New()
	b, err := bridge.New(p, eng, bridge.Config{Logger: log})
	if err != nil {
		eng.Close()
		return "", err
	}
	defer b.Close()

	return fmt.Sprintf("ok: style %s, center %g,%g, zoom %g", p.StylePath, p.Center.Lat, p.Center.Lng, *p.Zoom), nil
}
