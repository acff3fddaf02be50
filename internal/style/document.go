package style

import (
	"encoding/json"
	"fmt"
)

// Document is the subset of a MapLibre style document the bridge checks
// before handing a style to the engine.
type Document struct {
	Version int                        `json:"version"`
	Name    string                     `json:"name,omitempty"`
	Sources map[string]json.RawMessage `json:"sources"`
	Layers  []Layer                    `json:"layers"`
}

// Layer is a style layer header.
type Layer struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Source string `json:"source,omitempty"`
}

// ParseDocument decodes and validates a style document.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing style: %w", err)
	}
	if doc.Version == 0 {
		return nil, fmt.Errorf("style has no version")
	}
	if doc.Layers == nil {
		return nil, fmt.Errorf("style has no layers")
	}
	for i, l := range doc.Layers {
		if l.ID == "" {
			return nil, fmt.Errorf("style layer %d has no id", i)
		}
		if l.Type == "" {
			return nil, fmt.Errorf("style layer %q has no type", l.ID)
		}
	}
	return &doc, nil
}

// Declares reports whether the document defines a source named id.
func (d *Document) Declares(id string) bool {
	_, ok := d.Sources[id]
	return ok
}
