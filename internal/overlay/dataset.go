// Package overlay holds the GeoJSON datasets layered onto the map style:
// the tour path, the tour points, the points of interest and the live
// location marker.
//
// Raw payloads are kept verbatim next to their parsed form so every style
// rebuild can re-attach byte-identical content.
package overlay

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb/geojson"
)

// Kind names an overlay dataset.
type Kind string

const (
	KindPath     Kind = "path"
	KindPoints   Kind = "points"
	KindPOIs     Kind = "pois"
	KindLocation Kind = "current_location"
)

// Kinds lists every dataset kind the bridge attaches to a style.
var Kinds = []Kind{KindLocation, KindPath, KindPoints, KindPOIs}

// SourceID returns the engine source identifier for a dataset kind.
// Style documents reference these ids from their layers.
func (k Kind) SourceID() string {
	switch k {
	case KindPath:
		return "tour_path"
	case KindPoints:
		return "tour_points"
	case KindPOIs:
		return "tour_pois"
	}
	return string(k)
}

var emptyCollection = []byte(`{"type":"FeatureCollection","features":[]}`)

// Dataset is one named, parsed GeoJSON payload. Datasets are immutable;
// replacing content means building a new Dataset.
type Dataset struct {
	kind     Kind
	raw      []byte
	features *geojson.FeatureCollection
	set      bool
}

// Parse builds a dataset from a GeoJSON payload. The payload may be a
// FeatureCollection, a Feature or a bare Geometry; the latter two are
// normalized into a one-feature collection.
func Parse(kind Kind, data []byte) (*Dataset, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%s: empty geojson", kind)
	}
	fc, err := parseCollection(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", kind, err)
	}
	raw := make([]byte, len(data))
	copy(raw, data)
	return &Dataset{kind: kind, raw: raw, features: fc, set: true}, nil
}

// Empty returns a dataset with an empty feature collection whose content
// has never been set.
func Empty(kind Kind) *Dataset {
	raw := make([]byte, len(emptyCollection))
	copy(raw, emptyCollection)
	return &Dataset{kind: kind, raw: raw, features: geojson.NewFeatureCollection()}
}

// SourceID returns the engine source id the dataset is attached under.
func (d *Dataset) SourceID() string { return d.kind.SourceID() }

// Raw returns a copy of the payload exactly as supplied.
func (d *Dataset) Raw() []byte {
	out := make([]byte, len(d.raw))
	copy(out, d.raw)
	return out
}

// Features returns the parsed collection. Callers must not modify it.
func (d *Dataset) Features() *geojson.FeatureCollection { return d.features }

// Len returns the number of features.
func (d *Dataset) Len() int { return len(d.features.Features) }

// IsSet reports whether content was ever supplied for the dataset.
func (d *Dataset) IsSet() bool { return d.set }

func parseCollection(data []byte) (*geojson.FeatureCollection, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("parsing geojson: %w", err)
	}

	switch head.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, fmt.Errorf("parsing feature collection: %w", err)
		}
		return fc, nil

	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, fmt.Errorf("parsing feature: %w", err)
		}
		fc := geojson.NewFeatureCollection()
		fc.Append(f)
		return fc, nil

	case "Point", "MultiPoint", "LineString", "MultiLineString",
		"Polygon", "MultiPolygon", "GeometryCollection":
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, fmt.Errorf("parsing geometry: %w", err)
		}
		fc := geojson.NewFeatureCollection()
		fc.Append(geojson.NewFeature(g.Geometry()))
		return fc, nil

	case "":
		return nil, fmt.Errorf("geojson: missing type")
	}
	return nil, fmt.Errorf("geojson: unsupported type %q", head.Type)
}
