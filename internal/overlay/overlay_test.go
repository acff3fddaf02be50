package overlay

import (
	"bytes"
	"testing"

	"github.com/paulmach/orb"
)

const (
	pathJSON   = `{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"LineString","coordinates":[[8.5,47.1],[8.6,47.2]]},"properties":{}}]}`
	pointsJSON = `{"type":"FeatureCollection","features":[
		{"type":"Feature","geometry":{"type":"Point","coordinates":[8.5,47.1]},"properties":{"number":1}},
		{"type":"Feature","geometry":{"type":"Point","coordinates":[8.6,47.2]},"properties":{"number":2}}]}`
)

func TestParseNormalizesPayloads(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"collection", pointsJSON, 2},
		{"feature", `{"type":"Feature","geometry":{"type":"Point","coordinates":[1,2]},"properties":null}`, 1},
		{"geometry", `{"type":"Point","coordinates":[1,2]}`, 1},
		{"empty collection", `{"type":"FeatureCollection","features":[]}`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, err := Parse(KindLocation, []byte(tt.input))
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if ds.Len() != tt.want {
				t.Fatalf("len=%d, want %d", ds.Len(), tt.want)
			}
			if !ds.IsSet() {
				t.Fatal("parsed dataset should be marked set")
			}
		})
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	inputs := []string{
		``,
		`not json`,
		`{"features":[]}`,
		`{"type":"Banana"}`,
		`{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"Point","coordinates":"x"}}]}`,
	}
	for _, in := range inputs {
		if _, err := Parse(KindPoints, []byte(in)); err == nil {
			t.Fatalf("parse %q: expected error", in)
		}
	}
}

func TestParseKeepsRawBytes(t *testing.T) {
	ds, err := Parse(KindPath, []byte(pathJSON))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	raw := ds.Raw()
	if !bytes.Equal(raw, []byte(pathJSON)) {
		t.Fatalf("raw=%s, want input verbatim", raw)
	}
	raw[0] = 'X'
	if !bytes.Equal(ds.Raw(), []byte(pathJSON)) {
		t.Fatal("Raw must return a copy")
	}
}

func TestFeatureOrderIsPreserved(t *testing.T) {
	ds, err := Parse(KindPoints, []byte(pointsJSON))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	first := ds.Features().Features[0].Geometry.(orb.Point)
	if first.Lon() != 8.5 || first.Lat() != 47.1 {
		t.Fatalf("first point=%v, want [8.5 47.1]", first)
	}
}

func TestNewStoreRequiresPathAndPoints(t *testing.T) {
	if _, err := NewStore(Content{Points: pointsJSON}); err == nil {
		t.Fatal("expected error without path")
	}
	if _, err := NewStore(Content{Path: pathJSON}); err == nil {
		t.Fatal("expected error without points")
	}
	if _, err := NewStore(Content{Path: pathJSON, Points: `{"type":`}); err == nil {
		t.Fatal("expected error for malformed points")
	}
}

func TestStoreLocationLifecycle(t *testing.T) {
	s, err := NewStore(Content{Path: pathJSON, Points: pointsJSON})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if s.POIs().Len() != 0 {
		t.Fatalf("pois len=%d, want 0 when omitted", s.POIs().Len())
	}
	if s.Location().IsSet() {
		t.Fatal("location should start unset")
	}
	if s.Location().Features() == nil {
		t.Fatal("empty location must still have a collection")
	}

	loc := `{"type":"Point","coordinates":[8.55,47.15]}`
	if _, err := s.SetLocation([]byte(loc)); err != nil {
		t.Fatalf("set location: %v", err)
	}
	if _, err := s.SetLocation([]byte(`{"type":`)); err == nil {
		t.Fatal("expected parse error")
	}
	if got := string(s.Location().Raw()); got != loc {
		t.Fatalf("location=%s, want previous payload retained", got)
	}
}

func TestSourceIDs(t *testing.T) {
	want := map[Kind]string{
		KindPath:     "tour_path",
		KindPoints:   "tour_points",
		KindPOIs:     "tour_pois",
		KindLocation: "current_location",
	}
	for k, id := range want {
		if k.SourceID() != id {
			t.Fatalf("%s source id=%q, want %q", k, k.SourceID(), id)
		}
	}
}
