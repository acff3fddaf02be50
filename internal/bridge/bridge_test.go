package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-mapbridge/internal/engine"
	"github.com/joeblew999/plat-mapbridge/internal/engine/memengine"
	"github.com/joeblew999/plat-mapbridge/internal/event"
)

const (
	pathJSON   = `{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"LineString","coordinates":[[8.5,47.1],[8.6,47.2]]},"properties":{}}]}`
	pointsJSON = `{"type":"FeatureCollection","features":[
		{"type":"Feature","geometry":{"type":"Point","coordinates":[8.5,47.1]},"properties":{"number":1}},
		{"type":"Feature","geometry":{"type":"Point","coordinates":[8.6,47.2]},"properties":{"number":2}}]}`
	poisJSON     = `{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"Point","coordinates":[8.55,47.15]},"properties":{"name":"view"}}]}`
	locationJSON = `{"type":"Feature","geometry":{"type":"Point","coordinates":[8.52,47.12]},"properties":{}}`
	styleJSON    = `{"version":8,"sources":{},"layers":[{"id":"background","type":"background"},{"id":"points","type":"symbol","source":"tour_points"}]}`
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type collector struct {
	mu     sync.Mutex
	events []event.Event
}

func (c *collector) Deliver(e event.Event) {
	c.mu.Lock()
	c.events = append(c.events, e)
	c.mu.Unlock()
}

func (c *collector) take() []event.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.events
	c.events = nil
	return out
}

func methods(evs []event.Event) []event.Method {
	out := make([]event.Method, len(evs))
	for i, e := range evs {
		out[i] = e.Method
	}
	return out
}

func writeStyle(t *testing.T, name string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(styleJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func testParams(t *testing.T) Params {
	zoom := 14.0
	return Params{
		StylePath:     writeStyle(t, "style.json"),
		PathGeoJSON:   pathJSON,
		PointsGeoJSON: pointsJSON,
		PoisGeoJSON:   poisJSON,
		Center:        &LatLng{Lat: 47.1, Lng: 8.5},
		Zoom:          &zoom,
	}
}

type nopListener struct{}

func (nopListener) OnMapReady()                                      {}
func (nopListener) OnStyleLoaded(engine.StyleHandle)                 {}
func (nopListener) OnCameraChanged(engine.Camera)                    {}
func (nopListener) OnGesture(engine.GestureKind, engine.GesturePhase) {}
func (nopListener) OnAnnotationClicked(engine.AnnotationID)          {}

type harness struct {
	b      *Bridge
	eng    *memengine.Engine
	events *collector

	mu    sync.Mutex
	diags []Diagnostic
}

// settle delivers every pending engine callback, including the ones those
// callbacks schedule, and every resulting event.
func (h *harness) settle() {
	h.eng.Sync()
	h.eng.Sync()
	h.b.Flush()
}

func (h *harness) diagnostics() []Diagnostic {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Diagnostic(nil), h.diags...)
}

func newHarness(t *testing.T, p Params, eng *memengine.Engine, cfg Config) *harness {
	t.Helper()
	h := &harness{eng: eng, events: &collector{}}
	cfg.Logger = quiet
	cfg.Sink = h.events
	cfg.OnDiagnostic = func(d Diagnostic) {
		h.mu.Lock()
		h.diags = append(h.diags, d)
		h.mu.Unlock()
	}
	b, err := New(p, eng, cfg)
	if err != nil {
		t.Fatalf("new bridge: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	h.b = b
	return h
}

// readyHarness returns a bridge whose map is ready and whose first style
// has loaded, with the initial events discarded.
func readyHarness(t *testing.T) *harness {
	t.Helper()
	h := newHarness(t, testParams(t), memengine.New(), Config{})
	h.settle()
	if !h.b.Ready() {
		t.Fatal("bridge not ready")
	}
	h.events.take()
	return h
}

func dispatch(t *testing.T, b *Bridge, method string, args any) error {
	t.Helper()
	raw, err := json.Marshal(args)
	if err != nil {
		t.Fatal(err)
	}
	_, err = b.Dispatch(context.Background(), MethodCall{Method: method, Arguments: raw})
	return err
}

func TestNewFailsClosed(t *testing.T) {
	zoom := 10.0
	tests := []struct {
		name   string
		mutate func(p *Params)
	}{
		{"no style", func(p *Params) { p.StylePath = "" }},
		{"no path", func(p *Params) { p.PathGeoJSON = "" }},
		{"no points", func(p *Params) { p.PointsGeoJSON = "" }},
		{"no center", func(p *Params) { p.Center = nil }},
		{"no zoom", func(p *Params) { p.Zoom = nil }},
		{"lat out of range", func(p *Params) { p.Center = &LatLng{Lat: 91} }},
		{"malformed points", func(p *Params) { p.PointsGeoJSON = `{"type":"FeatureCollection","features":[` }},
		{"malformed pois", func(p *Params) { p.PoisGeoJSON = `nope` }},
		{"missing style file", func(p *Params) { p.StylePath = "/does/not/exist.json" }},
		{"invalid inline style", func(p *Params) { p.StylePath = `{"layers":[]}` }},
		{"style declares overlay source", func(p *Params) {
			p.StylePath = `{"version":8,"sources":{"tour_path":{"type":"geojson"}},"layers":[]}`
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testParams(t)
			p.Zoom = &zoom
			tt.mutate(&p)

			eng := memengine.New()
			defer eng.Close()
			_, err := New(p, eng, Config{Logger: quiet})
			if !errors.Is(err, ErrInvalidParams) {
				t.Fatalf("err=%v, want %s", err, CodeInvalidParams)
			}
			// The engine was never opened.
			if err := eng.Open(nopListener{}); err != nil {
				t.Fatalf("engine was opened by a failed construction: %v", err)
			}
		})
	}
}

func TestPoisAreOptional(t *testing.T) {
	p := testParams(t)
	p.PoisGeoJSON = ""
	h := newHarness(t, p, memengine.New(), Config{})
	h.settle()

	src, ok := h.eng.Snapshot().Source("tour_pois")
	if !ok {
		t.Fatal("tour_pois source missing")
	}
	if string(src.Data) != `{"type":"FeatureCollection","features":[]}` {
		t.Fatalf("pois data=%s", src.Data)
	}
	if n := h.b.Status().Annotations; n != 2 {
		t.Fatalf("annotations=%d, want 2", n)
	}
}

func TestInitializationAppliesZoomOffset(t *testing.T) {
	h := newHarness(t, testParams(t), memengine.New(), Config{})
	h.settle()

	cam := h.eng.Camera()
	if cam.Zoom != 13 {
		t.Fatalf("engine zoom=%g, want 13", cam.Zoom)
	}
	if cam.Center != (orb.Point{8.5, 47.1}) {
		t.Fatalf("engine center=%v", cam.Center)
	}

	evs := h.events.take()
	if len(evs) == 0 || evs[0].Method != event.MethodCameraPosition {
		t.Fatalf("first event=%v, want updateCameraPosition", methods(evs))
	}
	args := evs[0].Arguments.(event.CameraPositionArgs)
	if args.Zoom != 14 || args.Lat != 47.1 || args.Lng != 8.5 {
		t.Fatalf("first camera event=%+v, want lat 47.1 lng 8.5 zoom 14", args)
	}
}

func TestInitializationConfiguresEngine(t *testing.T) {
	p := testParams(t)
	p.Display.Compass = true
	h := newHarness(t, p, memengine.New(), Config{})
	h.settle()

	snap := h.eng.Snapshot()
	want := engine.UISettings{Compass: true}
	if snap.UI != want {
		t.Fatalf("ui=%+v, want %+v", snap.UI, want)
	}
	if snap.StyleURI != "file://"+p.StylePath {
		t.Fatalf("style uri=%q", snap.StyleURI)
	}
	if !snap.Loaded {
		t.Fatal("style not loaded")
	}
	for _, id := range []string{"current_location", "tour_path", "tour_points", "tour_pois"} {
		if _, ok := snap.Sources[id]; !ok {
			t.Fatalf("source %s missing", id)
		}
	}
	if got := string(snap.Sources["current_location"]); got != `{"type":"FeatureCollection","features":[]}` {
		t.Fatalf("initial location=%s", got)
	}
}

func TestInitializeIsIdempotent(t *testing.T) {
	h := readyHarness(t)
	live := h.b.Status().LiveStyle

	h.b.OnMapReady()
	h.b.mu.Lock()
	err := h.b.initialize()
	h.b.mu.Unlock()
	if err != nil {
		t.Fatal(err)
	}
	h.settle()

	if got := h.b.Status().LiveStyle; got != live {
		t.Fatalf("live style changed from %d to %d", live, got)
	}
}

func TestSetStyleKeepsContentByteIdentical(t *testing.T) {
	h := readyHarness(t)
	before := h.eng.Snapshot()

	styles := []string{
		writeStyle(t, "a.json"),
		"https://tiles.example.com/style.json",
		styleJSON,
		writeStyle(t, "b.json"),
	}
	for _, ref := range styles {
		if err := dispatch(t, h.b, CommandSetStyle, ref); err != nil {
			t.Fatalf("setStyle %q: %v", ref, err)
		}
		h.settle()

		after := h.eng.Snapshot()
		if after.Style == before.Style {
			t.Fatalf("setStyle %q did not replace the style", ref)
		}
		for _, id := range []string{"tour_path", "tour_points", "tour_pois"} {
			if string(after.Sources[id]) != string(before.Sources[id]) {
				t.Fatalf("after %q source %s=%s, want %s", ref, id, after.Sources[id], before.Sources[id])
			}
		}
		if n := len(after.Annotations); n != 3 {
			t.Fatalf("after %q annotations=%d, want 3", ref, n)
		}
	}
	if h.eng.Snapshot().Inline {
		t.Fatal("last style should not be inline")
	}
}

func TestInlineStyle(t *testing.T) {
	h := readyHarness(t)
	if err := h.b.SetStyle(styleJSON); err != nil {
		t.Fatal(err)
	}
	h.settle()
	snap := h.eng.Snapshot()
	if !snap.Inline || snap.StyleURI != "" {
		t.Fatalf("inline=%v uri=%q", snap.Inline, snap.StyleURI)
	}
}

func TestSetStyleParseErrorKeepsStyle(t *testing.T) {
	h := readyHarness(t)
	live := h.b.Status().LiveStyle

	for _, bad := range []string{`{"version":8`, "", `{"version":8,"layers":[{"type":"fill"}]}`, "/missing/style.json"} {
		err := dispatch(t, h.b, CommandSetStyle, bad)
		if !errors.Is(err, ErrParse) {
			t.Fatalf("setStyle %q: err=%v, want %s", bad, err, CodeParse)
		}
	}
	h.settle()
	if got := h.b.Status().LiveStyle; got != live {
		t.Fatalf("live style=%d, want %d", got, live)
	}
}

func TestSetStyleRejectsOverlaySourceIDs(t *testing.T) {
	h := readyHarness(t)
	live := h.b.Status().LiveStyle

	for _, id := range []string{"tour_path", "tour_points", "tour_pois", "current_location"} {
		doc := `{"version":8,"sources":{"` + id + `":{"type":"geojson","data":{"type":"FeatureCollection","features":[]}}},"layers":[{"id":"bg","type":"background"}]}`
		err := dispatch(t, h.b, CommandSetStyle, doc)
		if !errors.Is(err, ErrParse) {
			t.Fatalf("style declaring %s: err=%v, want %s", id, err, CodeParse)
		}

		path := filepath.Join(t.TempDir(), id+".json")
		if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := h.b.SetStyle(path); !errors.Is(err, ErrParse) {
			t.Fatalf("style file declaring %s: err=%v, want %s", id, err, CodeParse)
		}
	}
	h.settle()
	if got := h.b.Status().LiveStyle; got != live {
		t.Fatalf("live style=%d, want %d", got, live)
	}

	// Other sources of the style's own are fine.
	ok := `{"version":8,"sources":{"osm":{"type":"raster","tiles":["https://tile.example/{z}/{x}/{y}.png"]}},"layers":[{"id":"bg","type":"background"}]}`
	if err := dispatch(t, h.b, CommandSetStyle, ok); err != nil {
		t.Fatalf("style with unrelated source: %v", err)
	}
}

func TestConcurrentLocationUpdatesStayConsistent(t *testing.T) {
	h := readyHarness(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				loc := fmt.Sprintf(`{"type":"Point","coordinates":[%d.%d,47]}`, i, j)
				if err := h.b.UpdateLocation([]byte(loc)); err != nil {
					t.Errorf("update: %v", err)
					return
				}
			}
		}(i)
	}
	wg.Wait()

	live := string(h.eng.Snapshot().Sources["current_location"])
	if stored := string(h.b.content.Location().Raw()); live != stored {
		t.Fatalf("live location %s differs from stored %s", live, stored)
	}
}

func TestEngineFailureKeepsStyleAndClicks(t *testing.T) {
	h := readyHarness(t)
	snap := h.eng.Snapshot()

	h.eng.FailNextLoad = errors.New("out of memory")
	err := h.b.SetStyle(writeStyle(t, "next.json"))
	if !errors.Is(err, ErrEngine) {
		t.Fatalf("err=%v, want %s", err, CodeEngine)
	}
	h.settle()

	if got := h.b.Status().LiveStyle; got != snap.Style {
		t.Fatalf("live style=%d, want %d", got, snap.Style)
	}
	h.eng.Click(snap.Annotations[0])
	h.settle()
	if evs := h.events.take(); len(evs) != 1 || evs[0].Method != event.MethodPointClick {
		t.Fatalf("events=%v, want pointClick", methods(evs))
	}

	found := false
	for _, d := range h.diagnostics() {
		if d.Kind == DiagnosticEngineFailed {
			found = true
		}
	}
	if !found {
		t.Fatal("engine failure not reported as a diagnostic")
	}
}

func TestPointClickResolvesOrdinal(t *testing.T) {
	h := readyHarness(t)
	ids := h.eng.Snapshot().Annotations
	if len(ids) != 3 {
		t.Fatalf("annotations=%d, want 3", len(ids))
	}

	for i, id := range ids[:2] {
		geom, cs, ok := h.eng.Annotation(id)
		if !ok {
			t.Fatalf("annotation %d missing", id)
		}
		if cs != hitCircle {
			t.Fatalf("circle style=%+v", cs)
		}
		want := h.b.content.Points().Features().Features[i].Geometry
		if geom.(orb.Point) != want.(orb.Point) {
			t.Fatalf("annotation %d geometry=%v, want %v", id, geom, want)
		}
	}

	h.eng.Click(ids[1])
	h.eng.Click(ids[0])
	h.eng.Click(ids[2])
	h.settle()

	evs := h.events.take()
	want := []struct {
		method event.Method
		index  int
	}{
		{event.MethodPointClick, 1},
		{event.MethodPointClick, 0},
		{event.MethodPoiClick, 0},
	}
	if len(evs) != len(want) {
		t.Fatalf("events=%v", methods(evs))
	}
	for i, w := range want {
		if evs[i].Method != w.method || evs[i].Arguments.(event.ClickArgs).Index != w.index {
			t.Fatalf("event %d=%+v, want %s{%d}", i, evs[i], w.method, w.index)
		}
	}
}

func TestFeatureWithoutGeometryKeepsOrdinals(t *testing.T) {
	p := testParams(t)
	p.PointsGeoJSON = `{"type":"FeatureCollection","features":[
		{"type":"Feature","geometry":null,"properties":{"number":1}},
		{"type":"Feature","geometry":{"type":"Point","coordinates":[8.6,47.2]},"properties":{"number":2}}]}`
	p.PoisGeoJSON = ""
	h := newHarness(t, p, memengine.New(), Config{})
	h.settle()
	h.events.take()

	ids := h.eng.Snapshot().Annotations
	if len(ids) != 1 {
		t.Fatalf("annotations=%d, want 1", len(ids))
	}
	h.eng.Click(ids[0])
	h.settle()
	evs := h.events.take()
	if len(evs) != 1 || evs[0].Arguments.(event.ClickArgs).Index != 1 {
		t.Fatalf("events=%+v, want pointClick{1}", evs)
	}
}

func TestStaleClickAfterReloadIsDropped(t *testing.T) {
	h := readyHarness(t)
	old := h.eng.Snapshot().Annotations

	if err := h.b.SetStyle(writeStyle(t, "other.json")); err != nil {
		t.Fatal(err)
	}
	h.settle()

	for _, id := range old {
		h.eng.Click(id)
	}
	h.eng.Click(9999)
	h.settle()

	if evs := h.events.take(); len(evs) != 0 {
		t.Fatalf("stale clicks produced %v", methods(evs))
	}
	dropped := 0
	for _, d := range h.diagnostics() {
		if d.Kind == DiagnosticClickDropped {
			dropped++
		}
	}
	if dropped != len(old)+1 {
		t.Fatalf("dropped diagnostics=%d, want %d", dropped, len(old)+1)
	}

	fresh := h.eng.Snapshot().Annotations
	h.eng.Click(fresh[0])
	h.settle()
	if evs := h.events.take(); len(evs) != 1 || evs[0].Method != event.MethodPointClick {
		t.Fatalf("fresh click events=%v", methods(evs))
	}
}

func TestSupersededStyleLoadIsIgnored(t *testing.T) {
	h := readyHarness(t)

	if err := h.b.SetStyle(writeStyle(t, "one.json")); err != nil {
		t.Fatal(err)
	}
	if err := h.b.SetStyle(writeStyle(t, "two.json")); err != nil {
		t.Fatal(err)
	}
	h.settle()

	st := h.b.Status()
	snap := h.eng.Snapshot()
	if st.LiveStyle != snap.Style {
		t.Fatalf("bridge live=%d, engine live=%d", st.LiveStyle, snap.Style)
	}
	if st.Annotations != 3 || len(snap.Annotations) != 3 {
		t.Fatalf("annotations bridge=%d engine=%d, want 3", st.Annotations, len(snap.Annotations))
	}
	for _, id := range snap.Annotations {
		if _, ok := h.b.hits.resolve(id); !ok {
			t.Fatalf("live annotation %d not indexed", id)
		}
	}
}

func TestGestureSequence(t *testing.T) {
	h := readyHarness(t)

	h.eng.Gesture(engine.GesturePan, engine.GestureBegin)
	h.eng.Gesture(engine.GesturePan, engine.GestureUpdate)
	h.eng.Gesture(engine.GesturePan, engine.GestureUpdate)
	h.eng.Gesture(engine.GesturePan, engine.GestureEnd)
	h.settle()

	want := []event.Method{event.MethodMoveBegin, event.MethodMoveUpdate, event.MethodMoveUpdate, event.MethodMoveEnd}
	got := methods(h.events.take())
	if len(got) != len(want) {
		t.Fatalf("events=%v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events=%v, want %v", got, want)
		}
	}
}

func TestScaleGestureUsesSameVocabulary(t *testing.T) {
	h := readyHarness(t)

	h.eng.Pinch(12, 11)
	h.settle()

	want := []event.Method{
		event.MethodMoveBegin,
		event.MethodCameraPosition, event.MethodMoveUpdate,
		event.MethodCameraPosition, event.MethodMoveUpdate,
		event.MethodMoveEnd,
	}
	evs := h.events.take()
	got := methods(evs)
	if len(got) != len(want) {
		t.Fatalf("events=%v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events=%v, want %v", got, want)
		}
	}
	if z := evs[3].Arguments.(event.CameraPositionArgs).Zoom; z != 12 {
		t.Fatalf("zoom=%g, want 12", z)
	}
}

func TestDragForwardsEveryCameraChange(t *testing.T) {
	h := readyHarness(t)

	frames := []orb.Point{{8.51, 47.1}, {8.52, 47.1}, {8.53, 47.1}, {8.54, 47.1}}
	h.eng.Pan(frames...)
	h.settle()

	var cams []event.CameraPositionArgs
	for _, e := range h.events.take() {
		if e.Method == event.MethodCameraPosition {
			cams = append(cams, e.Arguments.(event.CameraPositionArgs))
		}
	}
	if len(cams) != len(frames) {
		t.Fatalf("camera events=%d, want %d", len(cams), len(frames))
	}
	for i, c := range cams {
		if c.Lng != frames[i].Lon() {
			t.Fatalf("frame %d lng=%g, want %g", i, c.Lng, frames[i].Lon())
		}
	}
}

func TestMoveCameraRoundTrip(t *testing.T) {
	h := readyHarness(t)

	err := dispatch(t, h.b, CommandMoveCamera, map[string]any{"lat": 48.2, "lng": 9.1, "duration": 300})
	if err != nil {
		t.Fatal(err)
	}
	h.settle()

	evs := h.events.take()
	if len(evs) != 1 || evs[0].Method != event.MethodCameraPosition {
		t.Fatalf("events=%v", methods(evs))
	}
	got := evs[0].Arguments.(event.CameraPositionArgs)
	if got.Lat != 48.2 || got.Lng != 9.1 || got.Zoom != 14 {
		t.Fatalf("camera=%+v, want lat 48.2 lng 9.1 zoom 14", got)
	}
}

func TestMoveCameraArguments(t *testing.T) {
	h := readyHarness(t)

	tests := []struct {
		name string
		args string
		code Code
	}{
		{"int duration", `{"lat":1,"lng":2,"duration":250}`, ""},
		{"float duration", `{"lat":1,"lng":2,"duration":250.5}`, ""},
		{"no duration", `{"lat":1,"lng":2}`, ""},
		{"negative duration", `{"lat":1,"lng":2,"duration":-5}`, ""},
		{"missing lng", `{"lat":1,"duration":250}`, CodeInvalidArgument},
		{"not an object", `"north"`, CodeInvalidArgument},
		{"bad duration", `{"lat":1,"lng":2,"duration":"soon"}`, CodeInvalidArgument},
		{"lat out of range", `{"lat":500,"lng":2}`, CodeInvalidArgument},
		{"lng out of range", `{"lat":1,"lng":-900}`, CodeInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.b.Dispatch(context.Background(), MethodCall{Method: CommandMoveCamera, Arguments: json.RawMessage(tt.args)})
			if CodeOf(err) != tt.code {
				t.Fatalf("err=%v, want code %q", err, tt.code)
			}
		})
	}
}

func TestMoveCameraRejectsOutOfRangeAndCapsDuration(t *testing.T) {
	h := readyHarness(t)
	h.events.take()
	before := h.eng.Camera()

	err := dispatch(t, h.b, CommandMoveCamera, map[string]any{"lat": 500, "lng": -900, "duration": 1e300})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("err=%v, want %s", err, CodeInvalidArgument)
	}
	h.settle()
	if cam := h.eng.Camera(); cam != before {
		t.Fatalf("camera moved to %+v", cam)
	}
	if evs := h.events.take(); len(evs) != 0 {
		t.Fatalf("events=%v, want none", methods(evs))
	}

	if err := dispatch(t, h.b, CommandMoveCamera, map[string]any{"lat": 10, "lng": 20, "duration": 1e300}); err != nil {
		t.Fatal(err)
	}
	if got := h.eng.LastEase(); got != time.Hour {
		t.Fatalf("ease duration=%v, want 1h", got)
	}
}

func TestUpdateLocationLiveAndAcrossReload(t *testing.T) {
	h := readyHarness(t)

	if err := dispatch(t, h.b, CommandUpdateLocation, locationJSON); err != nil {
		t.Fatal(err)
	}
	snap := h.eng.Snapshot()
	if got := string(snap.Sources["current_location"]); got != locationJSON {
		t.Fatalf("live location=%s", got)
	}
	oldSrc, _ := snap.Source("current_location")

	if err := h.b.SetStyle(writeStyle(t, "night.json")); err != nil {
		t.Fatal(err)
	}
	h.settle()

	snap = h.eng.Snapshot()
	newSrc, ok := snap.Source("current_location")
	if !ok {
		t.Fatal("location source missing after reload")
	}
	if newSrc == oldSrc {
		t.Fatal("location source object reused across styles")
	}
	if got := string(newSrc.Data); got != locationJSON {
		t.Fatalf("location after reload=%s", got)
	}

	next := `{"type":"Point","coordinates":[8.53,47.13]}`
	if err := h.b.UpdateLocation([]byte(next)); err != nil {
		t.Fatalf("update after reload: %v", err)
	}
	if got := string(h.eng.Snapshot().Sources["current_location"]); got != next {
		t.Fatalf("location=%s, want %s", got, next)
	}
}

func TestUpdateLocationAcceptsObjectArgument(t *testing.T) {
	h := readyHarness(t)
	_, err := h.b.Dispatch(context.Background(), MethodCall{Method: CommandUpdateLocation, Arguments: json.RawMessage(locationJSON)})
	if err != nil {
		t.Fatal(err)
	}
	if !h.b.Status().LocationSet {
		t.Fatal("location not set")
	}
}

func TestUpdateLocationParseErrorKeepsPrevious(t *testing.T) {
	h := readyHarness(t)
	if err := h.b.UpdateLocation([]byte(locationJSON)); err != nil {
		t.Fatal(err)
	}

	for _, bad := range []string{`{"type":"Point","coordinates":`, "", `{"type":"Nope"}`} {
		err := dispatch(t, h.b, CommandUpdateLocation, bad)
		if !errors.Is(err, ErrParse) {
			t.Fatalf("updateLocation %q: err=%v, want %s", bad, err, CodeParse)
		}
	}
	if got := string(h.eng.Snapshot().Sources["current_location"]); got != locationJSON {
		t.Fatalf("location=%s, want previous payload", got)
	}

	_, err := h.b.Dispatch(context.Background(), MethodCall{Method: CommandUpdateLocation, Arguments: json.RawMessage(`42`)})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("numeric argument: err=%v", err)
	}
}

func TestCommandsBeforeReady(t *testing.T) {
	eng := memengine.New()
	eng.DeferReady = true
	h := newHarness(t, testParams(t), eng, Config{})
	other := writeStyle(t, "deferred.json")

	if err := dispatch(t, h.b, CommandMoveCamera, map[string]any{"lat": 1, "lng": 2, "duration": 100}); err != nil {
		t.Fatalf("moveCamera before ready: %v", err)
	}
	if err := dispatch(t, h.b, CommandUpdateLocation, locationJSON); err != nil {
		t.Fatalf("updateLocation before ready: %v", err)
	}
	if err := dispatch(t, h.b, CommandSetStyle, other); err != nil {
		t.Fatalf("setStyle before ready: %v", err)
	}
	if err := dispatch(t, h.b, CommandSetStyle, "{broken"); !errors.Is(err, ErrParse) {
		t.Fatalf("malformed setStyle before ready: err=%v", err)
	}
	h.settle()
	if h.b.Ready() {
		t.Fatal("bridge ready before the engine signalled it")
	}
	if snap := h.eng.Snapshot(); snap.Style != 0 {
		t.Fatalf("style built before ready: %d", snap.Style)
	}

	eng.SignalReady()
	h.settle()

	snap := h.eng.Snapshot()
	if snap.StyleURI != "file://"+other {
		t.Fatalf("first style=%q, want the deferred one", snap.StyleURI)
	}
	if got := string(snap.Sources["current_location"]); got != locationJSON {
		t.Fatalf("first build location=%s", got)
	}
	if cam := h.eng.Camera(); cam.Center != (orb.Point{8.5, 47.1}) {
		t.Fatalf("camera=%v, moveCamera before ready must not apply", cam.Center)
	}
}

func TestUnknownCommand(t *testing.T) {
	h := readyHarness(t)
	_, err := h.b.Dispatch(context.Background(), MethodCall{Method: "zoomIn"})
	if !errors.Is(err, ErrNotImplemented) {
		t.Fatalf("err=%v, want %s", err, CodeNotImplemented)
	}

	legacy := newHarness(t, testParams(t), memengine.New(), Config{IgnoreUnknownCommands: true})
	legacy.settle()
	if _, err := legacy.b.Dispatch(context.Background(), MethodCall{Method: "zoomIn"}); err != nil {
		t.Fatalf("legacy unknown command: %v", err)
	}
}

func TestDispatchHonorsContext(t *testing.T) {
	h := readyHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := h.b.Dispatch(ctx, MethodCall{Method: CommandSetStyle}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v", err)
	}
}

func TestCloseReleasesEngine(t *testing.T) {
	h := readyHarness(t)
	if err := h.b.Close(); err != nil {
		t.Fatal(err)
	}
	if err := h.b.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if !h.eng.Snapshot().Closed {
		t.Fatal("engine not released")
	}
	for _, m := range []string{CommandUpdateLocation, CommandSetStyle, CommandMoveCamera} {
		var args any = locationJSON
		switch m {
		case CommandSetStyle:
			args = styleJSON
		case CommandMoveCamera:
			args = map[string]any{"lat": 1, "lng": 2}
		}
		if err := dispatch(t, h.b, m, args); err != nil {
			t.Fatalf("%s after close: %v", m, err)
		}
	}
	if !h.b.Status().Closed {
		t.Fatal("status should report closed")
	}
}

func TestSDKInitializedOncePerProcess(t *testing.T) {
	for i := 0; i < 3; i++ {
		newHarness(t, testParams(t), memengine.New(), Config{SDK: memengine.DefaultSDK})
	}
	if n := memengine.DefaultSDK.Inits(); n != 1 {
		t.Fatalf("sdk inits=%d, want 1", n)
	}
}
