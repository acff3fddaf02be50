package bridge

import (
	"errors"
	"fmt"
	"time"

	"github.com/joeblew999/plat-mapbridge/internal/engine"
	"github.com/joeblew999/plat-mapbridge/internal/metrics"
	"github.com/joeblew999/plat-mapbridge/internal/overlay"
	"github.com/joeblew999/plat-mapbridge/internal/style"
)

// session is the style state of a bridge. It is guarded by Bridge.mu.
type session struct {
	// ref is the style of the live build, or the style the first build
	// will use while the map is not ready.
	ref         style.Ref
	initialized bool

	live    engine.StyleHandle
	loaded  bool
	started time.Time

	// location is the location source attached to the live style. It is
	// rebuilt for every style and never attached twice: engines tear
	// sources down with their style and may crash when a torn-down source
	// object is attached again.
	location *engine.Source
	sources  map[string]*engine.Source
}

// initialize builds the first style. Later calls do nothing.
func (b *Bridge) initialize() error {
	if b.session.initialized {
		return nil
	}
	return b.build(b.session.ref)
}

// reload resolves raw and replaces the live style with it. A reference that
// fails to resolve leaves the live style in place. Before the map is ready
// the reference is only recorded for the first build.
func (b *Bridge) reload(raw string) error {
	resolved, err := b.styles.Resolve(raw)
	if err == nil {
		err = checkOverlaySources(resolved)
	}
	if err != nil {
		b.diagnose(Diagnostic{Kind: DiagnosticContentFailed, Message: err.Error()})
		return Wrap(CodeParse, "style", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	if !b.ready {
		b.session.ref = resolved.Ref
		b.log.Debug("style_deferred", "style", resolved.Ref.String())
		return nil
	}
	return b.build(resolved.Ref)
}

// checkOverlaySources rejects a local style document that declares a source
// under an id the bridge attaches itself. Engines refuse a second source
// with the same id. Remote documents are fetched by the engine and cannot
// be checked here.
func checkOverlaySources(r style.Resolved) error {
	if r.Doc == nil {
		return nil
	}
	for _, k := range overlay.Kinds {
		if id := k.SourceID(); r.Doc.Declares(id) {
			return fmt.Errorf("style declares source %q, which is reserved for overlay content", id)
		}
	}
	return nil
}

// build asks the engine for a new style with every overlay attached. All
// sources are constructed fresh from the stored raw content. On failure
// the previous style and its annotations stay live.
func (b *Bridge) build(ref style.Ref) error {
	loc := b.content.Location()
	location := engine.NewSource(loc.SourceID(), loc.Raw(), loc.Features())
	spec := engine.StyleSpec{Sources: []*engine.Source{location}}
	for _, ds := range b.content.Static() {
		spec.Sources = append(spec.Sources, newSource(ds))
	}
	if ref.Kind == style.RefInline {
		spec.Inline = ref.Inline
	} else {
		spec.URI = ref.URI
	}

	h, err := b.eng.LoadStyle(spec)
	if err != nil {
		metrics.StyleBuildsTotal.WithLabelValues("error").Inc()
		b.log.Warn("style_build_failed", "style", ref.String(), "error", err)
		b.diagnose(Diagnostic{Kind: DiagnosticEngineFailed, Message: err.Error(), Style: b.session.live})
		return Wrap(CodeEngine, fmt.Sprintf("loading style %s", ref), err)
	}
	metrics.StyleBuildsTotal.WithLabelValues("ok").Inc()

	// The previous style is gone, and with it every hit circle.
	b.hits.reset(h)

	sources := make(map[string]*engine.Source, len(spec.Sources))
	for _, src := range spec.Sources {
		sources[src.ID] = src
	}
	b.session = session{
		ref:         ref,
		initialized: true,
		live:        h,
		started:     time.Now(),
		location:    location,
		sources:     sources,
	}
	b.log.Info("style_build", "style", ref.String(), "handle", h, "location_set", loc.IsSet())
	return nil
}

func newSource(ds *overlay.Dataset) *engine.Source {
	return engine.NewSource(ds.SourceID(), ds.Raw(), ds.Features())
}

// OnStyleLoaded materializes the hit circles of the live style. Callbacks
// for superseded styles are ignored.
func (b *Bridge) OnStyleLoaded(h engine.StyleHandle) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	if h != b.session.live {
		b.log.Debug("style_loaded_stale", "handle", h, "live", b.session.live)
		b.diagnose(Diagnostic{Kind: DiagnosticStaleStyle, Message: "superseded style finished loading", Style: h})
		return
	}
	b.session.loaded = true
	metrics.StyleBuildDurationMs.Observe(float64(time.Since(b.session.started).Microseconds()) / 1000)

	n, err := b.hits.materialize(b.eng, h, b.content.Points(), b.content.POIs())
	if err != nil {
		b.log.Warn("annotations_failed", "handle", h, "error", err)
		return
	}
	b.log.Debug("style_loaded", "handle", h, "annotations", n)
}

// updateLocation stores a new location payload and pushes it to the live
// location source. A malformed payload keeps the previous location.
func (b *Bridge) updateLocation(data []byte) error {
	// Store and engine see updates in the same order.
	b.mu.Lock()
	defer b.mu.Unlock()

	ds, err := b.content.SetLocation(data)
	if err != nil {
		b.diagnose(Diagnostic{Kind: DiagnosticContentFailed, Message: err.Error()})
		return Wrap(CodeParse, "location", err)
	}

	if b.closed || b.session.location == nil {
		// Applied by the first build.
		return nil
	}
	err = b.eng.UpdateSource(b.session.location, ds.Raw(), ds.Features())
	if errors.Is(err, engine.ErrClosed) {
		return nil
	}
	if err != nil {
		b.log.Warn("location_update_failed", "error", err)
		return Wrap(CodeEngine, "updating location source", err)
	}
	return nil
}
