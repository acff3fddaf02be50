// Package bridge keeps a map engine synchronized with a host application.
//
// A Bridge applies host commands (Dispatch) to the engine and turns engine
// callbacks into the fixed host event vocabulary of package event. It owns
// the live style and rebuilds every overlay source whenever the style
// changes, so content survives reloads.
//
// Engine callbacks arrive on the engine's goroutine; commands may arrive on
// any goroutine, at any time, including before the map is ready.
package bridge

import (
	"log/slog"
	"sync"
	"time"

	"github.com/joeblew999/plat-mapbridge/internal/engine"
	"github.com/joeblew999/plat-mapbridge/internal/event"
	"github.com/joeblew999/plat-mapbridge/internal/overlay"
	"github.com/joeblew999/plat-mapbridge/internal/style"
)

// Config carries the collaborators of a Bridge. Every field is optional.
type Config struct {
	Logger *slog.Logger
	// Sink receives host events in order.
	Sink event.Sink
	// Styles resolves style references. When nil the bridge creates and
	// owns a loader.
	Styles *style.Loader
	// SDK is initialized once per process before the first bridge opens
	// its engine.
	SDK engine.SDK
	// IgnoreUnknownCommands answers unknown commands with success instead
	// of CodeNotImplemented.
	IgnoreUnknownCommands bool
	// OnDiagnostic observes conditions that are never surfaced on the host
	// channel, such as dropped clicks. It may run while bridge state is
	// locked and must not call back into the Bridge.
	OnDiagnostic func(Diagnostic)
}

// DiagnosticKind classifies a Diagnostic.
type DiagnosticKind string

const (
	DiagnosticClickDropped  DiagnosticKind = "click_dropped"
	DiagnosticStaleStyle    DiagnosticKind = "stale_style_loaded"
	DiagnosticContentFailed DiagnosticKind = "content_rejected"
	DiagnosticEngineFailed  DiagnosticKind = "engine_rejected"
)

// Diagnostic describes a recovered condition.
type Diagnostic struct {
	Kind       DiagnosticKind      `json:"kind"`
	Message    string              `json:"message"`
	Annotation engine.AnnotationID `json:"annotation,omitempty"`
	Style      engine.StyleHandle  `json:"style,omitempty"`
	Time       time.Time           `json:"time"`
}

// Bridge synchronizes one engine with one host.
type Bridge struct {
	eng       engine.Engine
	log       *slog.Logger
	emitter   *event.Emitter
	content   *overlay.Store
	styles    *style.Loader
	ownStyles bool
	cfg       Config

	center LatLng
	zoom   float64
	ui     engine.UISettings

	mu      sync.Mutex
	ready   bool
	closed  bool
	session session

	hits hitTester
}

// New validates params, parses the overlay content and opens the engine.
// Construction fails closed: any missing or malformed parameter is
// reported as CodeInvalidParams and nothing is opened.
func New(params Params, eng engine.Engine, cfg Config) (*Bridge, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if eng == nil {
		return nil, NewError(CodeInvalidParams, "engine is required")
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	content, err := overlay.NewStore(overlay.Content{
		Path:   params.PathGeoJSON,
		Points: params.PointsGeoJSON,
		POIs:   params.PoisGeoJSON,
	})
	if err != nil {
		return nil, Wrap(CodeInvalidParams, "overlay content", err)
	}

	styles, own := cfg.Styles, false
	if styles == nil {
		if styles, err = style.NewLoader(log); err != nil {
			return nil, Wrap(CodeInvalidParams, "style loader", err)
		}
		own = true
	}
	resolved, err := styles.Resolve(params.StylePath)
	if err == nil {
		err = checkOverlaySources(resolved)
	}
	if err != nil {
		if own {
			styles.Close()
		}
		return nil, Wrap(CodeInvalidParams, "stylePath", err)
	}

	if cfg.SDK != nil {
		if err := engine.Setup(cfg.SDK); err != nil {
			if own {
				styles.Close()
			}
			return nil, Wrap(CodeInvalidParams, "engine sdk", err)
		}
	}

	b := &Bridge{
		eng:       eng,
		log:       log,
		emitter:   event.NewEmitter(cfg.Sink, log),
		content:   content,
		styles:    styles,
		ownStyles: own,
		cfg:       cfg,
		center:    *params.Center,
		zoom:      *params.Zoom,
		ui:        params.Display.UISettings(),
		session:   session{ref: resolved.Ref},
	}

	if err := eng.Open(b); err != nil {
		b.emitter.Close()
		if own {
			styles.Close()
		}
		return nil, Wrap(CodeInvalidParams, "opening engine", err)
	}

	log.Info("bridge_created",
		"style", resolved.Ref.String(),
		"points", content.Points().Len(),
		"pois", content.POIs().Len(),
	)
	return b, nil
}

// Ready reports whether the engine signalled that the map is ready.
func (b *Bridge) Ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ready
}

// Status is a point-in-time summary of the bridge.
type Status struct {
	Ready       bool               `json:"ready"`
	Closed      bool               `json:"closed"`
	Style       string             `json:"style"`
	LiveStyle   engine.StyleHandle `json:"liveStyle"`
	Loaded      bool               `json:"loaded"`
	Annotations int                `json:"annotations"`
	LocationSet bool               `json:"locationSet"`
}

// Status returns the current bridge status.
func (b *Bridge) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Status{
		Ready:       b.ready,
		Closed:      b.closed,
		Style:       b.session.ref.String(),
		LiveStyle:   b.session.live,
		Loaded:      b.session.loaded,
		Annotations: b.hits.size(),
		LocationSet: b.content.Location().IsSet(),
	}
}

// Flush waits until every event emitted so far reached the sink.
func (b *Bridge) Flush() {
	b.emitter.Flush()
}

// Close stops event delivery and releases the engine. Commands after Close
// succeed without effect. Close must not be called from an engine callback.
func (b *Bridge) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.emitter.Close()
	err := b.eng.Close()
	if b.ownStyles {
		b.styles.Close()
	}
	b.log.Info("bridge_closed")
	return err
}

func (b *Bridge) diagnose(d Diagnostic) {
	if b.cfg.OnDiagnostic == nil {
		return
	}
	if d.Time.IsZero() {
		d.Time = time.Now()
	}
	b.cfg.OnDiagnostic(d)
}

// OnMapReady configures the engine, positions the camera and builds the
// first style.
func (b *Bridge) OnMapReady() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed || b.ready {
		return
	}
	b.ready = true

	if err := b.eng.Configure(b.ui); err != nil {
		b.log.Warn("configure_failed", "error", err)
	}
	b.initCamera()
	if err := b.initialize(); err != nil {
		b.log.Error("initial_style_failed", "error", err)
	}
}

var _ engine.Listener = (*Bridge)(nil)
