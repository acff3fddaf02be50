package bridge

import (
	"fmt"
	"sync/atomic"

	"github.com/joeblew999/plat-mapbridge/internal/engine"
	"github.com/joeblew999/plat-mapbridge/internal/event"
	"github.com/joeblew999/plat-mapbridge/internal/metrics"
	"github.com/joeblew999/plat-mapbridge/internal/overlay"
)

// Hit circles are invisible; the style's symbol layers draw the markers.
var hitCircle = engine.CircleStyle{Radius: 32, Opacity: 0}

// Category is the dataset a hit circle was built from.
type Category string

const (
	CategoryPoint Category = "point"
	CategoryPOI   Category = "poi"
)

type hitRef struct {
	category Category
	index    int
}

// hitIndex maps engine annotation ids to dataset ordinals for one style.
// It is never modified after it is published.
type hitIndex struct {
	style engine.StyleHandle
	refs  map[engine.AnnotationID]hitRef
}

// hitTester resolves clicks without taking the bridge lock. Every
// materialization publishes a complete new index.
type hitTester struct {
	idx atomic.Pointer[hitIndex]
}

func (t *hitTester) reset(h engine.StyleHandle) {
	t.idx.Store(&hitIndex{style: h})
}

func (t *hitTester) size() int {
	idx := t.idx.Load()
	if idx == nil {
		return 0
	}
	return len(idx.refs)
}

// materialize places one hit circle per point, then per poi, in feature
// order. Features without geometry keep their ordinal but get no circle.
// The index is published only if every circle was placed.
func (t *hitTester) materialize(eng engine.Engine, h engine.StyleHandle, points, pois *overlay.Dataset) (int, error) {
	refs := make(map[engine.AnnotationID]hitRef, points.Len()+pois.Len())
	for _, set := range []struct {
		category Category
		ds       *overlay.Dataset
	}{
		{CategoryPoint, points},
		{CategoryPOI, pois},
	} {
		for i, f := range set.ds.Features().Features {
			if f == nil || f.Geometry == nil {
				continue
			}
			id, err := eng.AddInvisibleHitCircle(h, f.Geometry, hitCircle)
			if err != nil {
				return 0, fmt.Errorf("%s %d: %w", set.category, i, err)
			}
			refs[id] = hitRef{category: set.category, index: i}
		}
	}
	t.idx.Store(&hitIndex{style: h, refs: refs})
	return len(refs), nil
}

func (t *hitTester) resolve(id engine.AnnotationID) (hitRef, bool) {
	idx := t.idx.Load()
	if idx == nil {
		return hitRef{}, false
	}
	ref, ok := idx.refs[id]
	return ref, ok
}

// OnAnnotationClicked turns a click into pointClick or poiClick. Ids that
// resolve to neither are dropped; the host never sees them.
func (b *Bridge) OnAnnotationClicked(id engine.AnnotationID) {
	ref, ok := b.hits.resolve(id)
	if !ok {
		metrics.ClicksDroppedTotal.Inc()
		b.log.Debug("click_dropped", "annotation", id)
		b.diagnose(Diagnostic{Kind: DiagnosticClickDropped, Message: "annotation id not in current index", Annotation: id})
		return
	}
	switch ref.category {
	case CategoryPoint:
		b.emitter.Emit(event.PointClick(ref.index))
	case CategoryPOI:
		b.emitter.Emit(event.PoiClick(ref.index))
	}
}
