package style

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/ristretto"
)

// Loader resolves references and validates local style documents. Parsed
// documents are cached by path, size and modification time, so an edited
// file is always re-read.
type Loader struct {
	cache *ristretto.Cache
	log   *slog.Logger
}

// NewLoader creates a loader with a small document cache.
func NewLoader(log *slog.Logger) (*Loader, error) {
	if log == nil {
		log = slog.Default()
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e4,
		MaxCost:     64 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("creating style cache: %w", err)
	}
	return &Loader{cache: cache, log: log}, nil
}

// Resolved is a reference together with its validated document. Doc is nil
// for remote styles, which the engine fetches itself.
type Resolved struct {
	Ref Ref
	Doc *Document
}

// Resolve parses raw and validates the style document when it is available
// locally.
func (l *Loader) Resolve(raw string) (Resolved, error) {
	ref, err := Parse(raw)
	if err != nil {
		return Resolved{}, err
	}

	switch ref.Kind {
	case RefInline:
		doc, err := ParseDocument(ref.Inline)
		if err != nil {
			return Resolved{}, err
		}
		return Resolved{Ref: ref, Doc: doc}, nil

	case RefFile:
		doc, err := l.loadFile(ref.Path)
		if err != nil {
			return Resolved{}, err
		}
		return Resolved{Ref: ref, Doc: doc}, nil
	}

	return Resolved{Ref: ref}, nil
}

func (l *Loader) loadFile(path string) (*Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("style file: %w", err)
	}
	key := fmt.Sprintf("%s|%d|%d", path, info.Size(), info.ModTime().UnixNano())
	if cached, ok := l.cache.Get(key); ok {
		if doc, ok := cached.(*Document); ok {
			return doc, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading style file: %w", err)
	}
	doc, err := ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	l.cache.Set(key, doc, int64(len(data)))
	l.cache.Wait()
	l.log.Debug("style_cached", "path", path, "layers", len(doc.Layers))
	return doc, nil
}

// Close releases the cache.
func (l *Loader) Close() {
	l.cache.Close()
}
