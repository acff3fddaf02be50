// Package style resolves host style references and validates style documents
// before the engine is asked to load them.
package style

import (
	"bytes"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// RefKind classifies a style reference.
type RefKind string

const (
	RefFile   RefKind = "file"
	RefRemote RefKind = "remote"
	RefInline RefKind = "inline"
)

// Ref is a resolved style reference.
type Ref struct {
	Kind RefKind
	// URI is the engine-facing location for file and remote styles.
	URI string
	// Path is the local file path for file styles.
	Path string
	// Inline holds the style document for inline styles.
	Inline []byte
}

// Parse classifies a raw style reference as supplied by the host: a local
// path ("/data/style.json" or "file:///data/style.json"), a remote or asset
// URI, or an inline JSON style definition.
func Parse(raw string) (Ref, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Ref{}, fmt.Errorf("style reference is empty")
	}

	if strings.HasPrefix(s, "{") {
		return Ref{Kind: RefInline, Inline: bytes.Clone([]byte(s))}, nil
	}

	if strings.HasPrefix(s, "file://") {
		u, err := url.Parse(s)
		if err != nil {
			return Ref{}, fmt.Errorf("parsing style uri: %w", err)
		}
		if u.Path == "" {
			return Ref{}, fmt.Errorf("style uri %q has no path", s)
		}
		return fileRef(u.Path), nil
	}

	if i := strings.Index(s, "://"); i > 0 {
		u, err := url.Parse(s)
		if err != nil {
			return Ref{}, fmt.Errorf("parsing style uri: %w", err)
		}
		return Ref{Kind: RefRemote, URI: u.String()}, nil
	}

	return fileRef(s), nil
}

func fileRef(path string) Ref {
	path = filepath.Clean(path)
	return Ref{Kind: RefFile, Path: path, URI: "file://" + path}
}

// String returns a loggable form of the reference.
func (r Ref) String() string {
	if r.Kind == RefInline {
		return fmt.Sprintf("inline(%d bytes)", len(r.Inline))
	}
	return r.URI
}
