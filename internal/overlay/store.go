package overlay

import (
	"fmt"
	"sync"
)

// Content is the raw construction input for a Store.
type Content struct {
	Path   string
	Points string
	POIs   string // optional
}

// Store holds the overlay datasets of one map view. Path, points and pois
// are fixed at construction; the location dataset starts empty and is
// replaced on every successful update.
type Store struct {
	path   *Dataset
	points *Dataset
	pois   *Dataset

	mu       sync.RWMutex
	location *Dataset
}

// NewStore parses the static datasets. Path and points are required.
func NewStore(c Content) (*Store, error) {
	if c.Path == "" {
		return nil, fmt.Errorf("path geojson is required")
	}
	if c.Points == "" {
		return nil, fmt.Errorf("points geojson is required")
	}

	path, err := Parse(KindPath, []byte(c.Path))
	if err != nil {
		return nil, err
	}
	points, err := Parse(KindPoints, []byte(c.Points))
	if err != nil {
		return nil, err
	}
	pois := Empty(KindPOIs)
	if c.POIs != "" {
		if pois, err = Parse(KindPOIs, []byte(c.POIs)); err != nil {
			return nil, err
		}
	}

	return &Store{
		path:     path,
		points:   points,
		pois:     pois,
		location: Empty(KindLocation),
	}, nil
}

// Path returns the tour path dataset.
func (s *Store) Path() *Dataset { return s.path }

// Points returns the tour points dataset.
func (s *Store) Points() *Dataset { return s.points }

// POIs returns the points-of-interest dataset.
func (s *Store) POIs() *Dataset { return s.pois }

// Static returns path, points and pois in attachment order.
func (s *Store) Static() []*Dataset {
	return []*Dataset{s.path, s.points, s.pois}
}

// Location returns the last location dataset; it is empty until the first
// successful SetLocation.
func (s *Store) Location() *Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.location
}

// SetLocation parses and stores a new location payload. On a parse error
// the previous location is kept.
func (s *Store) SetLocation(data []byte) (*Dataset, error) {
	ds, err := Parse(KindLocation, data)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.location = ds
	s.mu.Unlock()
	return ds, nil
}
