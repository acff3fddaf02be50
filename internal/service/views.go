package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joeblew999/plat-mapbridge/internal/bridge"
	"github.com/joeblew999/plat-mapbridge/internal/engine/memengine"
	"github.com/joeblew999/plat-mapbridge/internal/event"
	"github.com/joeblew999/plat-mapbridge/internal/journal"
	"github.com/joeblew999/plat-mapbridge/internal/metrics"
	"github.com/joeblew999/plat-mapbridge/internal/style"
)

// ErrViewNotFound is returned for unknown view ids.
var ErrViewNotFound = errors.New("view not found")

// View is one live map: a bridge, the engine it drives and the bus its
// events fan out on.
type View struct {
	ID      string
	Created time.Time
	Params  bridge.Params
	Bridge  *bridge.Bridge
	Engine  *memengine.Engine
	Bus     *event.Bus

	state *stateTracker
}

// State returns what the host has been told so far.
func (v *View) State() ViewState { return v.state.snapshot() }

// ViewOptions configures a ViewService.
type ViewOptions struct {
	// DataDir holds views.json. Views are not persisted when empty.
	DataDir string
	Logger  *slog.Logger
	Styles  *style.Loader
	// Journal records events and diagnostics of every view when set.
	Journal               *journal.Journal
	IgnoreUnknownCommands bool
}

// ViewService manages live map views.
type ViewService struct {
	opts  ViewOptions
	log   *slog.Logger
	views map[string]*View
	mu    sync.RWMutex
}

// NewViewService creates a view service and restores persisted views.
func NewViewService(opts ViewOptions) *ViewService {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	s := &ViewService{
		opts:  opts,
		log:   log,
		views: make(map[string]*View),
	}
	s.loadFromDisk()
	return s
}

// List returns all views, oldest first.
func (s *ViewService) List() []*View {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*View, 0, len(s.views))
	for _, v := range s.views {
		result = append(result, v)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Created.Before(result[j].Created) })
	return result
}

// Get returns a view by ID.
func (s *ViewService) Get(id string) (*View, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.views[id]
	return v, ok
}

// Create builds a bridge for params on a new engine.
func (s *ViewService) Create(p bridge.Params) (*View, error) {
	v, err := s.open(uuid.NewString(), p)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.views[v.ID] = v
	if err := s.saveToDisk(); err != nil {
		s.log.Warn("views_save_failed", "error", err)
	}
	return v, nil
}

func (s *ViewService) open(id string, p bridge.Params) (*View, error) {
	v := &View{
		ID:      id,
		Created: time.Now(),
		Params:  p,
		Engine:  memengine.New(),
		Bus:     event.NewBus(64),
		state:   &stateTracker{},
	}

	cfg := bridge.Config{
		Logger:                s.log.With("view", id),
		Sink:                  event.Multi(v.state, v.Bus),
		Styles:                s.opts.Styles,
		SDK:                   memengine.DefaultSDK,
		IgnoreUnknownCommands: s.opts.IgnoreUnknownCommands,
	}
	if j := s.opts.Journal; j != nil {
		cfg.Sink = event.Multi(v.state, v.Bus, j.Sink(id))
		cfg.OnDiagnostic = j.Diagnostics(id)
	}

	b, err := bridge.New(p, v.Engine, cfg)
	if err != nil {
		v.Engine.Close()
		return nil, err
	}
	v.Bridge = b
	metrics.ViewsActive.Inc()
	s.log.Info("view_created", "view", id)
	return v, nil
}

// Delete closes a view and releases its engine.
func (s *ViewService) Delete(id string) error {
	s.mu.Lock()
	v, ok := s.views[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrViewNotFound, id)
	}
	delete(s.views, id)
	if err := s.saveToDisk(); err != nil {
		s.log.Warn("views_save_failed", "error", err)
	}
	s.mu.Unlock()

	s.close(v)
	return nil
}

// Close closes every view without forgetting persisted ones.
func (s *ViewService) Close() {
	s.mu.Lock()
	views := s.views
	s.views = make(map[string]*View)
	s.mu.Unlock()

	for _, v := range views {
		s.close(v)
	}
}

func (s *ViewService) close(v *View) {
	if err := v.Bridge.Close(); err != nil {
		s.log.Warn("view_close_failed", "view", v.ID, "error", err)
	}
	v.Bus.Close()
	metrics.ViewsActive.Dec()
	s.log.Info("view_closed", "view", v.ID)
}

// configFile returns the path to the views file.
func (s *ViewService) configFile() string {
	return filepath.Join(s.opts.DataDir, "views.json")
}

// loadFromDisk reopens the views saved by a previous process.
func (s *ViewService) loadFromDisk() {
	if s.opts.DataDir == "" {
		return
	}
	data, err := os.ReadFile(s.configFile())
	if err != nil {
		return // File doesn't exist yet, start empty
	}

	var saved map[string]bridge.Params
	if err := json.Unmarshal(data, &saved); err != nil {
		s.log.Warn("views_file_invalid", "path", s.configFile(), "error", err)
		return
	}
	for id, p := range saved {
		v, err := s.open(id, p)
		if err != nil {
			s.log.Warn("view_restore_failed", "view", id, "error", err)
			continue
		}
		s.views[id] = v
	}
}

// saveToDisk persists the params of every view. Callers hold s.mu.
func (s *ViewService) saveToDisk() error {
	if s.opts.DataDir == "" {
		return nil
	}
	if err := os.MkdirAll(s.opts.DataDir, 0755); err != nil {
		return err
	}

	saved := make(map[string]bridge.Params, len(s.views))
	for id, v := range s.views {
		saved[id] = v.Params
	}
	data, err := json.MarshalIndent(saved, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.configFile(), data, 0644)
}
