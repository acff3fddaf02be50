package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/joeblew999/plat-mapbridge/internal/api"
	"github.com/joeblew999/plat-mapbridge/internal/db"
	"github.com/joeblew999/plat-mapbridge/internal/humastar"
	"github.com/joeblew999/plat-mapbridge/internal/journal"
	"github.com/joeblew999/plat-mapbridge/internal/metrics"
	"github.com/joeblew999/plat-mapbridge/internal/service"
	"github.com/joeblew999/plat-mapbridge/internal/style"
)

// Config holds the server configuration.
type Config struct {
	Host    string
	Port    string
	DataDir string
	// Journal records events and diagnostics in DuckDB under DataDir.
	Journal bool
	// IgnoreUnknownCommands answers unknown host commands with success.
	IgnoreUnknownCommands bool
	Logger                *slog.Logger
}

// Server is the map bridge HTTP server.
type Server struct {
	config   Config
	log      *slog.Logger
	mux      *http.ServeMux
	humaAPI  huma.API
	db       *sql.DB
	styles   *style.Loader
	services *api.Services
}

// New creates a new map bridge server.
func New(cfg Config) (*Server, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	mux := http.NewServeMux()

	// Create Huma API with humago (pure stdlib) adapter
	humaConfig := huma.DefaultConfig("plat-mapbridge API", "1.0.0")
	humaConfig.Info.Description = "Host channel for embedded map views: create views, send commands and stream map events."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, humastar.LinkTransformer())

	humaAPI := humago.New(mux, humaConfig)

	styles, err := style.NewLoader(log)
	if err != nil {
		return nil, err
	}

	s := &Server{
		config:  cfg,
		log:     log,
		mux:     mux,
		humaAPI: humaAPI,
		styles:  styles,
	}

	var j *journal.Journal
	if cfg.Journal {
		conn, err := db.Get(db.Config{
			DataDir: cfg.DataDir,
			DBName:  "mapbridge",
		})
		if err != nil {
			styles.Close()
			return nil, fmt.Errorf("opening journal database: %w", err)
		}
		s.db = conn
		if j, err = journal.New(context.Background(), conn, log); err != nil {
			styles.Close()
			return nil, err
		}
	}

	s.services = &api.Services{
		Views: service.NewViewService(service.ViewOptions{
			DataDir:               cfg.DataDir,
			Logger:                log,
			Styles:                styles,
			Journal:               j,
			IgnoreUnknownCommands: cfg.IgnoreUnknownCommands,
		}),
		Journal: j,
	}

	s.routes()
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// OpenAPI returns the generated OpenAPI document.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Close closes every view and server resources.
func (s *Server) Close() error {
	s.services.Views.Close()
	s.styles.Close()
	if s.db != nil {
		return db.Close()
	}
	return nil
}

func (s *Server) routes() {
	// Register Huma REST and SSE routes (OpenAPI-documented)
	api.RegisterRoutes(s.humaAPI, s.services)
	huma.AutoRegister(s.humaAPI, api.NewInfoHandler(s.config.DataDir, s.services.Journal != nil))

	// Links are generated from the finished OpenAPI document
	humastar.AutoLinks(s.humaAPI)

	s.mux.Handle("/metrics", metrics.Handler())
	s.mux.HandleFunc("/", s.handleRoot)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	for _, link := range humastar.RootLinks() {
		w.Header().Add("Link", link)
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"service": "plat-mapbridge",
		"status":  "running",
		"views":   len(s.services.Views.List()),
	})
}

// BaseURL returns the URL clients reach the server on.
func (s *Server) BaseURL() string {
	host := s.config.Host
	if host == "" || host == "0.0.0.0" || strings.HasPrefix(host, "[::]") {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%s", host, s.config.Port)
}
