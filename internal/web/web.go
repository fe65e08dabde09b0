// Package web serves the event scheduling UI and its JSON API.
package web

import (
	"context"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"eventtz/internal/config"
	"eventtz/internal/errdef"
	"eventtz/internal/event"
	"eventtz/internal/ics"
	appLog "eventtz/internal/log"
	"eventtz/internal/model"
)

// Backend is the subset of the profiles/events service the UI uses.
type Backend interface {
	ListProfiles(ctx context.Context) ([]model.Profile, error)
	CreateProfile(ctx context.Context, name, timezone string) (model.Profile, error)
	UpdateProfile(ctx context.Context, id, timezone string) (model.Profile, error)
	ListEvents(ctx context.Context, profileID string) ([]model.Event, error)
	GetEvent(ctx context.Context, id string) (model.Event, error)
	CreateEvent(ctx context.Context, p event.Payload) (model.Event, error)
	UpdateEvent(ctx context.Context, id string, p event.Payload) (model.Event, error)
}

// Server wires HTTP routes to the backend client and the validator.
type Server struct {
	cfg     *config.Config
	backend Backend
	fetcher *ics.Fetcher
	now     func() time.Time
	mux     *http.ServeMux
	pages   *template.Template

	// Profile list shown in every page header; refreshed on TTL expiry,
	// on writes and by the cron job.
	profilesMu sync.RWMutex
	profiles   *profileCache
}

//go:embed templates/*.html
var templateFS embed.FS

// Option customizes a Server.
type Option func(*Server)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithFetcher sets the fetcher used for feed URL imports.
func WithFetcher(f *ics.Fetcher) Option {
	return func(s *Server) { s.fetcher = f }
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, backend Backend, opts ...Option) *Server {
	s := &Server{
		cfg:     cfg,
		backend: backend,
		now:     time.Now,
		mux:     http.NewServeMux(),
		pages:   template.Must(template.New("pages").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html")),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.fetcher == nil {
		var fopts []ics.FetcherOption
		if cfg.AllowPrivateFeeds {
			fopts = append(fopts, ics.AllowPrivateHosts())
		}
		s.fetcher = ics.NewFetcher(cfg.RequestTimeout, fopts...)
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// Run serves on cfg.Listen until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		appLog.Info("shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	}
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured. Empty
// credentials leave it disabled.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="eventtz", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.Handle("GET /metrics", promhttp.Handler())

	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("POST /profiles", s.handleCreateProfile)
	s.mux.HandleFunc("POST /profiles/{id}/timezone", s.handleProfileTimezone)
	s.mux.HandleFunc("GET /profiles/{id}/calendar.ics", s.handleProfileCalendar)

	s.mux.HandleFunc("POST /events", s.handleCreateEvent)
	s.mux.HandleFunc("POST /events/import", s.handleImport)
	s.mux.HandleFunc("GET /events/{id}/edit", s.handleEditEvent)
	s.mux.HandleFunc("POST /events/{id}", s.handleUpdateEvent)
	s.mux.HandleFunc("GET /events/{id}/logs", s.handleEventLogs)
	s.mux.HandleFunc("GET /events/{id}/calendar.ics", s.handleEventCalendar)

	s.mux.HandleFunc("GET /api/timezones", s.handleTimezones)
	s.mux.HandleFunc("GET /api/convert", s.handleConvert)
	s.mux.HandleFunc("POST /api/events/validate", s.handleValidate)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// statusOf maps an error onto an HTTP status. Validation problems are 422,
// classified backend errors keep their meaning, anything else is 502 because
// it came from (or failed to reach) the backend.
func statusOf(err error) int {
	if _, ok := event.KindOf(err); ok {
		return http.StatusUnprocessableEntity
	}
	switch {
	case errdef.IsBadRequest(err):
		return http.StatusBadRequest
	case errdef.IsNotFound(err):
		return http.StatusNotFound
	case errdef.IsConflict(err):
		return http.StatusConflict
	case errdef.IsForbidden(err):
		return http.StatusForbidden
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

// genericFailure is shown for errors whose text is not meant for users, such
// as dial errors or unclassified backend responses. Those are logged instead.
const genericFailure = "Operation failed"

// publicMessage returns the text of err that may be shown to a user.
func publicMessage(err error) string {
	if _, ok := event.KindOf(err); ok {
		return err.Error()
	}
	switch {
	case errdef.IsBadRequest(err), errdef.IsNotFound(err), errdef.IsConflict(err), errdef.IsForbidden(err):
		return err.Error()
	default:
		return genericFailure
	}
}

type errorResponse struct {
	Error string     `json:"error"`
	Kind  event.Kind `json:"kind,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeErr renders err with the status from statusOf. Validation errors also
// carry their kind.
func writeErr(w http.ResponseWriter, err error) {
	kind, ok := event.KindOf(err)
	if !ok {
		appLog.Error("request failed", err)
	}
	writeJSON(w, statusOf(err), errorResponse{Error: publicMessage(err), Kind: kind})
}

var templateFuncs = template.FuncMap{
	"join": strings.Join,
	"zoneChoice": func(zones []string, selected string) zoneChoice {
		return zoneChoice{Zones: zones, Selected: selected}
	},
}

type zoneChoice struct {
	Zones    []string
	Selected string
}
