// Package api serves the repository catalog over HTTP: JSON endpoints for
// listing, classifying, discovering and updating repos, a websocket stream
// of catalog events, and the Prometheus metrics endpoint.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"podrepo-agent/internal/catalog"
	"podrepo-agent/internal/classify"
	"podrepo-agent/internal/manifest"
	"podrepo-agent/internal/metrics"
	"podrepo-agent/internal/refresh"
	"podrepo-agent/pkg/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	shutdownTimeout = 5 * time.Second
	writeWait       = 10 * time.Second
	eventBuffer     = 64
)

// Options configures the status API
type Options struct {
	// ProjectDir is classified when a request names no project
	ProjectDir string
	// MetricsHandler is mounted at /metrics when set
	MetricsHandler http.Handler
	// Metrics records per-route request counts
	Metrics *metrics.Collector
}

// Server is the status API
type Server struct {
	logger      *logrus.Logger
	catalog     *catalog.Catalog
	coordinator *refresh.Coordinator
	opts        Options
	upgrader    websocket.Upgrader

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a new status API server
func New(logger *logrus.Logger, cat *catalog.Catalog, coordinator *refresh.Coordinator, opts Options) *Server {
	return &Server{
		logger:      logger,
		catalog:     cat,
		coordinator: coordinator,
		opts:        opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		done: make(chan struct{}),
	}
}

// Handler returns the API routes
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Route("/repos", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Get("/classify", s.handleClassify)
		r.Post("/discover", s.handleDiscover)
		r.Get("/{name}", s.handleGet)
		r.Post("/{name}/update", s.handleUpdate)
	})

	r.Get("/events", s.handleEvents)

	if s.opts.MetricsHandler != nil {
		r.Handle("/metrics", s.opts.MetricsHandler)
	}
	return r
}

// ListenAndServe serves the API on addr until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("Status API listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		return err
	case <-ctx.Done():
	}

	s.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close ends open event streams
func (s *Server) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog.GetAll())
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	repo, ok := s.catalog.Find(name)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown repository "+name)
		return
	}
	writeJSON(w, http.StatusOK, repo)
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	dir := r.URL.Query().Get("project")
	if dir == "" {
		dir = s.opts.ProjectDir
	}
	if dir == "" {
		writeError(w, http.StatusBadRequest, "no project directory given")
		return
	}

	m, err := manifest.Read(dir)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, manifest.ErrNoManifest) {
			status = http.StatusNotFound
		}
		writeError(w, status, err.Error())
		return
	}

	result := classify.Project(dir, m.DeclaredSources(), s.catalog.GetAll())
	result.Locked = m.LockedSources()

	if len(result.Unresolved) > 0 {
		s.logger.WithFields(logrus.Fields{
			"project":    dir,
			"unresolved": result.Unresolved,
		}).Warn("Project declares sources that are not installed")
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	repos, err := s.coordinator.Discover(r.Context())
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, repos)
}

// handleUpdate starts an update. With ?wait=true the response is sent once
// the update has finished.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	repo, ok := s.catalog.Find(name)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown repository "+name)
		return
	}

	op, err := s.coordinator.Update(r.Context(), repo.Address)
	switch {
	case errors.Is(err, refresh.ErrRepoNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, refresh.ErrAlreadyUpdating):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if r.URL.Query().Get("wait") != "true" {
		writeJSON(w, http.StatusAccepted, models.UpdateResponse{Address: op.Address, Status: "updating"})
		return
	}

	if err := op.Wait(r.Context()); err != nil {
		if r.Context().Err() != nil {
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, models.UpdateResponse{Address: op.Address, Status: "updated"})
}

// handleEvents streams catalog events to a websocket client. The current
// catalog is sent first as a replaced event. Clients that fall behind are
// disconnected.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Debug("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	events := make(chan catalog.Event, eventBuffer)
	overflow := make(chan struct{})
	var overflowOnce sync.Once
	sub := s.catalog.Subscribe(func(e catalog.Event) {
		select {
		case events <- e:
		default:
			overflowOnce.Do(func() { close(overflow) })
		}
	})
	defer s.catalog.Unsubscribe(sub)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(e catalog.Event) bool {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(e) == nil
	}

	if !send(catalog.Event{Type: catalog.EventReplaced, Repos: s.catalog.GetAll()}) {
		return
	}

	for {
		select {
		case e := <-events:
			if !send(e) {
				return
			}
		case <-overflow:
			s.logger.Warn("Event stream client too slow, disconnecting")
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "too slow"),
				time.Now().Add(writeWait))
			return
		case <-closed:
			return
		case <-s.done:
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(writeWait))
			return
		}
	}
}

// logRequests logs each request and records it in the metrics collector
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)

		s.opts.Metrics.ObserveRequest(route, status, elapsed.Seconds())
		s.logger.WithFields(logrus.Fields{
			"method":     r.Method,
			"route":      route,
			"status":     status,
			"duration":   elapsed.String(),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("Handled request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, models.ErrorResponse{Error: msg})
}
