// Package web provides the HTTP API and status page for the coffee-relay daemon.
package web

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/sweeney/coffee-relay/internal/actuator"
	"github.com/sweeney/coffee-relay/internal/schedule"
	"github.com/sweeney/coffee-relay/internal/status"
	"github.com/sweeney/coffee-relay/internal/telemetry"
)

// Controller is the relay scheduling surface the API drives.
type Controller interface {
	Start(tod schedule.TimeOfDay) (time.Time, error)
	Stop() error
	Status() actuator.State
	Snapshot() schedule.Snapshot
}

// Options configures optional server features.
type Options struct {
	// AllowedOrigins enables CORS for the listed origins. Empty disables CORS.
	AllowedOrigins []string

	// Metrics, if set, instruments requests and serves /metrics.
	Metrics *telemetry.Metrics

	Logger zerolog.Logger
}

// Server serves the REST API and status page over HTTP.
type Server struct {
	httpServer *http.Server
	ctrl       Controller
	tracker    *status.Tracker
	log        zerolog.Logger
}

// New creates a Server for ctrl that reports daemon state from tracker.
func New(addr string, ctrl Controller, tracker *status.Tracker, opts Options) *Server {
	s := &Server{
		ctrl:    ctrl,
		tracker: tracker,
		log:     opts.Logger.With().Str("component", "web").Logger(),
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.routes(opts),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes(opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(s.log))
	r.Use(hlog.RequestIDHandler("req_id", "X-Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(middleware.Recoverer)
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware)
	}
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/", s.handleIndex)
	r.Get("/index.html", s.handleIndex)
	r.Get("/index.json", s.handleJSON)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	r.Route("/api/raspberrypi", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/startcoffee", s.handleStart)
		r.Post("/stopcoffee", s.handleStop)
	})

	return r
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// refresh reads the live relay state into the tracker and returns a snapshot.
func (s *Server) refresh() status.Snapshot {
	s.tracker.Update(s.ctrl.Status(), s.ctrl.Snapshot())
	return s.tracker.Snapshot()
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.refresh()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderHTML(w, snap); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("render index")
	}
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.refresh()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, relayStatusResponse{Status: string(s.ctrl.Status())})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	req, err := decodeStartRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	tod, err := schedule.ParseTimeOfDay(req.timeOfDay())
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	at, err := s.ctrl.Start(tod)
	if errors.Is(err, schedule.ErrClosed) {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, startResponse{
		ScheduledFor: at.Format(time.RFC3339),
		Message:      "Coffee machine scheduled to start at " + at.Format("2006-01-02 15:04:05"),
	})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Stop(); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Coffee machine stopped"})
}
