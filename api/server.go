// Package api exposes a running forest over HTTP: a websocket frame stream
// plus history and reset endpoints.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/gorilla/mux"

	"github.com/pthm-cable/wildfire/forest"
	"github.com/pthm-cable/wildfire/telemetry"
	"github.com/pthm-cable/wildfire/transport/websocket"
)

// Options configures a Server.
type Options struct {
	RunID  string
	FPS    int                      // frames per second for Run; <= 0 means 30
	Logger *slog.Logger             // nil uses slog.Default()
	Output *telemetry.OutputManager // optional; receives every history record
	Watch  *forest.Watcher          // optional; bookmark detection on every tick
}

// Server drives a simulation and serves it over HTTP.
type Server struct {
	mu   sync.Mutex
	sim  *forest.Simulation
	step int

	hub    *websocket.Hub
	router *mux.Router
	runID  string
	fps    int
	logger *slog.Logger
	output *telemetry.OutputManager
	watch  *forest.Watcher
}

// NewServer wires routes for sim. hub may be nil, which disables streaming.
func NewServer(sim *forest.Simulation, hub *websocket.Hub, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	fps := opts.FPS
	if fps <= 0 {
		fps = 30
	}
	s := &Server{
		sim:    sim,
		hub:    hub,
		router: mux.NewRouter(),
		runID:  opts.RunID,
		fps:    fps,
		logger: logger,
		output: opts.Output,
		watch:  opts.Watch,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/state", s.handleState).Methods("GET")
	s.router.HandleFunc("/history", s.handleHistory).Methods("GET")
	s.router.HandleFunc("/history.csv", s.handleHistoryCSV).Methods("GET")
	s.router.HandleFunc("/summary", s.handleSummary).Methods("GET")
	s.router.HandleFunc("/bookmarks", s.handleBookmarks).Methods("GET")
	s.router.HandleFunc("/reset", s.handleReset).Methods("POST")

	if s.hub != nil {
		s.router.HandleFunc("/ws", s.hub.ServeWS)
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// frameLocked snapshots the current generation. Caller holds s.mu.
func (s *Server) frameLocked(event string) *websocket.Frame {
	return &websocket.Frame{
		Event:  event,
		RunID:  s.runID,
		Step:   s.step,
		Size:   s.sim.Size(),
		Cells:  websocket.EncodeCells(s.sim.Cells()),
		Wind:   s.sim.Wind(),
		Counts: s.sim.Counts(),
	}
}

// Tick advances the simulation one tracked step and returns the new frame.
func (s *Server) Tick() *websocket.Frame {
	s.mu.Lock()
	s.step++
	rec := s.sim.StepTracked(s.step)
	s.watch.Observe(s.sim, rec)
	frame := s.frameLocked(websocket.EventFrame)
	s.mu.Unlock()

	if err := s.output.WriteHistory([]telemetry.Record{rec}); err != nil {
		s.logger.Error("failed to write history", "error", err)
	}
	return frame
}

// Reset redraws the forest and returns the fresh frame.
func (s *Server) Reset() *websocket.Frame {
	s.mu.Lock()
	s.sim.Reset()
	s.watch.Reset()
	frame := s.frameLocked(websocket.EventReset)
	s.mu.Unlock()
	return frame
}

// Run steps the simulation at the configured frame rate and broadcasts each
// frame until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / time.Duration(s.fps))
	defer ticker.Stop()

	perf := s.sim.Perf()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			frame := s.Tick()
			s.mu.Lock()
			perf.RecordFrame()
			s.mu.Unlock()
			s.publish(frame)
		}
	}
}

func (s *Server) publish(frame *websocket.Frame) {
	if s.hub == nil {
		return
	}
	if err := s.hub.Broadcast(frame); err != nil {
		s.logger.Error("failed to broadcast frame", "error", err)
	}
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	frame := s.frameLocked(websocket.EventFrame)
	s.mu.Unlock()
	respondJSON(w, http.StatusOK, frame)
}

// sinceParam parses the optional ?since=n query value.
func sinceParam(r *http.Request) (int, bool) {
	v := r.URL.Query().Get("since")
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	since, ok := sinceParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "since must be a non-negative integer")
		return
	}

	s.mu.Lock()
	records := s.sim.HistorySince(since)
	s.mu.Unlock()

	if records == nil {
		records = []telemetry.Record{}
	}
	respondJSON(w, http.StatusOK, records)
}

func (s *Server) handleHistoryCSV(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	records := s.sim.History()
	s.mu.Unlock()

	w.Header().Set("Content-Type", "text/csv")
	if len(records) == 0 {
		// Empty history still gets a header row.
		w.Write([]byte("step,burning,tree,empty\n"))
		return
	}
	if err := gocsv.Marshal(records, w); err != nil {
		s.logger.Error("failed to write history csv", "error", err)
	}
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	summary := s.sim.Summary()
	s.mu.Unlock()
	respondJSON(w, http.StatusOK, summary)
}

func (s *Server) handleBookmarks(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	marks := s.watch.Bookmarks()
	s.mu.Unlock()

	if marks == nil {
		marks = []telemetry.Bookmark{}
	}
	respondJSON(w, http.StatusOK, marks)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	frame := s.Reset()
	s.logger.Info("reset requested", "remote", r.RemoteAddr)
	s.publish(frame)
	respondJSON(w, http.StatusOK, frame)
}
