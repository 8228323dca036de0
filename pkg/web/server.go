// Package web serves a read-only JSON view of the build state, plus build
// status events as Server-Sent Events.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/ritzau/incbuild/pkg/cycles"
	"github.com/ritzau/incbuild/pkg/diagnostics"
	"github.com/ritzau/incbuild/pkg/graph"
	"github.com/ritzau/incbuild/pkg/logging"
	"github.com/ritzau/incbuild/pkg/pubsub"
	"github.com/ritzau/incbuild/pkg/state"
)

// GraphNode represents a source file in the dependency graph
type GraphNode struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Issues int    `json:"issues"`
}

// GraphEdge represents a dependency between two source files
type GraphEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// GraphData holds the dependency graph for visualization
type GraphData struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// FileSummary is one entry of the file listing
type FileSummary struct {
	Path         string    `json:"path"`
	LastModified time.Time `json:"lastModified"`
	Dependencies int       `json:"dependencies"`
	Dependents   int       `json:"dependents"`
	Outputs      int       `json:"outputs"`
	Errors       int       `json:"errors"`
	Warnings     int       `json:"warnings"`
}

// FileDetail is everything known about one file
type FileDetail struct {
	Path string `json:"path"`
	*state.SourceFileRecord
	Dependents []string `json:"dependents"`
}

// Server represents the web server
type Server struct {
	router    *mux.Router
	publisher pubsub.Publisher

	mu     sync.RWMutex
	state  *state.BuildState
	graph  *graph.FileGraph
	cycles []cycles.FileCycle
}

// NewServer creates a new web server relaying events from publisher
func NewServer(publisher pubsub.Publisher) *Server {
	if publisher == nil {
		publisher = pubsub.NewBuildPublisher()
	}
	s := &Server{
		router:    mux.NewRouter(),
		publisher: publisher,
	}
	s.setupRoutes()
	return s
}

// Publisher returns the publisher builds should report to
func (s *Server) Publisher() pubsub.Publisher {
	return s.publisher
}

// SetState replaces the served build state
func (s *Server) SetState(st *state.BuildState) {
	fg := graph.FromState(st)
	found := cycles.FindFileCycles(fg)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
	s.graph = fg
	s.cycles = found
}

func (s *Server) snapshot() (*state.BuildState, *graph.FileGraph, []cycles.FileCycle) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, s.graph, s.cycles
}

// Handler returns the routes wrapped in request logging
func (s *Server) Handler() http.Handler {
	return logging.RequestIDMiddleware(s.router)
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api/subscribe/build_status", s.handleSubscribeBuildStatus).Methods("GET")

	s.router.HandleFunc("/api/state", s.handleState).Methods("GET")
	s.router.HandleFunc("/api/files", s.handleFiles).Methods("GET")
	s.router.HandleFunc("/api/files/{path:.*}", s.handleFile).Methods("GET")
	s.router.HandleFunc("/api/issues", s.handleIssues).Methods("GET")
	s.router.HandleFunc("/api/cycles", s.handleCycles).Methods("GET")
	s.router.HandleFunc("/api/graph", s.handleGraph).Methods("GET")
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Debug("could not write response", "error", err)
	}
}

func (s *Server) handleSubscribeBuildStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	sub, err := s.publisher.Subscribe(r.Context(), pubsub.TopicBuildStatus)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer sub.Close()

	flusher, _ := w.(http.Flusher)

	// Initial comment establishes the stream for clients that wait for data
	fmt.Fprintf(w, ": connected\n\n")
	if flusher != nil {
		flusher.Flush()
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := pubsub.WriteSSE(w, event); err != nil {
				logging.DebugContext(r.Context(), "error writing SSE event", "error", err)
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	st, _, _ := s.snapshot()
	if st == nil {
		http.Error(w, "Build state not available", http.StatusServiceUnavailable)
		return
	}
	data, err := st.Encode()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	st, fg, _ := s.snapshot()
	if st == nil {
		writeJSON(w, []FileSummary{})
		return
	}

	files := make([]FileSummary, 0, len(st.SourceFiles))
	for _, p := range st.Paths() {
		rec := st.SourceFiles[p]
		counts := diagnostics.Count(rec.Issues)
		files = append(files, FileSummary{
			Path:         p,
			LastModified: rec.LastModified,
			Dependencies: len(fg.GetDependencies(p)),
			Dependents:   len(fg.GetDependents(p)),
			Outputs:      len(rec.OutputFiles),
			Errors:       counts.Errors,
			Warnings:     counts.Warnings,
		})
	}
	writeJSON(w, files)
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	st, fg, _ := s.snapshot()
	if st == nil {
		http.Error(w, "Build state not available", http.StatusServiceUnavailable)
		return
	}

	p := mux.Vars(r)["path"]
	rec, err := st.MustLookup(p)
	if err != nil {
		http.Error(w, fmt.Sprintf("File not found: %s", p), http.StatusNotFound)
		return
	}

	dependents := fg.GetDependents(rec.Path)
	if dependents == nil {
		dependents = []string{}
	}
	writeJSON(w, FileDetail{Path: rec.Path, SourceFileRecord: rec, Dependents: dependents})
}

func (s *Server) handleIssues(w http.ResponseWriter, r *http.Request) {
	st, _, _ := s.snapshot()
	issues := []state.Diagnostic{}
	if st == nil {
		writeJSON(w, issues)
		return
	}

	severity := r.URL.Query().Get("severity")
	for _, d := range st.Issues() {
		if severity == "" || diagnostics.Classify(d.Type).String() == severity {
			issues = append(issues, d)
		}
	}
	writeJSON(w, issues)
}

func (s *Server) handleCycles(w http.ResponseWriter, r *http.Request) {
	_, _, found := s.snapshot()
	if found == nil {
		found = []cycles.FileCycle{}
	}
	writeJSON(w, found)
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	st, fg, _ := s.snapshot()
	data := &GraphData{Nodes: []GraphNode{}, Edges: []GraphEdge{}}
	if st == nil {
		writeJSON(w, data)
		return
	}

	for _, node := range fg.Nodes() {
		n := GraphNode{ID: node.Path, Label: path.Base(node.Path)}
		if rec, ok := st.Lookup(node.Path); ok {
			n.Issues = len(rec.Issues)
		}
		data.Nodes = append(data.Nodes, n)
	}
	for _, e := range fg.Edges() {
		data.Edges = append(data.Edges, GraphEdge{Source: e[0], Target: e[1]})
	}
	writeJSON(w, data)
}

// Start serves on port until ctx is done
func (s *Server) Start(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logging.Info("starting web server", "url", fmt.Sprintf("http://localhost:%d", port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
