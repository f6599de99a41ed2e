// Package gateway is the HTTP front door of the workflow service: it
// accepts workflow requests, serves persisted runs, and streams
// orchestrator progress events over websocket.
package gateway

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/harun/mofflow/pkg/runstore"
	"github.com/harun/mofflow/pkg/workflow"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// WorkflowRunner executes one workflow instance for one request. Each call
// must return an independent State; the gateway never shares state between
// in-flight requests.
type WorkflowRunner func(ctx context.Context, request string) *workflow.State

// Config holds server configuration.
type Config struct {
	Port         int
	SharedSecret string
	Runner       WorkflowRunner
	Store        *runstore.Store // optional run archive
	Logger       zerolog.Logger
}

// Server is the gateway HTTP server.
type Server struct {
	port        int
	secret      string
	runner      WorkflowRunner
	store       *runstore.Store
	logger      zerolog.Logger
	broadcaster *Broadcaster
	upgrader    websocket.Upgrader
	httpServer  *http.Server
}

// NewServer creates a gateway server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Port <= 0 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.Runner == nil {
		return nil, fmt.Errorf("workflow runner is required")
	}

	s := &Server{
		port:        cfg.Port,
		secret:      cfg.SharedSecret,
		runner:      cfg.Runner,
		store:       cfg.Store,
		logger:      cfg.Logger,
		broadcaster: NewBroadcaster(cfg.Logger),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /v1/workflows", s.auth(s.handleCreateWorkflow))
	mux.HandleFunc("GET /v1/workflows/{id}", s.auth(s.handleGetWorkflow))
	mux.HandleFunc("GET /v1/events", s.auth(s.handleEvents))

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// Broadcaster exposes the event broadcaster for orchestrator hooks.
func (s *Server) Broadcaster() *Broadcaster {
	return s.broadcaster
}

// Handler exposes the route table, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info().Int("port", s.port).Msg("Gateway listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// PhaseHook returns an orchestrator hook that broadcasts phase
// transitions to event-stream clients.
func (s *Server) PhaseHook() workflow.Hook {
	return func(phase workflow.Phase, st *workflow.State) {
		event := PhaseEvent{
			Phase:    string(phase),
			Terminal: string(st.Terminal),
			Results:  len(st.Results),
		}
		if st.Plan != nil {
			event.Cursor = st.Plan.Cursor
			event.Steps = len(st.Plan.Steps)
		}
		if n := len(st.Results); n > 0 {
			event.LastKey = st.Results[n-1].Key()
		}
		s.broadcaster.Broadcast("workflow."+string(phase), event)
	}
}

func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	if s.secret == "" {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("X-Gateway-Token")
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if token != s.secret {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
			return
		}
		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	var req WorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}
	if req.Request == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "request text is required"})
		return
	}

	threadID := req.ThreadID
	if threadID == "" {
		id, err := gonanoid.New()
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to allocate thread id"})
			return
		}
		threadID = id
	}

	st := s.runner(r.Context(), req.Request)

	run := &runstore.Run{
		ID:        uuid.NewString(),
		ThreadID:  threadID,
		Request:   req.Request,
		Terminal:  string(st.Terminal),
		Results:   st.Results,
		Report:    st.Report,
		CreatedAt: time.Now().UTC(),
	}
	if st.Plan != nil {
		run.Plan = st.Plan.Steps
	}

	if s.store != nil {
		if err := s.store.Save(run); err != nil {
			// Archival is best-effort; the workflow result still goes back.
			s.logger.Error().Err(err).Str("run", run.ID).Msg("Failed to archive workflow run")
		}
	}

	writeJSON(w, http.StatusOK, WorkflowResponse{
		ID:        run.ID,
		ThreadID:  threadID,
		Terminal:  run.Terminal,
		Plan:      run.Plan,
		Results:   st.Results,
		FinalText: st.Report,
	})
}

func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "run archive is not enabled"})
		return
	}

	run, err := s.store.Get(r.PathValue("id"))
	if errors.Is(err, sql.ErrNoRows) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "workflow run not found"})
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to load workflow run")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to load workflow run"})
		return
	}

	writeJSON(w, http.StatusOK, WorkflowResponse{
		ID:        run.ID,
		ThreadID:  run.ThreadID,
		Terminal:  run.Terminal,
		Plan:      run.Plan,
		Results:   run.Results,
		FinalText: run.Report,
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	s.broadcaster.Add(conn)
	s.logger.Debug().Str("remote", conn.RemoteAddr().String()).Msg("Event stream client connected")

	// Drain the connection until the client goes away.
	go func() {
		defer func() {
			s.broadcaster.Remove(conn)
			_ = conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
