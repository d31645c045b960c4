package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/compasshq/keel/pkg/contracts"
	"github.com/compasshq/keel/pkg/session"
	"github.com/compasshq/keel/pkg/transcript"
)

// Server exposes the governance subsystem over HTTP.
type Server struct {
	orch        *session.Orchestrator
	transcripts transcript.Store
	logger      *slog.Logger
}

func NewServer(orch *session.Orchestrator, transcripts transcript.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{orch: orch, transcripts: transcripts, logger: logger}
}

// Handler builds the route table. Rate limiting is left to the caller so
// tests can exercise handlers without a limiter.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/sessions/{id}/turns", s.handleSubmitTurn)
	mux.HandleFunc("GET /v1/sessions/{id}/history", s.handleGetHistory)
	mux.HandleFunc("DELETE /v1/sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("GET /v1/sessions", s.handleListSessions)
	mux.HandleFunc("GET /v1/validations", s.handleRecentValidations)
	mux.HandleFunc("GET /v1/alignment", s.handleAlignment)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return RequestLogger(mux)
}

// TurnRequest is the body of POST /v1/sessions/{id}/turns.
type TurnRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleSubmitTurn(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit
	var req TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid request body")
		return
	}
	if req.Message == "" {
		WriteBadRequest(w, "Missing required field: message")
		return
	}

	result, err := s.orch.SubmitTurn(r.Context(), sessionID, req.Message)
	if err != nil {
		s.writeTurnError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}

// writeTurnError maps turn failures onto HTTP statuses. Advisor failures
// are upstream problems, not ours.
func (s *Server) writeTurnError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, contracts.ErrTurnAbandoned):
		// Client went away; nothing useful to send, but be explicit for
		// proxies that kept the connection open.
		WriteError(w, http.StatusRequestTimeout, "Request Timeout", "The turn was abandoned before evaluation")
	case contracts.KindOf(err) == contracts.KindCollaboratorTimeout:
		WriteGatewayTimeout(w, "The advisor did not respond in time")
	case contracts.KindOf(err) == contracts.KindCollaboratorError:
		WriteBadGateway(w, "The advisor returned an invalid response")
	default:
		WriteInternal(w, err)
	}
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	messages, err := s.transcripts.GetHistory(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteInternal(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"messages": messages})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	err := s.transcripts.DeleteSession(r.Context(), r.PathValue("id"))
	if errors.Is(err, contracts.ErrSessionNotFound) {
		WriteNotFound(w, "No such session")
		return
	}
	if err != nil {
		WriteInternal(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.transcripts.ListSessions(r.Context())
	if err != nil {
		WriteInternal(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"sessions": sessions})
}

func (s *Server) handleRecentValidations(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			WriteBadRequest(w, "limit must be an integer between 1 and 500")
			return
		}
		limit = n
	}

	records, err := s.orch.GetRecentValidations(r.Context(), limit)
	if err != nil {
		WriteInternal(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"validations": records})
}

func (s *Server) handleAlignment(w http.ResponseWriter, r *http.Request) {
	report, err := s.orch.GetAlignmentScore(r.Context())
	if err != nil {
		WriteInternal(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(report)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func logAccess(r *http.Request, elapsed time.Duration) {
	slog.Debug("http request",
		"method", r.Method, "path", r.URL.Path, "elapsed", elapsed)
}
