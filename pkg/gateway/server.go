// Package gateway exposes the turn pipeline over HTTP. All endpoints are
// derived views over the psychologist and the conversation log; the
// gateway holds no state of its own.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/quietroomlabs/haven/pkg/agent"
	"github.com/quietroomlabs/haven/pkg/logger"
	"github.com/quietroomlabs/haven/pkg/therapy"
)

type Server struct {
	psych *agent.Psychologist
	http  *http.Server
}

type messageRequest struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
}

type messageResponse struct {
	Reply       string `json:"reply"`
	TherapyMode string `json:"therapy_mode"`
	Crisis      bool   `json:"crisis"`
	Notice      string `json:"notice,omitempty"`
}

type turnView struct {
	Timestamp      time.Time `json:"timestamp"`
	UserMessage    string    `json:"user_message"`
	AgentResponse  string    `json:"agent_response"`
	Tags           []string  `json:"tags"`
	CrisisDetected bool      `json:"crisis_detected"`
	TherapyMode    string    `json:"therapy_mode"`
	RedirectedFrom string    `json:"redirected_from,omitempty"`
}

func NewServer(psych *agent.Psychologist, host string, port int) *Server {
	s := &Server{psych: psych}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/messages", s.handleMessage)
		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/history", s.handleHistory)
			r.Get("/summary", s.handleSummary)
			r.Get("/status", s.handleStatus)
		})
	})

	s.http = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", host, port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

func (s *Server) ListenAndServe() error {
	logger.InfoCF("gateway", "HTTP gateway listening", map[string]interface{}{
		"addr": s.http.Addr,
	})
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		writeError(w, http.StatusUnprocessableEntity, "message must be a non-empty string")
		return
	}
	userID := req.UserID
	if userID == "" {
		userID = "default"
	}

	reply, err := s.psych.ProcessMessage(r.Context(), userID, message)
	if err != nil {
		// Persistence failed but the reply is valid; return it and note
		// the degradation.
		logger.WarnCF("gateway", "Turn persisted with errors", map[string]interface{}{
			"error":   err.Error(),
			"user_id": userID,
		})
	}
	writeJSON(w, http.StatusOK, messageResponse{
		Reply:       reply.Text,
		TherapyMode: string(reply.Mode),
		Crisis:      reply.Crisis,
		Notice:      reply.Notice,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	var (
		turns []therapy.Turn
		err   error
	)
	if tag := r.URL.Query().Get("tag"); tag != "" {
		turns, err = s.psych.TurnsByTag(r.Context(), userID, tag)
	} else {
		turns, err = s.psych.History(r.Context(), userID, limit)
	}
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "conversation store unavailable")
		return
	}
	views := make([]turnView, 0, len(turns))
	for _, turn := range turns {
		views = append(views, toView(turn))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"turns": views})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	summary, err := s.psych.SessionSummary(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "conversation store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": summary})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	writeJSON(w, http.StatusOK, map[string]string{"status": s.psych.Status(userID)})
}

func toView(turn therapy.Turn) turnView {
	return turnView{
		Timestamp:      turn.Timestamp,
		UserMessage:    turn.UserMessage,
		AgentResponse:  turn.AgentResponse,
		Tags:           turn.Tags,
		CrisisDetected: turn.CrisisDetected,
		TherapyMode:    string(turn.Mode),
		RedirectedFrom: string(turn.RedirectedFrom),
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
