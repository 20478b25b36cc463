// Package api exposes the chatbot over HTTP: one message endpoint, the
// session metrics endpoint, and a health probe.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mechanigo/chatbot/agent/contract"
	"github.com/mechanigo/chatbot/pkg/metrics"
)

const sessionHeader = "X-Session-Id"

type Config struct {
	Addr         string        `envconfig:"ADDR" default:":8080"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" split_words:"true" default:"30s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" split_words:"true" default:"120s"`
}

// MessageHandler is the orchestrator capability the server fronts.
type MessageHandler interface {
	HandleMessage(ctx context.Context, sessionID, message string) (contract.TurnResult, error)
}

type Server struct {
	conf    Config
	handler MessageHandler
	metrics *metrics.Aggregator
	httpSrv *http.Server
}

func NewServer(conf Config, handler MessageHandler, agg *metrics.Aggregator) (*Server, error) {
	if handler == nil {
		return nil, fmt.Errorf("%w: message handler is required", contract.ErrValidation)
	}
	s := &Server{conf: conf, handler: handler, metrics: agg}
	s.httpSrv = &http.Server{
		Addr:         conf.Addr,
		Handler:      s.Routes(),
		ReadTimeout:  conf.ReadTimeout,
		WriteTimeout: conf.WriteTimeout,
	}
	return s, nil
}

// Routes builds the mux; exposed so tests can drive it through httptest.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/send-message", s.handleSendMessage)
	mux.HandleFunc("/api/v1/session-metrics", s.handleSessionMetrics)
	mux.HandleFunc("/healthz", s.handleHealthz)
	return mux
}

func (s *Server) ListenAndServe() error {
	log.Info().Str("addr", s.conf.Addr).Msg("http server listening")
	return s.httpSrv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

type sendMessageRequest struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Status: "Error", Message: "method not allowed"})
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Status: "Error", Message: "request body must be JSON with a message field"})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Status: "Error", Message: "message must not be empty"})
		return
	}

	sessionID := resolveSessionID(r)
	result, err := s.handler.HandleMessage(r.Context(), sessionID, req.Message)
	if err != nil {
		if errors.Is(err, contract.ErrEmptyMessage) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Status: "Error", Message: "message must not be empty"})
			return
		}
		log.Error().Err(err).Str("session_id", sessionID).Msg("turn failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Status: "Error", Message: "Sorry we cannot process your message right now."})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSessionMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Status: "Error", Message: "method not allowed"})
		return
	}
	if s.metrics == nil {
		writeJSON(w, http.StatusOK, metrics.Snapshot{})
		return
	}
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// resolveSessionID prefers the header, then the query parameter, then mints
// a fresh id so a client without session plumbing still gets a coherent
// conversation for the returned id.
func resolveSessionID(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get(sessionHeader)); v != "" {
		return v
	}
	if v := strings.TrimSpace(r.URL.Query().Get("session_id")); v != "" {
		return v
	}
	return uuid.NewString()
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("response encode failed")
	}
}
