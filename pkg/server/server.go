// Package server exposes the assistant over HTTP with bearer-token identity.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/oceanbase/trinity-go/pkg/auth"
	"github.com/oceanbase/trinity-go/pkg/core"
	"github.com/oceanbase/trinity-go/pkg/metrics"
)

// Assistant is the surface served over HTTP. *core.Client implements it.
type Assistant interface {
	Dispatch(ctx context.Context, utterance, uid string) (*core.Response, error)
	ResolveKnowledge(ctx context.Context, query, uid string) (*core.Response, error)
	Teach(ctx context.Context, topic, text string) (string, error)
	RecordFeedback(ctx context.Context, uid, topic, text string) (*core.Response, error)
	Greet(ctx context.Context, uid string, opts ...core.GreetOption) (string, error)
	Statistics(ctx context.Context, uid string) (*core.Statistics, error)
	Recommend(ctx context.Context) (*core.Recommendations, error)
}

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// DispatchRequest is the body of POST /v1/dispatch.
type DispatchRequest struct {
	Utterance string `json:"utterance"`
}

// ResolveRequest is the body of POST /v1/knowledge/resolve.
type ResolveRequest struct {
	Query string `json:"query"`
}

// TeachRequest is the body of POST /v1/knowledge/teach.
type TeachRequest struct {
	Topic string `json:"topic"`
	Text  string `json:"text"`
}

// FeedbackRequest is the body of POST /v1/knowledge/feedback.
type FeedbackRequest struct {
	Topic string `json:"topic"`
	Text  string `json:"text"`
}

// GreetRequest is the body of POST /v1/greet.
type GreetRequest struct {
	Username string `json:"username,omitempty"`
	Location string `json:"location,omitempty"`
}

// MessageResponse carries a plain message.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Server is the HTTP adapter.
type Server struct {
	assistant  Assistant
	tokens     auth.Tokens
	httpServer *http.Server
	logger     zerolog.Logger
}

// New creates a Server listening on addr.
func New(addr string, assistant Assistant, tokens auth.Tokens, logger zerolog.Logger) *Server {
	s := &Server{
		assistant: assistant,
		tokens:    tokens,
		logger:    logger,
	}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the routed handler. Everything under /v1 requires a bearer token.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	handle(api, "POST /v1/dispatch", http.HandlerFunc(s.handleDispatch))
	handle(api, "POST /v1/knowledge/resolve", http.HandlerFunc(s.handleResolve))
	handle(api, "POST /v1/knowledge/teach", http.HandlerFunc(s.handleTeach))
	handle(api, "POST /v1/knowledge/feedback", http.HandlerFunc(s.handleFeedback))
	handle(api, "POST /v1/greet", http.HandlerFunc(s.handleGreet))
	handle(api, "GET /v1/stats", http.HandlerFunc(s.handleStats))
	handle(api, "GET /v1/recommendations", http.HandlerFunc(s.handleRecommendations))

	mux := http.NewServeMux()
	handle(mux, "/v1/", s.tokens.RequireAuth(api))
	handle(mux, "GET /healthz", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}))
	handle(mux, "GET /metrics", promhttp.Handler())
	return s.observe(mux)
}

// Start serves until Shutdown. http.ErrServerClosed is not an error.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("HTTP server starting")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	var req DispatchRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.assistant.Dispatch(r.Context(), req.Utterance, auth.UIDFromContext(r.Context()))
	s.reply(w, resp, err)
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.assistant.ResolveKnowledge(r.Context(), req.Query, auth.UIDFromContext(r.Context()))
	s.reply(w, resp, err)
}

func (s *Server) handleTeach(w http.ResponseWriter, r *http.Request) {
	var req TeachRequest
	if !s.decode(w, r, &req) {
		return
	}
	msg, err := s.assistant.Teach(r.Context(), req.Topic, req.Text)
	s.reply(w, MessageResponse{Message: msg}, err)
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req FeedbackRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.assistant.RecordFeedback(r.Context(), auth.UIDFromContext(r.Context()), req.Topic, req.Text)
	s.reply(w, resp, err)
}

func (s *Server) handleGreet(w http.ResponseWriter, r *http.Request) {
	var req GreetRequest
	if !s.decode(w, r, &req) {
		return
	}
	msg, err := s.assistant.Greet(r.Context(), auth.UIDFromContext(r.Context()),
		core.WithUsername(req.Username), core.WithLocation(req.Location))
	s.reply(w, MessageResponse{Message: msg}, err)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.assistant.Statistics(r.Context(), auth.UIDFromContext(r.Context()))
	s.reply(w, stats, err)
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	rec, err := s.assistant.Recommend(r.Context())
	s.reply(w, rec, err)
}

// decode reads a JSON body into dst, writing a 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if r.Body == nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "request body required", Code: "invalid_input"})
		return false
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body: " + err.Error(), Code: "invalid_input"})
		return false
	}
	return true
}

func (s *Server) reply(w http.ResponseWriter, body interface{}, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, body)
		return
	}
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Msg("request failed")
		writeJSON(w, status, ErrorResponse{Error: "internal error", Code: code})
		return
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Code: code})
}

// statusFor maps the assistant error taxonomy onto HTTP.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, core.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, core.ErrMissingUsername):
		return http.StatusUnprocessableEntity, "missing_username"
	case errors.Is(err, core.ErrMissingLocation):
		return http.StatusUnprocessableEntity, "missing_location"
	default:
		return http.StatusInternalServerError, core.Classify(err)
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// unmatchedRoute labels requests no pattern claimed, keeping the route label bounded.
const unmatchedRoute = "unmatched"

type statusRecorder struct {
	http.ResponseWriter
	status int
	route  string
}

// handle registers h on mux and tags the request's metrics with the path part
// of pattern. Nested muxes overwrite the tag with the more specific pattern.
func handle(mux *http.ServeMux, pattern string, h http.Handler) {
	route := pattern
	if _, path, ok := strings.Cut(pattern, " "); ok {
		route = path
	}
	mux.Handle(pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rec, ok := w.(*statusRecorder); ok {
			rec.route = route
		}
		h.ServeHTTP(w, r)
	}))
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// observe records request metrics and logs each request.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK, route: unmatchedRoute}
		next.ServeHTTP(rec, r)

		metrics.ObserveRequest(r.Method, rec.route, rec.status, start)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("route", rec.route).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request served")
	})
}
