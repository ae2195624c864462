package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hupe1980/vaxmesh/emitter"
	"github.com/hupe1980/vaxmesh/logging"
	"github.com/hupe1980/vaxmesh/runner"
)

const sessionOwnerDetail = "session belongs to another user"

// ChatService is the part of runner.Runner the server needs.
type ChatService interface {
	ChatStream(ctx context.Context, req runner.ChatRequest, auth map[string]string, onText func(string)) (emitter.ChatResponse, error)
	EndSession(ctx context.Context, sessionID, subject string) error
}

// Config holds the server settings.
type Config struct {
	Addr              string
	Verifier          TokenVerifier // nil forwards tokens unchecked
	Logger            logging.Logger
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxRequestBytes   int64
	Version           string
}

// Server is the HTTP front door of the router.
type Server struct {
	httpServer *http.Server
	chat       ChatService
	logger     logging.Logger
	maxBytes   int64
	version    string
}

// New creates a Server and registers its routes.
func New(chat ChatService, cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = logging.NoOpLogger{}
	}

	if cfg.MaxRequestBytes <= 0 {
		cfg.MaxRequestBytes = 1 << 20
	}

	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = 10 * time.Second
	}

	s := &Server{
		chat:     chat,
		logger:   cfg.Logger,
		maxBytes: cfg.MaxRequestBytes,
		version:  cfg.Version,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("DELETE /chat/{session_id}", s.handleEndSession)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	// Middleware chain (outermost first):
	// request ID -> tracing -> logging -> auth -> handler.
	var handler http.Handler = mux
	handler = authMiddleware(cfg.Verifier, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(handler)
	handler = requestIDMiddleware(handler)

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start listens until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("server.starting", "addr", s.httpServer.Addr, "version", s.version)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}

	return nil
}

// Shutdown stops accepting connections and waits for in-flight turns.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server.shutdown")

	err := s.httpServer.Shutdown(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		s.logger.Warn("server.shutdown.forced")
		return errors.Join(err, s.httpServer.Close())
	}

	return err
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req runner.ChatRequest
	if err := decodeJSON(w, r, s.maxBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	req.Subject = SubjectFromContext(r.Context())

	if strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		s.streamChat(w, r, req)
		return
	}

	resp, err := s.chat.ChatStream(r.Context(), req, AuthHeaderFromContext(r.Context()), nil)
	if err != nil {
		s.writeChatError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// streamChat answers with server-sent events: one "delta" per text fragment
// and a final "response" carrying the full ChatResponse.
func (s *Server) streamChat(w http.ResponseWriter, r *http.Request, req runner.ChatRequest) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	onText := func(text string) {
		if err := writeEvent(w, "delta", map[string]string{"text": text}); err == nil {
			flusher.Flush()
		}
	}

	resp, err := s.chat.ChatStream(r.Context(), req, AuthHeaderFromContext(r.Context()), onText)
	if err != nil {
		if r.Context().Err() != nil {
			return
		}

		detail := err.Error()
		if errors.Is(err, runner.ErrSessionOwner) {
			detail = sessionOwnerDetail
		}

		s.logger.Error("server.chat.error", "request_id", RequestIDFromContext(r.Context()), "error", err.Error())
		_ = writeEvent(w, "error", map[string]string{"detail": detail})
		flusher.Flush()

		return
	}

	_ = writeEvent(w, "response", resp)
	flusher.Flush()
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("session_id")

	err := s.chat.EndSession(r.Context(), id, SubjectFromContext(r.Context()))
	if errors.Is(err, runner.ErrSessionOwner) {
		s.logger.Warn("server.session.forbidden", "session_id", id)
		writeError(w, http.StatusForbidden, sessionOwnerDetail)

		return
	}

	if err != nil {
		s.logger.Error("server.session.end_failed", "session_id", id, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "failed to end session")

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": s.version})
}

func (s *Server) writeChatError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, runner.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, "message is required")
	case errors.Is(err, runner.ErrSessionOwner):
		s.logger.Warn("server.chat.forbidden", "request_id", RequestIDFromContext(r.Context()))
		writeError(w, http.StatusForbidden, sessionOwnerDetail)
	case r.Context().Err() != nil:
		// Client went away; nothing useful can be written.
	default:
		s.logger.Error("server.chat.error", "request_id", RequestIDFromContext(r.Context()), "error", err.Error())
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes {"detail": message}.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"detail": message})
}

func writeEvent(w io.Writer, event string, data any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, b)

	return err
}

func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, target any) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}

	return nil
}
