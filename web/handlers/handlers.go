// Package handlers provides the HTTP surface for chat sessions and debates.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ArnieSalas/CMSC-5773-Debate-Project/internal/core"
	"github.com/ArnieSalas/CMSC-5773-Debate-Project/internal/engine"
	"github.com/ArnieSalas/CMSC-5773-Debate-Project/internal/export"
	"github.com/ArnieSalas/CMSC-5773-Debate-Project/internal/observability"
)

const healthProbeTimeout = 30 * time.Second

// Options configures a Handler.
type Options struct {
	AllowedOrigins []string
	// Debug includes the composed prompt in every /message response.
	Debug           bool
	HealthCachePath string
	HealthCacheTTL  time.Duration
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	engine      *engine.Engine
	healthCache *providerHealthCache
	origins     []string
	debug       bool
}

// New creates a new Handler.
func New(eng *engine.Engine, opts Options) *Handler {
	path := opts.HealthCachePath
	if path == "" {
		path = defaultProviderHealthCachePath()
	}
	return &Handler{
		engine:      eng,
		healthCache: newProviderHealthCache(path, opts.HealthCacheTTL),
		origins:     opts.AllowedOrigins,
		debug:       opts.Debug,
	}
}

// Router returns the HTTP handler with all routes registered.
// Paths are matched with or without a trailing slash.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(h.cors)

	r.Post("/start_session", h.handleStartSession)
	r.Post("/message", h.handleMessage)
	r.Post("/debate", h.handleDebate)
	r.Post("/debate/stream", h.handleDebateStream)
	r.Get("/health", h.handleHealth)
	r.Get("/personas", h.handleListPersonas)

	r.Get("/sessions", h.handleListSessions)
	r.Get("/sessions/{id}/turns", h.handleSessionTurns)
	r.Delete("/sessions/{id}", h.handleDeleteSession)
	r.Get("/sessions/{id}/export/{format}", h.handleExportSession)

	return r
}

type messageRequest struct {
	SessionID   string `json:"session_id"`
	UserMessage string `json:"user_message"`
	PersonaName string `json:"persona_name"`
}

type debateResponse struct {
	SessionID  string                 `json:"session_id"`
	Transcript []core.TranscriptEntry `json:"transcript"`
}

type personaSummary struct {
	Name string `json:"name"`
	Tone string `json:"tone"`
}

func (h *Handler) handleStartSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.engine.StartSession(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.json(w, map[string]string{"session_id": session.ID})
}

func (h *Handler) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := decodeBody(r, &req); err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.SessionID == "" || req.PersonaName == "" {
		h.jsonError(w, "session_id and persona_name are required", http.StatusBadRequest)
		return
	}

	reply, err := h.engine.SendMessage(r.Context(), req.SessionID, req.PersonaName, req.UserMessage)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if !h.debug && !queryFlag(r, "debug") {
		reply.Prompt = nil
	}
	h.json(w, reply)
}

func (h *Handler) handleDebate(w http.ResponseWriter, r *http.Request) {
	var req core.DebateRequest
	if err := decodeBody(r, &req); err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		h.jsonError(w, "session_id is required", http.StatusBadRequest)
		return
	}

	transcript, err := h.engine.RunDebate(r.Context(), req, nil)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.json(w, debateResponse{SessionID: req.SessionID, Transcript: transcript})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	// The probe is detached so a client disconnect does not poison the cached status.
	ctx, cancel := context.WithTimeout(observability.DetachTraceContext(r.Context()), healthProbeTimeout)
	defer cancel()

	probe := h.healthCache.Probe(h.engine.Provider(), h.engine.Model(), queryFlag(r, "fresh"), h.engine.CheckProvider)
	result := h.engine.Health(ctx, probe)

	code := http.StatusOK
	if !result.Healthy() {
		code = http.StatusServiceUnavailable
		slog.Warn("Health check failed", "store", result.Store, "provider", result.Provider, "error", result.Error)
	}
	h.jsonStatus(w, result, code)
}

func (h *Handler) handleListPersonas(w http.ResponseWriter, r *http.Request) {
	personas, err := h.engine.ListPersonas()
	if err != nil {
		h.writeError(w, err)
		return
	}

	out := make([]personaSummary, 0, len(personas))
	for _, p := range personas {
		out = append(out, personaSummary{Name: p.Name, Tone: p.Tone})
	}
	h.json(w, out)
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	sessions, err := h.engine.ListSessions(r.Context(), limit, offset)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if sessions == nil {
		sessions = []*core.SessionSummary{}
	}
	h.json(w, sessions)
}

func (h *Handler) handleSessionTurns(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	session, turns, err := h.engine.GetSessionWithTurns(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if session == nil {
		h.jsonError(w, "session not found", http.StatusNotFound)
		return
	}
	if turns == nil {
		turns = []*core.Turn{}
	}
	h.json(w, map[string]interface{}{
		"session": session,
		"turns":   turns,
	})
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.DeleteSession(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleExportSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	format := chi.URLParam(r, "format")

	exporter, err := export.GetExporter(export.Format(format))
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	session, turns, err := h.engine.GetSessionWithTurns(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if session == nil {
		h.jsonError(w, "session not found", http.StatusNotFound)
		return
	}

	filename := export.GenerateFilename(session, turns, exporter.FileExtension())
	w.Header().Set("Content-Type", exporter.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))

	if err := exporter.Export(session, turns, w); err != nil {
		slog.Error("Export failed", "session_id", id, "format", format, "error", err)
		http.Error(w, "Export failed", http.StatusInternalServerError)
	}
}

// writeError maps domain errors to HTTP status codes. Gateway details stay in the logs.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	code, message := classifyError(err)
	h.jsonError(w, message, code)
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrSessionNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, core.ErrPersonaNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, core.ErrInvalidPersona):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, core.ErrInvalidDebateRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, core.ErrGateway):
		return http.StatusBadGateway, core.ErrGateway.Error()
	default:
		slog.Error("Request failed", "error", err)
		return http.StatusInternalServerError, "internal server error"
	}
}

func decodeBody(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func queryFlag(r *http.Request, name string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(name))
	return err == nil && v
}

func (h *Handler) json(w http.ResponseWriter, data interface{}) {
	h.jsonStatus(w, data, http.StatusOK)
}

func (h *Handler) jsonStatus(w http.ResponseWriter, data interface{}, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) jsonError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// ListenAndServe serves h on addr until ctx is done, then shuts down gracefully.
func ListenAndServe(ctx context.Context, addr string, h http.Handler) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}
