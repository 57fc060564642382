// Package http exposes capability listing and dispatch over a small JSON API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/toolbox/internal/logging"
	"github.com/aretw0/toolbox/pkg/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const maxBodyBytes = 1 << 20

// Dispatcher is what the API needs from the toolbox.
type Dispatcher interface {
	Definitions() []domain.Definition
	Dispatch(ctx context.Context, name string, params map[string]any, tc domain.ToolContext) (domain.Result, error)
}

// ServerStatus describes one external server for GET /servers.
type ServerStatus struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Enabled     bool   `json:"enabled"`
	Connected   bool   `json:"connected"`
	Tools       int    `json:"tools"`
}

// DispatchRequest is the body of POST /dispatch.
type DispatchRequest struct {
	Name    string         `json:"name"`
	Params  map[string]any `json:"params"`
	Context RequestContext `json:"context"`
}

// RequestContext is the caller-controlled part of the sandboxing context.
// The output root is always set by the server.
type RequestContext struct {
	UserID       string `json:"user_id"`
	DisplayName  string `json:"display_name"`
	ChannelID    string `json:"channel_id"`
	OutputSubdir string `json:"output_subdir,omitempty"`
}

// ErrorResponse carries a protocol error.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type handler struct {
	dispatcher Dispatcher
	outputRoot string
	servers    func() []ServerStatus
	metrics    http.Handler
	logger     *slog.Logger
}

// Option configures the handler.
type Option func(*handler)

// WithOutputRoot sets the sandbox root every dispatch is confined to.
func WithOutputRoot(root string) Option {
	return func(h *handler) {
		h.outputRoot = root
	}
}

// WithServers enables GET /servers.
func WithServers(list func() []ServerStatus) Option {
	return func(h *handler) {
		h.servers = list
	}
}

// WithMetrics mounts a metrics handler on GET /metrics.
func WithMetrics(metrics http.Handler) Option {
	return func(h *handler) {
		h.metrics = metrics
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(h *handler) {
		h.logger = logger
	}
}

// NewHandler builds the router.
func NewHandler(d Dispatcher, opts ...Option) http.Handler {
	h := &handler{dispatcher: d, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("component", "http")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/tools", h.listTools)
	r.Post("/dispatch", h.dispatch)
	if h.servers != nil {
		r.Get("/servers", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, h.servers())
		})
	}
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *handler) listTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.dispatcher.Definitions())
}

func (h *handler) dispatch(w http.ResponseWriter, r *http.Request) {
	var body DispatchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		h.logger.Warn("Dispatch: invalid request body", "err", err)
		writeError(w, domain.InvalidParams("invalid request body: %v", err))
		return
	}
	if body.Name == "" {
		writeError(w, domain.InvalidParams("missing capability name"))
		return
	}
	if body.Params == nil {
		body.Params = map[string]any{}
	}

	tc := domain.ToolContext{
		UserID:       body.Context.UserID,
		DisplayName:  body.Context.DisplayName,
		ChannelID:    body.Context.ChannelID,
		OutputRoot:   h.outputRoot,
		OutputSubdir: body.Context.OutputSubdir,
	}
	res, err := h.dispatcher.Dispatch(r.Context(), body.Name, body.Params, tc)
	if err != nil {
		h.logger.Info("Dispatch failed", "tool", body.Name, "user_id", tc.UserID, "err", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func statusOf(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindInvalidParams:
		return http.StatusBadRequest
	case domain.KindPermissionDenied:
		return http.StatusForbidden
	case domain.KindExecutionFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	kind, ok := domain.KindOf(err)
	status := http.StatusInternalServerError
	body := ErrorBody{Kind: "internal", Message: err.Error()}
	if ok {
		status = statusOf(kind)
		body.Kind = kind.String()
	}
	writeJSON(w, status, ErrorResponse{Error: body})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Response encode failed", "err", err)
	}
}

// Serve runs handler on addr until ctx is done, then shuts down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	if logger == nil {
		logger = logging.NewNop()
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "address", addr)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logger.Info("Shutting down HTTP server")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}
