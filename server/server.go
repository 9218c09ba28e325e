package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/siherrmann/geoalert/core/query"
	"github.com/siherrmann/geoalert/helper"
	"github.com/siherrmann/geoalert/model"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 10 * time.Second
)

// QueryService answers queries and reports the health of its store.
type QueryService interface {
	Query(ctx context.Context, request model.QueryRequest) (*model.QueryResponse, error)
	Health(ctx context.Context) error
}

type errorResponse struct {
	Detail string `json:"detail"`
}

type healthResponse struct {
	Status string `json:"status"`
}

// NewRouter creates the HTTP routes of the query service.
func NewRouter(service QueryService, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(Logger(logger))
	r.Use(Recover(logger))

	h := &handlers{service: service, logger: logger}
	r.Post("/query", h.query)
	r.Get("/health", h.health)

	return otelhttp.NewHandler(r, "geoalert")
}

type handlers struct {
	service QueryService
	logger  *slog.Logger
}

func (h *handlers) query(w http.ResponseWriter, r *http.Request) {
	var request model.QueryRequest

	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	err := decoder.Decode(&request)
	if err != nil {
		h.logger.Debug("Malformed query body", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, "Malformed request body")
		return
	}
	if _, err := decoder.Token(); err != io.EOF {
		writeError(w, http.StatusBadRequest, "Malformed request body")
		return
	}

	response, err := h.service.Query(r.Context(), request)
	if errors.Is(err, query.ErrEmptyQuery) {
		writeError(w, http.StatusBadRequest, "Empty query")
		return
	} else if err != nil {
		h.logger.Error("Query failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, response)
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	err := h.service.Health(r.Context())
	if err != nil {
		h.logger.Error("Health check failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "Service unavailable")
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "OK"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

// Server is the HTTP server of the query service.
type Server struct {
	http   *http.Server
	logger *slog.Logger
}

// NewServer creates a server listening on addr.
func NewServer(addr string, service QueryService, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		http: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(service, logger),
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Run serves until ctx is cancelled and then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", slog.String("addr", s.http.Addr))
		err := s.http.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return helper.NewError("listen", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	err := s.http.Shutdown(shutdownCtx)
	if err != nil {
		return helper.NewError("shutdown", fmt.Errorf("graceful shutdown: %w", err))
	}
	return nil
}
