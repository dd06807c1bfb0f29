package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"eventarr/internal/logging"
	"eventarr/internal/metrics"
	"eventarr/internal/services"
)

const maxBodyBytes = 1 << 20

// Server serves the daemon API.
type Server struct {
	svc    Service
	token  string
	logger *slog.Logger
	router chi.Router

	listener net.Listener
	server   *http.Server
}

// NewServer builds the router. An empty token disables authentication.
func NewServer(svc Service, token string, logger *slog.Logger) *Server {
	s := &Server{
		svc:    svc,
		token:  token,
		logger: logging.NewComponentLogger(logger, "api-server"),
	}
	s.router = s.routes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware(s.token))

		r.Get("/status", s.handleStatus)

		r.Post("/search", s.handleSearch)
		r.Get("/search/{id}", s.handleItem)
		r.Delete("/search/{id}", s.handleCancel)
		r.Get("/queue", s.handleQueue)

		r.Post("/releases/evaluate", s.handleEvaluate)
		r.Post("/releases/match", s.handleMatch)

		r.Get("/blocklist", s.handleBlocklist)
		r.Post("/blocklist", s.handleBlock)
		r.Delete("/blocklist/{hash}", s.handleUnblock)

		r.Post("/downloads/{id}/failed", s.handleFailed)
		r.Post("/downloads/{id}/import-failed", s.handleImportFailed)

		r.Get("/sources", s.handleSources)
	})
	return r
}

// Start listens on bind and serves until ctx is cancelled or Stop is called.
func (s *Server) Start(ctx context.Context, bind string) (net.Addr, error) {
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return nil, fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return listener.Addr(), nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop() {
	if s.server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		reqID := middleware.GetReqID(r.Context())
		r = r.WithContext(services.WithRequestID(r.Context(), reqID))
		next.ServeHTTP(ww, r)
		s.logger.Debug("api request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", ww.Status()),
			logging.Duration("duration", time.Since(started)),
			logging.String(logging.FieldCorrelationID, reqID),
		)
	})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.writeError(w, services.Wrap(services.ErrValidation, "api", "decode", "invalid request body", err))
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	details := services.Details(err)
	s.writeJSON(w, statusFor(err), ErrorResponse{Error: details.Message, Kind: details.Kind})
}

// statusFor maps an error marker onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrConfiguration):
		return http.StatusConflict
	case services.IsTimeout(err):
		return http.StatusGatewayTimeout
	case errors.Is(err, services.ErrSourceFailure):
		return http.StatusBadGateway
	case errors.Is(err, services.ErrCancelled), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
