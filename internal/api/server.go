package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/JakeFAU/castcrawler/internal/config"
	"github.com/JakeFAU/castcrawler/internal/credit"
	"github.com/JakeFAU/castcrawler/internal/metrics"
	"github.com/JakeFAU/castcrawler/internal/plot"
	"github.com/JakeFAU/castcrawler/internal/report"
	"github.com/JakeFAU/castcrawler/internal/storage"
)

const readyTimeout = 2 * time.Second

// Server wires HTTP handlers to the credit store.
type Server struct {
	router  chi.Router
	handler http.Handler
	store   storage.Store
	cfg     config.Config
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(store storage.Store, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		store:  store,
		cfg:    cfg,
		logger: logger.Named("api"),
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	r.Use(recoverMiddleware(s.logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/credits", s.listCredits)
		r.Get("/recommendations", s.listRecommendations)
		r.Get("/plot", s.renderPlot)
	})

	s.router = r
	s.handler = otelhttp.NewHandler(r, "castcrawler.api")
	return s
}

// Handler returns the traced router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readyz reports ready once the store answers; an empty store is still ready.
func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()
	if _, err := s.store.ListCredits(ctx, ""); err != nil && !errors.Is(err, storage.ErrRunNotFound) {
		s.logger.Warn("Store not ready", zap.Error(err))
		s.writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type creditsResponse struct {
	RunID   string          `json:"run_id,omitempty"`
	Actors  int             `json:"actors"`
	Credits []credit.Credit `json:"credits"`
}

func (s *Server) listCredits(w http.ResponseWriter, r *http.Request) {
	runID := r.URL.Query().Get("run_id")
	credits, ok := s.loadCredits(w, r, runID)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, creditsResponse{
		RunID:   runID,
		Actors:  credit.Actors(credits),
		Credits: credits,
	})
}

func (s *Server) listRecommendations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	format := report.FormatJSON
	if raw := q.Get("format"); raw != "" {
		f, err := report.ParseFormat(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		format = f
	}
	top, err := s.topParam(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	runID := q.Get("run_id")
	credits, ok := s.loadCredits(w, r, runID)
	if !ok {
		return
	}
	recs := credit.Top(credit.Rank(credits, s.cfg.Recommend.ExcludeTitles), top)

	var buf bytes.Buffer
	if err := report.Write(&buf, format, recs, report.Options{RunID: runID}); err != nil {
		s.logger.Error("Render recommendations failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "render failed")
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.logger.Warn("Write recommendations failed", zap.Error(err))
	}
}

func (s *Server) renderPlot(w http.ResponseWriter, r *http.Request) {
	top, err := s.topParam(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	runID := r.URL.Query().Get("run_id")
	credits, ok := s.loadCredits(w, r, runID)
	if !ok {
		return
	}
	recs := credit.Top(credit.Rank(credits, s.cfg.Recommend.ExcludeTitles), top)
	if len(recs) == 0 {
		s.writeError(w, http.StatusNotFound, "no titles to plot")
		return
	}

	var buf bytes.Buffer
	if err := plot.Scatter(&buf, recs, plot.Options{Title: s.cfg.Plot.Title, Subtitle: runID}); err != nil {
		s.logger.Error("Render plot failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "render failed")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.logger.Warn("Write plot failed", zap.Error(err))
	}
}

// loadCredits writes the error response itself and reports false on failure.
func (s *Server) loadCredits(w http.ResponseWriter, r *http.Request, runID string) ([]credit.Credit, bool) {
	credits, err := s.store.ListCredits(r.Context(), runID)
	switch {
	case errors.Is(err, storage.ErrRunNotFound):
		s.writeError(w, http.StatusNotFound, "run not found")
		return nil, false
	case err != nil:
		s.logger.Error("List credits failed", zap.String("run_id", runID), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to load credits")
		return nil, false
	}
	return credits, true
}

func (s *Server) topParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("top")
	if raw == "" {
		return s.cfg.Recommend.Top, nil
	}
	top, err := strconv.Atoi(raw)
	if err != nil || top < 0 {
		return 0, fmt.Errorf("top must be a non-negative integer")
	}
	return top, nil
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestID returns the id assigned to the request by the server middleware.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("Request completed",
				zap.String("request_id", RequestID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("Panic recovered",
						zap.String("request_id", RequestID(r.Context())),
						zap.Any("panic", rec),
					)
					writeJSON(logger, w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	writeJSON(s.logger, w, status, payload)
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(s.logger, w, status, map[string]string{"error": msg})
}

func writeJSON(logger *zap.Logger, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("Write JSON failed", zap.Error(err))
	}
}
