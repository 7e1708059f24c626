// Package api exposes the prediction pipeline over HTTP: one predict
// endpoint per domain, a liveness probe reporting per-domain model state,
// identity-scoped prediction history, and the Prometheus metrics endpoint.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"medpredict/internal/domain"
	"medpredict/internal/history"
	"medpredict/internal/metrics"
	"medpredict/internal/model"
	"medpredict/internal/pipeline"
)

// HistoryStore is the read/delete side of the history sink consumed by the
// HTTP layer.
type HistoryStore interface {
	List(ctx context.Context, identity string) ([]domain.HistoryRecord, error)
	Delete(ctx context.Context, identity, id string) error
}

// Server wires the prediction pipeline and its collaborators to routes.
type Server struct {
	router        *chi.Mux
	pipeline      *pipeline.Pipeline
	cache         *model.Cache
	history       HistoryStore // nil when history is not configured
	metrics       *metrics.Metrics
	auth          *Auth
	maxImageBytes int64
}

// New builds the router. history and m may be nil.
func New(p *pipeline.Pipeline, cache *model.Cache, hist HistoryStore, m *metrics.Metrics, auth *Auth, maxImageBytes int64) *Server {
	s := &Server{
		router:        chi.NewRouter(),
		pipeline:      p,
		cache:         cache,
		history:       hist,
		metrics:       m,
		auth:          auth,
		maxImageBytes: maxImageBytes,
	}

	r := s.router
	r.Use(requestLogger)
	r.Use(chimw.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.auth.Optional)
		r.Post("/{domain}/predict", s.handlePredict)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.auth.Required)
		r.Get("/history", s.handleHistoryList)
		r.Delete("/history/{id}", s.handleHistoryDelete)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "Endpoint not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "Method not allowed"})
	})

	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	d, err := domain.Parse(chi.URLParam(r, "domain"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "Endpoint not found"})
		return
	}

	req := pipeline.Request{Domain: d, Identity: Identity(r.Context())}
	if d.IsImage() {
		if !s.readImage(w, r, &req) {
			return
		}
	} else {
		if !s.readFields(w, r, &req) {
			return
		}
	}

	res, err := s.pipeline.Run(r.Context(), req)
	if err != nil {
		writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) readFields(w http.ResponseWriter, r *http.Request, req *pipeline.Request) bool {
	var fields domain.RawPayload
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil || len(fields) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":      "No JSON data received",
			"prediction": "Error: Invalid request format",
		})
		return false
	}
	req.Fields = fields
	return true
}

func (s *Server) readImage(w http.ResponseWriter, r *http.Request, req *pipeline.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxImageBytes)
	file, header, err := r.FormFile("image")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":      "No image file received",
			"prediction": "Error: Invalid request format",
		})
		return false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":      "Failed to read image file",
			"prediction": "Error: Invalid request format",
		})
		return false
	}
	req.ImageName = header.Filename
	req.ImageData = data
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	loaded := s.cache.Loaded()
	if s.metrics != nil {
		s.metrics.SetModelLoaded(loaded)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "healthy",
		"models_loaded": loaded,
		"message":       "Medical Prediction Platform API is running",
	})
}

func (s *Server) handleHistoryList(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "history storage not configured"})
		return
	}

	records, err := s.history.List(r.Context(), Identity(r.Context()))
	if err != nil {
		log.Error().Err(err).Msg("history list failed")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "Internal server error"})
		return
	}
	if records == nil {
		records = []domain.HistoryRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": records})
}

func (s *Server) handleHistoryDelete(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "history storage not configured"})
		return
	}

	err := s.history.Delete(r.Context(), Identity(r.Context()), chi.URLParam(r, "id"))
	if errors.Is(err, history.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "record not found"})
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("history delete failed")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "Internal server error"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writePipelineError maps the pipeline error taxonomy onto HTTP status
// classes: 400 for caller input errors, 500 for resource and internal
// errors. Internal detail never reaches the response body.
func writePipelineError(w http.ResponseWriter, err error) {
	var derr *domain.Error
	if !errors.As(err, &derr) {
		derr = domain.Internal(err)
	}

	status := http.StatusInternalServerError
	stub := "Error: Unable to process prediction"
	body := "Internal server error"
	switch derr.Kind {
	case domain.KindResourceUnavailable:
		stub = "Error: Model file not found"
		body = derr.Error()
	case domain.KindMissingFields:
		status = http.StatusBadRequest
		stub = "Error: Missing fields"
		body = derr.Error()
	case domain.KindInvalidValue:
		status = http.StatusBadRequest
		stub = "Error: Invalid input values"
		body = derr.Error()
	case domain.KindImageProcessing:
		status = http.StatusBadRequest
		stub = "Error: Invalid image file"
		body = derr.Error()
	}

	writeJSON(w, status, map[string]any{
		"error":      body,
		"prediction": stub,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

// requestLogger emits one structured line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
