// Package httpapi exposes the model façade over HTTP for serve mode:
// model listing, NDJSON-streamed completions, and embeddings.
package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"localllm/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Models(ctx context.Context) ([]types.ModelConfig, error)
	Complete(ctx context.Context, req types.CompletionRequest, w io.Writer, flush func()) error
	Embeddings(ctx context.Context, req types.EmbeddingRequest) (types.EmbedResult, error)
	Ready() bool
}

// zlog is an optional structured logger. If unset, logging is off.
var zlog *zerolog.Logger

// SetLogger installs a structured logger used by the HTTP layer.
func SetLogger(l zerolog.Logger) { zlog = &l }

func logErr(err error, msg string) {
	if zlog != nil {
		zlog.Error().Err(err).Msg(msg)
	}
}

// maxBodyBytes caps request payloads.
const maxBodyBytes = 1 << 20

// NewMux builds the router: /v1/models, /v1/completions, /v1/embeddings,
// /healthz, /metrics.
func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	r.Use(metricsMiddleware)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if !svc.Ready() {
			writeJSONError(w, http.StatusServiceUnavailable, "not ready")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		models, err := svc.Models(r.Context())
		if err != nil {
			logErr(err, "list models failed")
			writeJSONError(w, statusFor(err), err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(types.ModelsResponse{Models: models}); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
		}
	})

	r.Post("/v1/completions", func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeJSON[types.CompletionRequest](w, r)
		if !ok {
			return
		}
		if strings.TrimSpace(req.Prompt) == "" {
			writeJSONError(w, http.StatusBadRequest, "prompt is required")
			return
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		var flush func()
		if f, ok := w.(http.Flusher); ok {
			flush = f.Flush
		}
		if err := svc.Complete(r.Context(), req, w, flush); err != nil {
			logErr(err, "completion failed")
			// Headers are out by now; append a terminal error line.
			_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: err.Error(), Code: statusFor(err)})
		}
	})

	r.Post("/v1/embeddings", func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeJSON[types.EmbeddingRequest](w, r)
		if !ok {
			return
		}
		if len(req.Texts) == 0 {
			writeJSONError(w, http.StatusBadRequest, "texts is required")
			return
		}
		res, err := svc.Embeddings(r.Context(), req)
		if err != nil {
			logErr(err, "embeddings failed")
			writeJSONError(w, statusFor(err), err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(res); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
		}
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	MountSwagger(r)
	return r
}

// decodeJSON enforces the JSON content type and body cap, then decodes.
func decodeJSON[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var req T
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return req, false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return req, false
	}
	return req, true
}
