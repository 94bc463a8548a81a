package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flowkit/taskgraph/internal/config"
	"github.com/flowkit/taskgraph/internal/demo"
	"github.com/flowkit/taskgraph/internal/runner"
	"github.com/flowkit/taskgraph/visualize"
)

// Handler holds all HTTP handler dependencies.
type Handler struct {
	run    *runner.Runner
	loader *config.Loader
	reg    *demo.Registry
	logger *slog.Logger
	mux    *http.ServeMux
}

// New creates an HTTP handler and registers all routes.
func New(run *runner.Runner, loader *config.Loader, reg *demo.Registry, logger *slog.Logger) http.Handler {
	h := &Handler{run: run, loader: loader, reg: reg, logger: logger, mux: http.NewServeMux()}

	h.mux.HandleFunc("POST /v1/run", h.runPass)
	h.mux.HandleFunc("GET /v1/graph", h.graphDOT)
	h.mux.HandleFunc("GET /v1/stats", h.stats)
	h.mux.HandleFunc("POST /v1/config/reload", h.reloadConfig)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.HandleFunc("GET /readyz", h.readyz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return h.loggingMiddleware(h.mux)
}

// loggingMiddleware logs method, path, status, and duration for every
// request.
func (h *Handler) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		h.logger.Info("request", "method", r.Method, "path", r.URL.Path,
			"status", sw.status, "duration", time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// POST /v1/run — executes one pass over the current graph.
func (h *Handler) runPass(w http.ResponseWriter, r *http.Request) {
	stats, err := h.run.RunOnce(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// GET /v1/graph — Graphviz DOT dump of the current graph's structure/state.
func (h *Handler) graphDOT(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/vnd.graphviz")
	_, _ = w.Write([]byte(visualize.DOT(h.run.Graph())))
}

// GET /v1/stats — current pass progress as JSON.
func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.run.Graph().Stats())
}

// POST /v1/config/reload — hot-reload the pipeline config from disk and
// swap in a freshly built graph.
func (h *Handler) reloadConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.loader.Reload()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := config.Validate(cfg); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	g, err := demo.Build(cfg, h.reg)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := g.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	h.run.SwapGraph(g)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reloaded": true,
		"nodes":    g.NodeCount(),
	})
}

// GET /healthz — always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz — 503 if the current graph failed its last Validate.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	if err := h.run.Graph().Validate(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
