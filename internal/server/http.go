package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JhonnM62/api-whatsapp-multi-instance/internal/config"
	"github.com/JhonnM62/api-whatsapp-multi-instance/internal/media"
	"github.com/JhonnM62/api-whatsapp-multi-instance/internal/metrics"
	"github.com/JhonnM62/api-whatsapp-multi-instance/internal/session"
	"github.com/JhonnM62/api-whatsapp-multi-instance/internal/transport"
)

// HTTPServer exposes the gateway's dispatch, upload and monitoring endpoints
type HTTPServer struct {
	server   *http.Server
	logger   *slog.Logger
	config   *config.Config
	registry *session.Registry
	pipeline *media.Pipeline
	metrics  *metrics.Metrics

	startTime time.Time
}

// NewHTTPServer creates the gateway HTTP server
func NewHTTPServer(cfg *config.Config, logger *slog.Logger,
	registry *session.Registry, pipeline *media.Pipeline, m *metrics.Metrics) *HTTPServer {

	h := &HTTPServer{
		logger:    logger,
		config:    cfg,
		registry:  registry,
		pipeline:  pipeline,
		metrics:   m,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	h.setupRoutes(mux)

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Address, cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.GetReadTimeoutDuration(),
		WriteTimeout: cfg.Server.GetWriteTimeoutDuration(),
		IdleTimeout:  cfg.Server.GetIdleTimeoutDuration(),
	}

	return h
}

// setupRoutes configures HTTP routes. Token gating is uneven on purpose:
// send-message, send-image and upload2 sit behind the access token, the
// rest of the send routes only require a registered bot.
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	// Upload endpoints
	mux.HandleFunc("POST /upload", h.withMetrics("/upload", h.handleUploadView))
	mux.HandleFunc("POST /upload2", h.withMetrics("/upload2", h.withAuth(h.handleUploadJSON)))

	// Tenant-scoped dispatch endpoints
	mux.HandleFunc("POST /{bot}/send-message", h.withMetrics("/{bot}/send-message", h.withAuth(h.handleSendMessage)))
	mux.HandleFunc("POST /{bot}/send-image", h.withMetrics("/{bot}/send-image", h.withAuth(h.handleSendImage)))
	mux.HandleFunc("POST /{bot}/send-pdf", h.withMetrics("/{bot}/send-pdf", h.handleSendPDF))
	mux.HandleFunc("POST /{bot}/send-audio", h.withMetrics("/{bot}/send-audio", h.handleSendAudio))
	mux.HandleFunc("POST /{bot}/send-video", h.withMetrics("/{bot}/send-video", h.handleSendVideo))
	mux.HandleFunc("POST /{bot}/send-location", h.withMetrics("/{bot}/send-location", h.handleSendLocation))
	mux.HandleFunc("POST /{bot}/send-buttons", h.withMetrics("/{bot}/send-buttons", h.handleSendButtons))
	mux.HandleFunc("POST /{bot}/send-list", h.withMetrics("/{bot}/send-list", h.handleSendList))

	// Pairing artifact
	mux.HandleFunc("GET /auth-qr/{bot}", h.withMetrics("/auth-qr/{bot}", h.handleAuthQR))

	// Monitoring endpoints
	mux.HandleFunc("GET /health", h.withMetrics("/health", h.handleHealth))
	mux.HandleFunc("GET /stats", h.withMetrics("/stats", h.handleStats))
	mux.Handle("GET /metrics", promhttp.Handler())

	// Static files and index page
	mux.Handle("GET /public/", http.StripPrefix("/public/", http.FileServer(http.Dir(h.config.Server.PublicDir))))
	mux.HandleFunc("GET /{$}", h.withMetrics("/", h.handleIndex))
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ww := &responseWriter{ResponseWriter: w, statusCode: 200}

		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		statusCode := fmt.Sprintf("%d", ww.statusCode)

		h.metrics.RecordHTTPRequest(r.Method, endpoint, statusCode, duration)

		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			h.metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// withAuth gates a handler behind the configured access token. Real token
// issuance lives in the external auth service; the gateway only compares
// the shared value.
func (h *HTTPServer) withAuth(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get(h.config.Auth.Header)
		if token == "" {
			h.writeError(w, http.StatusUnauthorized, "No se ha proporcionado token")
			return
		}

		if token != h.config.Auth.Token {
			h.writeError(w, http.StatusForbidden, "Token invalido")
			return
		}

		handler(w, r)
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP server",
		slog.String("address", h.server.Addr),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP server...")

	return h.server.Shutdown(ctx)
}

// Handler returns the configured handler (used by tests)
func (h *HTTPServer) Handler() http.Handler {
	return h.server.Handler
}

// writeJSON encodes a JSON response with the given status
func (h *HTTPServer) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError encodes the common error response shape
func (h *HTTPServer) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(h.startTime)

	bots := make([]session.Info, 0, h.registry.Len())
	for _, sess := range h.registry.All() {
		bots = append(bots, sess.GetInfo())
	}

	health := map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    uptime.String(),
		"service": map[string]any{
			"name":    "api-whatsapp-multi-instance",
			"version": "1.0.0",
		},
		"sessions": map[string]any{
			"active_count": h.registry.Len(),
			"bots":         bots,
		},
	}

	h.writeJSON(w, http.StatusOK, health)
}

// handleStats implements the /stats endpoint
func (h *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(h.startTime)

	transportStats := make(map[string]transport.ClientStats)
	for _, sess := range h.registry.All() {
		if c, ok := sess.Provider.(interface{ GetStats() transport.ClientStats }); ok {
			transportStats[sess.Name] = c.GetStats()
		}
	}

	stats := map[string]any{
		"uptime":    uptime.String(),
		"timestamp": time.Now().UTC(),
		"sessions": map[string]any{
			"active_count": h.registry.Len(),
			"names":        h.registry.Names(),
		},
		"transport": transportStats,
	}

	h.writeJSON(w, http.StatusOK, stats)
}
