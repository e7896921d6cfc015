package api

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/wonny/eqindex/internal/api/handlers"
	"github.com/wonny/eqindex/pkg/config"
	"github.com/wonny/eqindex/pkg/logger"
	"github.com/wonny/eqindex/pkg/metrics"
)

// HealthChecker reports backing store health; nil means always healthy
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(cfg *config.Config, index *handlers.IndexHandler, hub *handlers.Hub, health HealthChecker, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler(health)).Methods("GET")

	if cfg.MetricsEnabled {
		r.Handle("/metrics", metrics.Handler()).Methods("GET")
	}

	// Index endpoints
	// Registered on r with full paths: a PathPrefix subrouter answers a method
	// mismatch with 404 instead of 405.
	r.HandleFunc("/api/index/composition", index.GetComposition).Methods("GET")
	r.HandleFunc("/api/index/performance", index.GetPerformance).Methods("GET")
	r.HandleFunc("/api/index/performance/summary", index.GetPerformanceSummary).Methods("GET")
	r.HandleFunc("/api/index/changes", index.GetChanges).Methods("GET")
	r.HandleFunc("/api/index/build", index.Build).Methods("POST")
	r.HandleFunc("/api/index/track", index.Track).Methods("POST")
	r.HandleFunc("/api/index/detect", index.Detect).Methods("POST")
	r.HandleFunc("/api/index/run", index.Run).Methods("POST")

	// Event stream
	if hub != nil {
		r.HandleFunc("/ws/index", hub.ServeWS).Methods("GET")
	}

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})

	return c.Handler(r)
}

// healthCheckHandler returns server health status
func healthCheckHandler(health HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, code := "ok", http.StatusOK
		body := map[string]interface{}{"service": "eqindex-api"}

		if health != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := health.Ping(ctx); err != nil {
				status, code = "degraded", http.StatusServiceUnavailable
				body["error"] = err.Error()
			}
		}
		body["status"] = status

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(body)
	}
}

// statusRecorder captures the response status for logging
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrader take over the connection
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return h.Hijack()
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   rec.status,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					respondInternalError(w)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

func respondInternalError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": "Internal server error",
	})
}
