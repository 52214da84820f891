// metrics.go — Prometheus HTTP метрики Acorn Dashboard.
// Регистрирует метрики: ad_http_requests_total, ad_http_request_duration_seconds.
// Нормализация путей предотвращает взрывной рост кардинальности.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики Acorn Dashboard
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ad_http_requests_total",
			Help: "Общее количество HTTP-запросов к Acorn Dashboard",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ad_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к Acorn Dashboard в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
// Записывает количество запросов и длительность для каждого endpoint.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Нормализуем путь для лейблов метрик
			normalizedPath := normalizePath(r.URL.Path)

			wrapped := newMetricsResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(wrapped.statusCode)

			httpRequestsTotal.WithLabelValues(r.Method, normalizedPath, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(duration)
		})
	}
}

// metricsResponseWriter — обёртка для перехвата статус-кода.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap позволяет http.ResponseController получить доступ к оригинальному ResponseWriter.
func (rw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// normalizePath заменяет параметры пути на плейсхолдеры для предотвращения
// взрывного роста кардинальности метрик.
// /api/v1/views/staff/canonical → /api/v1/views/{entity}/canonical
// /api/v1/preferences/list:staff/pageSize → /api/v1/preferences/{namespace}/{field}
func normalizePath(path string) string {
	// Статические пути — возвращаем как есть
	switch path {
	case "/health/live", "/health/ready", "/metrics":
		return path
	}

	const viewsPrefix = "/api/v1/views/"
	if rest, ok := strings.CutPrefix(path, viewsPrefix); ok && rest != "" {
		if _, suffix, found := strings.Cut(rest, "/"); found {
			return viewsPrefix + "{entity}/" + suffix
		}
		return viewsPrefix + "{entity}"
	}

	const prefsPrefix = "/api/v1/preferences/"
	if rest, ok := strings.CutPrefix(path, prefsPrefix); ok && rest != "" {
		if strings.Contains(rest, "/") {
			return prefsPrefix + "{namespace}/{field}"
		}
		return prefsPrefix + "{namespace}"
	}

	return path
}
