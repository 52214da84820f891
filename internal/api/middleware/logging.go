// logging.go — middleware логирования входящих HTTP-запросов через slog.
// Перехватывает статус-код, размер ответа и длительность обработки.
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// responseWriter — обёртка для перехвата статус-кода ответа.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// Unwrap позволяет http.ResponseController получить доступ к оригинальному ResponseWriter.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Заголовок HTMX, которым обработчики представлений заменяют адрес в браузере.
const headerHXReplaceURL = "HX-Replace-Url"

// RequestLogger возвращает middleware, логирующий каждый HTTP-запрос:
// метод, путь, query, сущность представления, статус, длительность, размер ответа,
// remote_addr, request_id и признак замены адреса (HX-Replace-Url).
// Уровень и сообщение выбирает classifyRequest.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := newResponseWriter(w)

			next.ServeHTTP(wrapped, r)

			level, msg := classifyRequest(r, wrapped.statusCode)
			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("query", r.URL.RawQuery),
				slog.Int("status", wrapped.statusCode),
				slog.Duration("duration", time.Since(start)),
				slog.Int64("bytes", wrapped.written),
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("request_id", RequestIDFromContext(r.Context())),
			}
			if entity := viewEntity(r.URL.Path); entity != "" {
				attrs = append(attrs, slog.String("entity", entity))
			}
			if wrapped.Header().Get(headerHXReplaceURL) != "" {
				attrs = append(attrs, slog.Bool("url_replaced", true))
			}

			logger.LogAttrs(r.Context(), level, msg, attrs...)
		})
	}
}

// classifyRequest выбирает уровень и сообщение лога:
//   - health и metrics — DEBUG (пробы не засоряют лог);
//   - клиент отключился до ответа — INFO;
//   - 502/504 — WARN: сбой backend списков, а не сервиса;
//   - прочие 5xx — ERROR, 4xx — WARN, остальное — INFO.
func classifyRequest(r *http.Request, status int) (slog.Level, string) {
	switch {
	case r.URL.Path == "/metrics" || strings.HasPrefix(r.URL.Path, "/health/"):
		return slog.LevelDebug, "HTTP проба"
	case errors.Is(r.Context().Err(), context.Canceled):
		return slog.LevelInfo, "Клиент отключился до ответа"
	case status == http.StatusBadGateway || status == http.StatusGatewayTimeout:
		return slog.LevelWarn, "Ошибка backend списков"
	case status >= 500:
		return slog.LevelError, "HTTP запрос"
	case status >= 400:
		return slog.LevelWarn, "HTTP запрос"
	default:
		return slog.LevelInfo, "HTTP запрос"
	}
}

// viewEntity возвращает сущность из пути /api/v1/views/{entity}/...
func viewEntity(path string) string {
	rest, ok := strings.CutPrefix(path, "/api/v1/views/")
	if !ok {
		return ""
	}
	entity, _, _ := strings.Cut(rest, "/")
	return entity
}
