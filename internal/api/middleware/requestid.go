// requestid.go — middleware идентификатора запроса.
// Берёт X-Request-ID из входящего запроса или генерирует UUID,
// возвращает его в ответе и кладёт в контекст для логирования.
package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// HeaderRequestID — заголовок идентификатора запроса.
const HeaderRequestID = "X-Request-ID"

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

const contextKeyRequestID contextKey = "request_id"

// maxRequestIDLen — входящие идентификаторы длиннее заменяются сгенерированными.
const maxRequestIDLen = 128

// RequestID возвращает middleware, назначающий идентификатор каждому запросу.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(HeaderRequestID)
			if id == "" || len(id) > maxRequestIDLen {
				id = uuid.NewString()
			}
			w.Header().Set(HeaderRequestID, id)
			ctx := context.WithValue(r.Context(), contextKeyRequestID, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestIDFromContext возвращает идентификатор запроса или пустую строку.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(contextKeyRequestID).(string)
	return id
}
