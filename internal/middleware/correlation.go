package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// CorrelationIDHeader задаёт заголовок, в котором передаётся идентификатор корреляции.
const CorrelationIDHeader = "X-Correlation-ID"

const correlationIDKey contextKey = "correlationID"

// CorrelationID берёт идентификатор корреляции из заголовка или генерирует новый,
// кладёт его в контекст и возвращает клиенту.
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(CorrelationIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}

		w.Header().Set(CorrelationIDHeader, id)
		next.ServeHTTP(w, r.WithContext(WithCorrelationID(r.Context(), id)))
	})
}

// WithCorrelationID возвращает контекст с идентификатором корреляции.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// GetCorrelationID возвращает идентификатор корреляции или пустую строку.
func GetCorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey).(string)
	return id
}
