package middleware

import (
	"compress/gzip"
	"net/http"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"
)

var compressor = chimw.NewCompressor(gzip.DefaultCompression,
	"application/json", "text/html", "text/plain")

// GzipMiddleware распаковывает тела запросов с Content-Encoding: gzip и сжимает
// текстовые ответы для клиентов, поддерживающих gzip.
func GzipMiddleware(next http.Handler) http.Handler {
	return decompressRequest(compressor.Handler(next))
}

func decompressRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Content-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}

		gz, err := gzip.NewReader(r.Body)
		if err != nil {
			http.Error(w, "invalid gzip body", http.StatusBadRequest)
			return
		}
		defer gz.Close()

		r.Body = gz
		r.ContentLength = -1
		r.Header.Del("Content-Encoding")
		r.Header.Del("Content-Length")

		next.ServeHTTP(w, r)
	})
}
